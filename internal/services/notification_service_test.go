package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/groupavia/allotment-backend/internal/queue"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []queue.BookingEvent
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, event queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestNotificationServiceDeliversThenDrains(t *testing.T) {
	publisher := &fakePublisher{}
	svc := NewNotificationService(publisher, 16, testLogger())
	svc.Start()

	for i := 0; i < 5; i++ {
		svc.Notify(queue.BookingEvent{EventType: queue.EventBookingCreated})
	}

	// Stop drains the buffer before returning.
	svc.Stop()
	assert.Equal(t, 5, publisher.count())
}

func TestNotificationServiceDropsWhenFull(t *testing.T) {
	// Dispatcher never started, so the buffer fills and overflow is dropped
	// without blocking the caller.
	svc := NewNotificationService(nil, 2, testLogger())

	for i := 0; i < 10; i++ {
		svc.Notify(queue.BookingEvent{EventType: queue.EventBookingCreated})
	}
	require.Len(t, svc.events, 2)
}

func TestNotificationServicePublisherErrorDoesNotStopLoop(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	svc := NewNotificationService(publisher, 16, testLogger())
	svc.Start()

	svc.Notify(queue.BookingEvent{EventType: queue.EventBookingPaid})
	svc.Notify(queue.BookingEvent{EventType: queue.EventBookingIssued})

	svc.Stop()
	assert.Equal(t, 0, publisher.count())
}
