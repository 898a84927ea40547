package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/groupavia/allotment-backend/internal/queue"
)

// Notifier is the outbound notification boundary. Implementations must not
// block the caller; booking transitions commit before events are handed over
// and never wait on delivery.
type Notifier interface {
	Notify(event queue.BookingEvent)
}

// EventPublisher is the broker-facing side of the dispatcher.
type EventPublisher interface {
	Publish(ctx context.Context, event queue.BookingEvent) error
}

// NotificationService drains booking events from a buffered channel into the
// message broker. When the buffer is full or the broker is down, events are
// dropped with a warning; notification delivery is fire-and-forget by design
// of the booking flow.
type NotificationService struct {
	publisher EventPublisher // nil means log-only mode
	events    chan queue.BookingEvent
	stopCh    chan struct{}
	wg        sync.WaitGroup
	logger    *logrus.Logger
}

// NewNotificationService creates a new NotificationService. Pass a nil
// publisher to run in log-only mode (no broker configured).
func NewNotificationService(publisher EventPublisher, bufferSize int, logger *logrus.Logger) *NotificationService {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &NotificationService{
		publisher: publisher,
		events:    make(chan queue.BookingEvent, bufferSize),
		stopCh:    make(chan struct{}),
		logger:    logger,
	}
}

// Start begins the background dispatch loop.
func (s *NotificationService) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("Notification dispatcher started")
}

// Stop drains buffered events and stops the dispatch loop.
func (s *NotificationService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Notification dispatcher stopped")
}

// Notify enqueues an event without blocking. Events are dropped when the
// buffer is full.
func (s *NotificationService) Notify(event queue.BookingEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.WithFields(logrus.Fields{
			"event_type": event.EventType,
			"booking_id": event.BookingID,
		}).Warn("Notification buffer full, dropping event")
	}
}

func (s *NotificationService) run() {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.events:
			s.dispatch(event)
		case <-s.stopCh:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case event := <-s.events:
					s.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (s *NotificationService) dispatch(event queue.BookingEvent) {
	entry := s.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"booking_id": event.BookingID,
		"agency_id":  event.AgencyID,
	})

	if s.publisher == nil {
		entry.Info("Booking event (no broker configured)")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.publisher.Publish(ctx, event); err != nil {
		entry.WithError(err).Error("Failed to publish booking event")
		return
	}
	entry.Debug("Booking event published")
}
