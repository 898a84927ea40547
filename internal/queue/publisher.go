package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher publishes booking events to RabbitMQ. Messages are persistent and
// the queue is declared on every publish so the broker can be restarted
// independently of the backend.
type Publisher struct {
	url       string
	queueName string
	logger    *logrus.Logger
}

// NewPublisher creates a new Publisher
func NewPublisher(url, queueName string, logger *logrus.Logger) *Publisher {
	return &Publisher{url: url, queueName: queueName, logger: logger}
}

// Publish sends one booking event to the broker. Errors are returned so the
// dispatcher can log them; the core booking flow never waits on this path.
func (p *Publisher) Publish(ctx context.Context, event BookingEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel open failed: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Idempotent; durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queueName, // name
		true,        // durable
		false,       // autoDelete
		false,       // exclusive
		false,       // noWait
		nil,         // args
	); err != nil {
		return fmt.Errorf("amqp queue declare failed: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key = queue name
		false,       // mandatory
		false,       // immediate
		pub,
	); err != nil {
		return fmt.Errorf("amqp publish failed: %w", err)
	}

	return nil
}
