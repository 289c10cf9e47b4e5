package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cloo-solutions/docindex/internal/domain"
)

// DefaultQueue receives index events when no queue is configured.
const DefaultQueue = "docindex.events"

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventPublisher publishes IndexEvents as persistent JSON messages.
type EventPublisher struct {
	open      func() (channel, error)
	queueName string
}

// NewEventPublisher publishes to queueName over conn.
func NewEventPublisher(conn *amqp.Connection, queueName string) *EventPublisher {
	return newEventPublisher(func() (channel, error) {
		return conn.Channel()
	}, queueName)
}

func newEventPublisher(open func() (channel, error), queueName string) *EventPublisher {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &EventPublisher{
		open:      open,
		queueName: queueName,
	}
}

// Publish sends one event. A channel is opened per message since events are
// emitted once per processed document.
func (p *EventPublisher) Publish(ctx context.Context, event domain.IndexEvent) error {
	ch, err := p.open()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         "document." + string(event.Status),
			Timestamp:    event.OccurredAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish event failed: %w", err)
	}
	return nil
}
