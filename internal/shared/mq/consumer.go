package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"

	"github.com/rabbitmq/amqp091-go"
)

// ConsumeChannel is the subset of *amqp091.Channel the consumer needs.
type ConsumeChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
}

// TripEventHandler returning an error makes the delivery be rejected
// without requeue.
type TripEventHandler func(ctx context.Context, event domain.TripEvent) error

// EventConsumer reads trip events back from the exchange, e.g. for audit
// or tailing tools.
type EventConsumer struct {
	ch       ConsumeChannel
	exchange string
	queue    string
	keys     []string
	handle   TripEventHandler
	logger   *util.Logger
}

// NewEventConsumer binds queue to exchange with keys. An empty queue name
// asks the broker for an exclusive, auto-deleted one.
func NewEventConsumer(ch ConsumeChannel, exchange, queue string, keys []string, handle TripEventHandler, logger *util.Logger) *EventConsumer {
	if len(keys) == 0 {
		keys = []string{"trip.*"}
	}
	return &EventConsumer{ch: ch, exchange: exchange, queue: queue, keys: keys, handle: handle, logger: logger}
}

// Start declares and binds the queue and processes deliveries until ctx is
// done or the channel is closed.
func (c *EventConsumer) Start(ctx context.Context) error {
	temporary := c.queue == ""
	q, err := c.ch.QueueDeclare(c.queue, !temporary, temporary, temporary, false, nil)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	for _, key := range c.keys {
		if err := c.ch.QueueBind(q.Name, key, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, c.exchange, err)
		}
	}

	msgs, err := c.ch.Consume(
		q.Name,
		"",
		false, // manual acknowledgment
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	c.logger.OK("EventConsumer", fmt.Sprintf("consuming %v from %s [queue=%s]", c.keys, c.exchange, q.Name))

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("EventConsumer", "delivery channel closed")
					return
				}
				c.handleDelivery(ctx, msg)
			}
		}
	}()
	return nil
}

func (c *EventConsumer) handleDelivery(ctx context.Context, msg amqp091.Delivery) {
	var event domain.TripEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		c.logger.Warn("EventConsumer", fmt.Sprintf("invalid JSON on %s: %v", msg.RoutingKey, err))
		msg.Nack(false, false)
		return
	}
	if event.Type == "" {
		event.Type = msg.RoutingKey
	}

	if err := c.handle(ctx, event); err != nil {
		c.logger.Error("EventConsumer", fmt.Errorf("handle %s for %s: %w", event.Type, event.Trip.NK, err))
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}
