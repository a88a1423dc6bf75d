package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"taxi-realtime/internal/shared/models"
	"taxi-realtime/internal/shared/util"
	"taxi-realtime/internal/trip/domain"

	"github.com/rabbitmq/amqp091-go"
)

// Channel is the subset of *amqp091.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Publisher struct {
	ch       Channel
	exchange string
}

func NewPublisher(ch Channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

var _ domain.Publisher = (*Publisher)(nil)

// DeclareExchange declares the durable topic exchange trip events go to.
func (p *Publisher) DeclareExchange() error {
	return p.ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func ConnectToRMQ(cfg *models.RabbitMQConfig, log *util.Logger) (*amqp091.Connection, *amqp091.Channel, error) {
	dsn := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.User, cfg.Password, cfg.Host, cfg.Port)

	var conn *amqp091.Connection
	var ch *amqp091.Channel
	var err error

	for i := 0; i < 10; i++ {
		conn, err = amqp091.Dial(dsn)
		if err == nil {
			ch, err = conn.Channel()
			if err == nil {
				return conn, ch, nil
			}
			conn.Close()
		}
		log.Warn("RabbitMQ", fmt.Sprintf("not ready, retrying... (%d/10)", i+1))
		time.Sleep(3 * time.Second)
	}

	return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	err := p.ch.PublishWithContext(ctx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// PublishTripEvent routes the event by its type, e.g. "trip.created".
func (p *Publisher) PublishTripEvent(ctx context.Context, event domain.TripEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trip event: %w", err)
	}
	return p.Publish(ctx, event.Type, body)
}
