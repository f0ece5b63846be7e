package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Publisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

// RabbitPublisher publishes JSON events on a durable topic exchange using
// the event type as routing key.
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewRabbitPublisher(uri, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	return &RabbitPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return nil
}

func encode(eventType string, payload any) ([]byte, error) {
	body, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", eventType, err)
	}
	return body, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := encode(eventType, payload)
	if err != nil {
		return err
	}

	logrus.WithField("event", eventType).Debug("publishing event")

	return p.channel.PublishWithContext(ctx,
		p.exchange,
		eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

func (p *RabbitPublisher) Close() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}

// NopPublisher only logs events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(_ context.Context, eventType string, payload any) error {
	body, err := encode(eventType, payload)
	if err != nil {
		return err
	}
	logrus.WithField("event", eventType).Infof("event not published (no broker): %s", body)
	return nil
}
