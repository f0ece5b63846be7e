package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"exam_review_backend/scores"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// ErrInvalidMessage marks messages that can never be stored. They are
// dropped instead of requeued.
var ErrInvalidMessage = errors.New("invalid processed score message")

// ScoreConsumer stores processed scores announced on the exchange.
type ScoreConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	store   scores.Store
}

func NewScoreConsumer(uri, exchange, queue string, store scores.Store) (*ScoreConsumer, error) {
	conn, err := amqp.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	fail := func(err error) (*ScoreConsumer, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if err := declareExchange(ch, exchange); err != nil {
		return fail(err)
	}
	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		return fail(fmt.Errorf("failed to declare queue %s: %w", queue, err))
	}
	if err := ch.QueueBind(q.Name, ScoreProcessed, exchange, false, nil); err != nil {
		return fail(fmt.Errorf("failed to bind queue %s: %w", queue, err))
	}
	if err := ch.Qos(10, 0, false); err != nil {
		return fail(fmt.Errorf("failed to set QoS: %w", err))
	}

	return &ScoreConsumer{conn: conn, channel: ch, queue: q.Name, store: store}, nil
}

// Run consumes until ctx is cancelled or the delivery channel closes.
func (c *ScoreConsumer) Run(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	logrus.WithField("queue", c.queue).Info("score consumer started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			handleDelivery(ctx, c.store, d)
		}
	}
}

func (c *ScoreConsumer) Close() {
	if c.channel != nil {
		_ = c.channel.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// handleDelivery acks stored scores, drops invalid messages and requeues
// the ones the store failed to save.
func handleDelivery(ctx context.Context, store scores.Store, d amqp.Delivery) {
	err := HandleScore(ctx, store, d.Body)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrInvalidMessage):
		logrus.WithError(err).Warn("rejecting processed score message")
		_ = d.Nack(false, false)
	default:
		logrus.WithError(err).Error("requeueing processed score message")
		_ = d.Nack(false, true)
	}
}

// HandleScore decodes a score.processed envelope and saves its payload.
func HandleScore(ctx context.Context, store scores.Store, body []byte) error {
	var envelope struct {
		Type    string                `json:"type"`
		Payload scores.ProcessedScore `json:"payload"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if envelope.Type != ScoreProcessed {
		return fmt.Errorf("%w: unexpected event type %q", ErrInvalidMessage, envelope.Type)
	}
	if err := envelope.Payload.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := store.Save(ctx, &envelope.Payload); err != nil {
		return fmt.Errorf("failed to save processed score: %w", err)
	}
	logrus.WithField("trial_id", envelope.Payload.TrialID).Info("processed score stored")
	return nil
}
