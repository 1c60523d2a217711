package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"chatvault/pkg/store"
)

const (
	exchangeName = "chatvault.feed"
	queueName    = "chatvault.feed.messages"
	routingKey   = "message.new"
)

// RabbitFeed publishes and consumes live-feed events over RabbitMQ. The
// protocol edge publishes; the harvester consumes and persists.
type RabbitFeed struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitFeed dials the broker and declares the exchange and queue.
func NewRabbitFeed(url string) (*RabbitFeed, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchangeName, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	return &RabbitFeed{conn: conn, ch: ch}, nil
}

// Publish emits one event.
func (f *RabbitFeed) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return f.ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Consume persists incoming events until the context is cancelled. Malformed
// payloads are rejected without requeue; persistence errors requeue the
// delivery for a later attempt.
func (f *RabbitFeed) Consume(ctx context.Context, st store.Store) error {
	deliveries, err := f.ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("feed channel closed")
			}
			var ev Event
			if err := json.Unmarshal(d.Body, &ev); err != nil {
				slog.Warn("dropping malformed feed event", "error", err)
				_ = d.Reject(false)
				continue
			}
			if err := st.RecordFeedMessage(ev.MessageLog()); err != nil {
				slog.Error("persisting feed event failed", "chat", ev.ChatID, "message", ev.MessageID, "error", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Close tears down the channel and connection.
func (f *RabbitFeed) Close() error {
	if err := f.ch.Close(); err != nil {
		f.conn.Close()
		return err
	}
	return f.conn.Close()
}
