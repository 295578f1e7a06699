package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"openplay-server/internal/rotation"
)

// Publisher re-publishes session snapshots to a topic exchange so that
// consumers outside the websocket layer (scoreboards, archivers) can follow a
// session by its share code.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// RoutingKey is "session.<share code>.<event>".
func RoutingKey(shareCode, event string) string {
	return fmt.Sprintf("session.%s.%s", shareCode, event)
}

func (p *Publisher) PublishJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

// PublishSnapshot publishes the session under "state", or "ended" once the
// session is no longer active.
func (p *Publisher) PublishSnapshot(ctx context.Context, s *rotation.Session) error {
	event := "state"
	if !s.IsActive {
		event = "ended"
	}
	return p.PublishJSON(ctx, RoutingKey(s.ShareCode, event), s)
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
