package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AMQPEmitter publishes notifications to a durable topic exchange. The
// routing key is "<kind>.<action>" and the room travels as a header.
type AMQPEmitter struct {
	conn     *amqp091.Connection
	exchange string
	log      *zap.Logger
}

// DialAMQP connects to url and declares exchange.
func DialAMQP(url, exchange string, log *zap.Logger) (*AMQPEmitter, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare %s: %w", exchange, err)
	}
	return &AMQPEmitter{conn: conn, exchange: exchange, log: log}, nil
}

// RoutingKey returns the topic key for n.
func RoutingKey(n Notification) string {
	return n.Kind + "." + n.Action
}

// Emit publishes n as a persistent JSON message.
func (e *AMQPEmitter) Emit(ctx context.Context, n Notification) error {
	n = stamp(n)
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	ch, err := e.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	key := RoutingKey(n)
	err = ch.PublishWithContext(ctx, e.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    n.ID,
		Timestamp:    n.Timestamp,
		Headers:      amqp091.Table{"room": n.Room},
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", key, err)
	}
	e.log.Debug("notification published", zap.String("exchange", e.exchange), zap.String("key", key))
	return nil
}

// Close closes the broker connection.
func (e *AMQPEmitter) Close() error {
	return e.conn.Close()
}
