// Package amqp carries the export event feed: the API server publishes
// transaction-recorded and transaction-deleted messages, the export
// worker consumes them.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Routing keys on the direct exchange.
const (
	RouteRecorded = "transaction.recorded"
	RouteDeleted  = "transaction.deleted"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
}

func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range []string{RouteRecorded, RouteDeleted} {
		if err := c.channel.QueueBind(c.queueName, key, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue for %s: %w", key, err)
		}
	}

	return nil
}

// PublishTransactionRecorded announces a created or updated transaction.
func (c *Client) PublishTransactionRecorded(ctx context.Context, id, userID string) error {
	body, err := NewTransactionRecordedMessage(id, userID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RouteRecorded, body)
}

// PublishTransactionDeleted announces a deleted transaction.
func (c *Client) PublishTransactionDeleted(ctx context.Context, id, userID string) error {
	body, err := NewTransactionDeletedMessage(id, userID).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	return c.publish(ctx, RouteDeleted, body)
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	slog.InfoContext(ctx, "published export message",
		"routing_key", routingKey,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

// ConsumeMessages delivers queued messages to the handlers with manual
// acks: handler failure nacks with requeue, undecodable bodies are
// dropped. Blocks until the context is cancelled.
func (c *Client) ConsumeMessages(
	ctx context.Context,
	onRecorded func(context.Context, *TransactionRecordedMessage) error,
	onDeleted func(context.Context, *TransactionDeletedMessage) error,
) error {
	msgs, err := c.channel.Consume(
		c.queueName,
		"",    // consumer
		false, // auto-ack off, we ack manually
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "consuming export messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}
			c.dispatch(ctx, delivery, onRecorded, onDeleted)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onRecorded func(context.Context, *TransactionRecordedMessage) error,
	onDeleted func(context.Context, *TransactionDeletedMessage) error,
) {
	var err error
	switch delivery.RoutingKey {
	case RouteRecorded:
		msg, derr := TransactionRecordedMessageFromJSON(delivery.Body)
		if derr != nil {
			err = decodeError{derr}
			break
		}
		err = handle(ctx, msg.ID, func() error { return onRecorded(ctx, msg) })
	case RouteDeleted:
		msg, derr := TransactionDeletedMessageFromJSON(delivery.Body)
		if derr != nil {
			err = decodeError{derr}
			break
		}
		err = handle(ctx, msg.ID, func() error { return onDeleted(ctx, msg) })
	default:
		slog.WarnContext(ctx, "unknown routing key", "routing_key", delivery.RoutingKey)
		delivery.Nack(false, false)
		return
	}

	if err != nil {
		slog.ErrorContext(ctx, "failed to handle message",
			"error", err, "routing_key", delivery.RoutingKey)
		// Requeue handler failures; drop bodies that will never decode.
		delivery.Nack(false, !isDecodeError(err))
		return
	}
	delivery.Ack(false)
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func handle(ctx context.Context, id string, fn func() error) error {
	if err := fn(); err != nil {
		return fmt.Errorf("handle message %s: %w", id, err)
	}
	slog.InfoContext(ctx, "processed export message", "txn_id", id)
	return nil
}

func isDecodeError(err error) bool {
	_, ok := err.(decodeError)
	return ok
}

// ExponentialBackoff returns the wait before reconnect attempt n,
// doubling from one second and capping at thirty.
func ExponentialBackoff(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > 30*time.Second || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// IsConnectionError reports whether an error looks like a broken AMQP
// connection worth a reconnect, as opposed to a handler failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, probe := range []string{
		"connection refused",
		"connection closed",
		"unexpected EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, probe) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
