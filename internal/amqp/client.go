package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	applog "fireflyiii/internal/log"
	"fireflyiii/pkg/firefly"
)

const (
	maxDialAttempts = 5
	maxBackoff      = 30 * time.Second
	publishTimeout  = 5 * time.Second
	prefetchCount   = 10

	importMessageType = "fireflyiii.import"
)

// Handler processes one import message. Returning a Firefly transport error
// requeues the message; any other error drops it.
type Handler func(ctx context.Context, msg *ImportMessage) error

type Client struct {
	url          string
	exchangeName string
	queueName    string
	logger       *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// NewClient dials the broker, retrying with exponential backoff, and declares
// the exchange, queue and binding.
func NewClient(ctx context.Context, url, exchangeName, queueName string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		url:          url,
		exchangeName: exchangeName,
		queueName:    queueName,
		logger:       logger,
	}

	var err error
	for attempt := 0; attempt < maxDialAttempts; attempt++ {
		if err = c.connect(); err == nil {
			return c, nil
		}
		wait := exponentialBackoff(attempt)
		logger.WarnContext(ctx, "AMQP connection failed, retrying",
			"attempt", attempt+1,
			"backoff", wait.String(),
			applog.FieldError, err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("dial AMQP: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("dial AMQP after %d attempts: %w", maxDialAttempts, err)
}

// connect must be called with c.mu held or before c is shared.
func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn, c.channel = conn, channel
	if err := c.setup(); err != nil {
		c.closeLocked()
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	return nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key is the queue name on the direct exchange
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishImport publishes msg as a persistent message. A broken connection is
// re-established once before giving up.
func (c *Client) PublishImport(ctx context.Context, msg *ImportMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err = c.publishLocked(ctx, body)
	if isConnectionError(err) {
		c.logger.WarnContext(ctx, "AMQP publish hit a closed connection, reconnecting", applog.FieldError, err)
		c.closeLocked()
		if rerr := c.connect(); rerr != nil {
			return fmt.Errorf("reconnect: %w", rerr)
		}
		err = c.publishLocked(ctx, body)
	}
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	c.logger.DebugContext(ctx, "Published import message",
		applog.FieldImportID, msg.ImportID,
		"exchange", c.exchangeName,
		"queue", c.queueName)
	return nil
}

func (c *Client) publishLocked(ctx context.Context, body []byte) error {
	if c.channel == nil {
		return amqp091.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Type:         importMessageType,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// ConsumeImports delivers messages to handler until ctx is done or the
// delivery channel closes. Acknowledgement is manual: malformed bodies are
// dropped, transport failures requeued, everything else acknowledged.
func (c *Client) ConsumeImports(ctx context.Context, handler Handler) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return amqp091.ErrClosed
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Started consuming import messages", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			c.process(ctx, delivery.Body, delivery, handler)
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// outcome names what process did with a delivery.
type outcome string

const (
	outcomeAcked    outcome = "acked"
	outcomeDropped  outcome = "dropped"
	outcomeRequeued outcome = "requeued"
)

func (c *Client) process(ctx context.Context, body []byte, ack acknowledger, handler Handler) outcome {
	msg, err := ImportMessageFromJSON(body)
	if err != nil {
		c.logger.ErrorContext(ctx, "Dropping malformed message", applog.FieldError, err)
		ack.Nack(false, false)
		return outcomeDropped
	}

	if err := handler(ctx, msg); err != nil {
		if firefly.IsTransportError(err) {
			c.logger.WarnContext(ctx, "Import failed on transport, requeueing",
				applog.FieldImportID, msg.ImportID,
				applog.FieldError, err)
			ack.Nack(false, true)
			return outcomeRequeued
		}
		// Final rejections are already failed in the ledger. A ledger error
		// leaves the row pending for the periodic drain, so ack either way.
		c.logger.ErrorContext(ctx, "Import failed",
			applog.FieldImportID, msg.ImportID,
			applog.FieldError, err)
		ack.Ack(false)
		return outcomeAcked
	}

	ack.Ack(false)
	return outcomeAcked
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection refused", "connection closed", "unexpected eof", "broken pipe", "closed network connection", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
