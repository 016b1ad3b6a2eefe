// Package events delivers committed ledger events to external sinks.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/jaakkos/dao-ledger/internal/app"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "ledger-events"

// amqpChannel is the subset of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes ledger events as JSON to a durable queue on the default exchange.
type AMQPPublisher struct {
	channel amqpChannel
	queue   string
	conn    io.Closer

	mu sync.Mutex // amqp channels are not safe for concurrent publishing
}

// NewAMQPPublisher wraps an open channel. queue must already be declared.
func NewAMQPPublisher(ch amqpChannel, queue string) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQPPublisher{channel: ch, queue: queue}
}

// DialAMQP connects to url with retries, declares queue and returns a publisher
// owning the connection.
func DialAMQP(url, queue string, attempts int, delay time.Duration, logger *log.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if queue == "" {
		queue = DefaultQueue
	}
	if attempts < 1 {
		attempts = 1
	}

	var conn *amqp.Connection
	var err error
	for i := 0; i < attempts; i++ {
		if conn, err = amqp.Dial(url); err == nil {
			break
		}
		if i < attempts-1 {
			logger.Printf("Warning: connect to AMQP broker failed (%v), retrying in %s", err, delay)
			time.Sleep(delay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("amqp dial after %d attempt(s): %w", attempts, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp declare queue %s: %w", queue, err)
	}
	logger.Printf("Publishing ledger events to AMQP queue %s", queue)

	p := NewAMQPPublisher(ch, queue)
	p.conn = conn
	return p, nil
}

// Publish implements app.EventPublisher.
func (p *AMQPPublisher) Publish(ctx context.Context, ev app.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close closes the channel and, when the publisher dialed it, the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
		p.conn = nil
	}
	return err
}
