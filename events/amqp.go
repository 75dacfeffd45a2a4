package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Defaults for AMQPPublisher
const (
	DefaultExchange       = "ping.events"
	DefaultRoutingPrefix  = "ping.flow"
	DefaultConfirmTimeout = 5 * time.Second
)

// AMQPPublisher publishes events to a RabbitMQ topic exchange. Each event is
// routed as "<prefix>.<stage>" and waits for a publisher confirm. The
// connection is opened on first use and reopened after the broker closes it.
type AMQPPublisher struct {
	url            string
	exchange       string
	prefix         string
	confirmTimeout time.Duration
	logger         *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	confirms chan amqp.Confirmation
	closed   bool
}

var _ Publisher = (*AMQPPublisher)(nil)

// AMQPOption configures an AMQPPublisher
type AMQPOption func(*AMQPPublisher)

// WithExchange sets the topic exchange, declared durable on connect
func WithExchange(exchange string) AMQPOption {
	return func(p *AMQPPublisher) {
		p.exchange = exchange
	}
}

// WithRoutingPrefix sets the routing key prefix
func WithRoutingPrefix(prefix string) AMQPOption {
	return func(p *AMQPPublisher) {
		p.prefix = prefix
	}
}

// WithConfirmTimeout sets how long to wait for a publisher confirm
func WithConfirmTimeout(timeout time.Duration) AMQPOption {
	return func(p *AMQPPublisher) {
		p.confirmTimeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) AMQPOption {
	return func(p *AMQPPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewAMQPPublisher creates a publisher for the broker at url. No connection
// is made until the first Publish or Connect.
func NewAMQPPublisher(url string, options ...AMQPOption) *AMQPPublisher {
	p := &AMQPPublisher{
		url:            url,
		exchange:       DefaultExchange,
		prefix:         DefaultRoutingPrefix,
		confirmTimeout: DefaultConfirmTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Connect opens the connection and declares the exchange
func (p *AMQPPublisher) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connect(ctx)
}

func (p *AMQPPublisher) connect(ctx context.Context) error {
	if p.closed {
		return ErrPublisherClosed
	}
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		return nil
	}
	p.reset()

	type result struct {
		conn *amqp.Connection
		err  error
	}
	dialed := make(chan result, 1)
	go func() {
		conn, err := amqp.Dial(p.url)
		dialed <- result{conn, err}
	}()

	var conn *amqp.Connection
	select {
	case r := <-dialed:
		if r.err != nil {
			return &ConnectionError{URL: sanitizeURL(p.url), Err: r.err}
		}
		conn = r.conn
	case <-ctx.Done():
		go func() {
			if r := <-dialed; r.conn != nil {
				r.conn.Close()
			}
		}()
		return &ConnectionError{URL: sanitizeURL(p.url), Err: ctx.Err()}
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return &ConnectionError{URL: sanitizeURL(p.url), Err: fmt.Errorf("failed to open channel: %w", err)}
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to enable confirms: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p.logger.Info("connected to event broker", "url", sanitizeURL(p.url), "exchange", p.exchange)
	return nil
}

// Publish implements Publisher
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	routingKey := p.prefix + "." + event.Stage

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connect(ctx); err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         "ping.flow." + event.Stage,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		p.reset()
		return &PublishError{Exchange: p.exchange, RoutingKey: routingKey, Err: err}
	}

	timer := time.NewTimer(p.confirmTimeout)
	defer timer.Stop()

	select {
	case confirm, ok := <-p.confirms:
		if !ok {
			p.reset()
			return &PublishError{Exchange: p.exchange, RoutingKey: routingKey, Err: amqp.ErrClosed}
		}
		if !confirm.Ack {
			return &PublishError{Exchange: p.exchange, RoutingKey: routingKey, Err: ErrNotConfirmed}
		}
		return nil
	case <-timer.C:
		p.reset()
		return &PublishError{Exchange: p.exchange, RoutingKey: routingKey, Err: fmt.Errorf("timeout waiting for confirmation")}
	case <-ctx.Done():
		p.reset()
		return ctx.Err()
	}
}

// reset drops the current connection; the next publish reconnects
func (p *AMQPPublisher) reset() {
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
	p.confirms = nil
}

// Close closes the connection. Publish fails afterwards.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	var err error
	if p.conn != nil {
		err = p.conn.Close()
	}
	p.conn = nil
	p.ch = nil
	p.confirms = nil
	return err
}
