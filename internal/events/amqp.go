package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Clark-Hu/store-ratings/internal/logger"
)

const defaultAMQPExchange = "store-ratings"

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type amqpDialer func() (io.Closer, amqpChannel, error)

// AMQPPublisher publishes events to a durable topic exchange, routed by type.
//
// A broker restart closes the connection and its channel. The next Publish
// that sees amqp.ErrClosed redials once and retries; if the redial fails the
// event is lost and the following Publish tries again.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     io.Closer
	ch       amqpChannel
	dial     amqpDialer
	exchange string
	log      *logger.Logger
}

var _ Publisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials url and declares the exchange.
func NewAMQPPublisher(url, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("AMQP_URL is required for the amqp events backend")
	}
	if strings.TrimSpace(exchange) == "" {
		exchange = defaultAMQPExchange
	}

	p := &AMQPPublisher{exchange: exchange, log: log.With("component", "events.amqp")}
	p.dial = func() (io.Closer, amqpChannel, error) {
		return dialAMQP(url, exchange, p.log)
	}
	conn, ch, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

func dialAMQP(url, exchange string, log *logger.Logger) (io.Closer, amqpChannel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if reason, ok := <-closed; ok && reason != nil {
			log.Warn("rabbitmq connection closed, will redial on next publish", "reason", reason.Reason, "code", reason.Code)
		}
	}()
	return conn, ch, nil
}

// Publish sends event as a persistent JSON message with routing key event.Type.
func (p *AMQPPublisher) Publish(ctx context.Context, event RatingChanged) error {
	if p == nil {
		return fmt.Errorf("amqp publisher not initialized")
	}
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Body:         b,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.redialLocked(); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
	if !errors.Is(err, amqp.ErrClosed) {
		return err
	}

	p.log.Warn("rabbitmq channel closed, redialing", "event_id", event.ID)
	if err := p.redialLocked(); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg)
}

func (p *AMQPPublisher) redialLocked() error {
	p.closeLocked()
	if p.dial == nil {
		return fmt.Errorf("amqp publisher not initialized")
	}
	conn, ch, err := p.dial()
	if err != nil {
		return fmt.Errorf("redial rabbitmq: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *AMQPPublisher) closeLocked() error {
	var err error
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err = p.conn.Close()
		p.conn = nil
	}
	return err
}

func (p *AMQPPublisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}
