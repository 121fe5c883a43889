package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

const (
	OrderCreated        = "order.created"
	OrderMerged         = "order.merged"
	OrderStatusChanged  = "order.status_changed"
	OrderPaymentChanged = "order.payment_changed"
)

type Event struct {
	Type       string        `json:"type"`
	OrderID    string        `json:"orderId"`
	BuyerID    string        `json:"buyerId"`
	SellerID   string        `json:"sellerId"`
	Status     string        `json:"status"`
	OccurredAt time.Time     `json:"occurredAt"`
	Order      *models.Order `json:"order"`
}

func NewOrderEvent(eventType string, order *models.Order, at time.Time) Event {
	return Event{
		Type:       eventType,
		OrderID:    order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		Status:     string(order.Status),
		OccurredAt: at,
		Order:      order,
	}
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// LogPublisher is used when no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, event Event) error {
	log.Printf("📣 %s order=%s status=%s", event.Type, event.OrderID, event.Status)
	return nil
}

// ErrNotConnected is returned by AMQPPublisher.Publish while the broker
// connection is being re-established.
var ErrNotConnected = errors.New("not connected to RabbitMQ")

const maxReconnectDelay = 30 * time.Second

// AMQPPublisher publishes order events to a durable topic exchange, routed by
// event type. A lost connection or channel is redialed in the background.
type AMQPPublisher struct {
	cfg        config.RabbitMQConfig
	dial       func(url string) (*amqp.Connection, error)
	retryDelay time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
	done    chan struct{}
}

func NewAMQPPublisher(cfg config.RabbitMQConfig) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		cfg:        cfg,
		dial:       amqp.Dial,
		retryDelay: time.Second,
		done:       make(chan struct{}),
	}

	conn, channel, err := p.connect()
	if err != nil {
		return nil, err
	}
	p.conn, p.channel = conn, channel
	go p.watch(conn, channel)

	log.Printf("🐇 Publishing order events to exchange %s", cfg.Exchange)
	return p, nil
}

func (p *AMQPPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		p.cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange: %w", err)
	}
	return conn, channel, nil
}

// watch waits for the connection or its channel to close and redials until
// the publisher is closed.
func (p *AMQPPublisher) watch(conn *amqp.Connection, channel *amqp.Channel) {
	for {
		connClosed := conn.NotifyClose(make(chan *amqp.Error, 1))
		chanClosed := channel.NotifyClose(make(chan *amqp.Error, 1))

		var reason *amqp.Error
		select {
		case <-p.done:
			return
		case reason = <-connClosed:
		case reason = <-chanClosed:
		}
		select {
		case <-p.done:
			return
		default:
		}

		log.Printf("RabbitMQ connection lost: %v; reconnecting", reason)
		p.mu.Lock()
		p.conn, p.channel = nil, nil
		p.mu.Unlock()
		channel.Close()
		conn.Close()

		var ok bool
		conn, channel, ok = p.reconnect()
		if !ok {
			return
		}
	}
}

// reconnect retries connect with exponential backoff. It reports false if the
// publisher was closed first.
func (p *AMQPPublisher) reconnect() (*amqp.Connection, *amqp.Channel, bool) {
	delay := p.retryDelay
	for {
		select {
		case <-p.done:
			return nil, nil, false
		case <-time.After(delay):
		}

		conn, channel, err := p.connect()
		if err != nil {
			log.Printf("RabbitMQ reconnect failed: %v", err)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			channel.Close()
			conn.Close()
			return nil, nil, false
		}
		p.conn, p.channel = conn, channel
		p.mu.Unlock()
		log.Printf("🐇 Reconnected to RabbitMQ exchange %s", p.cfg.Exchange)
		return conn, channel, true
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	channel := p.channel
	p.mu.Unlock()
	if channel == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	return channel.PublishWithContext(ctx,
		p.cfg.Exchange,
		event.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			MessageId:    event.OrderID,
			Body:         body,
		},
	)
}

// Close stops reconnecting and closes the current channel and connection.
func (p *AMQPPublisher) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	channel, conn := p.channel, p.conn
	p.conn, p.channel = nil, nil
	p.mu.Unlock()

	if channel != nil {
		channel.Close()
	}
	if conn != nil {
		conn.Close()
	}
}
