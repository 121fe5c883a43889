package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smartfarmlink/smartfarm-backend-go/config"
	"github.com/smartfarmlink/smartfarm-backend-go/models"
)

func TestNewOrderEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	order := &models.Order{ID: "o1", BuyerID: "b1", SellerID: "f1", Status: models.OrderStatusPending}

	ev := NewOrderEvent(OrderCreated, order, at)
	if ev.OrderID != "o1" || ev.BuyerID != "b1" || ev.SellerID != "f1" || ev.Status != "pending" {
		t.Fatalf("unexpected event %+v", ev)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["type"] != "order.created" {
		t.Fatalf("expected order.created, got %v", decoded["type"])
	}
}

func TestLogPublisher(t *testing.T) {
	order := &models.Order{ID: "o1"}
	if err := (LogPublisher{}).Publish(context.Background(), NewOrderEvent(OrderMerged, order, time.Now())); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestAMQPPublisherReconnectsUntilClosed(t *testing.T) {
	var attempts atomic.Int32
	p := &AMQPPublisher{
		cfg: config.RabbitMQConfig{URL: "amqp://broker:5672/", Exchange: "orders"},
		dial: func(string) (*amqp.Connection, error) {
			attempts.Add(1)
			return nil, errors.New("connection refused")
		},
		retryDelay: time.Millisecond,
		done:       make(chan struct{}),
	}

	result := make(chan bool, 1)
	go func() {
		_, _, ok := p.reconnect()
		result <- ok
	}()

	deadline := time.Now().Add(2 * time.Second)
	for attempts.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("only %d dial attempts", attempts.Load())
		}
		time.Sleep(time.Millisecond)
	}

	order := &models.Order{ID: "o1"}
	if err := p.Publish(context.Background(), NewOrderEvent(OrderCreated, order, time.Now())); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected while reconnecting, got %v", err)
	}

	p.Close()
	select {
	case ok := <-result:
		if ok {
			t.Fatal("reconnect reported success after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reconnect kept running after Close")
	}
	p.Close()
}
