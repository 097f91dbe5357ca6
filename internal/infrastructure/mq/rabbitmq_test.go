package mq

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
	closed   bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{channel: ch, exchange: "ledger.events"}

	if err := p.Publish(context.Background(), "ledger_events", "TXN9", `{"a":1}`); err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if ch.exchange != "ledger.events" || ch.key != "ledger_events" {
		t.Fatalf("unexpected routing: exchange=%s key=%s", ch.exchange, ch.key)
	}
	if string(ch.msg.Body) != `{"a":1}` || ch.msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected publishing: %+v", ch.msg)
	}
	if ch.msg.Headers["message_key"] != "TXN9" {
		t.Fatalf("expected message_key header TXN9, got %v", ch.msg.Headers["message_key"])
	}

	if err := p.Close(); err != nil || !ch.closed {
		t.Fatalf("close: err=%v closed=%v", err, ch.closed)
	}
}

func TestRabbitPublisher_PublishError(t *testing.T) {
	boom := errors.New("channel closed")
	p := &RabbitPublisher{channel: &fakeChannel{err: boom}, exchange: "x"}
	if err := p.Publish(context.Background(), "t", "k", "{}"); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
