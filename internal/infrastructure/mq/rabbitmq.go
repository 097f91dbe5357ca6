package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel 发布所需的 channel 方法子集
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitPublisher 基于 RabbitMQ topic exchange 的事件发布器
// topic 作为 routing key 使用
type RabbitPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

// NewRabbitPublisher 建立连接并声明持久化 topic exchange
func NewRabbitPublisher(cfg *config.RabbitMQConfig) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("连接 RabbitMQ 失败: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("打开 RabbitMQ channel 失败: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("声明 exchange 失败: %w", err)
	}

	return &RabbitPublisher{conn: conn, channel: ch, exchange: cfg.Exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, topic, key, payload string) error {
	err := p.channel.PublishWithContext(
		ctx,
		p.exchange,
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         []byte(payload),
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now().UTC(),
			Headers: amqp.Table{
				"message_key": key,
			},
		},
	)
	if err != nil {
		return fmt.Errorf("rabbitmq publish %s/%s: %w", topic, key, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
