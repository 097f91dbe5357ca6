package mq

import (
	"context"
	"fmt"

	"github.com/sarthakg043/ewallet-guildup/internal/config"

	"github.com/IBM/sarama"
)

// KafkaProducer 基于 sarama 同步生产者的事件发布器
type KafkaProducer struct {
	producer sarama.SyncProducer
}

// NewKafkaProducer 初始化 Kafka 生产者
func NewKafkaProducer(cfg *config.KafkaConfig) (*KafkaProducer, error) {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll // 等待所有副本确认
	kafkaConfig.Producer.Retry.Max = 3                    // 重试次数
	kafkaConfig.Producer.Return.Successes = true          // 返回成功消息
	kafkaConfig.Producer.Idempotent = true
	kafkaConfig.Net.MaxOpenRequests = 1

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 Kafka 生产者失败: %w", err)
	}
	return NewKafkaProducerWith(producer), nil
}

// NewKafkaProducerWith 包装已有的 SyncProducer
func NewKafkaProducerWith(producer sarama.SyncProducer) *KafkaProducer {
	return &KafkaProducer{producer: producer}
}

// Publish 发送消息到 Kafka，key 相同的消息落在同一分区
func (p *KafkaProducer) Publish(_ context.Context, topic, key, payload string) error {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.StringEncoder(payload),
	}

	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send %s/%s: %w", topic, key, err)
	}
	return nil
}

// Close 关闭 Kafka 生产者
func (p *KafkaProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
