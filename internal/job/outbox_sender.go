package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/metrics"
	"github.com/sarthakg043/ewallet-guildup/internal/model"
	"github.com/sarthakg043/ewallet-guildup/internal/repository"

	"gorm.io/gorm"
)

// Publisher 把 outbox 消息投递到消息中间件（Kafka / RabbitMQ）
type Publisher interface {
	Publish(ctx context.Context, topic, key, payload string) error
}

// OutboxSender 轮询 outbox 表并投递记账事件
// 投递成功标记 SENT，失败累加重试次数，超过上限标记 FAILED
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	logger     *slog.Logger
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
	maxRetry   int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config, logger *slog.Logger) *OutboxSender {
	interval := time.Duration(cfg.Business.OutboxIntervalMS) * time.Millisecond
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		logger:     logger.With(slog.String("component", "outbox_sender")),
		stopCh:     make(chan struct{}),
		interval:   interval,
		batchSize:  100,
		maxRetry:   cfg.Business.MaxRetryCount,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	s.logger.Info("消息发送任务启动", slog.Duration("interval", s.interval))

	// 上次运行时因中间件不可用而放弃的消息，重启后再给一次机会
	if n := s.RequeueFailed(ctx); n > 0 {
		s.logger.Info("失败消息已重新入队", slog.Int("count", n))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("收到停止信号，任务退出")
			return
		case <-s.stopCh:
			s.logger.Info("任务停止")
			return
		case <-ticker.C:
			s.ProcessPending(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// ProcessPending 投递一批待发送消息，返回成功条数
func (s *OutboxSender) ProcessPending(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		s.logger.Error("查询消息失败", slog.String("error", err.Error()))
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

// RequeueFailed 把 FAILED 消息放回待发送队列，重试次数清零，返回入队条数
func (s *OutboxSender) RequeueFailed(ctx context.Context) int {
	requeued := 0
	for {
		messages, err := s.outboxRepo.GetFailedMessages(ctx, s.batchSize)
		if err != nil {
			s.logger.Error("查询失败消息失败", slog.String("error", err.Error()))
			return requeued
		}
		for _, msg := range messages {
			if err := s.outboxRepo.Requeue(ctx, msg.ID); err != nil {
				s.logger.Error("消息重新入队失败", slog.Int64("id", msg.ID), slog.String("error", err.Error()))
				return requeued
			}
			requeued++
		}
		if len(messages) < s.batchSize {
			return requeued
		}
	}
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.Publish(ctx, msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		metrics.OutboxPublished.WithLabelValues("sent").Inc()
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			// 消息已投递但状态未更新，下一轮会重复投递，消费方按流水号去重
			s.logger.Error("更新消息状态失败", slog.Int64("id", msg.ID), slog.String("error", updateErr.Error()))
			return false
		}
		s.logger.Debug("消息发送成功", slog.Int64("id", msg.ID), slog.String("topic", msg.Topic), slog.String("key", msg.MessageKey))
		return true
	}

	metrics.OutboxPublished.WithLabelValues("error").Inc()
	s.logger.Warn("消息发送失败", slog.Int64("id", msg.ID), slog.String("error", err.Error()))

	failed, recordErr := s.outboxRepo.RecordFailure(ctx, msg.ID, err, s.maxRetry)
	if recordErr != nil {
		s.logger.Error("记录发送失败次数失败", slog.Int64("id", msg.ID), slog.String("error", recordErr.Error()))
		return false
	}
	if failed {
		metrics.OutboxPublished.WithLabelValues("failed").Inc()
		s.logger.Error("消息超过最大重试次数，标记为失败", slog.Int64("id", msg.ID), slog.Int("max_retry", s.maxRetry))
	}
	return false
}
