package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/handler"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/cache"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/database"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/mq"
	"github.com/sarthakg043/ewallet-guildup/internal/job"
	"github.com/sarthakg043/ewallet-guildup/pkg/idgen"

	"github.com/gin-gonic/gin"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("服务异常退出", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// 加载配置
	cfg, err := config.LoadConfig(configPath())
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化 ID 生成器
	if err := idgen.Init(cfg.Ledger.WorkerID); err != nil {
		return err
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	locker, closeLocker, err := newLocker(cfg)
	if err != nil {
		return err
	}
	defer closeLocker()

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	if cfg.Ledger.PublishEvents {
		publisher, err := newPublisher(cfg)
		if err != nil {
			return err
		}
		defer publisher.Close()

		outboxSender := job.NewOutboxSender(db, publisher, cfg, logger)
		go outboxSender.Start(ctx)
	}

	reconcileJob := job.NewReconcileJob(db, cfg, logger)
	go reconcileJob.Start(ctx)

	// 设置路由
	gin.SetMode(gin.ReleaseMode)
	router := handler.SetupRouter(db, locker, cfg, logger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("服务启动", slog.Int("port", cfg.Server.Port), slog.String("lock_backend", cfg.Ledger.LockBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("服务启动失败: %w", err)
	}

	logger.Info("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	// 关闭 HTTP 服务（等待最多5秒）
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务关闭异常", slog.String("error", err.Error()))
	}

	logger.Info("服务已关闭")
	return nil
}

func configPath() string {
	if p := os.Getenv("EWALLET_CONFIG"); p != "" {
		return p
	}
	return "config/config.yaml"
}

// newLocker 根据配置选择账户锁实现
func newLocker(cfg *config.Config) (lock.Locker, func(), error) {
	switch cfg.Ledger.LockBackend {
	case "redis":
		client, err := cache.InitRedis(&cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		locker := lock.NewRedisLocker(
			client,
			time.Duration(cfg.Ledger.LockTTLSeconds)*time.Second,
			time.Duration(cfg.Ledger.LockRetryIntervalMS)*time.Millisecond,
			cfg.Ledger.LockMaxRetries,
		)
		return locker, func() { _ = client.Close() }, nil
	case "local":
		return lock.NewLocalLocker(), func() {}, nil
	default:
		return lock.NoopLocker{}, func() {}, nil
	}
}

type publisher interface {
	job.Publisher
	io.Closer
}

func newPublisher(cfg *config.Config) (publisher, error) {
	if cfg.Ledger.EventBroker == "rabbitmq" {
		return mq.NewRabbitPublisher(&cfg.RabbitMQ)
	}
	return mq.NewKafkaProducer(&cfg.Kafka)
}
