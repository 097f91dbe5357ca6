package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis 初始化 Redis 客户端（账户分布式锁使用，不缓存余额）
func InitRedis(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	slog.Info("Redis 连接成功", slog.String("component", "redis"), slog.String("addr", client.Options().Addr))
	return client, nil
}
