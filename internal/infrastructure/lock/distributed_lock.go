package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// 账户锁在 Redis 中的形态：
//
//	SET ledger:lock:account:<id> <token> NX PX <ttl>
//
// token 每次加锁随机生成，释放和续期都先比对 token，
// 锁过期后被其他实例拿到时，旧持有者不会误删或误续别人的锁

var (
	ErrLockFailed  = errors.New("获取分布式锁失败")
	ErrLockExpired = errors.New("锁已过期或被他人持有")
)

var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)
)

// RedisMutex 单个 key 上的互斥锁，持有者由 token 标识
type RedisMutex struct {
	client redis.Cmdable
	key    string
	token  string
	ttl    time.Duration
}

func NewRedisMutex(client redis.Cmdable, key, token string, ttl time.Duration) *RedisMutex {
	return &RedisMutex{
		client: client,
		key:    key,
		token:  token,
		ttl:    ttl,
	}
}

// TryAcquire 非阻塞加锁
func (m *RedisMutex) TryAcquire(ctx context.Context) (bool, error) {
	return m.client.SetNX(ctx, m.key, m.token, m.ttl).Result()
}

// Acquire 按固定间隔重试加锁，最多尝试 attempts 次
func (m *RedisMutex) Acquire(ctx context.Context, interval time.Duration, attempts int) error {
	for i := 1; ; i++ {
		ok, err := m.TryAcquire(ctx)
		if err != nil {
			return fmt.Errorf("redis setnx %s: %w", m.key, err)
		}
		if ok {
			return nil
		}
		if i >= attempts {
			return fmt.Errorf("%w: key=%s attempts=%d", ErrLockFailed, m.key, i)
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Refresh 把仍由自己持有的锁续期到完整 ttl
func (m *RedisMutex) Refresh(ctx context.Context) error {
	ok, err := refreshScript.Run(ctx, m.client, []string{m.key}, m.token, m.ttl.Milliseconds()).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrLockExpired
	}
	return nil
}

// Unlock 释放锁，实现 Unlocker
func (m *RedisMutex) Unlock(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, m.client, []string{m.key}, m.token).Int64()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockExpired
	}
	return nil
}
