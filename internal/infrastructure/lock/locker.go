package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker 按 key 提供互斥
type Locker interface {
	Lock(ctx context.Context, key string) (Unlocker, error)
}

// Unlocker 释放一次 Lock 拿到的锁
type Unlocker interface {
	Unlock(ctx context.Context) error
}

// AccountKey 账户维度的锁 key
func AccountKey(accountID int64) string {
	return fmt.Sprintf("ledger:lock:account:%d", accountID)
}

// AcquireOrdered 按账户 ID 升序加锁（去重），返回逆序释放的函数
//
// 【关键点】加锁顺序与调用方传入顺序无关：
//
//	A→B 与 B→A 两笔转账都会先锁较小的 ID，不会形成环路等待
//
// 中途失败时已拿到的锁会被释放
func AcquireOrdered(ctx context.Context, locker Locker, accountIDs ...int64) (release func(), err error) {
	ids := SortedUnique(accountIDs)
	held := make([]Unlocker, 0, len(ids))

	release = func() {
		// 释放不受调用方 ctx 取消影响
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = held[i].Unlock(unlockCtx)
		}
	}

	for _, id := range ids {
		u, err := locker.Lock(ctx, AccountKey(id))
		if err != nil {
			release()
			return nil, err
		}
		held = append(held, u)
	}
	return release, nil
}

// SortedUnique 升序去重
func SortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ============================================================================
// Redis 实现：多实例部署时使用
// ============================================================================

type RedisLocker struct {
	client        redis.Cmdable
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewRedisLocker(client redis.Cmdable, ttl, retryInterval time.Duration, maxRetries int) *RedisLocker {
	return &RedisLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (Unlocker, error) {
	// value 使用随机 token，释放时只删除自己持有的锁
	m := NewRedisMutex(l.client, key, uuid.NewString(), l.ttl)
	if err := m.Acquire(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	interval := l.ttl / 3
	if interval <= 0 {
		return m, nil
	}
	return keepAlive(m, interval), nil
}

// heldLock 持有期间定时续期，事务耗时超过 ttl 时锁不会中途过期
type heldLock struct {
	mutex *RedisMutex
	stop  chan struct{}
	done  chan struct{}
	once  sync.Once
}

func keepAlive(m *RedisMutex, interval time.Duration) *heldLock {
	h := &heldLock{mutex: m, stop: make(chan struct{}), done: make(chan struct{})}
	go h.refreshLoop(interval)
	return h
}

func (h *heldLock) refreshLoop(interval time.Duration) {
	defer close(h.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := h.mutex.Refresh(ctx)
			cancel()
			// 锁已被他人持有，续期没有意义
			if errors.Is(err, ErrLockExpired) {
				return
			}
		}
	}
}

func (h *heldLock) Unlock(ctx context.Context) error {
	h.once.Do(func() { close(h.stop) })
	<-h.done
	return h.mutex.Unlock(ctx)
}

// ============================================================================
// 进程内实现：单实例部署时使用
// ============================================================================

type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlocker, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localUnlocker{locker: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

type localUnlocker struct {
	locker *LocalLocker
	key    string
	slot   *slot
	once   sync.Once
}

func (u *localUnlocker) Unlock(context.Context) error {
	u.once.Do(func() {
		<-u.slot.ch
		u.locker.unref(u.key, u.slot)
	})
	return nil
}

// ============================================================================
// 空实现：只依赖数据库行锁
// ============================================================================

type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (Unlocker, error) {
	return noopUnlocker{}, nil
}

type noopUnlocker struct{}

func (noopUnlocker) Unlock(context.Context) error { return nil }
