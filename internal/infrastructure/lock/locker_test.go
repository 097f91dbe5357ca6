package lock

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingLocker 记录加锁/解锁顺序
type recordingLocker struct {
	mu      sync.Mutex
	events  []string
	failKey string
}

func (r *recordingLocker) Lock(_ context.Context, key string) (Unlocker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if key == r.failKey {
		return nil, errors.New("lock refused")
	}
	r.events = append(r.events, "lock "+key)
	return unlockFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, "unlock "+key)
	}), nil
}

type unlockFunc func()

func (f unlockFunc) Unlock(context.Context) error {
	f()
	return nil
}

func TestSortedUnique(t *testing.T) {
	got := SortedUnique([]int64{9, 2, 5, 2, 9, 1})
	want := []int64{1, 2, 5, 9}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestAcquireOrdered_DeterministicOrder(t *testing.T) {
	r := &recordingLocker{}
	release, err := AcquireOrdered(context.Background(), r, 5, 2, 5)
	if err != nil {
		t.Fatalf("AcquireOrdered: %v", err)
	}
	release()

	want := []string{
		"lock " + AccountKey(2),
		"lock " + AccountKey(5),
		"unlock " + AccountKey(5),
		"unlock " + AccountKey(2),
	}
	if !reflect.DeepEqual(r.events, want) {
		t.Fatalf("events = %v, want %v", r.events, want)
	}
}

func TestAcquireOrdered_ReleasesOnPartialFailure(t *testing.T) {
	r := &recordingLocker{failKey: AccountKey(8)}
	_, err := AcquireOrdered(context.Background(), r, 8, 3)
	if err == nil {
		t.Fatal("expected error")
	}
	want := []string{"lock " + AccountKey(3), "unlock " + AccountKey(3)}
	if !reflect.DeepEqual(r.events, want) {
		t.Fatalf("events = %v, want %v", r.events, want)
	}
}

func TestLocalLocker_SerializesSameKey(t *testing.T) {
	locker := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, err := locker.Lock(context.Background(), "k")
			if err != nil {
				t.Errorf("Lock: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = u.Unlock(context.Background())
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most one holder, saw %d", maxInside)
	}
	if len(locker.slots) != 0 {
		t.Fatalf("expected slots to be cleaned up, got %d", len(locker.slots))
	}
}

func TestLocalLocker_ContextCancel(t *testing.T) {
	locker := NewLocalLocker()
	held, err := locker.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(ctx, "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}

	_ = held.Unlock(context.Background())
	if _, err := locker.Lock(context.Background(), "k"); err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
}

func TestLocalLocker_OppositeOrderNoDeadlock(t *testing.T) {
	locker := NewLocalLocker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			release, err := AcquireOrdered(context.Background(), locker, 1, 2)
			if err != nil {
				t.Errorf("AcquireOrdered: %v", err)
				return
			}
			release()
		}()
		go func() {
			defer wg.Done()
			release, err := AcquireOrdered(context.Background(), locker, 2, 1)
			if err != nil {
				t.Errorf("AcquireOrdered: %v", err)
				return
			}
			release()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposite-order acquisitions deadlocked")
	}
}
