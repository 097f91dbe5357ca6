package idgen

import (
	"strings"
	"sync"
	"testing"
)

func TestNewSnowflake_RejectsWorkerID(t *testing.T) {
	for _, id := range []int64{-1, maxWorkerID + 1} {
		if _, err := NewSnowflake(id); err == nil {
			t.Fatalf("expected error for workerID %d", id)
		}
	}
}

func TestSnowflake_GenerateUniqueAndIncreasing(t *testing.T) {
	s, err := NewSnowflake(7)
	if err != nil {
		t.Fatalf("NewSnowflake: %v", err)
	}

	var last int64
	for i := 0; i < 10000; i++ {
		id := s.Generate()
		if id <= last {
			t.Fatalf("id not increasing at %d: %d <= %d", i, id, last)
		}
		if got := (id >> workerIDShift) & maxWorkerID; got != 7 {
			t.Fatalf("expected worker bits 7, got %d", got)
		}
		last = id
	}
}

func TestGenerateTransactionNo_ConcurrentUnique(t *testing.T) {
	const workers, perWorker = 8, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				no := GenerateTransactionNo()
				mu.Lock()
				seen[no] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Fatalf("expected %d unique transaction numbers, got %d", workers*perWorker, len(seen))
	}
	for no := range seen {
		if !strings.HasPrefix(no, TransactionNoPrefix) {
			t.Fatalf("missing prefix: %s", no)
		}
		break
	}
}
