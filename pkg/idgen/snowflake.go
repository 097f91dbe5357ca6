package idgen

import (
	"fmt"
	"sync"
	"time"
)

// 流水号基于雪花ID：41位毫秒时间戳 | 10位 workerID | 12位序列号
// 多实例部署时每个实例配置不同的 ledger.worker_id

const (
	epoch          = int64(1704067200000) // 2024-01-01 00:00:00 UTC
	workerIDBits   = 10
	sequenceBits   = 12
	maxWorkerID    = -1 ^ (-1 << workerIDBits)
	maxSequence    = -1 ^ (-1 << sequenceBits)
	workerIDShift  = sequenceBits
	timestampShift = sequenceBits + workerIDBits
)

// TransactionNoPrefix 流水号前缀
const TransactionNoPrefix = "TXN"

// Snowflake 单实例内并发安全的ID生成器
type Snowflake struct {
	mu        sync.Mutex
	timestamp int64
	workerID  int64
	sequence  int64
}

var (
	defaultMu        sync.Mutex
	defaultGenerator *Snowflake
)

// NewSnowflake 创建生成器
func NewSnowflake(workerID int64) (*Snowflake, error) {
	if workerID < 0 || workerID > maxWorkerID {
		return nil, fmt.Errorf("workerID 必须在 0-%d 之间, got %d", maxWorkerID, workerID)
	}
	return &Snowflake{workerID: workerID}, nil
}

// Init 初始化默认ID生成器，只有第一次调用生效
func Init(workerID int64) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultGenerator != nil {
		return nil
	}
	s, err := NewSnowflake(workerID)
	if err != nil {
		return err
	}
	defaultGenerator = s
	return nil
}

// NextID 生成下一个ID
func NextID() int64 {
	defaultMu.Lock()
	if defaultGenerator == nil {
		defaultGenerator = &Snowflake{workerID: 1} // 默认使用 workerID = 1
	}
	g := defaultGenerator
	defaultMu.Unlock()

	return g.Generate()
}

// Generate 生成ID
func (s *Snowflake) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	if now < s.timestamp {
		// 时钟回拨，沿用上一个时间戳继续分配序列号
		now = s.timestamp
	}

	switch {
	case now > s.timestamp:
		s.sequence = 0
	case s.sequence < maxSequence:
		s.sequence++
	default:
		// 本毫秒序列号用完，自旋到下一毫秒
		for now <= s.timestamp {
			now = time.Now().UnixMilli()
		}
		s.sequence = 0
	}
	s.timestamp = now

	return (now-epoch)<<timestampShift | s.workerID<<workerIDShift | s.sequence
}

// GenerateTransactionNo 生成流水号
// 格式：TXN + 完整雪花ID（十进制）
// 例如：TXN1234567890123456789
func GenerateTransactionNo() string {
	return fmt.Sprintf("%s%d", TransactionNoPrefix, NextID())
}
