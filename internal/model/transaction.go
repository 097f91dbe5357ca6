package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 交易类型与状态
// ============================================================================

const (
	TransactionTypeDeposit    = "deposit"
	TransactionTypeWithdrawal = "withdrawal"
	TransactionTypeTransfer   = "transfer"
)

const (
	TransactionStatusPending   = "pending" // 预留：同步记账路径不会写入
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// ============================================================================
// 账户流水实体
// ============================================================================

// Transaction 资金流水表
//
// 【重要】流水表设计原则：
// 1. 只追加，不修改，不删除 —— 保证审计可追溯
// 2. 充值/提现的 sender 与 receiver 是同一个账户（自引用流水）
// 3. 流水与余额变更在同一个数据库事务内提交
type Transaction struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"-"`
	TransactionNo string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"id"` // 对外流水号
	SenderID      int64           `gorm:"index;not null" json:"sender_id"`
	ReceiverID    int64           `gorm:"index;not null" json:"receiver_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	Type          string          `gorm:"type:varchar(20);not null" json:"type"`
	Status        string          `gorm:"type:varchar(20);not null" json:"status"`
	Description   string          `gorm:"type:varchar(256)" json:"description"`
	CreatedAt     time.Time       `gorm:"index" json:"timestamp"`
}

func (Transaction) TableName() string {
	return "ledger_transaction"
}

// Involves 判断该流水是否涉及指定账户
func (t *Transaction) Involves(accountID int64) bool {
	return t.SenderID == accountID || t.ReceiverID == accountID
}
