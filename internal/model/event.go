package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEvent 记账完成事件，经 outbox 投递到消息队列
type LedgerEvent struct {
	TransactionNo string          `json:"transaction_no"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	SenderID      int64           `json:"sender_id"`
	ReceiverID    int64           `json:"receiver_id"`
	Amount        decimal.Decimal `json:"amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// NewLedgerEvent 由流水记录构造事件
func NewLedgerEvent(t *Transaction) LedgerEvent {
	return LedgerEvent{
		TransactionNo: t.TransactionNo,
		Type:          t.Type,
		Status:        t.Status,
		SenderID:      t.SenderID,
		ReceiverID:    t.ReceiverID,
		Amount:        t.Amount,
		OccurredAt:    t.CreatedAt,
	}
}
