package repository

import (
	"context"
	"errors"

	"github.com/sarthakg043/ewallet-guildup/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("流水不存在")

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create 追加一条流水，流水写入后不再修改
func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(trans).Error
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).Take(&trans).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// ListForAccount 查询账户作为付款方或收款方的全部流水，按时间倒序
func (r *TransactionRepository) ListForAccount(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.forAccount(ctx, accountID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&transactions).Error
	return transactions, err
}

// PageForAccount 分页查询账户流水，按时间倒序
func (r *TransactionRepository) PageForAccount(ctx context.Context, accountID int64, page, pageSize int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	err := r.forAccount(ctx, accountID).Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	err = r.forAccount(ctx, accountID).
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&transactions).Error

	return transactions, total, err
}

// NetFlow 根据已完成流水计算账户净入账
//
// 充值计入收款方，提现计入付款方，转账付款方减、收款方加
func (r *TransactionRepository) NetFlow(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	const query = `
		SELECT
			COALESCE(SUM(CASE WHEN receiver_id = ? AND type IN (?, ?) THEN amount ELSE 0 END), 0) -
			COALESCE(SUM(CASE WHEN sender_id = ? AND type IN (?, ?) THEN amount ELSE 0 END), 0)
		FROM ledger_transaction
		WHERE status = ? AND (sender_id = ? OR receiver_id = ?)
	`
	var net decimal.Decimal
	err := r.db.WithContext(ctx).Raw(query,
		accountID, model.TransactionTypeDeposit, model.TransactionTypeTransfer,
		accountID, model.TransactionTypeWithdrawal, model.TransactionTypeTransfer,
		model.TransactionStatusCompleted, accountID, accountID,
	).Row().Scan(&net)
	if err != nil {
		return decimal.Zero, err
	}
	return net, nil
}

func (r *TransactionRepository) forAccount(ctx context.Context, accountID int64) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", accountID, accountID)
}
