package repository

import (
	"context"
	"errors"

	"github.com/sarthakg043/ewallet-guildup/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
	ErrOptimisticLock   = errors.New("乐观锁冲突，请重试")
	ErrBalanceOverflow  = errors.New("余额超出上限")
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("username = ?", username).Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate 在事务内读取账户并加行锁（SELECT ... FOR UPDATE）
//
// 【关键点】多个账户必须按 ID 升序依次加锁，避免 A→B 与 B→A 两笔转账互相等待
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id int64) (*model.Account, error) {
	var account model.Account
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// AdjustBalance 在事务内把 delta 应用到已加锁的账户上
//
// 结果为负时返回 ErrBalanceNotEnough，超出 decimal(20,4) 时返回 ErrBalanceOverflow，都不写库；
// 写库带 version 条件，行锁之外再做一次乐观校验。成功后同步更新 account 的余额和版本号，
// 同一事务内对同一账户的后续调整（如自转账）基于最新值继续计算
func (r *AccountRepository) AdjustBalance(ctx context.Context, tx *gorm.DB, account *model.Account, delta decimal.Decimal) error {
	newBalance := account.Balance.Add(delta)
	if newBalance.IsNegative() {
		return ErrBalanceNotEnough
	}
	if !newBalance.LessThan(model.MaxBalance) {
		return ErrBalanceOverflow
	}

	result := tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]interface{}{
			"balance": newBalance,
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrOptimisticLock
	}

	account.Balance = newBalance
	account.Version++
	return nil
}

// ListAfter 按 ID 升序分批遍历账户
func (r *AccountRepository) ListAfter(ctx context.Context, afterID int64, limit int) ([]*model.Account, error) {
	var accounts []*model.Account
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&accounts).Error
	return accounts, err
}
