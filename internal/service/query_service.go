package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sarthakg043/ewallet-guildup/internal/model"
	"github.com/sarthakg043/ewallet-guildup/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// QueryService 只读查询，不获取账户锁
// 转账在单个事务内提交，读到的余额要么包含整笔转账要么完全不包含
type QueryService struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetBalance 查询账户余额
func (s *QueryService) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return decimal.Zero, fmt.Errorf("account %d: %w", accountID, ErrAccountNotFound)
		}
		return decimal.Zero, err
	}
	return account.Balance, nil
}

// GetHistory 查询账户全部流水，最新的在前
// 账户不存在时返回空列表
func (s *QueryService) GetHistory(ctx context.Context, accountID int64) ([]*model.Transaction, error) {
	return s.transactionRepo.ListForAccount(ctx, accountID)
}

// HistoryPage 分页查询结果，Page 和 PageSize 为修正后实际生效的值
type HistoryPage struct {
	List     []*model.Transaction
	Total    int64
	Page     int
	PageSize int
}

// GetHistoryPage 分页查询账户流水
func (s *QueryService) GetHistoryPage(ctx context.Context, accountID int64, page, pageSize int) (*HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	list, total, err := s.transactionRepo.PageForAccount(ctx, accountID, page, pageSize)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{List: list, Total: total, Page: page, PageSize: pageSize}, nil
}

// GetTransaction 按流水号查询
func (s *QueryService) GetTransaction(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	trans, err := s.transactionRepo.GetByTransactionNo(ctx, transactionNo)
	if err != nil {
		if errors.Is(err, repository.ErrTransactionNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", transactionNo, ErrTransactionNotFound)
		}
		return nil, err
	}
	return trans, nil
}
