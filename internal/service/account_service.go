package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/sarthakg043/ewallet-guildup/internal/model"
	"github.com/sarthakg043/ewallet-guildup/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,64}$`)

// AccountService 账户开户与查询
type AccountService struct {
	accountRepo *repository.AccountRepository
	logger      *slog.Logger
}

func NewAccountService(db *gorm.DB, logger *slog.Logger) *AccountService {
	return &AccountService{
		accountRepo: repository.NewAccountRepository(db),
		logger:      logger.With(slog.String("component", "account")),
	}
}

// Open 开户，初始余额为0
func (s *AccountService) Open(ctx context.Context, username string) (*model.Account, error) {
	if !usernamePattern.MatchString(username) {
		return nil, fmt.Errorf("%q: %w", username, ErrInvalidUsername)
	}

	if _, err := s.accountRepo.GetByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("%q: %w", username, ErrUsernameTaken)
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return nil, err
	}

	account := &model.Account{
		Username: username,
		Balance:  decimal.Zero,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		// 并发开户时唯一索引冲突
		if _, getErr := s.accountRepo.GetByUsername(ctx, username); getErr == nil {
			return nil, fmt.Errorf("%q: %w", username, ErrUsernameTaken)
		}
		return nil, fmt.Errorf("创建账户失败: %w", err)
	}

	s.logger.Info("开户成功", slog.Int64("account_id", account.ID), slog.String("username", username))
	return account, nil
}

// GetByID 按账户ID查询
func (s *AccountService) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("account %d: %w", id, ErrAccountNotFound)
	}
	return account, err
}

// GetByUsername 按用户名查询
func (s *AccountService) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	account, err := s.accountRepo.GetByUsername(ctx, username)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, fmt.Errorf("%q: %w", username, ErrAccountNotFound)
	}
	return account, err
}
