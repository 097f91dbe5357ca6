package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/database"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"
	"github.com/sarthakg043/ewallet-guildup/internal/metrics"
	"github.com/sarthakg043/ewallet-guildup/internal/model"
	"github.com/sarthakg043/ewallet-guildup/internal/repository"
	"github.com/sarthakg043/ewallet-guildup/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	defaultDepositDescription    = "Wallet deposit"
	defaultWithdrawalDescription = "Wallet withdrawal"
	defaultTransferDescription   = "Money transfer"
)

// LedgerService 记账引擎
//
// 每个操作的执行顺序：
//  1. 校验金额
//  2. 按账户ID升序获取账户锁（Redis / 进程内 / 不加锁）
//  3. 开启数据库事务，按同样顺序 SELECT ... FOR UPDATE
//  4. 逐笔调整余额（带版本号条件），写入流水和 outbox 消息
//  5. 提交事务，释放账户锁
//
// 任何一步失败整个事务回滚，余额和流水都不会留下痕迹
type LedgerService struct {
	db              *gorm.DB
	locker          lock.Locker
	cfg             *config.Config
	logger          *slog.Logger
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	outboxRepo      *repository.OutboxRepository
}

func NewLedgerService(db *gorm.DB, locker lock.Locker, cfg *config.Config, logger *slog.Logger) *LedgerService {
	if locker == nil {
		locker = lock.NoopLocker{}
	}
	return &LedgerService{
		db:              db,
		locker:          locker,
		cfg:             cfg,
		logger:          logger.With(slog.String("component", "ledger")),
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		outboxRepo:      repository.NewOutboxRepository(db),
	}
}

// Result 记账结果
// Balance 为发起方账户的最新余额（转账时为转出方）
type Result struct {
	Balance     decimal.Decimal    `json:"balance"`
	Transaction *model.Transaction `json:"transaction"`
}

// leg 一笔余额变动
type leg struct {
	role      string
	accountID int64
	delta     decimal.Decimal
}

// Deposit 充值
func (s *LedgerService) Deposit(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*Result, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		s.observe(model.TransactionTypeDeposit, start, err)
		return nil, err
	}

	trans := &model.Transaction{
		SenderID:    accountID,
		ReceiverID:  accountID,
		Amount:      amount,
		Type:        model.TransactionTypeDeposit,
		Description: normalizeDescription(description, defaultDepositDescription),
	}
	legs := []leg{{role: "account", accountID: accountID, delta: amount}}

	res, err := s.apply(ctx, trans, legs, accountID)
	s.observe(model.TransactionTypeDeposit, start, err)
	return res, err
}

// Withdraw 提现
func (s *LedgerService) Withdraw(ctx context.Context, accountID int64, amount decimal.Decimal, description string) (*Result, error) {
	start := time.Now()
	if err := validateAmount(amount); err != nil {
		s.observe(model.TransactionTypeWithdrawal, start, err)
		return nil, err
	}

	trans := &model.Transaction{
		SenderID:    accountID,
		ReceiverID:  accountID,
		Amount:      amount,
		Type:        model.TransactionTypeWithdrawal,
		Description: normalizeDescription(description, defaultWithdrawalDescription),
	}
	legs := []leg{{role: "account", accountID: accountID, delta: amount.Neg()}}

	res, err := s.apply(ctx, trans, legs, accountID)
	s.observe(model.TransactionTypeWithdrawal, start, err)
	return res, err
}

// Transfer 转账，收款方通过用户名定位
// 允许给自己转账：余额需要足够，净变动为0，仍然记录一条流水
func (s *LedgerService) Transfer(ctx context.Context, senderID int64, receiverUsername string, amount decimal.Decimal, description string) (*Result, error) {
	start := time.Now()
	res, err := s.transfer(ctx, senderID, receiverUsername, amount, description)
	s.observe(model.TransactionTypeTransfer, start, err)
	return res, err
}

func (s *LedgerService) transfer(ctx context.Context, senderID int64, receiverUsername string, amount decimal.Decimal, description string) (*Result, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	receiver, err := s.accountRepo.GetByUsername(ctx, receiverUsername)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return nil, fmt.Errorf("receiver %q: %w", receiverUsername, ErrAccountNotFound)
		}
		return nil, s.classify(err)
	}

	trans := &model.Transaction{
		SenderID:    senderID,
		ReceiverID:  receiver.ID,
		Amount:      amount,
		Type:        model.TransactionTypeTransfer,
		Description: normalizeDescription(description, defaultTransferDescription),
	}
	// 先扣后加：自转账时同一账户先校验余额
	legs := []leg{
		{role: "sender", accountID: senderID, delta: amount.Neg()},
		{role: "receiver", accountID: receiver.ID, delta: amount},
	}

	return s.apply(ctx, trans, legs, senderID)
}

// apply 在账户锁和数据库事务内执行余额变动并追加流水
func (s *LedgerService) apply(ctx context.Context, trans *model.Transaction, legs []leg, focusID int64) (*Result, error) {
	ids := make([]int64, 0, len(legs))
	roles := make(map[int64]string, len(legs))
	for _, l := range legs {
		ids = append(ids, l.accountID)
		if _, ok := roles[l.accountID]; !ok {
			roles[l.accountID] = l.role
		}
	}

	release, err := lock.AcquireOrdered(ctx, s.locker, ids...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("acquire account locks: %w", ctxErr)
		}
		s.logger.Warn("获取账户锁失败", slog.Any("accounts", ids), slog.String("error", err.Error()))
		return nil, fmt.Errorf("acquire account locks: %v: %w", err, ErrTransientStore)
	}
	defer release()

	var focus *model.Account
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		accounts := make(map[int64]*model.Account, len(ids))
		for _, id := range lock.SortedUnique(ids) {
			acct, err := s.accountRepo.GetByIDForUpdate(ctx, tx, id)
			if err != nil {
				if errors.Is(err, repository.ErrAccountNotFound) {
					return fmt.Errorf("%s %d: %w", roles[id], id, ErrAccountNotFound)
				}
				return err
			}
			accounts[id] = acct
		}

		for _, l := range legs {
			acct := accounts[l.accountID]
			if err := s.accountRepo.AdjustBalance(ctx, tx, acct, l.delta); err != nil {
				switch {
				case errors.Is(err, repository.ErrBalanceNotEnough):
					return fmt.Errorf("%s %d balance %s, need %s: %w",
						l.role, acct.ID, acct.Balance.String(), l.delta.Neg().String(), ErrInsufficientFunds)
				case errors.Is(err, repository.ErrBalanceOverflow):
					return fmt.Errorf("%s %d balance %s, add %s: %v: %w",
						l.role, acct.ID, acct.Balance.String(), l.delta.String(), err, ErrInvalidAmount)
				case errors.Is(err, repository.ErrOptimisticLock):
					return fmt.Errorf("%s %d: %v: %w", l.role, acct.ID, err, ErrTransientStore)
				}
				return err
			}
		}
		focus = accounts[focusID]

		trans.TransactionNo = idgen.GenerateTransactionNo()
		trans.Status = model.TransactionStatusCompleted
		trans.CreatedAt = time.Now()
		if err := s.transactionRepo.Create(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录流水失败: %w", err)
		}

		if s.cfg.Ledger.PublishEvents {
			if err := s.writeOutbox(ctx, tx, trans); err != nil {
				return fmt.Errorf("写入消息失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.logger.Info("记账成功",
		slog.String("type", trans.Type),
		slog.String("transaction_no", trans.TransactionNo),
		slog.Int64("sender_id", trans.SenderID),
		slog.Int64("receiver_id", trans.ReceiverID),
		slog.String("amount", trans.Amount.String()),
	)

	return &Result{Balance: focus.Balance, Transaction: trans}, nil
}

func (s *LedgerService) writeOutbox(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	payload, err := json.Marshal(model.NewLedgerEvent(trans))
	if err != nil {
		return err
	}
	return s.outboxRepo.Create(ctx, tx, &model.OutboxMessage{
		MessageKey: trans.TransactionNo,
		Topic:      s.cfg.Kafka.Topic.LedgerEvents,
		Payload:    string(payload),
		Status:     model.OutboxStatusPending,
	})
}

// classify 把事务内外的错误归类为对外错误
func (s *LedgerService) classify(err error) error {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrTransientStore):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case database.IsTransient(err):
		s.logger.Warn("数据库事务被中止", slog.String("error", err.Error()))
		return fmt.Errorf("%v: %w", err, ErrTransientStore)
	}
	s.logger.Error("记账失败", slog.String("error", err.Error()))
	return fmt.Errorf("ledger store: %w", err)
}

func (s *LedgerService) observe(kind string, start time.Time, err error) {
	metrics.ObserveLedger(kind, outcomeOf(err), start)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrInvalidAmount):
		return metrics.OutcomeInvalidAmount
	case errors.Is(err, ErrAccountNotFound):
		return metrics.OutcomeAccountNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return metrics.OutcomeInsufficientFunds
	case errors.Is(err, ErrTransientStore):
		return metrics.OutcomeTransient
	}
	return metrics.OutcomeError
}
