package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/metrics"
	"github.com/sarthakg043/ewallet-guildup/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Drift 账户余额与流水净额不一致
type Drift struct {
	AccountID int64           `json:"account_id"`
	Username  string          `json:"username"`
	Balance   decimal.Decimal `json:"balance"`
	Ledger    decimal.Decimal `json:"ledger"`
}

// ReconcileJob 对账任务
// 账户只能通过开户创建且初始余额为0，因此余额应等于已完成流水的净额
type ReconcileJob struct {
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
	logger          *slog.Logger
	stopCh          chan struct{}
	interval        time.Duration
	batchSize       int
}

func NewReconcileJob(db *gorm.DB, cfg *config.Config, logger *slog.Logger) *ReconcileJob {
	interval := time.Duration(cfg.Business.ReconcileIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReconcileJob{
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
		logger:          logger.With(slog.String("component", "reconcile")),
		stopCh:          make(chan struct{}),
		interval:        interval,
		batchSize:       200,
	}
}

func (j *ReconcileJob) Start(ctx context.Context) {
	j.logger.Info("对账任务启动", slog.Duration("interval", j.interval))

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("收到停止信号，任务退出")
			return
		case <-j.stopCh:
			j.logger.Info("任务停止")
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil {
				j.logger.Error("对账失败", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *ReconcileJob) Stop() {
	close(j.stopCh)
}

// RunOnce 遍历全部账户做一次对账
//
// 账户行与流水分开读取，对账期间有记账操作时可能出现短暂的误报，
// 下一轮会自动消失
func (j *ReconcileJob) RunOnce(ctx context.Context) ([]Drift, error) {
	var (
		drifts  []Drift
		afterID int64
		checked int
	)

	for {
		accounts, err := j.accountRepo.ListAfter(ctx, afterID, j.batchSize)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			break
		}

		for _, acct := range accounts {
			net, err := j.transactionRepo.NetFlow(ctx, acct.ID)
			if err != nil {
				return nil, err
			}
			checked++
			if !net.Equal(acct.Balance) {
				d := Drift{AccountID: acct.ID, Username: acct.Username, Balance: acct.Balance, Ledger: net}
				drifts = append(drifts, d)
				j.logger.Warn("账户余额与流水不一致",
					slog.Int64("account_id", d.AccountID),
					slog.String("balance", d.Balance.String()),
					slog.String("ledger", d.Ledger.String()),
				)
			}
		}
		afterID = accounts[len(accounts)-1].ID
	}

	metrics.ReconcileDriftAccounts.Set(float64(len(drifts)))
	j.logger.Info("对账完成", slog.Int("checked", checked), slog.Int("drift", len(drifts)))
	return drifts, nil
}
