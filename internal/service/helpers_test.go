package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/sarthakg043/ewallet-guildup/internal/config"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/database/databasetest"
	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"
	"github.com/sarthakg043/ewallet-guildup/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	ledger   *LedgerService
	query    *QueryService
	accounts *AccountService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(publish bool) *config.Config {
	cfg := &config.Config{}
	cfg.Ledger.PublishEvents = publish
	cfg.Kafka.Topic.LedgerEvents = "ledger_events"
	return cfg
}

func newFixture(t *testing.T, locker lock.Locker, publish bool) *fixture {
	t.Helper()

	db := databasetest.NewDB(t)
	logger := discardLogger()
	return &fixture{
		db:       db,
		ledger:   NewLedgerService(db, locker, testConfig(publish), logger),
		query:    NewQueryService(db),
		accounts: NewAccountService(db, logger),
	}
}

// open 开户并充值初始余额
func (f *fixture) open(t *testing.T, username, balance string) *model.Account {
	t.Helper()

	ctx := context.Background()
	acct, err := f.accounts.Open(ctx, username)
	if err != nil {
		t.Fatalf("open %s: %v", username, err)
	}
	if amt := dec(t, balance); amt.IsPositive() {
		if _, err := f.ledger.Deposit(ctx, acct.ID, amt, "seed"); err != nil {
			t.Fatalf("seed %s: %v", username, err)
		}
	}
	return acct
}

func (f *fixture) balance(t *testing.T, accountID int64) decimal.Decimal {
	t.Helper()

	b, err := f.query.GetBalance(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetBalance(%d): %v", accountID, err)
	}
	return b
}

func (f *fixture) countTransactions(t *testing.T) int64 {
	t.Helper()

	var n int64
	if err := f.db.Model(&model.Transaction{}).Count(&n).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return n
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func assertBalance(t *testing.T, f *fixture, accountID int64, want string) {
	t.Helper()

	if got := f.balance(t, accountID); !got.Equal(dec(t, want)) {
		t.Fatalf("account %d: expected balance %s, got %s", accountID, want, got)
	}
}
