package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/database/databasetest"
	"github.com/sarthakg043/ewallet-guildup/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func createAccount(t *testing.T, repo *AccountRepository, username string, balance int64) *model.Account {
	t.Helper()

	acct := &model.Account{Username: username, Balance: decimal.NewFromInt(balance)}
	if err := repo.Create(context.Background(), acct); err != nil {
		t.Fatalf("create %s: %v", username, err)
	}
	return acct
}

func TestAccountRepository_AdjustBalance(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	acct := createAccount(t, repo, "alice", 10)

	err := db.Transaction(func(tx *gorm.DB) error {
		locked, err := repo.GetByIDForUpdate(ctx, tx, acct.ID)
		if err != nil {
			return err
		}
		if err := repo.AdjustBalance(ctx, tx, locked, decimal.NewFromInt(-4)); err != nil {
			return err
		}
		if locked.Version != acct.Version+1 {
			t.Errorf("expected version bump, got %d", locked.Version)
		}
		return repo.AdjustBalance(ctx, tx, locked, decimal.NewFromInt(1))
	})
	if err != nil {
		t.Fatalf("adjust: %v", err)
	}

	got, err := repo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Balance.Equal(decimal.NewFromInt(7)) || got.Version != acct.Version+2 {
		t.Fatalf("expected balance 7 version %d, got %s/%d", acct.Version+2, got.Balance, got.Version)
	}
}

func TestAccountRepository_AdjustBalanceRejectsNegative(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	acct := createAccount(t, repo, "alice", 3)

	err := repo.AdjustBalance(context.Background(), db, acct, decimal.NewFromInt(-5))
	if !errors.Is(err, ErrBalanceNotEnough) {
		t.Fatalf("expected ErrBalanceNotEnough, got %v", err)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("in-memory balance must be untouched, got %s", acct.Balance)
	}
}

func TestAccountRepository_AdjustBalanceRejectsOverflow(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	acct := createAccount(t, repo, "alice", 1)

	err := repo.AdjustBalance(context.Background(), db, acct, model.MaxBalance.Sub(decimal.NewFromInt(1)))
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("expected ErrBalanceOverflow, got %v", err)
	}
	if !acct.Balance.Equal(decimal.NewFromInt(1)) || acct.Version != 0 {
		t.Fatalf("in-memory account must be untouched, got %s/%d", acct.Balance, acct.Version)
	}
}

func TestAccountRepository_AdjustBalanceStaleVersion(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()
	acct := createAccount(t, repo, "alice", 10)

	stale, err := repo.GetByID(ctx, acct.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if err := repo.AdjustBalance(ctx, db, acct, decimal.NewFromInt(1)); err != nil {
		t.Fatalf("first adjust: %v", err)
	}

	if err := repo.AdjustBalance(ctx, db, stale, decimal.NewFromInt(1)); !errors.Is(err, ErrOptimisticLock) {
		t.Fatalf("expected ErrOptimisticLock, got %v", err)
	}
}

func TestAccountRepository_NotFound(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	ctx := context.Background()

	if _, err := repo.GetByID(ctx, 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("GetByID: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.GetByUsername(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("GetByUsername: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := repo.GetByIDForUpdate(ctx, db, 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("GetByIDForUpdate: expected ErrAccountNotFound, got %v", err)
	}
}

func TestAccountRepository_ListAfter(t *testing.T) {
	db := databasetest.NewDB(t)
	repo := NewAccountRepository(db)
	for _, name := range []string{"a01", "a02", "a03"} {
		createAccount(t, repo, name, 0)
	}

	first, err := repo.ListAfter(context.Background(), 0, 2)
	if err != nil || len(first) != 2 {
		t.Fatalf("first batch: %d items, err %v", len(first), err)
	}
	rest, err := repo.ListAfter(context.Background(), first[1].ID, 2)
	if err != nil || len(rest) != 1 || rest[0].Username != "a03" {
		t.Fatalf("second batch: %+v, err %v", rest, err)
	}
}
