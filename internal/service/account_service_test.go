package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sarthakg043/ewallet-guildup/internal/infrastructure/lock"
)

func TestOpen(t *testing.T) {
	f := newFixture(t, lock.NoopLocker{}, false)
	ctx := context.Background()

	acct, err := f.accounts.Open(ctx, "alice.w")
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if acct.ID == 0 || !acct.Balance.IsZero() {
		t.Fatalf("unexpected account: %+v", acct)
	}

	got, err := f.accounts.GetByUsername(ctx, "alice.w")
	if err != nil || got.ID != acct.ID {
		t.Fatalf("GetByUsername: got %+v, err %v", got, err)
	}
	if _, err := f.accounts.GetByID(ctx, acct.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if _, err := f.accounts.Open(ctx, "alice.w"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestOpen_InvalidUsername(t *testing.T) {
	f := newFixture(t, lock.NoopLocker{}, false)

	for _, name := range []string{"", "ab", "has space", "semi;colon", strings.Repeat("x", 65)} {
		if _, err := f.accounts.Open(context.Background(), name); !errors.Is(err, ErrInvalidUsername) {
			t.Fatalf("Open(%q): expected ErrInvalidUsername, got %v", name, err)
		}
	}
}

func TestAccountLookup_NotFound(t *testing.T) {
	f := newFixture(t, lock.NoopLocker{}, false)
	ctx := context.Background()

	if _, err := f.accounts.GetByID(ctx, 1); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("GetByID: expected ErrAccountNotFound, got %v", err)
	}
	if _, err := f.accounts.GetByUsername(ctx, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("GetByUsername: expected ErrAccountNotFound, got %v", err)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "10", want: "10"},
		{raw: " 0.0001 ", want: "0.0001"},
		{raw: "12.3400", want: "12.34"},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "1.00001", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "9999999999999999.9999", want: "9999999999999999.9999"},
		{raw: "10000000000000000", wantErr: true},
		{raw: "1e30", wantErr: true},
		{raw: "1e1000000", wantErr: true},
		{raw: "1e-1000000", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("ParseAmount(%q): expected ErrInvalidAmount, got %v", tt.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseAmount(%q): unexpected error %v", tt.raw, err)
		}
		if !got.Equal(dec(t, tt.want)) {
			t.Fatalf("ParseAmount(%q): expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}
