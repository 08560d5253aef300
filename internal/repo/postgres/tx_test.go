package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestRetryableTxError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: true},
		{name: "wrapped deadlock", err: fmt.Errorf("debit: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := retryableTxError(tc.err); got != tc.want {
				t.Fatalf("unexpected result: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestWithTxRequiresPool(t *testing.T) {
	called := false
	err := WithTx(context.Background(), nil, func(context.Context, pgx.Tx) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Fatalf("expected nil pool error without running fn, got err=%v called=%v", err, called)
	}
}

func TestWalletRepoWithoutPool(t *testing.T) {
	repo := NewWalletRepo(nil)

	balance, err := repo.Balance(context.Background(), 7)
	if err != nil || balance != 0 {
		t.Fatalf("unexpected balance without pool: got %d err=%v", balance, err)
	}
	if _, err := repo.Debit(context.Background(), 0, 5, "superlike"); err == nil {
		t.Fatalf("expected invalid user error")
	}
}
