package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var balance int64
	err := r.pool.QueryRow(ctx, `
SELECT balance
FROM wallets
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get wallet balance: %w", err)
	}

	return balance, nil
}

// Debit subtracts amount only when the balance covers it. A refused debit
// returns false without an error and leaves no transaction row.
func (r *WalletRepo) Debit(ctx context.Context, userID, amount int64, reason string) (bool, error) {
	if userID <= 0 {
		return false, fmt.Errorf("invalid user id")
	}
	if amount <= 0 {
		return false, fmt.Errorf("debit amount must be positive")
	}

	debited := false
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		debited = false
		result, err := tx.Exec(ctx, `
UPDATE wallets
SET
	balance = balance - $2,
	updated_at = NOW()
WHERE
	user_id = $1
	AND balance >= $2
`, userID, amount)
		if err != nil {
			return fmt.Errorf("debit wallet: %w", err)
		}
		if result.RowsAffected() == 0 {
			return nil
		}

		if err := insertWalletTx(ctx, tx, userID, -amount, reason); err != nil {
			return err
		}
		debited = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return debited, nil
}

func (r *WalletRepo) Credit(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if amount <= 0 {
		return 0, fmt.Errorf("credit amount must be positive")
	}

	var balance int64
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
INSERT INTO wallets (user_id, balance, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	balance = wallets.balance + EXCLUDED.balance,
	updated_at = NOW()
RETURNING balance
`, userID, amount).Scan(&balance); err != nil {
			return fmt.Errorf("credit wallet: %w", err)
		}

		return insertWalletTx(ctx, tx, userID, amount, reason)
	})
	if err != nil {
		return 0, err
	}

	return balance, nil
}

func insertWalletTx(ctx context.Context, tx pgx.Tx, userID, delta int64, reason string) error {
	if _, err := tx.Exec(ctx, `
INSERT INTO wallet_transactions (id, user_id, delta, reason, created_at)
VALUES ($1, $2, $3, $4, NOW())
`, uuid.New(), userID, delta, reason); err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}
