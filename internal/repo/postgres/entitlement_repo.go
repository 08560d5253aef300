package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EntitlementRepo struct {
	pool *pgxpool.Pool
}

type EntitlementRecord struct {
	UserID           int64
	PremiumExpiresAt *time.Time
	UpdatedAt        *time.Time
}

func NewEntitlementRepo(pool *pgxpool.Pool) *EntitlementRepo {
	return &EntitlementRepo{pool: pool}
}

func (r *EntitlementRepo) Get(ctx context.Context, userID int64) (EntitlementRecord, error) {
	if userID <= 0 {
		return EntitlementRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return EntitlementRecord{UserID: userID}, nil
	}

	rec := EntitlementRecord{UserID: userID}
	err := r.pool.QueryRow(ctx, `
SELECT premium_expires_at, updated_at
FROM entitlements
WHERE user_id = $1
LIMIT 1
`, userID).Scan(&rec.PremiumExpiresAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EntitlementRecord{UserID: userID}, nil
		}
		return EntitlementRecord{}, fmt.Errorf("get entitlement: %w", err)
	}

	return rec, nil
}

// ExtendPremium stacks the grant on top of an unexpired premium period.
func (r *EntitlementRepo) ExtendPremium(ctx context.Context, userID int64, period time.Duration, now time.Time) (time.Time, error) {
	if userID <= 0 {
		return time.Time{}, fmt.Errorf("invalid user id")
	}
	if period <= 0 {
		return time.Time{}, fmt.Errorf("premium period must be positive")
	}
	if r.pool == nil {
		return time.Time{}, fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var until time.Time
	err := r.pool.QueryRow(ctx, `
INSERT INTO entitlements (user_id, premium_expires_at, updated_at)
VALUES ($1, $2::timestamptz + $3::interval, NOW())
ON CONFLICT (user_id) DO UPDATE SET
	premium_expires_at = CASE
		WHEN entitlements.premium_expires_at IS NOT NULL AND entitlements.premium_expires_at > $2::timestamptz
			THEN entitlements.premium_expires_at + $3::interval
		ELSE $2::timestamptz + $3::interval
	END,
	updated_at = NOW()
RETURNING premium_expires_at
`, userID, now.UTC(), period).Scan(&until)
	if err != nil {
		return time.Time{}, fmt.Errorf("extend premium: %w", err)
	}

	return until, nil
}
