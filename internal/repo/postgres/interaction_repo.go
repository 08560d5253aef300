package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

type InteractionRepo struct {
	pool *pgxpool.Pool
}

func NewInteractionRepo(pool *pgxpool.Pool) *InteractionRepo {
	return &InteractionRepo{pool: pool}
}

const insertInteractionSQL = `
INSERT INTO interactions (
	id,
	actor_id,
	target_id,
	type,
	view_duration_ms,
	metadata,
	created_at,
	expires_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

func (r *InteractionRepo) Insert(ctx context.Context, item model.Interaction) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if _, err := r.pool.Exec(ctx, insertInteractionSQL, interactionArgs(item)...); err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (r *InteractionRepo) InsertAndCheckMutual(ctx context.Context, item model.Interaction, at time.Time) (bool, error) {
	matched := false
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertInteractionSQL, interactionArgs(item)...); err != nil {
			return fmt.Errorf("insert interaction: %w", err)
		}
		if item.Type != enums.InteractionLike {
			return nil
		}

		return tx.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM interactions
	WHERE actor_id = $1
		AND target_id = $2
		AND type = 'like'
		AND expires_at > $3
)
`, item.TargetID, item.ActorID, at).Scan(&matched)
	})
	if err != nil {
		return false, fmt.Errorf("record interaction: %w", err)
	}
	return matched, nil
}

func (r *InteractionRepo) ListByActor(ctx context.Context, actorID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return r.list(ctx, "actor_id", actorID, kind, limit, at)
}

func (r *InteractionRepo) ListByTarget(ctx context.Context, targetID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return r.list(ctx, "target_id", targetID, kind, limit, at)
}

// column is never user input, it is one of the two indexed owner columns.
func (r *InteractionRepo) list(ctx context.Context, column string, userID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	if r.pool == nil {
		return []model.Interaction{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	id,
	actor_id,
	target_id,
	type,
	view_duration_ms,
	COALESCE(metadata, '{}'::jsonb),
	created_at,
	expires_at
FROM interactions
WHERE `+column+` = $1
	AND ($2::text = '' OR type = $2::text)
	AND expires_at > $3
ORDER BY created_at DESC, id DESC
LIMIT $4
`, userID, string(kind), at, limit)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	items := make([]model.Interaction, 0, limit)
	for rows.Next() {
		var (
			item     model.Interaction
			kindRaw  string
			metadata map[string]any
		)
		if err := rows.Scan(
			&item.ID,
			&item.ActorID,
			&item.TargetID,
			&kindRaw,
			&item.ViewDurationMS,
			&metadata,
			&item.CreatedAt,
			&item.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		item.Type = enums.InteractionType(kindRaw)
		item.Metadata = metadata
		items = append(items, item)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate interactions: %w", rows.Err())
	}

	return items, nil
}

func (r *InteractionRepo) DeleteExpired(ctx context.Context, at time.Time) (int64, error) {
	if r.pool == nil {
		return 0, nil
	}

	result, err := r.pool.Exec(ctx, `
DELETE FROM interactions
WHERE expires_at <= $1
`, at)
	if err != nil {
		return 0, fmt.Errorf("delete expired interactions: %w", err)
	}

	return result.RowsAffected(), nil
}

func interactionArgs(item model.Interaction) []any {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return []any{
		item.ID,
		item.ActorID,
		item.TargetID,
		string(item.Type),
		item.ViewDurationMS,
		metadata,
		item.CreatedAt,
		item.ExpiresAt,
	}
}
