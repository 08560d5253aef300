package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/fitmatch/internal/domain/rules"
)

var ErrViewerNotFound = errors.New("viewer profile not found")

type CandidateRepo struct {
	pool *pgxpool.Pool
}

func NewCandidateRepo(pool *pgxpool.Pool) *CandidateRepo {
	return &CandidateRepo{pool: pool}
}

// ProfileRecord is a raw profiles row. Enum columns are kept as text and
// parsed by the service.
type ProfileRecord struct {
	UserID          int64
	DisplayName     string
	Age             *int
	Bio             string
	Images          []string
	WorkoutTypes    []string
	ExperienceLevel string
	PreferredTime   string
	LastLat         *float64
	LastLon         *float64
	LastActiveAt    *time.Time
	DistanceMiles   *float64
}

type CandidateQuery struct {
	ViewerUserID     int64
	ViewerLat        *float64
	ViewerLon        *float64
	MaxDistanceMiles float64
	AgeMin           int
	AgeMax           int
	WorkoutTypes     []string
	ExperienceLevels []string
	Skip             int
	Limit            int
	Now              time.Time
	// SnapshotAt freezes the viewer's own decisions for a paging run. Only
	// decisions made before it exclude a profile, so rows swiped while the
	// run is open keep their offsets. Zero means Now.
	SnapshotAt time.Time
}

func (r *CandidateRepo) GetViewer(ctx context.Context, userID int64) (ProfileRecord, error) {
	if userID <= 0 {
		return ProfileRecord{}, fmt.Errorf("invalid user id")
	}
	if r.pool == nil {
		return ProfileRecord{}, ErrViewerNotFound
	}

	rec, err := scanProfile(r.pool.QueryRow(ctx, `
SELECT
	user_id,
	COALESCE(display_name, ''),
	CASE WHEN birthdate IS NULL THEN NULL
		ELSE DATE_PART('year', AGE(NOW(), birthdate::timestamp))::int END,
	COALESCE(bio, ''),
	COALESCE(images, '{}'::text[]),
	COALESCE(workout_types, '{}'::text[]),
	COALESCE(experience_level, ''),
	COALESCE(preferred_time, ''),
	last_lat,
	last_lon,
	last_active_at,
	NULL::float8
FROM profiles
WHERE user_id = $1
LIMIT 1
`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProfileRecord{}, ErrViewerNotFound
		}
		return ProfileRecord{}, fmt.Errorf("get viewer profile: %w", err)
	}
	return rec, nil
}

// ListCandidates pages through approved profiles the viewer has not decided
// on yet and who have not blocked the viewer. Offsets are stable across pages
// of one run only while the pool is frozen at SnapshotAt; decisions recorded
// after it do not shrink the pool.
func (r *CandidateRepo) ListCandidates(ctx context.Context, q CandidateQuery) ([]ProfileRecord, error) {
	if q.ViewerUserID <= 0 {
		return nil, fmt.Errorf("invalid viewer id")
	}
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	if q.SnapshotAt.IsZero() || q.SnapshotAt.After(q.Now) {
		q.SnapshotAt = q.Now
	}
	if r.pool == nil {
		return []ProfileRecord{}, nil
	}

	hasViewerGeo := q.ViewerLat != nil && q.ViewerLon != nil
	applyRadius := hasViewerGeo && q.MaxDistanceMiles > 0
	workouts := normalizeTags(q.WorkoutTypes)
	levels := q.ExperienceLevels
	if levels == nil {
		levels = []string{}
	}

	rows, err := r.pool.Query(ctx, `
WITH scored AS (
	SELECT
		p.user_id,
		COALESCE(p.display_name, '') AS display_name,
		CASE WHEN p.birthdate IS NULL THEN NULL
			ELSE DATE_PART('year', AGE($2::timestamptz, p.birthdate::timestamp))::int END AS age,
		COALESCE(p.bio, '') AS bio,
		COALESCE(p.images, '{}'::text[]) AS images,
		COALESCE(p.workout_types, '{}'::text[]) AS workout_types,
		COALESCE(p.experience_level, '') AS experience_level,
		COALESCE(p.preferred_time, '') AS preferred_time,
		p.last_lat,
		p.last_lon,
		p.last_active_at,
		CASE
			WHEN $3::boolean = TRUE AND p.last_lat IS NOT NULL AND p.last_lon IS NOT NULL
			THEN $4::float8 * 2 * ASIN(SQRT(LEAST(1.0,
				POWER(SIN(RADIANS(p.last_lat - $5::float8) / 2), 2)
				+ COS(RADIANS($5::float8)) * COS(RADIANS(p.last_lat))
				* POWER(SIN(RADIANS(p.last_lon - $6::float8) / 2), 2)
			)))
			ELSE NULL
		END AS distance_miles
	FROM profiles p
	WHERE
		p.approved = TRUE
		AND p.user_id <> $1
		AND NOT EXISTS (
			SELECT 1
			FROM interactions i
			WHERE i.actor_id = $1
				AND i.target_id = p.user_id
				AND i.type IN ('like', 'dislike', 'block', 'report')
				AND i.expires_at > $2::timestamptz
				AND i.created_at < $15::timestamptz
		)
		AND NOT EXISTS (
			SELECT 1
			FROM interactions i
			WHERE i.actor_id = p.user_id
				AND i.target_id = $1
				AND i.type = 'block'
				AND i.expires_at > $2::timestamptz
		)
		AND (cardinality($8::text[]) = 0 OR p.workout_types && $8::text[])
		AND (cardinality($9::text[]) = 0 OR p.experience_level = ANY($9::text[]))
)
SELECT
	user_id,
	display_name,
	age,
	bio,
	images,
	workout_types,
	experience_level,
	preferred_time,
	last_lat,
	last_lon,
	last_active_at,
	distance_miles
FROM scored
WHERE
	($7::boolean = FALSE OR (distance_miles IS NOT NULL AND distance_miles <= $10::float8))
	AND ($11::int <= 0 OR (age IS NOT NULL AND age >= $11::int))
	AND ($12::int <= 0 OR (age IS NOT NULL AND age <= $12::int))
ORDER BY last_active_at DESC NULLS LAST, user_id DESC
OFFSET $13
LIMIT $14
`,
		q.ViewerUserID,           // $1
		q.Now.UTC(),              // $2
		hasViewerGeo,             // $3
		rules.EarthRadiusMiles,   // $4
		floatOrZero(q.ViewerLat), // $5
		floatOrZero(q.ViewerLon), // $6
		applyRadius,              // $7
		workouts,                 // $8
		levels,                   // $9
		q.MaxDistanceMiles,       // $10
		q.AgeMin,                 // $11
		q.AgeMax,                 // $12
		q.Skip,                   // $13
		q.Limit,                  // $14
		q.SnapshotAt.UTC(),       // $15
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	items := make([]ProfileRecord, 0, q.Limit)
	for rows.Next() {
		rec, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		items = append(items, rec)
	}

	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate candidates: %w", rows.Err())
	}

	return items, nil
}

func scanProfile(row pgx.Row) (ProfileRecord, error) {
	var rec ProfileRecord
	err := row.Scan(
		&rec.UserID,
		&rec.DisplayName,
		&rec.Age,
		&rec.Bio,
		&rec.Images,
		&rec.WorkoutTypes,
		&rec.ExperienceLevel,
		&rec.PreferredTime,
		&rec.LastLat,
		&rec.LastLon,
		&rec.LastActiveAt,
		&rec.DistanceMiles,
	)
	return rec, err
}

func normalizeTags(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func floatOrZero(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}
