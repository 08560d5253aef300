package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	pgrepo "github.com/ivankudzin/fitmatch/internal/repo/postgres"
)

const (
	defaultPageSize = 20
	maxPageSize     = 50
	photoURLTTL     = 5 * time.Minute
)

var (
	ErrValidation     = errors.New("validation error")
	ErrViewerNotFound = errors.New("viewer not found")
)

type Repository interface {
	GetViewer(ctx context.Context, userID int64) (pgrepo.ProfileRecord, error)
	ListCandidates(ctx context.Context, q pgrepo.CandidateQuery) ([]pgrepo.ProfileRecord, error)
}

type PhotoURLSigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type Config struct {
	DefaultMaxDistanceMiles float64
	MaxDistanceMiles        float64
}

// Service is the recommendation source behind discovery sessions.
type Service struct {
	repo      Repository
	cfg       Config
	photoSign PhotoURLSigner
	now       func() time.Time
}

func NewService(repo Repository, cfg Config) *Service {
	if cfg.MaxDistanceMiles <= 0 {
		cfg.MaxDistanceMiles = 100
	}
	if cfg.DefaultMaxDistanceMiles < 0 {
		cfg.DefaultMaxDistanceMiles = 0
	}
	if cfg.DefaultMaxDistanceMiles > cfg.MaxDistanceMiles {
		cfg.DefaultMaxDistanceMiles = cfg.MaxDistanceMiles
	}

	return &Service{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *Service) AttachPhotoSigner(signer PhotoURLSigner) {
	s.photoSign = signer
}

// Viewer loads the profile the session scores candidates against.
func (s *Service) Viewer(ctx context.Context, userID int64) (model.Profile, error) {
	if userID <= 0 {
		return model.Profile{}, ErrValidation
	}
	if s.repo == nil {
		return model.Profile{}, fmt.Errorf("feed repository is nil")
	}

	rec, err := s.repo.GetViewer(ctx, userID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrViewerNotFound) {
			return model.Profile{}, ErrViewerNotFound
		}
		return model.Profile{}, err
	}
	return s.toProfile(ctx, rec), nil
}

func (s *Service) FetchCandidates(ctx context.Context, viewerID int64, filters model.DiscoveryFilters, page model.Page) ([]model.Profile, error) {
	if viewerID <= 0 || page.Skip < 0 {
		return nil, ErrValidation
	}
	if s.repo == nil {
		return nil, fmt.Errorf("feed repository is nil")
	}
	limit := page.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	viewer, err := s.repo.GetViewer(ctx, viewerID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrViewerNotFound) {
			return []model.Profile{}, nil
		}
		return nil, err
	}

	ageMin, ageMax := normalizeAgeRange(filters.AgeMin, filters.AgeMax)
	levels := make([]string, 0, len(filters.ExperienceLevels))
	for _, level := range filters.ExperienceLevels {
		if level.Valid() {
			levels = append(levels, string(level))
		}
	}

	records, err := s.repo.ListCandidates(ctx, pgrepo.CandidateQuery{
		ViewerUserID:     viewerID,
		ViewerLat:        viewer.LastLat,
		ViewerLon:        viewer.LastLon,
		MaxDistanceMiles: s.normalizeRadius(filters.MaxDistanceMiles),
		AgeMin:           ageMin,
		AgeMax:           ageMax,
		WorkoutTypes:     filters.WorkoutTypes,
		ExperienceLevels: levels,
		Skip:             page.Skip,
		Limit:            limit,
		Now:              s.now().UTC(),
		SnapshotAt:       page.SnapshotAt.UTC(),
	})
	if err != nil {
		return nil, err
	}

	items := make([]model.Profile, 0, len(records))
	for _, rec := range records {
		items = append(items, s.toProfile(ctx, rec))
	}
	return items, nil
}

func (s *Service) toProfile(ctx context.Context, rec pgrepo.ProfileRecord) model.Profile {
	profile := model.Profile{
		UserID:       rec.UserID,
		DisplayName:  rec.DisplayName,
		Age:          rec.Age,
		Bio:          rec.Bio,
		Images:       make([]string, 0, len(rec.Images)),
		WorkoutTypes: append([]string{}, rec.WorkoutTypes...),
		LastActive:   rec.LastActiveAt,
	}
	for _, key := range rec.Images {
		if url := s.buildPhotoURL(ctx, key); url != nil {
			profile.Images = append(profile.Images, *url)
		}
	}
	if level, ok := enums.ParseExperienceLevel(rec.ExperienceLevel); ok {
		profile.ExperienceLevel = &level
	}
	if preferred, ok := enums.ParsePreferredTime(rec.PreferredTime); ok {
		profile.PreferredTime = &preferred
	}
	if rec.LastLat != nil && rec.LastLon != nil {
		profile.Location = &model.Location{
			Coordinates:   &model.Coordinates{Lat: *rec.LastLat, Lon: *rec.LastLon},
			DistanceMiles: rec.DistanceMiles,
		}
	}
	return profile
}

// Storage keys are presigned, absolute URLs pass through, anything that
// cannot be resolved is dropped from the card.
func (s *Service) buildPhotoURL(ctx context.Context, key string) *string {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
		value := trimmed
		return &value
	}
	if s.photoSign == nil {
		return nil
	}

	url, err := s.photoSign.PresignGet(ctx, trimmed, photoURLTTL)
	if err != nil {
		return nil
	}
	value := strings.TrimSpace(url)
	if value == "" {
		return nil
	}
	return &value
}

func normalizeAgeRange(ageMin, ageMax int) (int, int) {
	if ageMin < 0 {
		ageMin = 0
	}
	if ageMax < 0 {
		ageMax = 0
	}
	if ageMin > 0 && ageMax > 0 && ageMin > ageMax {
		ageMin, ageMax = ageMax, ageMin
	}
	return ageMin, ageMax
}

func (s *Service) normalizeRadius(radius float64) float64 {
	if radius <= 0 {
		radius = s.cfg.DefaultMaxDistanceMiles
	}
	if radius > s.cfg.MaxDistanceMiles {
		radius = s.cfg.MaxDistanceMiles
	}
	return radius
}
