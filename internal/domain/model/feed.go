package model

import (
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
)

// DiscoveryFilters narrows the candidate pool. Zero values mean "no filter".
type DiscoveryFilters struct {
	MaxDistanceMiles float64                 `json:"max_distance_miles,omitempty" yaml:"max_distance_miles"`
	AgeMin           int                     `json:"age_min,omitempty" yaml:"age_min"`
	AgeMax           int                     `json:"age_max,omitempty" yaml:"age_max"`
	WorkoutTypes     []string                `json:"workout_types,omitempty" yaml:"workout_types"`
	ExperienceLevels []enums.ExperienceLevel `json:"experience_levels,omitempty" yaml:"experience_levels"`
}

// Page is an offset window over the candidate pool. Pages sharing a
// SnapshotAt see the pool as it was at that instant.
type Page struct {
	Skip       int       `json:"skip"`
	Limit      int       `json:"limit"`
	SnapshotAt time.Time `json:"snapshot_at,omitempty"`
}
