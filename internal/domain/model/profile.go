package model

import (
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
)

// Profile is read-only to the discovery engine. Optional attributes are
// pointers or empty slices; nothing is inferred from zero values.
type Profile struct {
	UserID          int64                  `json:"user_id"`
	DisplayName     string                 `json:"display_name"`
	Age             *int                   `json:"age,omitempty"`
	Bio             string                 `json:"bio,omitempty"`
	Images          []string               `json:"images"`
	WorkoutTypes    []string               `json:"workout_types"`
	ExperienceLevel *enums.ExperienceLevel `json:"experience_level,omitempty"`
	PreferredTime   *enums.PreferredTime   `json:"preferred_time,omitempty"`
	Location        *Location              `json:"location,omitempty"`
	LastActive      *time.Time             `json:"last_active,omitempty"`

	Breakdown *CompatibilityBreakdown `json:"breakdown,omitempty"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Location struct {
	Coordinates   *Coordinates `json:"coordinates,omitempty"`
	DistanceMiles *float64     `json:"distance_miles,omitempty"`
}

// Coords returns the profile coordinates when present.
func (p Profile) Coords() (Coordinates, bool) {
	if p.Location == nil || p.Location.Coordinates == nil {
		return Coordinates{}, false
	}
	return *p.Location.Coordinates, true
}
