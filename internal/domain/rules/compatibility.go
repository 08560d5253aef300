package rules

import (
	"math"
	"strings"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

const (
	workoutWeight    = 0.20
	experienceWeight = 0.10
	scheduleWeight   = 0.35
	locationWeight   = 0.35

	neutralScore = 0.5

	scheduleSameBucket = 0.60
	scheduleMismatch   = 0.25

	LocationRadiusMiles = 50.0

	// Workout display floor is 25 while every other dimension floors at 50.
	// Existing clients render these numbers, keep them as they are.
	workoutDisplayFloor = 0.25
	defaultDisplayFloor = 0.50
)

// Score builds the compatibility breakdown of candidate as seen by viewer.
// It never fails: missing attributes fall back to neutral values.
func Score(viewer, candidate model.Profile) model.CompatibilityBreakdown {
	workout, common := workoutOverlap(viewer.WorkoutTypes, candidate.WorkoutTypes)
	experience := ExperienceScore(viewer.ExperienceLevel, candidate.ExperienceLevel)
	schedule := ScheduleScore(viewer.PreferredTime, candidate.PreferredTime)
	location := LocationScore(viewer, candidate)

	raw := workout*workoutWeight +
		experience*experienceWeight +
		schedule*scheduleWeight +
		location*locationWeight
	raw = clamp01(raw)

	return model.CompatibilityBreakdown{
		OverallScore:       int(math.Round(50 + raw*50)),
		OverallLabel:       labelFor(halfBoost(raw)),
		Raw:                raw,
		Workout:            dimension(workout, workoutDisplayFloor),
		Experience:         dimension(experience, defaultDisplayFloor),
		Schedule:           dimension(schedule, defaultDisplayFloor),
		Location:           dimension(location, defaultDisplayFloor),
		CommonWorkoutCount: common,
	}
}

// WorkoutOverlap is the Jaccard similarity of two workout sets.
func WorkoutOverlap(a, b []string) float64 {
	score, _ := workoutOverlap(a, b)
	return score
}

func workoutOverlap(a, b []string) (float64, int) {
	left := normalizeSet(a)
	right := normalizeSet(b)
	if len(left) == 0 || len(right) == 0 {
		return 0, 0
	}

	common := 0
	for key := range left {
		if _, ok := right[key]; ok {
			common++
		}
	}
	union := len(left) + len(right) - common
	if union == 0 {
		return 0, 0
	}
	return float64(common) / float64(union), common
}

func ExperienceScore(a, b *enums.ExperienceLevel) float64 {
	if a == nil || b == nil {
		return neutralScore
	}
	i, j := a.Index(), b.Index()
	if i < 0 || j < 0 {
		return neutralScore
	}
	if i == j {
		return 1
	}
	span := len(enums.ExperienceLevels) - 1
	distance := i - j
	if distance < 0 {
		distance = -distance
	}
	return 1 - float64(distance)/float64(span)
}

func ScheduleScore(a, b *enums.PreferredTime) float64 {
	if a == nil || b == nil || !a.Valid() || !b.Valid() {
		return neutralScore
	}
	if *a == enums.PreferredTimeFlexible || *b == enums.PreferredTimeFlexible || *a == *b {
		return 1
	}
	if a.Bucket() != enums.ScheduleBucketNone && a.Bucket() == b.Bucket() {
		return scheduleSameBucket
	}
	return scheduleMismatch
}

func LocationScore(viewer, candidate model.Profile) float64 {
	from, ok := viewer.Coords()
	if !ok || !ValidCoordinates(from) {
		return 0
	}
	to, ok := candidate.Coords()
	if !ok || !ValidCoordinates(to) {
		return 0
	}
	return math.Max(0, 1-DistanceMiles(from, to)/LocationRadiusMiles)
}

func dimension(raw, floor float64) model.DimensionScore {
	raw = clamp01(raw)
	return model.DimensionScore{
		Raw:   raw,
		Score: int(math.Round(100 * (floor + (1-floor)*raw))),
		Label: labelFor(halfBoost(raw)),
	}
}

// halfBoost is the fraction the labels are bucketed on, for every dimension.
func halfBoost(raw float64) float64 {
	return defaultDisplayFloor + raw*(1-defaultDisplayFloor)
}

func labelFor(fraction float64) model.CompatibilityLabel {
	switch {
	case fraction >= 0.85:
		return model.LabelPerfect
	case fraction >= 0.70:
		return model.LabelHigh
	case fraction >= 0.50:
		return model.LabelModerate
	case fraction >= 0.30:
		return model.LabelFair
	default:
		return model.LabelLow
	}
}

func normalizeSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		out[key] = struct{}{}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
