package model

type CompatibilityLabel string

const (
	LabelPerfect  CompatibilityLabel = "Perfect"
	LabelHigh     CompatibilityLabel = "High"
	LabelModerate CompatibilityLabel = "Moderate"
	LabelFair     CompatibilityLabel = "Fair"
	LabelLow      CompatibilityLabel = "Low"
)

// DimensionScore carries the raw 0..1 value next to its display score.
type DimensionScore struct {
	Raw   float64            `json:"raw"`
	Score int                `json:"score"`
	Label CompatibilityLabel `json:"label"`
}

type CompatibilityBreakdown struct {
	OverallScore       int                `json:"overall_score"`
	OverallLabel       CompatibilityLabel `json:"overall_label"`
	Raw                float64            `json:"raw"`
	Workout            DimensionScore     `json:"workout"`
	Experience         DimensionScore     `json:"experience"`
	Schedule           DimensionScore     `json:"schedule"`
	Location           DimensionScore     `json:"location"`
	CommonWorkoutCount int                `json:"common_workout_count"`
}
