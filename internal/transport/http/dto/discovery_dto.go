package dto

import "time"

type CreateSessionRequest struct {
	MaxDistanceMiles float64  `json:"max_distance_miles" validate:"gte=0,lte=500"`
	AgeMin           int      `json:"age_min" validate:"omitempty,gte=18,lte=100"`
	AgeMax           int      `json:"age_max" validate:"omitempty,gte=18,lte=100"`
	WorkoutTypes     []string `json:"workout_types" validate:"max=32,dive,required,max=64"`
	ExperienceLevels []string `json:"experience_levels" validate:"max=3,dive,required"`
}

type GesturePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type GestureRequest struct {
	Points []GesturePoint `json:"points" validate:"required,min=1,max=1024"`
}

type GestureResponse struct {
	Advisory  string  `json:"advisory"`
	Direction string  `json:"direction"`
	Committed bool    `json:"committed"`
	SnapBack  bool    `json:"snap_back"`
	DX        float64 `json:"dx"`
	DY        float64 `json:"dy"`
}

type CommitRequest struct {
	Direction string `json:"direction,omitempty" validate:"omitempty,oneof=left right up"`
	Button    string `json:"button,omitempty" validate:"omitempty,oneof=dislike like superlike"`
}

type CommitResponse struct {
	Recorded       bool   `json:"recorded"`
	Matched        bool   `json:"matched"`
	Persisted      bool   `json:"persisted"`
	Pending        bool   `json:"pending"`
	Direction      string `json:"direction"`
	CandidateID    int64  `json:"candidate_id"`
	ViewDurationMS int64  `json:"view_duration_ms"`
	Warning        string `json:"warning,omitempty"`

	Session SessionResponse `json:"session"`
}

type UndoResponse struct {
	Restored    bool   `json:"restored"`
	CandidateID int64  `json:"candidate_id"`
	Direction   string `json:"direction"`

	Session SessionResponse `json:"session"`
}

type SessionResponse struct {
	ID             string             `json:"id"`
	State          string             `json:"state"`
	Cursor         int                `json:"cursor"`
	QueueLength    int                `json:"queue_length"`
	HasMore        bool               `json:"has_more"`
	CanUndo        bool               `json:"can_undo"`
	CommitInFlight bool               `json:"commit_in_flight"`
	EmptyReason    string             `json:"empty_reason,omitempty"`
	RecoveryAction string             `json:"recovery_action,omitempty"`
	Error          string             `json:"error,omitempty"`
	Candidate      *CandidateResponse `json:"candidate,omitempty"`
}

type CandidateResponse struct {
	UserID          int64              `json:"user_id"`
	DisplayName     string             `json:"display_name"`
	Age             *int               `json:"age,omitempty"`
	Bio             string             `json:"bio,omitempty"`
	Images          []string           `json:"images"`
	WorkoutTypes    []string           `json:"workout_types"`
	ExperienceLevel string             `json:"experience_level,omitempty"`
	PreferredTime   string             `json:"preferred_time,omitempty"`
	DistanceMiles   *float64           `json:"distance_miles,omitempty"`
	LastActive      *time.Time         `json:"last_active,omitempty"`
	Compatibility   *CompatibilityView `json:"compatibility,omitempty"`
}

type CompatibilityView struct {
	OverallScore       int                     `json:"overall_score"`
	OverallLabel       string                  `json:"overall_label"`
	CommonWorkoutCount int                     `json:"common_workout_count"`
	Dimensions         map[string]DimensionDTO `json:"dimensions"`
}

type DimensionDTO struct {
	Score int    `json:"score"`
	Label string `json:"label"`
}
