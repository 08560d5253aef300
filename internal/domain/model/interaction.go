package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
)

type Interaction struct {
	ID             uuid.UUID             `json:"id"`
	ActorID        int64                 `json:"actor_id"`
	TargetID       int64                 `json:"target_id"`
	Type           enums.InteractionType `json:"type"`
	ViewDurationMS int64                 `json:"view_duration_ms"`
	Metadata       map[string]any        `json:"metadata,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	ExpiresAt      time.Time             `json:"expires_at"`
}
