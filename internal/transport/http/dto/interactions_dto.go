package dto

import "time"

type RecordViewRequest struct {
	TargetID       int64 `json:"target_id"`
	ViewDurationMS int64 `json:"view_duration_ms"`
}

type InteractionResponse struct {
	ID             string         `json:"id"`
	ActorID        int64          `json:"actor_id"`
	TargetID       int64          `json:"target_id"`
	Type           string         `json:"type"`
	ViewDurationMS int64          `json:"view_duration_ms"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

type InteractionsResponse struct {
	Items []InteractionResponse `json:"items"`
}

type EntitlementsResponse struct {
	Premium      bool       `json:"premium"`
	PremiumUntil *time.Time `json:"premium_until,omitempty"`
	Balance      int64      `json:"balance"`
}
