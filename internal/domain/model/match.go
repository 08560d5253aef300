package model

import "time"

// MatchEvent is emitted when a like lands on someone who already liked the viewer.
type MatchEvent struct {
	ViewerID    int64     `json:"viewer_id"`
	CandidateID int64     `json:"candidate_id"`
	Superlike   bool      `json:"superlike"`
	At          time.Time `json:"at"`
}
