package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

const rekindleRefundReason = "rekindle_refund"

type UndoResult struct {
	Restored    bool
	CandidateID int64
	Direction   enums.SwipeDirection
}

// Undo brings back the last decided card. Only the most recent decision can
// be undone, and only once.
func (s *Session) Undo(ctx context.Context) (UndoResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return UndoResult{}, ErrSessionClosed
	}
	if s.slot == nil {
		s.mu.Unlock()
		return UndoResult{}, ErrNothingToUndo
	}
	if s.commitInFlight || s.undoInFlight {
		s.mu.Unlock()
		return UndoResult{}, &ConcurrentCommitError{Position: s.cursor}
	}
	slot := s.slot
	s.undoInFlight = true
	s.mu.Unlock()

	paid, err := s.quote(ctx, FeatureRekindle, s.cfg.RekindleCost)
	if err == nil {
		err = s.settle(ctx, paid)
	}
	if err != nil {
		s.mu.Lock()
		s.undoInFlight = false
		s.mu.Unlock()
		return UndoResult{}, err
	}

	s.mu.Lock()
	s.undoInFlight = false
	if s.slot != slot {
		s.mu.Unlock()
		s.refund(ctx, paid, slot.profile.UserID)
		return UndoResult{}, ErrNothingToUndo
	}
	defer s.mu.Unlock()

	s.restoreLocked(slot)
	s.slot = nil
	s.activeSince = s.now()
	s.obs.Rekindled()

	return UndoResult{
		Restored:    true,
		CandidateID: slot.profile.UserID,
		Direction:   slot.direction,
	}, nil
}

// refund credits back a rekindle that lost its slot to a reload while the
// debit was in flight.
func (s *Session) refund(ctx context.Context, c charge, candidateID int64) {
	if c.cost <= 0 {
		return
	}
	if err := s.deps.Wallet.Credit(ctx, c.cost, rekindleRefundReason); err != nil {
		s.logger.Error("rekindle refund failed",
			zap.Int64("candidate_id", candidateID),
			zap.Int64("amount", c.cost),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("rekindle refunded after reload",
		zap.Int64("candidate_id", candidateID),
		zap.Int64("amount", c.cost),
	)
}

// restoreLocked reinserts the profile at the current cursor and steps the
// cursor back one card. The decided entry stays in place, so the queue grows
// by one and the profile comes up again right after its restored turn.
func (s *Session) restoreLocked(slot *rekindleSlot) {
	insertAt := s.cursor
	if insertAt > len(s.queue) {
		insertAt = len(s.queue)
	}
	s.queue = insertProfile(s.queue, insertAt, slot.profile)
	if insertAt > 0 {
		insertAt--
	}
	s.cursor = insertAt
}

func insertProfile(queue []model.Profile, at int, profile model.Profile) []model.Profile {
	queue = append(queue, model.Profile{})
	copy(queue[at+1:], queue[at:])
	queue[at] = profile
	return queue
}
