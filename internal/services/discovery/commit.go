package discovery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

type CommitResult struct {
	Recorded     bool
	Matched      bool
	Persisted    bool
	Pending      bool
	Direction    enums.SwipeDirection
	CandidateID  int64
	ViewDuration time.Duration
	Warning      error
}

type pendingDecision struct {
	candidate  model.Profile
	direction  enums.SwipeDirection
	kind       enums.InteractionType
	position   int
	generation uint64
	viewed     time.Duration
	metadata   map[string]any
}

// Commit applies a swipe decision to the active card. Failures before the
// ledger write leave the session untouched.
func (s *Session) Commit(ctx context.Context, direction enums.SwipeDirection) (CommitResult, error) {
	kind, ok := direction.InteractionType()
	if !ok {
		return CommitResult{}, fmt.Errorf("%w: unsupported direction %q", ErrValidation, direction)
	}
	if s.deps.Recorder == nil {
		return CommitResult{}, ErrDependenciesNil
	}

	decision, err := s.beginCommit(direction, kind)
	if err != nil {
		return CommitResult{}, err
	}

	// Funds are checked before the limiter so a refused superlike keeps its
	// like quota. The debit lands only once the limiter lets the like through.
	var superlike charge
	if direction == enums.SwipeUp {
		superlike, err = s.quote(ctx, FeatureSuperlike, s.cfg.SuperlikeCost)
		if err != nil {
			s.endCommit()
			return CommitResult{}, err
		}
	}
	if err := s.checkLikeVelocity(ctx, direction); err != nil {
		s.endCommit()
		return CommitResult{}, err
	}
	if err := s.settle(ctx, superlike); err != nil {
		s.endCommit()
		return CommitResult{}, err
	}

	result := CommitResult{
		Recorded:     true,
		Direction:    direction,
		CandidateID:  decision.candidate.UserID,
		ViewDuration: decision.viewed,
	}

	if s.cfg.CommitMode == CommitOptimistic {
		s.mu.Lock()
		s.advanceLocked(decision)
		s.commitInFlight = false
		s.spawnLocked(func(bgCtx context.Context) {
			s.record(bgCtx, decision)
		})
		s.mu.Unlock()

		s.obs.SwipeCommitted(direction)
		result.Pending = true
		return result, nil
	}

	matched, warning := s.record(ctx, decision)
	result.Matched = matched
	result.Persisted = warning == nil
	result.Warning = warning

	s.mu.Lock()
	s.advanceLocked(decision)
	s.commitInFlight = false
	s.mu.Unlock()

	s.obs.SwipeCommitted(direction)
	return result, nil
}

func (s *Session) beginCommit(direction enums.SwipeDirection, kind enums.InteractionType) (pendingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return pendingDecision{}, ErrSessionClosed
	}
	if s.commitInFlight || s.undoInFlight {
		return pendingDecision{}, &ConcurrentCommitError{Position: s.cursor}
	}
	candidate, ok := s.activeLocked()
	if !ok {
		return pendingDecision{}, ErrNoActiveCandidate
	}

	viewed := s.now().Sub(s.activeSince)
	if viewed < 0 {
		viewed = 0
	}
	metadata := map[string]any{"direction": string(direction)}
	if direction == enums.SwipeUp {
		metadata["superlike"] = true
	}

	s.commitInFlight = true
	return pendingDecision{
		candidate:  candidate,
		direction:  direction,
		kind:       kind,
		position:   s.cursor,
		generation: s.generation,
		viewed:     viewed,
		metadata:   metadata,
	}, nil
}

func (s *Session) endCommit() {
	s.mu.Lock()
	s.commitInFlight = false
	s.mu.Unlock()
}

func (s *Session) checkLikeVelocity(ctx context.Context, direction enums.SwipeDirection) error {
	if !direction.IsLike() || s.deps.Limiter == nil {
		return nil
	}
	retryAfter, allowed, err := s.deps.Limiter.AllowLike(ctx, s.viewer.UserID)
	if err != nil {
		return fmt.Errorf("apply like rate limiter: %w", err)
	}
	if !allowed {
		return TooFastError{RetryAfterSec: retryAfter}
	}
	return nil
}

// record writes the decision to the ledger and announces a match. A failed
// write is reported as a warning and never undoes the decision.
func (s *Session) record(ctx context.Context, d pendingDecision) (bool, error) {
	matched, err := s.deps.Recorder.RecordSwipe(
		ctx,
		s.viewer.UserID,
		d.candidate.UserID,
		d.kind,
		d.viewed.Milliseconds(),
		d.metadata,
	)
	if err != nil {
		s.logger.Warn("interaction write failed, decision kept",
			zap.Error(err),
			zap.Int64("candidate_id", d.candidate.UserID),
			zap.String("direction", string(d.direction)),
		)
		return false, fmt.Errorf("record interaction: %w", err)
	}
	if !matched {
		return false, nil
	}

	s.obs.MatchFound()
	if s.deps.Notifier != nil {
		s.deps.Notifier.NotifyMatch(ctx, model.MatchEvent{
			ViewerID:    s.viewer.UserID,
			CandidateID: d.candidate.UserID,
			Superlike:   d.direction == enums.SwipeUp,
			At:          s.now().UTC(),
		})
	}
	return true, nil
}

// advanceLocked stores the decision for rekindle and moves to the next card.
// A reload that happened meanwhile owns the queue, so the decision is only
// recorded.
func (s *Session) advanceLocked(d pendingDecision) {
	if d.generation != s.generation || d.position != s.cursor {
		s.logger.Debug("queue replaced during commit, cursor left alone",
			zap.Int64("candidate_id", d.candidate.UserID),
		)
		return
	}

	s.slot = &rekindleSlot{
		profile:   d.candidate,
		direction: d.direction,
		position:  d.position,
	}
	s.cursor++
	s.activeSince = s.now()
	s.maybePrefetchLocked()
}

// charge is a priced paid-feature use. A zero charge settles without
// touching the wallet.
type charge struct {
	feature Feature
	cost    int64
	balance int64
}

// quote prices a paid feature for the viewer. Premium viewers and free
// features get a zero charge; anyone else must already hold cost.
func (s *Session) quote(ctx context.Context, feature Feature, cost int64) (charge, error) {
	if cost <= 0 {
		return charge{}, nil
	}

	if s.deps.Entitlements != nil {
		premium, err := s.deps.Entitlements.IsPremium(ctx)
		if err != nil {
			return charge{}, fmt.Errorf("resolve premium entitlement: %w", err)
		}
		if premium {
			return charge{}, nil
		}
	}

	if s.deps.Wallet == nil {
		s.obs.FundsRejected(feature)
		return charge{}, &InsufficientFundsError{Feature: feature, Required: cost}
	}

	balance, err := s.deps.Wallet.Balance(ctx)
	if err != nil {
		return charge{}, fmt.Errorf("read balance: %w", err)
	}
	if balance < cost {
		s.obs.FundsRejected(feature)
		return charge{}, &InsufficientFundsError{Feature: feature, Required: cost, Balance: balance}
	}
	return charge{feature: feature, cost: cost, balance: balance}, nil
}

// settle debits a quoted charge. The wallet may still refuse if the balance
// moved since the quote.
func (s *Session) settle(ctx context.Context, c charge) error {
	if c.cost <= 0 {
		return nil
	}
	ok, err := s.deps.Wallet.Debit(ctx, c.cost, string(c.feature))
	if err != nil {
		return fmt.Errorf("debit %s: %w", c.feature, err)
	}
	if !ok {
		s.obs.FundsRejected(c.feature)
		return &InsufficientFundsError{Feature: c.feature, Required: c.cost, Balance: c.balance}
	}
	return nil
}
