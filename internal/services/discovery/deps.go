package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

type CandidateSource interface {
	FetchCandidates(ctx context.Context, viewerID int64, filters model.DiscoveryFilters, page model.Page) ([]model.Profile, error)
}

// InteractionRecorder writes a decision and reports a mutual like in the same
// round trip.
type InteractionRecorder interface {
	RecordSwipe(ctx context.Context, actorID, targetID int64, kind enums.InteractionType, viewDurationMS int64, metadata map[string]any) (bool, error)
}

// Wallet is the viewer's currency balance. It is owned elsewhere; debits are
// never retried. Credit returns a debit whose feature could not be delivered.
type Wallet interface {
	Balance(ctx context.Context) (int64, error)
	Debit(ctx context.Context, amount int64, reason string) (bool, error)
	Credit(ctx context.Context, amount int64, reason string) error
}

type Entitlements interface {
	IsPremium(ctx context.Context) (bool, error)
}

type MatchNotifier interface {
	NotifyMatch(ctx context.Context, event model.MatchEvent)
}

type LikeLimiter interface {
	AllowLike(ctx context.Context, userID int64) (int64, bool, error)
}

type Observer interface {
	SwipeCommitted(direction enums.SwipeDirection)
	MatchFound()
	Rekindled()
	FundsRejected(feature Feature)
	PageFetched(outcome string)
	ScoreObserved(score int)
}

type Dependencies struct {
	Candidates   CandidateSource
	Recorder     InteractionRecorder
	Wallet       Wallet
	Entitlements Entitlements
	Notifier     MatchNotifier
	Limiter      LikeLimiter
	Observer     Observer
	Logger       *zap.Logger
}

type nopObserver struct{}

func (nopObserver) SwipeCommitted(enums.SwipeDirection) {}
func (nopObserver) MatchFound()                         {}
func (nopObserver) Rekindled()                          {}
func (nopObserver) FundsRejected(Feature)               {}
func (nopObserver) PageFetched(string)                  {}
func (nopObserver) ScoreObserved(int)                   {}
