package discovery

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	"github.com/ivankudzin/fitmatch/internal/domain/rules"
	"github.com/ivankudzin/fitmatch/internal/services/gesture"
)

const (
	DefaultPageSize          = 20
	DefaultPrefetchThreshold = 2
	DefaultSuperlikeCost     = 5
	DefaultRekindleCost      = 3
)

type CommitMode string

const (
	// CommitAwait records the decision and resolves the match before the
	// cursor moves. Match events arrive before the next card, at the cost of
	// one ledger round trip on every swipe.
	CommitAwait CommitMode = "await"
	// CommitOptimistic moves the cursor first and records in the background.
	CommitOptimistic CommitMode = "optimistic"
)

func ParseCommitMode(raw string) (CommitMode, bool) {
	switch CommitMode(strings.ToLower(strings.TrimSpace(raw))) {
	case CommitAwait:
		return CommitAwait, true
	case CommitOptimistic:
		return CommitOptimistic, true
	default:
		return "", false
	}
}

type State string

const (
	StateLoading      State = "loading"
	StateReady        State = "ready"
	StateRefreshing   State = "refreshing"
	StateExhausted    State = "exhausted"
	StateNetworkError State = "network_error"
)

type EmptyReason string

const (
	EmptyNone      EmptyReason = ""
	EmptyConsumed  EmptyReason = "consumed"
	EmptyExhausted EmptyReason = "exhausted"
	EmptyNetwork   EmptyReason = "network"
)

func (r EmptyReason) RecoveryAction() string {
	switch r {
	case EmptyConsumed:
		return "You have seen everyone for now. Pull to refresh later."
	case EmptyExhausted:
		return "No one matches your filters. Try widening distance or workout types."
	case EmptyNetwork:
		return "Could not load profiles. Check your connection and retry."
	default:
		return ""
	}
}

type Config struct {
	PageSize          int
	PrefetchThreshold int
	SuperlikeCost     int64
	RekindleCost      int64
	CommitMode        CommitMode
	AnnotateScores    bool
	Gesture           gesture.Thresholds
	Filters           model.DiscoveryFilters
}

type rekindleSlot struct {
	profile   model.Profile
	direction enums.SwipeDirection
	position  int
}

type Snapshot struct {
	ID             string
	State          State
	Cursor         int
	QueueLength    int
	HasMore        bool
	Generation     uint64
	PageInFlight   bool
	CommitInFlight bool
	CanUndo        bool
	EmptyReason    EmptyReason
}

// Session is one viewer's pass through the discovery feed. All state is
// guarded by mu and network calls are made with mu released.
type Session struct {
	id     string
	viewer model.Profile
	deps   Dependencies
	cfg    Config
	logger *zap.Logger
	obs    Observer
	now    func() time.Time

	mu             sync.Mutex
	state          State
	queue          []model.Profile
	cursor         int
	fetched        int
	hasMore        bool
	generation     uint64
	snapshotAt     time.Time
	pageInFlight   bool
	commitInFlight bool
	undoInFlight   bool
	activeSince    time.Time
	slot           *rekindleSlot
	prefetchErr    error
	loadErr        error
	closed         bool

	reloads  singleflight.Group
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

func NewSession(viewer model.Profile, deps Dependencies, cfg Config) *Session {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PrefetchThreshold <= 0 {
		cfg.PrefetchThreshold = DefaultPrefetchThreshold
	}
	if cfg.SuperlikeCost < 0 {
		cfg.SuperlikeCost = 0
	}
	if cfg.RekindleCost < 0 {
		cfg.RekindleCost = 0
	}
	if _, ok := ParseCommitMode(string(cfg.CommitMode)); !ok {
		cfg.CommitMode = CommitAwait
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}

	id := uuid.NewString()
	bgCtx, cancel := context.WithCancel(context.Background())

	return &Session{
		id:       id,
		viewer:   viewer,
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger.With(zap.String("session_id", id), zap.Int64("viewer_id", viewer.UserID)),
		obs:      deps.Observer,
		now:      time.Now,
		state:    StateLoading,
		queue:    []model.Profile{},
		bgCtx:    bgCtx,
		bgCancel: cancel,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) ViewerID() int64 {
	return s.viewer.UserID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ActiveCandidate returns the card under the cursor, if any.
func (s *Session) ActiveCandidate() (model.Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

// ActiveBreakdown scores the active card against the viewer. It is computed on
// every call.
func (s *Session) ActiveBreakdown() (model.CompatibilityBreakdown, bool) {
	candidate, ok := s.ActiveCandidate()
	if !ok {
		return model.CompatibilityBreakdown{}, false
	}
	breakdown := rules.Score(s.viewer, candidate)
	s.obs.ScoreObserved(breakdown.OverallScore)
	return breakdown, true
}

func (s *Session) IsExhausted() bool {
	return s.State() == StateExhausted
}

func (s *Session) IsLoading() bool {
	state := s.State()
	return state == StateLoading || state == StateRefreshing
}

func (s *Session) HasNetworkError() bool {
	return s.State() == StateNetworkError
}

// LoadError is the failure of the last initial load or refresh.
func (s *Session) LoadError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadErr
}

// PrefetchError is the failure of the last page fetch. It never changes the
// session state.
func (s *Session) PrefetchError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefetchErr
}

func (s *Session) EmptyReason() EmptyReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emptyReasonLocked()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:             s.id,
		State:          s.state,
		Cursor:         s.cursor,
		QueueLength:    len(s.queue),
		HasMore:        s.hasMore,
		Generation:     s.generation,
		PageInFlight:   s.pageInFlight,
		CommitInFlight: s.commitInFlight || s.undoInFlight,
		CanUndo:        s.slot != nil,
		EmptyReason:    s.emptyReasonLocked(),
	}
}

// Close stops background work and waits for it to drain.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.bgCancel()
	s.bg.Wait()
}

// Wait blocks until prefetches and background writes finish.
func (s *Session) Wait() {
	s.bg.Wait()
}

func (s *Session) activeLocked() (model.Profile, bool) {
	if s.state != StateReady && s.state != StateRefreshing {
		return model.Profile{}, false
	}
	if s.cursor < 0 || s.cursor >= len(s.queue) {
		return model.Profile{}, false
	}
	return s.queue[s.cursor], true
}

func (s *Session) emptyReasonLocked() EmptyReason {
	switch s.state {
	case StateNetworkError:
		return EmptyNetwork
	case StateExhausted:
		return EmptyExhausted
	case StateReady, StateRefreshing:
		if s.cursor >= len(s.queue) {
			return EmptyConsumed
		}
	}
	return EmptyNone
}

// spawnLocked runs fn on a tracked goroutine unless the session is closed.
func (s *Session) spawnLocked(fn func(ctx context.Context)) {
	if s.closed {
		return
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(s.bgCtx)
	}()
}
