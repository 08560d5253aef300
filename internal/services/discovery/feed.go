package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/model"
	"github.com/ivankudzin/fitmatch/internal/domain/rules"
)

const (
	fetchOutcomeOK    = "ok"
	fetchOutcomeEmpty = "empty"
	fetchOutcomeError = "error"
	fetchOutcomeStale = "stale"
)

// LoadInitial replaces the queue with the first page and forgets any
// rekindle slot.
func (s *Session) LoadInitial(ctx context.Context) error {
	return s.reload(ctx, false)
}

// Refresh reloads from the first page while the current queue stays visible.
// Concurrent calls share one fetch.
func (s *Session) Refresh(ctx context.Context) error {
	return s.reload(ctx, true)
}

func (s *Session) reload(ctx context.Context, refresh bool) error {
	_, err, _ := s.reloads.Do("reload", func() (any, error) {
		return nil, s.fetchFirstPage(ctx, refresh)
	})
	return err
}

func (s *Session) fetchFirstPage(ctx context.Context, refresh bool) error {
	if s.deps.Candidates == nil {
		return ErrDependenciesNil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.generation++
	gen := s.generation
	// Every page of this generation sees the pool as of its first fetch.
	s.snapshotAt = s.now().UTC()
	snapshot := s.snapshotAt
	if refresh && (s.state == StateReady || s.state == StateExhausted) {
		s.state = StateRefreshing
	} else {
		s.state = StateLoading
	}
	s.pageInFlight = true
	s.mu.Unlock()

	batch, err := s.deps.Candidates.FetchCandidates(ctx, s.viewer.UserID, s.cfg.Filters, model.Page{Skip: 0, Limit: s.cfg.PageSize, SnapshotAt: snapshot})
	batch = s.annotate(batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkGenerationLocked(gen); err != nil {
		s.dropStaleLocked(gen, 0)
		return nil
	}
	s.pageInFlight = false

	if err != nil {
		s.obs.PageFetched(fetchOutcomeError)
		s.state = StateNetworkError
		s.loadErr = &NetworkError{Kind: FetchInitial, Err: err}
		s.logger.Warn("initial candidate load failed", zap.Error(err))
		return s.loadErr
	}

	s.queue = batch
	s.cursor = 0
	s.fetched = len(batch)
	s.hasMore = len(batch) >= s.cfg.PageSize
	s.slot = nil
	s.loadErr = nil
	s.prefetchErr = nil
	s.activeSince = s.now()

	if len(batch) == 0 {
		s.obs.PageFetched(fetchOutcomeEmpty)
		s.state = StateExhausted
		return nil
	}
	s.obs.PageFetched(fetchOutcomeOK)
	s.state = StateReady
	return nil
}

// LoadMore appends the next page. It is a no-op while another page is in
// flight, when the last page was short, or when the feed is not ready.
func (s *Session) LoadMore(ctx context.Context) error {
	if s.deps.Candidates == nil {
		return ErrDependenciesNil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state != StateReady || s.pageInFlight || !s.hasMore {
		s.mu.Unlock()
		return nil
	}
	gen := s.generation
	skip := s.fetched
	snapshot := s.snapshotAt
	s.pageInFlight = true
	s.mu.Unlock()

	batch, err := s.deps.Candidates.FetchCandidates(ctx, s.viewer.UserID, s.cfg.Filters, model.Page{Skip: skip, Limit: s.cfg.PageSize, SnapshotAt: snapshot})
	batch = s.annotate(batch)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkGenerationLocked(gen); err != nil {
		s.dropStaleLocked(gen, len(batch))
		return nil
	}
	s.pageInFlight = false

	if err != nil {
		s.obs.PageFetched(fetchOutcomeError)
		s.prefetchErr = &NetworkError{Kind: FetchPage, Err: err}
		return s.prefetchErr
	}

	wasConsumed := s.cursor >= len(s.queue)
	s.queue = append(s.queue, batch...)
	s.fetched += len(batch)
	s.hasMore = len(batch) >= s.cfg.PageSize
	s.prefetchErr = nil
	if wasConsumed && len(batch) > 0 {
		s.activeSince = s.now()
	}

	if len(batch) == 0 {
		s.obs.PageFetched(fetchOutcomeEmpty)
	} else {
		s.obs.PageFetched(fetchOutcomeOK)
	}
	return nil
}

func (s *Session) checkGenerationLocked(gen uint64) error {
	if gen != s.generation {
		return errStaleGeneration
	}
	return nil
}

func (s *Session) dropStaleLocked(gen uint64, size int) {
	s.obs.PageFetched(fetchOutcomeStale)
	s.logger.Debug("dropping stale candidate page",
		zap.Error(errStaleGeneration),
		zap.Uint64("generation", gen),
		zap.Uint64("current_generation", s.generation),
		zap.Int("size", size),
	)
}

// maybePrefetchLocked starts a background page fetch when the cursor is close
// to the end of the queue.
func (s *Session) maybePrefetchLocked() {
	if s.state != StateReady || !s.hasMore || s.pageInFlight {
		return
	}
	if len(s.queue)-s.cursor > s.cfg.PrefetchThreshold {
		return
	}

	s.spawnLocked(func(ctx context.Context) {
		if err := s.LoadMore(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("candidate prefetch failed", zap.Error(err))
		}
	})
}

func (s *Session) annotate(batch []model.Profile) []model.Profile {
	if batch == nil {
		return []model.Profile{}
	}
	if !s.cfg.AnnotateScores {
		return batch
	}
	for i := range batch {
		breakdown := rules.Score(s.viewer, batch[i])
		batch[i].Breakdown = &breakdown
	}
	return batch
}
