package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 6 * time.Hour

type expiredInteractionCleaner interface {
	DeleteExpired(ctx context.Context, at time.Time) (int64, error)
}

type idleSessionSweeper interface {
	EvictIdle(now time.Time) int
}

// Job purges ledger rows past their retention and discovery sessions nobody
// touched within the idle window.
type Job struct {
	interactions expiredInteractionCleaner
	sessions     idleSessionSweeper
	now          func() time.Time
	logger       *zap.Logger
}

func New(interactions expiredInteractionCleaner, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		interactions: interactions,
		now:          time.Now,
		logger:       logger,
	}
}

func (j *Job) AttachSessionSweep(sessions idleSessionSweeper) {
	j.sessions = sessions
}

func (j *Job) Run(ctx context.Context) error {
	now := j.now().UTC()

	if j.sessions != nil {
		if evicted := j.sessions.EvictIdle(now); evicted > 0 {
			j.logger.Info("evicted idle discovery sessions", zap.Int("evicted", evicted))
		}
	}

	if j.interactions == nil {
		return nil
	}

	rows, err := j.interactions.DeleteExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("delete expired interactions: %w", err)
	}
	if rows > 0 {
		j.logger.Info("cleanup expired interactions completed", zap.Int64("deleted", rows))
	}

	return nil
}

// Loop runs the job immediately and then on every tick until ctx ends. A
// failed run is logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if err := j.Run(ctx); err != nil {
		j.logger.Warn("cleanup run failed", zap.Error(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup run failed", zap.Error(err))
			}
		}
	}
}
