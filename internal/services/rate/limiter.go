package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

type WindowStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Peek(ctx context.Context, key string) (int64, time.Duration, error)
}

// Window is a fixed window that allows Max hits per Size.
type Window struct {
	Name string
	Size time.Duration
	Max  int
}

type Limiter struct {
	store   WindowStore
	prefix  string
	windows []Window
}

func NewLimiter(store WindowStore, prefix string, windows ...Window) *Limiter {
	active := make([]Window, 0, len(windows))
	for _, w := range windows {
		if w.Max > 0 && w.Size > 0 && w.Name != "" {
			active = append(active, w)
		}
	}

	return &Limiter{
		store:   store,
		prefix:  prefix,
		windows: active,
	}
}

// NewLikeLimiter caps likes and superlikes per viewer over a minute and a
// ten second burst window. Zero disables a window.
func NewLikeLimiter(store WindowStore, perMinute, per10Sec int) *Limiter {
	return NewLimiter(store, "rate:likes",
		Window{Name: "min", Size: time.Minute, Max: perMinute},
		Window{Name: "10s", Size: 10 * time.Second, Max: per10Sec},
	)
}

// AllowLike counts one hit against every window. Every window is hit even when
// an earlier one already refused, so bursts keep counting.
func (l *Limiter) AllowLike(ctx context.Context, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows {
		count, ttl, err := l.store.Hit(ctx, l.key(w, userID), w.Size)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.Max) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}
	return 0, true, nil
}

// RetryAfter reports how long the viewer has to wait without counting a hit.
func (l *Limiter) RetryAfter(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, w := range l.windows {
		count, ttl, err := l.store.Peek(ctx, l.key(w, userID))
		if err != nil {
			return 0, err
		}
		if count >= int64(w.Max) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}
	return retryAfterSec, nil
}

func (l *Limiter) key(w Window, userID int64) string {
	return l.prefix + ":" + w.Name + ":" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
