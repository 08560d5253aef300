package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrValidation = errors.New("validation error")

const (
	DefaultURLTTL = 5 * time.Minute
	maxCachedURLs = 4096
)

type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type signedURL struct {
	url       string
	expiresAt time.Time
}

// Signer presigns image keys for candidate cards and reuses a link while
// more than half of its lifetime is left.
type Signer struct {
	storage Presigner
	now     func() time.Time

	mu    sync.Mutex
	cache map[string]signedURL
}

func NewSigner(storage Presigner) *Signer {
	return &Signer{
		storage: storage,
		now:     time.Now,
		cache:   make(map[string]signedURL),
	}
}

func (s *Signer) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", ErrValidation
	}
	if s.storage == nil {
		return "", fmt.Errorf("media storage is not configured")
	}
	if ttl <= 0 {
		ttl = DefaultURLTTL
	}

	now := s.now()
	s.mu.Lock()
	if cached, ok := s.cache[key]; ok && cached.expiresAt.Sub(now) > ttl/2 {
		s.mu.Unlock()
		return cached.url, nil
	}
	s.mu.Unlock()

	url, err := s.storage.PresignGet(ctx, key, ttl)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	if len(s.cache) >= maxCachedURLs {
		s.evictExpiredLocked(now)
	}
	if len(s.cache) < maxCachedURLs {
		s.cache[key] = signedURL{url: url, expiresAt: now.Add(ttl)}
	}
	s.mu.Unlock()

	return url, nil
}

func (s *Signer) evictExpiredLocked(now time.Time) {
	for key, entry := range s.cache {
		if !entry.expiresAt.After(now) {
			delete(s.cache, key)
		}
	}
}
