package discovery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

func newTestRegistry(t *testing.T, idleTTL time.Duration, perViewer int) *Registry {
	t.Helper()

	factory := func(_ context.Context, viewerID int64, filters model.DiscoveryFilters) (*Session, error) {
		return NewSession(model.Profile{UserID: viewerID}, Dependencies{
			Candidates: &candidateSourceStub{pool: profiles(100, 3)},
			Recorder:   &recorderStub{},
		}, Config{PageSize: 3, Filters: filters}), nil
	}
	registry := NewRegistry(factory, idleTTL, perViewer)
	t.Cleanup(registry.Close)
	return registry
}

func TestRegistryScopesSessionsToViewer(t *testing.T) {
	registry := newTestRegistry(t, time.Minute, 3)

	session, err := registry.Open(context.Background(), 1, model.DiscoveryFilters{})
	if err != nil {
		t.Fatalf("open session: %v", err)
	}

	got, err := registry.Get(session.ID(), 1)
	if err != nil || got != session {
		t.Fatalf("expected own session, got %v err=%v", got, err)
	}
	if _, err := registry.Get(session.ID(), 2); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("other viewers must not see the session, got %v", err)
	}
	if err := registry.Remove(session.ID(), 2); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("other viewers must not close the session, got %v", err)
	}

	if err := registry.Remove(session.ID(), 1); err != nil {
		t.Fatalf("remove session: %v", err)
	}
	if _, err := session.Commit(context.Background(), "left"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("removed session must be closed, got %v", err)
	}
	if registry.Len() != 0 {
		t.Fatalf("unexpected registry size: %d", registry.Len())
	}
}

func TestRegistryEvictsIdleSessions(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, 30*time.Minute, 3)
	registry.now = func() time.Time { return now }

	idle, err := registry.Open(context.Background(), 1, model.DiscoveryFilters{})
	if err != nil {
		t.Fatalf("open idle session: %v", err)
	}
	now = now.Add(20 * time.Minute)
	active, err := registry.Open(context.Background(), 2, model.DiscoveryFilters{})
	if err != nil {
		t.Fatalf("open active session: %v", err)
	}

	if evicted := registry.EvictIdle(now.Add(15 * time.Minute)); evicted != 1 {
		t.Fatalf("unexpected evicted count: got %d want 1", evicted)
	}
	if _, err := registry.Get(idle.ID(), 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("idle session must be gone, got %v", err)
	}
	if _, err := registry.Get(active.ID(), 2); err != nil {
		t.Fatalf("active session must stay, got %v", err)
	}
}

func TestRegistryCapsSessionsPerViewer(t *testing.T) {
	now := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	registry := newTestRegistry(t, time.Hour, 2)
	registry.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	first, _ := registry.Open(context.Background(), 1, model.DiscoveryFilters{})
	second, _ := registry.Open(context.Background(), 1, model.DiscoveryFilters{})
	third, err := registry.Open(context.Background(), 1, model.DiscoveryFilters{})
	if err != nil {
		t.Fatalf("open third session: %v", err)
	}

	if _, err := registry.Get(first.ID(), 1); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("oldest session must be evicted, got %v", err)
	}
	for _, s := range []*Session{second, third} {
		if _, err := registry.Get(s.ID(), 1); err != nil {
			t.Fatalf("expected session %s to stay: %v", s.ID(), err)
		}
	}
}

func TestRegistryOpenAfterClose(t *testing.T) {
	registry := newTestRegistry(t, time.Minute, 1)
	registry.Close()

	if _, err := registry.Open(context.Background(), 1, model.DiscoveryFilters{}); !errors.Is(err, ErrRegistryClosed) {
		t.Fatalf("expected ErrRegistryClosed, got %v", err)
	}
	if _, err := registry.Open(context.Background(), 0, model.DiscoveryFilters{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
