package discovery

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

const (
	DefaultSessionIdleTTL    = 30 * time.Minute
	DefaultSessionsPerViewer = 3
)

var (
	ErrSessionNotFound = errors.New("discovery session not found")
	ErrRegistryClosed  = errors.New("discovery session registry closed")
)

// Factory builds a session for a viewer with every per-viewer dependency
// bound.
type Factory func(ctx context.Context, viewerID int64, filters model.DiscoveryFilters) (*Session, error)

type registryEntry struct {
	session  *Session
	lastUsed time.Time
}

// Registry keeps the open sessions of one process. A session is only visible
// to the viewer that opened it.
type Registry struct {
	factory   Factory
	idleTTL   time.Duration
	perViewer int
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool
}

func NewRegistry(factory Factory, idleTTL time.Duration, perViewer int) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	if perViewer <= 0 {
		perViewer = DefaultSessionsPerViewer
	}

	return &Registry{
		factory:   factory,
		idleTTL:   idleTTL,
		perViewer: perViewer,
		now:       time.Now,
		sessions:  make(map[string]*registryEntry),
	}
}

// Open creates a session and drops the viewer's least recently used ones
// beyond the per-viewer cap.
func (r *Registry) Open(ctx context.Context, viewerID int64, filters model.DiscoveryFilters) (*Session, error) {
	if viewerID <= 0 {
		return nil, ErrValidation
	}
	if r.factory == nil {
		return nil, ErrDependenciesNil
	}

	session, err := r.factory(ctx, viewerID, filters)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		session.Close()
		return nil, ErrRegistryClosed
	}
	r.sessions[session.ID()] = &registryEntry{session: session, lastUsed: r.now()}
	evicted := r.trimViewerLocked(viewerID)
	r.mu.Unlock()

	for _, old := range evicted {
		old.Close()
	}
	return session, nil
}

func (r *Registry) Get(id string, viewerID int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.sessions[id]
	if !ok || entry.session.ViewerID() != viewerID {
		return nil, ErrSessionNotFound
	}
	entry.lastUsed = r.now()
	return entry.session, nil
}

func (r *Registry) Remove(id string, viewerID int64) error {
	r.mu.Lock()
	entry, ok := r.sessions[id]
	if !ok || entry.session.ViewerID() != viewerID {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	entry.session.Close()
	return nil
}

// EvictIdle closes sessions untouched for longer than the idle TTL.
func (r *Registry) EvictIdle(now time.Time) int {
	r.mu.Lock()
	var stale []*Session
	for id, entry := range r.sessions {
		if now.Sub(entry.lastUsed) > r.idleTTL {
			stale = append(stale, entry.session)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, session := range stale {
		session.Close()
	}
	return len(stale)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close closes every session and waits for their background work.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*Session, 0, len(r.sessions))
	for _, entry := range r.sessions {
		all = append(all, entry.session)
	}
	r.sessions = make(map[string]*registryEntry)
	r.mu.Unlock()

	for _, session := range all {
		session.Close()
	}
}

func (r *Registry) trimViewerLocked(viewerID int64) []*Session {
	type owned struct {
		id    string
		entry *registryEntry
	}

	var mine []owned
	for id, entry := range r.sessions {
		if entry.session.ViewerID() == viewerID {
			mine = append(mine, owned{id: id, entry: entry})
		}
	}
	if len(mine) <= r.perViewer {
		return nil
	}

	sort.Slice(mine, func(i, j int) bool {
		return mine[i].entry.lastUsed.Before(mine[j].entry.lastUsed)
	})

	var evicted []*Session
	for _, item := range mine[:len(mine)-r.perViewer] {
		delete(r.sessions, item.id)
		evicted = append(evicted, item.entry.session)
	}
	return evicted
}
