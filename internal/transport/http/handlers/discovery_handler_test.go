package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	authsvc "github.com/ivankudzin/fitmatch/internal/services/auth"
	"github.com/ivankudzin/fitmatch/internal/services/discovery"
	"github.com/ivankudzin/fitmatch/internal/services/ledger"
	"github.com/ivankudzin/fitmatch/internal/services/notify"
)

type candidatesStub struct {
	mu   sync.Mutex
	pool []model.Profile
	err  error
}

func (c *candidatesStub) FetchCandidates(_ context.Context, _ int64, _ model.DiscoveryFilters, page model.Page) ([]model.Profile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	if page.Skip >= len(c.pool) {
		return []model.Profile{}, nil
	}
	end := min(page.Skip+page.Limit, len(c.pool))
	return append([]model.Profile(nil), c.pool[page.Skip:end]...), nil
}

func (c *candidatesStub) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type ledgerStoreStub struct {
	mu    sync.Mutex
	items []model.Interaction
}

func (s *ledgerStoreStub) Insert(_ context.Context, item model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

func (s *ledgerStoreStub) InsertAndCheckMutual(_ context.Context, item model.Interaction, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	for _, other := range s.items {
		if other.ActorID == item.TargetID && other.TargetID == item.ActorID &&
			other.Type == enums.InteractionLike && other.ExpiresAt.After(at) {
			return true, nil
		}
	}
	return false, nil
}

func (s *ledgerStoreStub) ListByActor(_ context.Context, actorID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return s.list(func(i model.Interaction) bool { return i.ActorID == actorID }, kind, limit, at), nil
}

func (s *ledgerStoreStub) ListByTarget(_ context.Context, targetID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return s.list(func(i model.Interaction) bool { return i.TargetID == targetID }, kind, limit, at), nil
}

func (s *ledgerStoreStub) list(match func(model.Interaction) bool, kind enums.InteractionType, limit int, at time.Time) []model.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Interaction{}
	for _, item := range s.items {
		if !match(item) || (kind != "" && item.Type != kind) || !item.ExpiresAt.After(at) {
			continue
		}
		out = append(out, item)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type balanceStub struct {
	mu      sync.Mutex
	balance int64
}

func (b *balanceStub) Balance(context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balance, nil
}

func (b *balanceStub) Debit(_ context.Context, amount int64, _ string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.balance < amount {
		return false, nil
	}
	b.balance -= amount
	return true, nil
}

func (b *balanceStub) Credit(_ context.Context, amount int64, _ string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance += amount
	return nil
}

type freeTier struct{}

func (freeTier) IsPremium(context.Context) (bool, error) { return false, nil }

type discoveryEnv struct {
	router     http.Handler
	candidates *candidatesStub
	ledger     *ledger.Service
	store      *ledgerStoreStub
	wallet     *balanceStub
	hub        *notify.Hub
}

func newDiscoveryEnv(t *testing.T, poolSize int) *discoveryEnv {
	t.Helper()

	env := &discoveryEnv{
		candidates: &candidatesStub{},
		store:      &ledgerStoreStub{},
		wallet:     &balanceStub{},
		hub:        notify.NewHub(nil, nil),
	}
	for i := 0; i < poolSize; i++ {
		id := int64(100 + i)
		env.candidates.pool = append(env.candidates.pool, model.Profile{
			UserID:       id,
			DisplayName:  fmt.Sprintf("user-%d", id),
			WorkoutTypes: []string{"Running"},
		})
	}
	env.ledger = ledger.NewService(env.store, ledger.Config{}, nil)
	t.Cleanup(env.hub.Close)

	registry := discovery.NewRegistry(func(_ context.Context, viewerID int64, filters model.DiscoveryFilters) (*discovery.Session, error) {
		return discovery.NewSession(model.Profile{UserID: viewerID, WorkoutTypes: []string{"Running"}}, discovery.Dependencies{
			Candidates:   env.candidates,
			Recorder:     env.ledger,
			Wallet:       env.wallet,
			Entitlements: freeTier{},
			Notifier:     env.hub,
		}, discovery.Config{
			PageSize:      5,
			SuperlikeCost: discovery.DefaultSuperlikeCost,
			RekindleCost:  discovery.DefaultRekindleCost,
			Filters:       filters,
		}), nil
	}, time.Hour, 3)
	t.Cleanup(registry.Close)

	discoveryHandler := NewDiscoveryHandler(registry, nil)
	interactionsHandler := NewInteractionsHandler(env.ledger)
	matchesHandler := NewMatchesHandler(env.hub)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID int64
			if _, err := fmt.Sscan(r.Header.Get("X-Test-User"), &userID); err != nil || userID <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx := authsvc.WithIdentity(r.Context(), authsvc.Identity{UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Post("/v1/discovery/sessions", discoveryHandler.Create)
	r.Get("/v1/discovery/sessions/{id}", discoveryHandler.Get)
	r.Delete("/v1/discovery/sessions/{id}", discoveryHandler.Close)
	r.Post("/v1/discovery/sessions/{id}/gesture", discoveryHandler.Gesture)
	r.Post("/v1/discovery/sessions/{id}/commit", discoveryHandler.Commit)
	r.Post("/v1/discovery/sessions/{id}/undo", discoveryHandler.Undo)
	r.Post("/v1/discovery/sessions/{id}/refresh", discoveryHandler.Refresh)
	r.Post("/v1/discovery/sessions/{id}/load-more", discoveryHandler.LoadMore)
	r.Get("/v1/interactions", interactionsHandler.List)
	r.Post("/v1/interactions/views", interactionsHandler.RecordView)
	r.Get("/v1/matches/ws", matchesHandler.Stream)
	env.router = r

	return env
}

func (e *discoveryEnv) do(t *testing.T, userID int64, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID > 0 {
		req.Header.Set("X-Test-User", fmt.Sprint(userID))
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *discoveryEnv) open(t *testing.T, userID int64) sessionPayload {
	t.Helper()
	rr := e.do(t, userID, http.MethodPost, "/v1/discovery/sessions", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: got %d want %d body=%s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	return decodeSession(t, rr.Body.Bytes())
}

type sessionPayload struct {
	ID          string `json:"id"`
	State       string `json:"state"`
	Cursor      int    `json:"cursor"`
	CanUndo     bool   `json:"can_undo"`
	EmptyReason string `json:"empty_reason"`
	Error       string `json:"error"`
	Candidate   *struct {
		UserID        int64 `json:"user_id"`
		Compatibility *struct {
			OverallScore int `json:"overall_score"`
		} `json:"compatibility"`
	} `json:"candidate"`
}

func decodeSession(t *testing.T, raw []byte) sessionPayload {
	t.Helper()
	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return payload
}

func decodeCode(t *testing.T, raw []byte) string {
	t.Helper()
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return payload.Code
}

func TestDiscoveryHandlerCreateShowsFirstCandidate(t *testing.T) {
	env := newDiscoveryEnv(t, 3)

	session := env.open(t, 1)
	if session.State != string(discovery.StateReady) {
		t.Fatalf("unexpected state: got %s want ready", session.State)
	}
	if session.Candidate == nil || session.Candidate.UserID != 100 {
		t.Fatalf("expected first candidate 100, got %+v", session.Candidate)
	}
	if session.Candidate.Compatibility == nil || session.Candidate.Compatibility.OverallScore <= 0 {
		t.Fatalf("expected compatibility on active card")
	}

	rr := env.do(t, 1, http.MethodGet, "/v1/discovery/sessions/"+session.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected get status: %d", rr.Code)
	}
}

func TestDiscoveryHandlerRequiresIdentity(t *testing.T) {
	env := newDiscoveryEnv(t, 1)
	rr := env.do(t, 0, http.MethodPost, "/v1/discovery/sessions", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestDiscoveryHandlerCommitAndUndoFlow(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	session := env.open(t, 1)
	base := "/v1/discovery/sessions/" + session.ID

	rr := env.do(t, 1, http.MethodPost, base+"/commit", map[string]string{"button": "like"})
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected commit status: got %d body=%s", rr.Code, rr.Body.String())
	}
	var commit struct {
		Recorded    bool           `json:"recorded"`
		Direction   string         `json:"direction"`
		CandidateID int64          `json:"candidate_id"`
		Session     sessionPayload `json:"session"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &commit); err != nil {
		t.Fatalf("decode commit: %v", err)
	}
	if !commit.Recorded || commit.Direction != "right" || commit.CandidateID != 100 {
		t.Fatalf("unexpected commit payload: %+v", commit)
	}
	if commit.Session.Cursor != 1 || !commit.Session.CanUndo {
		t.Fatalf("unexpected session after commit: %+v", commit.Session)
	}

	rr = env.do(t, 1, http.MethodPost, base+"/undo", nil)
	if rr.Code != http.StatusPaymentRequired {
		t.Fatalf("unexpected undo status without funds: got %d", rr.Code)
	}
	if code := decodeCode(t, rr.Body.Bytes()); code != "INSUFFICIENT_FUNDS_REKINDLE" {
		t.Fatalf("unexpected undo error code: %s", code)
	}

	env.wallet.balance = 10
	rr = env.do(t, 1, http.MethodPost, base+"/undo", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected undo status: got %d body=%s", rr.Code, rr.Body.String())
	}
	rr = env.do(t, 1, http.MethodPost, base+"/undo", nil)
	if code := decodeCode(t, rr.Body.Bytes()); rr.Code != http.StatusConflict || code != "NOTHING_TO_UNDO" {
		t.Fatalf("expected NOTHING_TO_UNDO, got %d %s", rr.Code, code)
	}

	rr = env.do(t, 1, http.MethodGet, "/v1/interactions?type=like", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected interactions status: %d", rr.Code)
	}
	var list struct {
		Items []struct {
			TargetID int64  `json:"target_id"`
			Type     string `json:"type"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode interactions: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].TargetID != 100 || list.Items[0].Type != "like" {
		t.Fatalf("unexpected interactions: %+v", list.Items)
	}
}

func TestDiscoveryHandlerCommitErrors(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	session := env.open(t, 1)
	base := "/v1/discovery/sessions/" + session.ID

	tests := []struct {
		name   string
		user   int64
		path   string
		body   any
		status int
		code   string
	}{
		{name: "superlike without funds", user: 1, path: base + "/commit", body: map[string]string{"direction": "up"}, status: http.StatusPaymentRequired, code: "INSUFFICIENT_FUNDS_SUPERLIKE"},
		{name: "direction and button", user: 1, path: base + "/commit", body: map[string]string{"direction": "left", "button": "like"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unknown direction", user: 1, path: base + "/commit", body: map[string]string{"direction": "down"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "empty body", user: 1, path: base + "/commit", body: nil, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "other viewer", user: 2, path: base + "/commit", body: map[string]string{"direction": "left"}, status: http.StatusNotFound, code: "SESSION_NOT_FOUND"},
		{name: "unknown session", user: 1, path: "/v1/discovery/sessions/missing/commit", body: map[string]string{"direction": "left"}, status: http.StatusNotFound, code: "SESSION_NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(t, tc.user, http.MethodPost, tc.path, tc.body)
			if rr.Code != tc.status {
				t.Fatalf("unexpected status: got %d want %d body=%s", rr.Code, tc.status, rr.Body.String())
			}
			if code := decodeCode(t, rr.Body.Bytes()); code != tc.code {
				t.Fatalf("unexpected code: got %s want %s", code, tc.code)
			}
		})
	}
}

func TestDiscoveryHandlerNoActiveCandidate(t *testing.T) {
	env := newDiscoveryEnv(t, 0)
	session := env.open(t, 1)
	if session.State != string(discovery.StateExhausted) || session.EmptyReason != string(discovery.EmptyExhausted) {
		t.Fatalf("unexpected empty session: %+v", session)
	}

	rr := env.do(t, 1, http.MethodPost, "/v1/discovery/sessions/"+session.ID+"/commit", map[string]string{"direction": "left"})
	if code := decodeCode(t, rr.Body.Bytes()); rr.Code != http.StatusConflict || code != "NO_ACTIVE_CANDIDATE" {
		t.Fatalf("expected NO_ACTIVE_CANDIDATE, got %d %s", rr.Code, code)
	}
}

func TestDiscoveryHandlerNetworkErrors(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	env.candidates.setErr(errors.New("upstream down"))

	session := env.open(t, 1)
	if session.State != string(discovery.StateNetworkError) || session.Error != "FEED_NETWORK_ERROR" {
		t.Fatalf("unexpected session after failed load: %+v", session)
	}

	rr := env.do(t, 1, http.MethodPost, "/v1/discovery/sessions/"+session.ID+"/refresh", nil)
	if code := decodeCode(t, rr.Body.Bytes()); rr.Code != http.StatusBadGateway || code != "FEED_NETWORK_ERROR" {
		t.Fatalf("expected FEED_NETWORK_ERROR, got %d %s", rr.Code, code)
	}

	env.candidates.setErr(nil)
	rr = env.do(t, 1, http.MethodPost, "/v1/discovery/sessions/"+session.ID+"/refresh", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected refresh status after recovery: %d", rr.Code)
	}
	if recovered := decodeSession(t, rr.Body.Bytes()); recovered.State != string(discovery.StateReady) {
		t.Fatalf("expected ready after retry, got %s", recovered.State)
	}
}

func TestDiscoveryHandlerGestureDoesNotCommit(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	session := env.open(t, 1)

	rr := env.do(t, 1, http.MethodPost, "/v1/discovery/sessions/"+session.ID+"/gesture", map[string]any{
		"points": []map[string]float64{{"x": 0, "y": 0}, {"x": 60, "y": 5}, {"x": 130, "y": 10}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected gesture status: %d body=%s", rr.Code, rr.Body.String())
	}
	var payload struct {
		Advisory  string `json:"advisory"`
		Direction string `json:"direction"`
		Committed bool   `json:"committed"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode gesture: %v", err)
	}
	if payload.Advisory != "right" || payload.Direction != "right" || !payload.Committed {
		t.Fatalf("unexpected gesture payload: %+v", payload)
	}

	rr = env.do(t, 1, http.MethodGet, "/v1/discovery/sessions/"+session.ID, nil)
	if after := decodeSession(t, rr.Body.Bytes()); after.Cursor != 0 {
		t.Fatalf("gesture must not move the cursor, got %d", after.Cursor)
	}

	rr = env.do(t, 1, http.MethodPost, "/v1/discovery/sessions/"+session.ID+"/gesture", map[string]any{"points": []any{}})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected validation error for empty trajectory, got %d", rr.Code)
	}
}

func TestDiscoveryHandlerCloseRemovesSession(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	session := env.open(t, 1)

	rr := env.do(t, 1, http.MethodDelete, "/v1/discovery/sessions/"+session.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected close status: %d", rr.Code)
	}
	rr = env.do(t, 1, http.MethodGet, "/v1/discovery/sessions/"+session.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected closed session to be gone, got %d", rr.Code)
	}
}

func TestDiscoveryHandlerRejectsUnknownExperienceLevel(t *testing.T) {
	env := newDiscoveryEnv(t, 3)
	rr := env.do(t, 1, http.MethodPost, "/v1/discovery/sessions", map[string]any{
		"experience_levels": []string{"Olympian"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestInteractionsHandlerRejectsUnknownRole(t *testing.T) {
	env := newDiscoveryEnv(t, 1)
	rr := env.do(t, 1, http.MethodGet, "/v1/interactions?role=bystander", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusBadRequest)
	}
	rr = env.do(t, 1, http.MethodGet, "/v1/interactions?type=wink", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status for unknown type: got %d", rr.Code)
	}
}

func TestInteractionsHandlerQueuesViews(t *testing.T) {
	env := newDiscoveryEnv(t, 1)

	rr := env.do(t, 1, http.MethodPost, "/v1/interactions/views", map[string]any{"target_id": 100, "view_duration_ms": 1200})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status: got %d want %d body=%s", rr.Code, http.StatusAccepted, rr.Body.String())
	}
	rr = env.do(t, 1, http.MethodPost, "/v1/interactions/views", map[string]any{"target_id": 1})
	if code := decodeCode(t, rr.Body.Bytes()); rr.Code != http.StatusBadRequest || code != "VALIDATION_ERROR" {
		t.Fatalf("self view must be rejected, got %d %s", rr.Code, code)
	}
	rr = env.do(t, 0, http.MethodPost, "/v1/interactions/views", map[string]any{"target_id": 100})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected anonymous status: got %d", rr.Code)
	}
	env.ledger.Wait()

	env.store.mu.Lock()
	defer env.store.mu.Unlock()
	if len(env.store.items) != 1 {
		t.Fatalf("expected one queued view, got %d", len(env.store.items))
	}
	view := env.store.items[0]
	if view.Type != enums.InteractionView || view.ActorID != 1 || view.TargetID != 100 || view.ViewDurationMS != 1200 {
		t.Fatalf("unexpected view: %+v", view)
	}
}
