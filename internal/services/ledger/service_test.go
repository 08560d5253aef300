package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

type memoryStore struct {
	mu       sync.Mutex
	items    []model.Interaction
	failWith error
}

func (s *memoryStore) Insert(_ context.Context, item model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.items = append(s.items, item)
	return nil
}

func (s *memoryStore) InsertAndCheckMutual(ctx context.Context, item model.Interaction, at time.Time) (bool, error) {
	if err := s.Insert(ctx, item); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.items {
		if existing.ActorID == item.TargetID &&
			existing.TargetID == item.ActorID &&
			existing.Type == enums.InteractionLike &&
			existing.ExpiresAt.After(at) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) ListByActor(_ context.Context, actorID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return s.list(func(item model.Interaction) bool { return item.ActorID == actorID }, kind, limit, at), nil
}

func (s *memoryStore) ListByTarget(_ context.Context, targetID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error) {
	return s.list(func(item model.Interaction) bool { return item.TargetID == targetID }, kind, limit, at), nil
}

func (s *memoryStore) list(match func(model.Interaction) bool, kind enums.InteractionType, limit int, at time.Time) []model.Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Interaction, 0)
	for _, item := range s.items {
		if !match(item) || !item.ExpiresAt.After(at) {
			continue
		}
		if kind != "" && item.Type != kind {
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

type countingFailures struct {
	mu    sync.Mutex
	count int
}

func (c *countingFailures) LedgerWriteFailed(enums.InteractionType) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func newTestService(store Store, now *time.Time) *Service {
	svc := NewService(store, Config{}, nil)
	svc.now = func() time.Time { return *now }
	return svc
}

func TestRecordAssignsIdentityAndExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	svc := newTestService(store, &now)

	item, err := svc.Record(context.Background(), RecordInput{
		ActorID:        1,
		TargetID:       2,
		Type:           enums.InteractionView,
		ViewDurationMS: 1200,
	})
	if err != nil {
		t.Fatalf("record interaction: %v", err)
	}
	if item.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("expected generated id")
	}
	if !item.CreatedAt.Equal(now) {
		t.Fatalf("unexpected created_at: got %s want %s", item.CreatedAt, now)
	}
	if want := now.Add(90 * 24 * time.Hour); !item.ExpiresAt.Equal(want) {
		t.Fatalf("unexpected expires_at: got %s want %s", item.ExpiresAt, want)
	}
	if item.Metadata == nil {
		t.Fatalf("metadata must default to an empty map")
	}
	if len(store.items) != 1 {
		t.Fatalf("expected one stored record, got %d", len(store.items))
	}
}

func TestRecordValidation(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := newTestService(&memoryStore{}, &now)

	cases := []struct {
		name  string
		input RecordInput
		field string
	}{
		{name: "missing_actor", input: RecordInput{TargetID: 2, Type: enums.InteractionLike}, field: "actor_id"},
		{name: "negative_target", input: RecordInput{ActorID: 1, TargetID: -4, Type: enums.InteractionLike}, field: "target_id"},
		{name: "self_interaction", input: RecordInput{ActorID: 3, TargetID: 3, Type: enums.InteractionLike}, field: "target_id"},
		{name: "unknown_type", input: RecordInput{ActorID: 1, TargetID: 2, Type: "poke"}, field: "type"},
		{name: "negative_duration", input: RecordInput{ActorID: 1, TargetID: 2, Type: enums.InteractionView, ViewDurationMS: -1}, field: "view_duration_ms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), tc.input)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q in %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestNewServiceRegistersInteractionTypeRule(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("constructor panicked: %v", r)
		}
	}()
	svc := NewService(&memoryStore{}, Config{}, nil)

	if err := svc.validate.Var(string(enums.InteractionLike), "interaction_type"); err != nil {
		t.Fatalf("known type rejected: %v", err)
	}
	if err := svc.validate.Var("poke", "interaction_type"); err == nil {
		t.Fatalf("unknown type accepted")
	}
}

func TestRecordSwipeDetectsMutualLike(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	svc := newTestService(store, &now)
	ctx := context.Background()

	matched, err := svc.RecordSwipe(ctx, 10, 20, enums.InteractionLike, 800, nil)
	if err != nil {
		t.Fatalf("first like: %v", err)
	}
	if matched {
		t.Fatalf("one-sided like must not match")
	}

	matched, err = svc.RecordSwipe(ctx, 20, 10, enums.InteractionDislike, 300, nil)
	if err != nil {
		t.Fatalf("dislike: %v", err)
	}
	if matched {
		t.Fatalf("dislike must never match")
	}

	matched, err = svc.RecordSwipe(ctx, 20, 10, enums.InteractionLike, 500, map[string]any{"superlike": true})
	if err != nil {
		t.Fatalf("reciprocal like: %v", err)
	}
	if !matched {
		t.Fatalf("reciprocal like should match")
	}
}

func TestRecordSwipeIgnoresExpiredLikes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	svc := newTestService(store, &now)
	ctx := context.Background()

	if _, err := svc.RecordSwipe(ctx, 10, 20, enums.InteractionLike, 0, nil); err != nil {
		t.Fatalf("first like: %v", err)
	}

	now = now.Add(91 * 24 * time.Hour)
	matched, err := svc.RecordSwipe(ctx, 20, 10, enums.InteractionLike, 0, nil)
	if err != nil {
		t.Fatalf("late like: %v", err)
	}
	if matched {
		t.Fatalf("expired like must not produce a match")
	}
}

func TestRecordSwipeStoreFailureIsCounted(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{failWith: errors.New("connection reset")}
	svc := newTestService(store, &now)
	failures := &countingFailures{}
	svc.AttachFailureCounter(failures)

	if _, err := svc.RecordSwipe(context.Background(), 1, 2, enums.InteractionLike, 0, nil); err == nil {
		t.Fatalf("expected store error")
	}
	if failures.count != 1 {
		t.Fatalf("unexpected failure count: got %d want 1", failures.count)
	}
}

func TestRecordAsyncDrainsOnWait(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	svc := newTestService(store, &now)

	ctx, cancel := context.WithCancel(context.Background())
	for i := int64(2); i <= 6; i++ {
		if err := svc.RecordAsync(ctx, RecordInput{ActorID: 1, TargetID: i, Type: enums.InteractionView}); err != nil {
			t.Fatalf("record async %d: %v", i, err)
		}
	}
	var verr *ValidationError
	if err := svc.RecordAsync(ctx, RecordInput{ActorID: 1, TargetID: 1, Type: enums.InteractionView}); !errors.As(err, &verr) {
		t.Fatalf("self view must be rejected before the write, got %v", err)
	}
	cancel()
	svc.Wait()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.items) != 5 {
		t.Fatalf("unexpected async writes: got %d want 5", len(store.items))
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &memoryStore{}
	svc := newTestService(store, &now)
	ctx := context.Background()

	for i := int64(2); i <= 4; i++ {
		if _, err := svc.Record(ctx, RecordInput{ActorID: 1, TargetID: i, Type: enums.InteractionLike}); err != nil {
			t.Fatalf("record like %d: %v", i, err)
		}
		now = now.Add(time.Minute)
	}
	if _, err := svc.Record(ctx, RecordInput{ActorID: 1, TargetID: 9, Type: enums.InteractionDislike}); err != nil {
		t.Fatalf("record dislike: %v", err)
	}

	likes, err := svc.ListByActor(ctx, 1, enums.InteractionLike, 0)
	if err != nil {
		t.Fatalf("list by actor: %v", err)
	}
	if len(likes) != 3 {
		t.Fatalf("unexpected like count: got %d want 3", len(likes))
	}
	if likes[0].TargetID != 4 || likes[2].TargetID != 2 {
		t.Fatalf("expected most recent first, got %d..%d", likes[0].TargetID, likes[2].TargetID)
	}

	all, err := svc.ListByActor(ctx, 1, "", 2)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("limit not applied: got %d want 2", len(all))
	}

	incoming, err := svc.ListByTarget(ctx, 9, enums.InteractionDislike, 500)
	if err != nil {
		t.Fatalf("list by target: %v", err)
	}
	if len(incoming) != 1 {
		t.Fatalf("unexpected incoming count: got %d want 1", len(incoming))
	}

	if _, err := svc.ListByActor(ctx, 1, "poke", 10); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
}

func TestClampLimit(t *testing.T) {
	svc := NewService(&memoryStore{}, Config{}, nil)
	if got := svc.clampLimit(0); got != DefaultListLimit {
		t.Fatalf("unexpected default limit: got %d want %d", got, DefaultListLimit)
	}
	if got := svc.clampLimit(10_000); got != MaxListLimit {
		t.Fatalf("unexpected capped limit: got %d want %d", got, MaxListLimit)
	}
}
