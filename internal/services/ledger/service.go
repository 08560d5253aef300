package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
)

const (
	DefaultRetention = 90 * 24 * time.Hour
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var (
	ErrValidation      = errors.New("validation error")
	ErrDependenciesNil = errors.New("ledger dependencies are not configured")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for field, reason := range e.Fields {
		parts = append(parts, field+" "+reason)
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type Store interface {
	Insert(ctx context.Context, item model.Interaction) error
	// InsertAndCheckMutual writes the record and reports whether the target
	// holds an unexpired like on the actor, in one round trip.
	InsertAndCheckMutual(ctx context.Context, item model.Interaction, at time.Time) (bool, error)
	ListByActor(ctx context.Context, actorID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error)
	ListByTarget(ctx context.Context, targetID int64, kind enums.InteractionType, limit int, at time.Time) ([]model.Interaction, error)
}

// FailureCounter is satisfied by the metrics collector.
type FailureCounter interface {
	LedgerWriteFailed(kind enums.InteractionType)
}

type RecordInput struct {
	ActorID        int64                 `validate:"required,gt=0"`
	TargetID       int64                 `validate:"required,gt=0,nefield=ActorID"`
	Type           enums.InteractionType `validate:"required,interaction_type"`
	ViewDurationMS int64                 `validate:"gte=0"`
	Metadata       map[string]any
}

type Config struct {
	Retention time.Duration
	ListLimit int
}

type Service struct {
	store    Store
	validate *validator.Validate
	cfg      Config
	logger   *zap.Logger
	failures FailureCounter
	now      func() time.Time
	newID    func() uuid.UUID
	pending  sync.WaitGroup
}

func NewService(store Store, cfg Config, logger *zap.Logger) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}
	if cfg.ListLimit > MaxListLimit {
		cfg.ListLimit = MaxListLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	v := validator.New()
	if err := v.RegisterValidation("interaction_type", func(fl validator.FieldLevel) bool {
		return enums.InteractionType(fl.Field().String()).Valid()
	}); err != nil {
		panic(fmt.Sprintf("register interaction_type validation: %v", err))
	}

	return &Service{
		store:    store,
		validate: v,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.New,
	}
}

func (s *Service) AttachFailureCounter(counter FailureCounter) {
	s.failures = counter
}

func (s *Service) Record(ctx context.Context, input RecordInput) (model.Interaction, error) {
	if s.store == nil {
		return model.Interaction{}, ErrDependenciesNil
	}
	item, err := s.build(input)
	if err != nil {
		return model.Interaction{}, err
	}
	if err := s.store.Insert(ctx, item); err != nil {
		s.countFailure(item.Type)
		return model.Interaction{}, fmt.Errorf("insert interaction: %w", err)
	}
	return item, nil
}

// RecordSwipe writes a swipe decision and reports whether it completed a
// mutual like.
func (s *Service) RecordSwipe(
	ctx context.Context,
	actorID, targetID int64,
	kind enums.InteractionType,
	viewDurationMS int64,
	metadata map[string]any,
) (bool, error) {
	if s.store == nil {
		return false, ErrDependenciesNil
	}
	item, err := s.build(RecordInput{
		ActorID:        actorID,
		TargetID:       targetID,
		Type:           kind,
		ViewDurationMS: viewDurationMS,
		Metadata:       metadata,
	})
	if err != nil {
		return false, err
	}

	matched, err := s.store.InsertAndCheckMutual(ctx, item, item.CreatedAt)
	if err != nil {
		s.countFailure(kind)
		return false, fmt.Errorf("record swipe: %w", err)
	}
	return matched && kind == enums.InteractionLike, nil
}

// RecordAsync validates input and returns; the insert runs in the background
// and outlives the request context. Insert failures only reach the log.
func (s *Service) RecordAsync(ctx context.Context, input RecordInput) error {
	if s.store == nil {
		return ErrDependenciesNil
	}
	item, err := s.build(input)
	if err != nil {
		return err
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		if err := s.store.Insert(writeCtx, item); err != nil {
			s.countFailure(item.Type)
			s.logger.Warn("async interaction write failed",
				zap.Error(err),
				zap.Int64("actor_id", item.ActorID),
				zap.Int64("target_id", item.TargetID),
				zap.String("type", string(item.Type)),
			)
		}
	}()
	return nil
}

func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) ListByActor(ctx context.Context, actorID int64, kind enums.InteractionType, limit int) ([]model.Interaction, error) {
	if actorID <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"actor_id": "must be positive"}}
	}
	if err := s.checkListType(kind); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrDependenciesNil
	}
	items, err := s.store.ListByActor(ctx, actorID, kind, s.clampLimit(limit), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list interactions by actor: %w", err)
	}
	return items, nil
}

func (s *Service) ListByTarget(ctx context.Context, targetID int64, kind enums.InteractionType, limit int) ([]model.Interaction, error) {
	if targetID <= 0 {
		return nil, &ValidationError{Fields: map[string]string{"target_id": "must be positive"}}
	}
	if err := s.checkListType(kind); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrDependenciesNil
	}
	items, err := s.store.ListByTarget(ctx, targetID, kind, s.clampLimit(limit), s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("list interactions by target: %w", err)
	}
	return items, nil
}

func (s *Service) build(input RecordInput) (model.Interaction, error) {
	if err := s.validate.Struct(input); err != nil {
		return model.Interaction{}, toValidationError(err)
	}

	now := s.now().UTC()
	metadata := input.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	return model.Interaction{
		ID:             s.newID(),
		ActorID:        input.ActorID,
		TargetID:       input.TargetID,
		Type:           input.Type,
		ViewDurationMS: input.ViewDurationMS,
		Metadata:       metadata,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.cfg.Retention),
	}, nil
}

// An empty type lists every kind.
func (s *Service) checkListType(kind enums.InteractionType) error {
	if kind == "" || kind.Valid() {
		return nil
	}
	return &ValidationError{Fields: map[string]string{"type": "is not a known interaction type"}}
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.ListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (s *Service) countFailure(kind enums.InteractionType) {
	if s.failures != nil {
		s.failures.LedgerWriteFailed(kind)
	}
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: map[string]string{"input": err.Error()}}
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fieldName(fe.Field())] = reasonFor(fe)
	}
	return &ValidationError{Fields: fields}
}

func fieldName(field string) string {
	switch field {
	case "ActorID":
		return "actor_id"
	case "TargetID":
		return "target_id"
	case "Type":
		return "type"
	case "ViewDurationMS":
		return "view_duration_ms"
	default:
		return strings.ToLower(field)
	}
}

func reasonFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be positive"
	case "gte":
		return "must not be negative"
	case "nefield":
		return "must differ from actor_id"
	case "interaction_type":
		return "is not a known interaction type"
	default:
		return "is invalid"
	}
}
