package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	"github.com/ivankudzin/fitmatch/internal/services/discovery"
	feedsvc "github.com/ivankudzin/fitmatch/internal/services/feed"
	"github.com/ivankudzin/fitmatch/internal/services/gesture"
	"github.com/ivankudzin/fitmatch/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/fitmatch/internal/transport/http/errors"
)

type DiscoveryHandler struct {
	registry *discovery.Registry
	validate *validator.Validate
	logger   *zap.Logger
}

func NewDiscoveryHandler(registry *discovery.Registry, logger *zap.Logger) *DiscoveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryHandler{
		registry: registry,
		validate: newValidator(),
		logger:   logger,
	}
}

func (h *DiscoveryHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.registry == nil {
		writeUnavailable(w, "DISCOVERY_UNAVAILABLE", "discovery is unavailable")
		return
	}

	var req dto.CreateSessionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}
	filters, ok := filtersFromRequest(req)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "unknown experience level")
		return
	}

	session, err := h.registry.Open(r.Context(), identity.UserID, filters)
	if err != nil {
		switch {
		case errors.Is(err, feedsvc.ErrViewerNotFound):
			writeNotFound(w, "PROFILE_NOT_FOUND", "complete your profile before discovering partners")
		default:
			h.writeError(w, err)
		}
		return
	}

	if err := session.LoadInitial(r.Context()); err != nil {
		if _, isNetwork := discovery.AsNetworkError(err); !isNetwork {
			h.writeError(w, err)
			return
		}
	}

	httperrors.Write(w, http.StatusCreated, sessionView(session))
}

func (h *DiscoveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	httperrors.Write(w, http.StatusOK, sessionView(session))
}

func (h *DiscoveryHandler) Gesture(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req dto.GestureRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}

	trajectory := make([]gesture.Point, 0, len(req.Points))
	for _, p := range req.Points {
		trajectory = append(trajectory, gesture.Point{X: p.X, Y: p.Y})
	}
	result := session.OnGesture(trajectory)

	httperrors.Write(w, http.StatusOK, dto.GestureResponse{
		Advisory:  string(result.Advisory),
		Direction: string(result.Outcome.Direction),
		Committed: result.Outcome.Committed,
		SnapBack:  result.Outcome.SnapBack,
		DX:        result.Outcome.DX,
		DY:        result.Outcome.DY,
	})
}

func (h *DiscoveryHandler) Commit(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req dto.CommitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidation(w, err)
		return
	}
	direction, ok := directionFromRequest(req)
	if !ok {
		writeBadRequest(w, "VALIDATION_ERROR", "exactly one of direction or button is required")
		return
	}

	result, err := session.Commit(r.Context(), direction)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := dto.CommitResponse{
		Recorded:       result.Recorded,
		Matched:        result.Matched,
		Persisted:      result.Persisted,
		Pending:        result.Pending,
		Direction:      string(result.Direction),
		CandidateID:    result.CandidateID,
		ViewDurationMS: result.ViewDuration.Milliseconds(),
		Session:        sessionView(session),
	}
	if result.Warning != nil {
		resp.Warning = "LEDGER_WRITE_FAILED"
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *DiscoveryHandler) Undo(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := session.Undo(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UndoResponse{
		Restored:    result.Restored,
		CandidateID: result.CandidateID,
		Direction:   string(result.Direction),
		Session:     sessionView(session),
	})
}

func (h *DiscoveryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.Refresh(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, sessionView(session))
}

func (h *DiscoveryHandler) LoadMore(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := session.LoadMore(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	httperrors.Write(w, http.StatusOK, sessionView(session))
}

func (h *DiscoveryHandler) Close(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.registry == nil {
		writeUnavailable(w, "DISCOVERY_UNAVAILABLE", "discovery is unavailable")
		return
	}

	if err := h.registry.Remove(chi.URLParam(r, "id"), identity.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscoveryHandler) session(w http.ResponseWriter, r *http.Request) (*discovery.Session, bool) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return nil, false
	}
	if h.registry == nil {
		writeUnavailable(w, "DISCOVERY_UNAVAILABLE", "discovery is unavailable")
		return nil, false
	}

	session, err := h.registry.Get(chi.URLParam(r, "id"), identity.UserID)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return session, true
}

func (h *DiscoveryHandler) writeError(w http.ResponseWriter, err error) {
	if funds, ok := discovery.AsInsufficientFunds(err); ok {
		code := "INSUFFICIENT_FUNDS_SUPERLIKE"
		message := "not enough balance for a superlike"
		if funds.Feature == discovery.FeatureRekindle {
			code = "INSUFFICIENT_FUNDS_REKINDLE"
			message = "not enough balance to rekindle"
		}
		httperrors.Write(w, http.StatusPaymentRequired, httperrors.FundsError{
			Code:     code,
			Message:  message,
			Feature:  string(funds.Feature),
			Required: funds.Required,
			Balance:  funds.Balance,
		})
		return
	}
	if tf, ok := discovery.IsTooFast(err); ok {
		httperrors.Write(w, http.StatusTooManyRequests, httperrors.RateLimitError{
			Code:          "TOO_FAST",
			Message:       "too many likes, slow down",
			RetryAfterSec: tf.RetryAfter(),
		})
		return
	}
	if discovery.IsConcurrentCommit(err) {
		writeConflict(w, "CONCURRENT_COMMIT", "a decision for this card is already in progress")
		return
	}
	if netErr, ok := discovery.AsNetworkError(err); ok {
		h.logger.Warn("discovery fetch failed", zap.String("kind", string(netErr.Kind)), zap.Error(netErr.Err))
		httperrors.Write(w, http.StatusBadGateway, httperrors.APIError{
			Code:    "FEED_NETWORK_ERROR",
			Message: discovery.EmptyNetwork.RecoveryAction(),
		})
		return
	}

	switch {
	case errors.Is(err, discovery.ErrSessionNotFound):
		writeNotFound(w, "SESSION_NOT_FOUND", "discovery session not found")
	case errors.Is(err, discovery.ErrSessionClosed):
		httperrors.Write(w, http.StatusGone, httperrors.APIError{Code: "SESSION_CLOSED", Message: "discovery session is closed"})
	case errors.Is(err, discovery.ErrNothingToUndo):
		writeConflict(w, "NOTHING_TO_UNDO", "there is no decision to undo")
	case errors.Is(err, discovery.ErrNoActiveCandidate):
		writeConflict(w, "NO_ACTIVE_CANDIDATE", "there is no card to decide on")
	case errors.Is(err, discovery.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid discovery request")
	case errors.Is(err, discovery.ErrDependenciesNil), errors.Is(err, discovery.ErrRegistryClosed):
		writeUnavailable(w, "DISCOVERY_UNAVAILABLE", "discovery is unavailable")
	default:
		h.logger.Error("discovery request failed", zap.Error(err))
		writeInternal(w, "INTERNAL_ERROR", "failed to process discovery request")
	}
}

func filtersFromRequest(req dto.CreateSessionRequest) (model.DiscoveryFilters, bool) {
	filters := model.DiscoveryFilters{
		MaxDistanceMiles: req.MaxDistanceMiles,
		AgeMin:           req.AgeMin,
		AgeMax:           req.AgeMax,
	}
	for _, workout := range req.WorkoutTypes {
		if value := strings.TrimSpace(workout); value != "" {
			filters.WorkoutTypes = append(filters.WorkoutTypes, value)
		}
	}
	for _, raw := range req.ExperienceLevels {
		level, ok := enums.ParseExperienceLevel(raw)
		if !ok {
			return model.DiscoveryFilters{}, false
		}
		filters.ExperienceLevels = append(filters.ExperienceLevels, level)
	}
	return filters, true
}

func directionFromRequest(req dto.CommitRequest) (enums.SwipeDirection, bool) {
	hasDirection := strings.TrimSpace(req.Direction) != ""
	hasButton := strings.TrimSpace(req.Button) != ""
	switch {
	case hasDirection && !hasButton:
		direction := enums.SwipeDirection(req.Direction)
		return direction, direction.Decision()
	case hasButton && !hasDirection:
		return gesture.FromButton(gesture.Button(req.Button))
	default:
		return enums.SwipeNone, false
	}
}

func sessionView(session *discovery.Session) dto.SessionResponse {
	snap := session.Snapshot()
	view := dto.SessionResponse{
		ID:             snap.ID,
		State:          string(snap.State),
		Cursor:         snap.Cursor,
		QueueLength:    snap.QueueLength,
		HasMore:        snap.HasMore,
		CanUndo:        snap.CanUndo,
		CommitInFlight: snap.CommitInFlight,
		EmptyReason:    string(snap.EmptyReason),
		RecoveryAction: snap.EmptyReason.RecoveryAction(),
	}
	if snap.EmptyReason == discovery.EmptyNetwork {
		view.Error = "FEED_NETWORK_ERROR"
	}

	if candidate, ok := session.ActiveCandidate(); ok {
		card := candidateView(candidate)
		if breakdown, ok := session.ActiveBreakdown(); ok {
			card.Compatibility = compatibilityView(breakdown)
		}
		view.Candidate = &card
	}
	return view
}

func candidateView(p model.Profile) dto.CandidateResponse {
	card := dto.CandidateResponse{
		UserID:       p.UserID,
		DisplayName:  p.DisplayName,
		Age:          p.Age,
		Bio:          p.Bio,
		Images:       p.Images,
		WorkoutTypes: p.WorkoutTypes,
		LastActive:   p.LastActive,
	}
	if card.Images == nil {
		card.Images = []string{}
	}
	if card.WorkoutTypes == nil {
		card.WorkoutTypes = []string{}
	}
	if p.ExperienceLevel != nil {
		card.ExperienceLevel = string(*p.ExperienceLevel)
	}
	if p.PreferredTime != nil {
		card.PreferredTime = string(*p.PreferredTime)
	}
	if p.Location != nil {
		card.DistanceMiles = p.Location.DistanceMiles
	}
	return card
}

func compatibilityView(b model.CompatibilityBreakdown) *dto.CompatibilityView {
	dimension := func(d model.DimensionScore) dto.DimensionDTO {
		return dto.DimensionDTO{Score: d.Score, Label: string(d.Label)}
	}
	return &dto.CompatibilityView{
		OverallScore:       b.OverallScore,
		OverallLabel:       string(b.OverallLabel),
		CommonWorkoutCount: b.CommonWorkoutCount,
		Dimensions: map[string]dto.DimensionDTO{
			"workout":    dimension(b.Workout),
			"experience": dimension(b.Experience),
			"schedule":   dimension(b.Schedule),
			"location":   dimension(b.Location),
		},
	}
}
