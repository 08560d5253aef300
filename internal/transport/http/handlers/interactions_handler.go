package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ivankudzin/fitmatch/internal/domain/enums"
	"github.com/ivankudzin/fitmatch/internal/domain/model"
	"github.com/ivankudzin/fitmatch/internal/services/ledger"
	"github.com/ivankudzin/fitmatch/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/fitmatch/internal/transport/http/errors"
)

type InteractionsHandler struct {
	service *ledger.Service
}

func NewInteractionsHandler(service *ledger.Service) *InteractionsHandler {
	return &InteractionsHandler{service: service}
}

// List returns the caller's own decisions (role=actor, default) or the
// decisions others made about the caller (role=target).
func (h *InteractionsHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeUnavailable(w, "LEDGER_UNAVAILABLE", "interaction ledger is unavailable")
		return
	}

	query := r.URL.Query()
	kind := enums.InteractionType(strings.ToLower(strings.TrimSpace(query.Get("type"))))
	limit := parseIntOrDefault(query.Get("limit"), 0)

	var (
		items []model.Interaction
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(query.Get("role"))) {
	case "", "actor":
		items, err = h.service.ListByActor(r.Context(), identity.UserID, kind, limit)
	case "target":
		items, err = h.service.ListByTarget(r.Context(), identity.UserID, kind, limit)
	default:
		writeBadRequest(w, "VALIDATION_ERROR", "role must be actor or target")
		return
	}
	if err != nil {
		var verr *ledger.ValidationError
		switch {
		case errors.As(err, &verr):
			httperrors.Write(w, http.StatusBadRequest, httperrors.ValidationError{
				Code:    "VALIDATION_ERROR",
				Message: "invalid interaction query",
				Fields:  verr.Fields,
			})
		case errors.Is(err, ledger.ErrValidation):
			writeBadRequest(w, "VALIDATION_ERROR", "invalid interaction query")
		default:
			writeInternal(w, "INTERNAL_ERROR", "failed to list interactions")
		}
		return
	}

	resp := dto.InteractionsResponse{Items: make([]dto.InteractionResponse, 0, len(items))}
	for _, item := range items {
		resp.Items = append(resp.Items, dto.InteractionResponse{
			ID:             item.ID.String(),
			ActorID:        item.ActorID,
			TargetID:       item.TargetID,
			Type:           string(item.Type),
			ViewDurationMS: item.ViewDurationMS,
			Metadata:       item.Metadata,
			CreatedAt:      item.CreatedAt,
			ExpiresAt:      item.ExpiresAt,
		})
	}
	httperrors.Write(w, http.StatusOK, resp)
}

// RecordView logs that the caller looked at a profile. The write is queued and
// the request returns 202 once the input is valid.
func (h *InteractionsHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeUnavailable(w, "LEDGER_UNAVAILABLE", "interaction ledger is unavailable")
		return
	}

	var req dto.RecordViewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	err := h.service.RecordAsync(r.Context(), ledger.RecordInput{
		ActorID:        identity.UserID,
		TargetID:       req.TargetID,
		Type:           enums.InteractionView,
		ViewDurationMS: req.ViewDurationMS,
	})
	if err != nil {
		var verr *ledger.ValidationError
		if errors.As(err, &verr) {
			httperrors.Write(w, http.StatusBadRequest, httperrors.ValidationError{
				Code:    "VALIDATION_ERROR",
				Message: "invalid view",
				Fields:  verr.Fields,
			})
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to record view")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
