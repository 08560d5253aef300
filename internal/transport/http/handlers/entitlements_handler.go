package handlers

import (
	"errors"
	"net/http"

	entsvc "github.com/ivankudzin/fitmatch/internal/services/entitlements"
	"github.com/ivankudzin/fitmatch/internal/transport/http/dto"
	httperrors "github.com/ivankudzin/fitmatch/internal/transport/http/errors"
)

type EntitlementsHandler struct {
	service *entsvc.Service
}

func NewEntitlementsHandler(service *entsvc.Service) *EntitlementsHandler {
	return &EntitlementsHandler{service: service}
}

func (h *EntitlementsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeUnavailable(w, "ENTITLEMENTS_UNAVAILABLE", "entitlements are unavailable")
		return
	}

	snap, err := h.service.Get(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, entsvc.ErrValidation) {
			writeBadRequest(w, "VALIDATION_ERROR", "invalid user")
			return
		}
		writeInternal(w, "INTERNAL_ERROR", "failed to load entitlements")
		return
	}

	httperrors.Write(w, http.StatusOK, dto.EntitlementsResponse{
		Premium:      snap.Premium,
		PremiumUntil: snap.PremiumUntil,
		Balance:      snap.Balance,
	})
}
