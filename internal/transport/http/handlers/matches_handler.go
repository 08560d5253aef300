package handlers

import (
	"net/http"

	"github.com/ivankudzin/fitmatch/internal/services/notify"
)

type MatchesHandler struct {
	hub *notify.Hub
}

func NewMatchesHandler(hub *notify.Hub) *MatchesHandler {
	return &MatchesHandler{hub: hub}
}

// Stream upgrades to a websocket that receives the caller's match events.
func (h *MatchesHandler) Stream(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		writeUnavailable(w, "MATCH_STREAM_UNAVAILABLE", "match stream is unavailable")
		return
	}
	h.hub.ServeWS(w, r, identity.UserID)
}
