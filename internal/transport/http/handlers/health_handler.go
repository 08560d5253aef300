package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/ivankudzin/fitmatch/internal/transport/http/errors"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck reports whether one backing dependency answers.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Get answers 200 while every dependency responds and 503 otherwise. The body
// lists each dependency as "ok" or "down".
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if check == nil {
			continue
		}
		if err := check(ctx); err != nil {
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	httperrors.Write(w, status, struct {
		OK           bool              `json:"ok"`
		Dependencies map[string]string `json:"dependencies"`
	}{
		OK:           status == http.StatusOK,
		Dependencies: deps,
	})
}
