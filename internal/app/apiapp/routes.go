package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/fitmatch/internal/infra/metrics"
	authsvc "github.com/ivankudzin/fitmatch/internal/services/auth"
	"github.com/ivankudzin/fitmatch/internal/services/discovery"
	entsvc "github.com/ivankudzin/fitmatch/internal/services/entitlements"
	"github.com/ivankudzin/fitmatch/internal/services/ledger"
	"github.com/ivankudzin/fitmatch/internal/services/notify"
	httperrors "github.com/ivankudzin/fitmatch/internal/transport/http/errors"
	"github.com/ivankudzin/fitmatch/internal/transport/http/handlers"
)

type Dependencies struct {
	JWTManager         *authsvc.JWTManager
	Registry           *discovery.Registry
	LedgerService      *ledger.Service
	EntitlementService *entsvc.Service
	Hub                *notify.Hub
	Metrics            *metrics.Collector
	HealthChecks       map[string]handlers.HealthCheck
	Logger             *zap.Logger
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	discoveryHandler := handlers.NewDiscoveryHandler(deps.Registry, deps.Logger)
	interactionsHandler := handlers.NewInteractionsHandler(deps.LedgerService)
	matchesHandler := handlers.NewMatchesHandler(deps.Hub)
	entitlementsHandler := handlers.NewEntitlementsHandler(deps.EntitlementService)

	r.Get("/health", healthHandler.Get)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(deps.JWTManager, deps.Logger))

		r.Route("/discovery/sessions", func(r chi.Router) {
			r.Post("/", discoveryHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", discoveryHandler.Get)
				r.Delete("/", discoveryHandler.Close)
				r.Post("/gesture", discoveryHandler.Gesture)
				r.Post("/commit", discoveryHandler.Commit)
				r.Post("/undo", discoveryHandler.Undo)
				r.Post("/refresh", discoveryHandler.Refresh)
				r.Post("/load-more", discoveryHandler.LoadMore)
			})
		})

		r.Get("/interactions", interactionsHandler.List)
		r.Post("/interactions/views", interactionsHandler.RecordView)
		r.Get("/matches/ws", matchesHandler.Stream)
		r.Get("/entitlements", entitlementsHandler.Handle)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.Write(w, http.StatusNotFound, httperrors.APIError{
			Code:    "NOT_FOUND",
			Message: "route not found",
		})
	})
}
