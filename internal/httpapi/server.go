// Package httpapi exposes the farm service over a JSON HTTP API.
package httpapi

import (
	"foodflow/internal/auth"
	"foodflow/internal/core"
	"foodflow/internal/exports"
	"foodflow/internal/live"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Options wires the collaborators served by the router. Hub, Exports and
// Gatherer are optional; their routes answer 404 when unset.
type Options struct {
	Service  *core.Service
	Tokens   *auth.TokenIssuer
	Hub      *live.Hub
	Exports  *exports.Worker
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

type server struct {
	svc     *core.Service
	tokens  *auth.TokenIssuer
	hub     *live.Hub
	exports *exports.Worker
	logger  *zap.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &server{
		svc:     opts.Service,
		tokens:  opts.Tokens,
		hub:     opts.Hub,
		exports: opts.Exports,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/regions", s.handleRegions)
		r.Post("/demo/advisory", s.handleDemoAdvisory)
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Get("/session", s.handleSession)
			r.Get("/profile", s.handleProfile)
			r.Patch("/profile", s.handleUpdateProfile)
			r.Get("/workspace", s.handleWorkspace)

			r.Get("/parcels", s.handleListParcels)
			r.Post("/parcels", s.handleCreateParcel)
			r.Patch("/parcels/{id}", s.handleUpdateParcel)
			r.Delete("/parcels/{id}", s.handleDeleteParcel)

			r.Get("/cycles", s.handleListCycles)
			r.Post("/cycles", s.handleCreateCycle)
			r.Patch("/cycles/{id}", s.handleUpdateCycle)
			r.Put("/cycles/{id}/stage", s.handleUpdateStage)
			r.Delete("/cycles/{id}", s.handleDeleteCycle)

			r.Get("/advisories", s.handleListAdvisories)
			r.Post("/advisories/{id}/complete", s.handleCompleteAdvisory)
			r.Delete("/advisories/{id}", s.handleDeleteAdvisory)

			r.Get("/operations", s.handleOperations)
			r.Post("/operations/sync", s.handleSync)
			r.Post("/operations/{cycleID}/consult", s.handleConsult)
			r.Get("/stats", s.handleStats)
			r.Get("/records", s.handleRecords)

			r.Post("/exports", s.handleCreateExport)
			r.Get("/exports/{id}", s.handleGetExport)
			r.Get("/exports/{id}/artifacts/{format}", s.handleExportArtifact)

			r.Get("/events", s.handleEvents)
		})
	})
	return r
}
