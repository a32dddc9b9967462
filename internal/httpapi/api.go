// Package httpapi implements the REST API that serves flag evaluations.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/heimdall-evaluator/internal/ruleengine"
)

// Defaults applied when Config leaves a limit unset.
const (
	DefaultMaxBatchSize = 200
	DefaultMaxBodyBytes = 1 << 20
)

// Evaluator is the evaluation surface the API depends on.
// *client.Client satisfies it.
type Evaluator interface {
	Ready() bool
	Treatment(ctx context.Context, key ruleengine.Key, flag string, attrs ruleengine.Attributes) (ruleengine.Result, error)
	Treatments(ctx context.Context, key ruleengine.Key, flags []string, attrs ruleengine.Attributes) (map[string]ruleengine.Result, error)
	TreatmentsByFlagSet(ctx context.Context, key ruleengine.Key, set string, attrs ruleengine.Attributes) (map[string]ruleengine.Result, error)
	FlagNames() (names []string, version string, ok bool)
}

// Config tunes the API.
type Config struct {
	// APIKeyHashes are the SHA-256 hex digests of every accepted X-API-Key.
	APIKeyHashes []string

	// SkipAuth disables authentication (test/dev environments only).
	SkipAuth bool

	// MaxBatchSize caps the number of flags in one batch request.
	MaxBatchSize int

	// MaxBodyBytes caps the request body size.
	MaxBodyBytes int64
}

// API holds dependencies and the router for the evaluation endpoints.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	logger    *slog.Logger
	evaluator Evaluator
	config    Config
}

// NewAPI creates a new API instance.
//
// Panics if:
//   - evaluator is nil
//   - cfg.APIKeyHashes is empty when cfg.SkipAuth is false
//   - any hash is not a hex-encoded SHA-256 digest
func NewAPI(logger *slog.Logger, evaluator Evaluator, cfg Config) *API {
	if evaluator == nil {
		panic("httpapi: evaluator cannot be nil")
	}
	if !cfg.SkipAuth && len(cfg.APIKeyHashes) == 0 {
		panic("httpapi: at least one API key hash is required when authentication is enabled")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	api := &API{
		Router:    chi.NewRouter(),
		logger:    logger,
		evaluator: evaluator,
		config:    cfg,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	// 1. Global Middleware Stack
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger(a.logger))
	a.Router.Use(Metrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	// 2. Public Routes
	a.Router.Get("/health", a.handleHealthCheck)

	// 3. Protected API V1 Routes
	a.Router.Route("/api/v1", func(r chi.Router) {
		if !a.config.SkipAuth {
			r.Use(APIKeyAuth(a.config.APIKeyHashes...))
		}
		r.Use(a.requireReady)

		r.Route("/evaluate", func(r chi.Router) {
			r.Post("/", a.handleEvaluate)
			r.Post("/batch", a.handleEvaluateBatch)
			r.Post("/sets/{set}", a.handleEvaluateSet)
		})
		r.Get("/flags", a.handleListFlags)
	})
}

// handleHealthCheck reports that the HTTP server is serving.
// Snapshot readiness is reported by the observability server.
func (a *API) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// requireReady rejects requests with 503 until the first snapshot is loaded.
func (a *API) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.evaluator.Ready() {
			w.Header().Set("Retry-After", "1")
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, ErrorResponse{
				Code:    codeNotReady,
				Message: "Flag definitions have not been loaded yet",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
