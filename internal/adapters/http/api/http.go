// Package api exposes the star rating service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/okian/starsim/internal/adapters/repository"
	service "github.com/okian/starsim/internal/app"
	"github.com/okian/starsim/internal/domain/aggregation"
	"github.com/okian/starsim/internal/domain/correlation"
	"github.com/okian/starsim/internal/domain/cutpoint"
	"github.com/okian/starsim/internal/domain/measure"
	"github.com/okian/starsim/internal/domain/simulation"
	"github.com/okian/starsim/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider

	// Explorer and star computation.
	Contracts(ctx context.Context, f measure.Filter) ([]measure.Contract, error)
	Measures(ctx context.Context, contractID string, year int) (service.ContractMeasures, error)
	ComputeStar(ctx context.Context, contractID string, year int, t aggregation.StarType, overrides []simulation.Override) (aggregation.Result, error)
	Recommendations(ctx context.Context, contractID string, year, limit int) ([]cutpoint.Enriched, error)
	Trend(ctx context.Context, measureName string, isPDP bool) ([]cutpoint.StarTrend, error)
	MeasureTrend(ctx context.Context, contractID string, year int, measureName string) (service.MeasureTrend, error)
	BatchStars(ctx context.Context, year int) ([]service.BatchResult, error)

	// What-if sessions.
	CreateSession(ctx context.Context) (string, error)
	DropSession(ctx context.Context, id string) error
	SetOverride(ctx context.Context, id, measureName string, star int) error
	ClearOverrides(ctx context.Context, id string) error
	Overrides(ctx context.Context, id string) ([]simulation.Override, error)
	Simulate(ctx context.Context, sessionID, contractID string, year int) ([]aggregation.Comparison, error)

	// Correlation analysis.
	Correlate(ctx context.Context, x, y []*float64) (correlation.Result, error)
	CorrelateAll(ctx context.Context, target []*float64, predictors map[string][]*float64) []correlation.Report
	MeasureCorrelations(ctx context.Context, year int, measureName string, predictors map[string]map[string]float64) ([]correlation.Report, error)

	// Data administration.
	LoadSnapshot(ctx context.Context, snap repository.Snapshot) (repository.Counts, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps Dependencies
	log  logger.Logger

	healthHandler *HealthHandler
	statsHandler  *StatsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, log logger.Logger) *Server {
	return &Server{
		deps:          deps,
		log:           log.Named("http"),
		healthHandler: NewHealthHandler(),
		statsHandler:  NewStatsHandler(deps),
	}
}

// Router returns a chi router with middleware and every route attached.
// allowedOrigins configures CORS; an empty list disables cross-origin access.
func (s *Server) Router(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Get("/contracts", s.handleListContracts)
	r.Route("/contracts/{contractID}/{year}", func(r chi.Router) {
		r.Get("/measures", s.handleMeasures)
		r.Post("/stars", s.handleComputeStar)
		r.Get("/recommendations", s.handleRecommendations)
		r.Get("/measures/{measure}/trend", s.handleMeasureTrend)
	})
	r.Get("/cutpoints/{measure}/trend", s.handleTrend)

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleDropSession)
			r.Get("/overrides", s.handleListOverrides)
			r.Put("/overrides", s.handleSetOverride)
			r.Delete("/overrides", s.handleClearOverrides)
			r.Get("/simulate/{contractID}/{year}", s.handleSimulate)
		})
	})

	r.Post("/correlations", s.handleCorrelations)
	r.Post("/batch/stars", s.handleBatchStars)
	r.Post("/admin/snapshots", s.handleLoadSnapshot)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail translates a service error into its HTTP status and error code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.String("requestId", middleware.GetReqID(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}

// maxBodyBytes bounds request bodies; snapshots are the largest payload.
const maxBodyBytes = 64 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	return nil
}

// contractYear reads the {contractID} and {year} path parameters.
func contractYear(r *http.Request) (string, int, error) {
	id := chi.URLParam(r, "contractID")
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if id == "" || err != nil {
		return "", 0, fmt.Errorf("%w: contract and numeric year required", ErrBadRequest)
	}
	return id, year, nil
}

// measureParam reads the {measure} path parameter. Chi matches on the raw
// path when the request carries one, so the value may still be escaped.
func measureParam(r *http.Request) (string, error) {
	name, err := url.PathUnescape(chi.URLParam(r, "measure"))
	if err != nil {
		return "", fmt.Errorf("%w: malformed measure: %v", ErrBadRequest, err)
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: measure required", ErrBadRequest)
	}
	return name, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrBadRequest, key)
	}
	return v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, key string) (bool, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrBadRequest, key)
	}
	return v, nil
}
