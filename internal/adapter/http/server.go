// Package http serves the flood prediction and ontology explorer API next to
// the health, readiness and metrics endpoints.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/explain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// Assessor serves published assessments. *pipeline.Scheduler implements it.
type Assessor interface {
	sharedobs.ReadinessChecker
	Latest(ctx context.Context) (*pipeline.Assessment, error)
	Current() *pipeline.Assessment
}

// Catalogs is the schema registry as seen by the API.
type Catalogs interface {
	Catalog() *schema.Catalog
	Reload() (*schema.Catalog, error)
}

// Options tune the ontology endpoints. A nil history source answers its
// endpoint with 503.
type Options struct {
	MaxPasses      int
	MaxIndividuals int
	ZoneKind       string
	MeteoHistory   domain.MeteoHistorySource
	HydroHistory   domain.HydroHistorySource
}

// Server exposes the API plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer  *http.Server
	assessments Assessor
	catalogs    Catalogs
	explainer   *explain.Explainer
	opts        Options
	logger      *slog.Logger
}

// NewServer wires every route onto a new mux.
func NewServer(addr string, assessments Assessor, catalogs Catalogs, opts Options, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		assessments: assessments,
		catalogs:    catalogs,
		explainer:   explain.New(facts.EntityID(opts.ZoneKind)),
		opts:        opts,
		logger:      logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(assessments))
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/prediction/flood", s.handlePrediction)
	api.HandleFunc("GET /api/v1/readings/current", s.handleCurrentReading)
	api.HandleFunc("GET /api/v1/meteo/history", s.handleMeteoHistory)
	api.HandleFunc("GET /api/v1/hydro/history", s.handleHydroHistory)
	api.HandleFunc("GET /api/ontology/description", s.handleDescription)
	api.HandleFunc("GET /api/ontology/statistics", s.handleStatistics)
	api.HandleFunc("GET /api/ontology/classes", s.handleClasses)
	api.HandleFunc("GET /api/ontology/object-properties", s.handleObjectProperties)
	api.HandleFunc("GET /api/ontology/data-properties", s.handleDataProperties)
	api.HandleFunc("GET /api/ontology/individuals", s.handleIndividuals)
	api.HandleFunc("GET /api/ontology/visualization", s.handleVisualization)
	api.HandleFunc("GET /api/ontology/rules", s.handleRules)
	api.HandleFunc("GET /api/ontology/inference-explanation", s.handleExplanation)
	api.HandleFunc("GET /api/ontology/inferred", s.handleInferred)
	api.HandleFunc("POST /api/ontology/reload", s.handleReload)
	mux.Handle("/api/", withCORS(api))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// withCORS allows any origin on the API routes and answers preflights.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
