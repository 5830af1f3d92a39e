package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// Registry holds the process-wide catalog. Readers get whichever catalog was
// current when they asked; a reload swaps the whole catalog at once.
type Registry struct {
	current    atomic.Pointer[schema.Catalog]
	mu         sync.Mutex
	schemaPath string
	rulesPath  string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewRegistry loads the initial catalog. Empty paths select the embedded
// definitions. A load error here is fatal for the caller.
func NewRegistry(schemaPath, rulesPath string, logger *slog.Logger, metrics *observability.Metrics) (*Registry, error) {
	r := &Registry{schemaPath: schemaPath, rulesPath: rulesPath, logger: logger, metrics: metrics}
	c, err := schema.Load(schemaPath, rulesPath)
	if err != nil {
		return nil, err
	}
	r.current.Store(c)
	logger.Info("schema loaded",
		"source", c.Source(),
		"kinds", len(c.Kinds()),
		"predicates", len(c.Predicates()),
		"rules", len(c.Rules()),
	)
	return r, nil
}

// Catalog returns the current catalog.
func (r *Registry) Catalog() *schema.Catalog {
	return r.current.Load()
}

// Reload rebuilds the catalog from the configured paths. On error the
// previous catalog stays current.
func (r *Registry) Reload() (*schema.Catalog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := schema.Load(r.schemaPath, r.rulesPath)
	if err != nil {
		r.metrics.SchemaReloads.WithLabelValues("error").Inc()
		r.logger.Error("schema reload failed, keeping previous catalog", "error", err)
		return r.current.Load(), err
	}
	r.current.Store(c)
	r.metrics.SchemaReloads.WithLabelValues("success").Inc()
	r.logger.Info("schema reloaded", "source", c.Source(), "rules", len(c.Rules()))
	return c, nil
}

// Paths returns the definition files the registry reloads from. Empty means
// embedded.
func (r *Registry) Paths() (schemaPath, rulesPath string) {
	return r.schemaPath, r.rulesPath
}
