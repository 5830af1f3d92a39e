package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/flood-risk-service/internal/classify"
	"github.com/couchcryptid/flood-risk-service/internal/closure"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/projection"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

// CatalogSource supplies the catalog an evaluation runs against.
type CatalogSource interface {
	Catalog() *schema.Catalog
}

// Assessment is the published outcome of one cycle. Its store is closed and
// never mutated after Evaluate returns, so any number of readers may query it.
type Assessment struct {
	classify.Result
	ProducedAt time.Time             `json:"produced_at"`
	Reading    domain.Reading        `json:"reading"`
	Closure    closure.Stats         `json:"closure"`
	Statistics projection.Statistics `json:"statistics"`
	Graph      projection.Graph      `json:"-"`
	IDs        domain.SnapshotIDs    `json:"-"`

	store   *facts.Store
	catalog *schema.Catalog
}

// Facts returns the snapshot's closed store.
func (a *Assessment) Facts() facts.Reader { return a.store }

// Catalog returns the catalog the assessment was evaluated against.
func (a *Assessment) Catalog() *schema.Catalog { return a.catalog }

// newer reports whether a supersedes b.
func (a *Assessment) newer(b *Assessment) bool {
	if b == nil {
		return true
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ProducedAt.After(b.ProducedAt)
}

// Evaluator runs one cycle: seed, ingest, close, classify, assert the
// conclusions, close again, then project.
type Evaluator struct {
	catalogs       CatalogSource
	maxPasses      int
	maxIndividuals int
	clock          clockwork.Clock
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// NewEvaluator creates an Evaluator. maxPasses of zero derives the closure
// ceiling from the catalog; maxIndividuals of zero uses the projection default.
func NewEvaluator(catalogs CatalogSource, maxPasses, maxIndividuals int, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Evaluator {
	return &Evaluator{
		catalogs:       catalogs,
		maxPasses:      maxPasses,
		maxIndividuals: maxIndividuals,
		clock:          clock,
		logger:         logger,
		metrics:        metrics,
	}
}

// Evaluate builds a private store for r and classifies it.
func (e *Evaluator) Evaluate(ctx context.Context, r domain.Reading) (*Assessment, error) {
	start := e.clock.Now()
	a, err := e.evaluate(ctx, r)
	if err != nil {
		e.metrics.Evaluations.WithLabelValues("error").Inc()
		return nil, err
	}
	e.metrics.Evaluations.WithLabelValues("success").Inc()
	e.metrics.EvaluationDuration.Observe(e.clock.Since(start).Seconds())
	return a, nil
}

func (e *Evaluator) evaluate(ctx context.Context, r domain.Reading) (*Assessment, error) {
	cat := e.catalogs.Catalog()
	if cat == nil {
		return nil, projection.ErrSchemaUnavailable
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	s := facts.NewStore()
	seeded := cat.Seed(s)
	ids := domain.NewSnapshotIDs(r.Timestamp)
	ingested := Ingest(s, ids, r)

	eng := closure.New(cat, e.maxPasses)
	first, err := e.close(eng, s)
	if err != nil {
		return nil, err
	}

	res := classify.Classify(s, ids)
	assertConclusions(s, ids.City, res.RiskLevel, res.AlertStatus)

	second, err := e.close(eng, s)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := &Assessment{
		Result:     res,
		ProducedAt: e.clock.Now().UTC(),
		Reading:    r,
		Closure:    closure.Stats{Passes: first.Passes + second.Passes, Derived: first.Derived + second.Derived},
		IDs:        ids,
		store:      s,
		catalog:    cat,
	}

	var g errgroup.Group
	g.Go(func() error {
		graph, err := projection.Project(cat, s, e.maxIndividuals)
		a.Graph = graph
		return err
	})
	g.Go(func() error {
		st, err := projection.Stats(cat, s)
		a.Statistics = st
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("project snapshot: %w", err)
	}

	e.metrics.SnapshotFacts.Set(float64(s.Len()))
	e.logger.Debug("snapshot evaluated",
		"analysis_id", ids.Analysis,
		"seeded", seeded,
		"ingested", ingested,
		"derived", a.Closure.Derived,
		"risk_level", res.RiskLevel,
		"alert_status", res.AlertStatus,
	)
	return a, nil
}

func (e *Evaluator) close(eng *closure.Engine, s *facts.Store) (closure.Stats, error) {
	st, err := eng.Materialize(s)
	if err != nil {
		if errors.Is(err, closure.ErrNonConvergence) {
			e.metrics.NonConvergence.Inc()
		}
		return st, fmt.Errorf("materialize: %w", err)
	}
	e.metrics.ClosurePasses.Observe(float64(st.Passes))
	e.metrics.DerivedFacts.Observe(float64(st.Derived))
	return st, nil
}

// Baseline returns the catalog's individuals seeded into a fresh store and
// closed. It is what the ontology endpoints read before any cycle has
// published against the current catalog.
func Baseline(cat *schema.Catalog, maxPasses int) (*facts.Store, error) {
	if cat == nil {
		return nil, projection.ErrSchemaUnavailable
	}
	s := facts.NewStore()
	cat.Seed(s)
	if _, err := closure.New(cat, maxPasses).Materialize(s); err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}
	return s, nil
}
