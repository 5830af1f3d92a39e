package pipeline_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/closure"
	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/facts"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
	"github.com/couchcryptid/flood-risk-service/internal/projection"
	"github.com/couchcryptid/flood-risk-service/internal/schema"
)

var readingTime = time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)

type staticCatalog struct{ c *schema.Catalog }

func (s staticCatalog) Catalog() *schema.Catalog { return s.c }

func defaultCatalog(t *testing.T) staticCatalog {
	t.Helper()
	c, err := schema.LoadDefault()
	require.NoError(t, err)
	return staticCatalog{c}
}

func reading(ts time.Time, precip, discharge float64) domain.Reading {
	return domain.Reading{
		Timestamp:       ts,
		PrecipitationMM: domain.Float(precip),
		TemperatureC:    domain.Float(29.5),
		HumidityPct:     domain.Float(71),
		DischargeCumecs: domain.Float(discharge),
		Thresholds: domain.StationThresholds{
			HQ2: domain.Float(20), HQ5: domain.Float(40), HQ30: domain.Float(80),
		},
		Sources: domain.Sources{Meteo: "wigos", Hydro: "fanfar"},
	}
}

func newEvaluator(t *testing.T, src pipeline.CatalogSource, maxPasses int, clock clockwork.Clock) *pipeline.Evaluator {
	t.Helper()
	return pipeline.NewEvaluator(src, maxPasses, 0, clock, slog.Default(), observability.NewMetricsForTesting())
}

func TestIngest(t *testing.T) {
	s := facts.NewStore()
	ids := domain.NewSnapshotIDs(readingTime)

	n := pipeline.Ingest(s, ids, reading(readingTime, 40, 55))
	assert.Equal(t, 19, n)
	assert.Equal(t, 19, s.Len())
	assert.True(t, s.Contains(facts.NewFact(ids.HydroData, domain.PredWaterLevel, facts.Number(2.75))))
	assert.True(t, s.Contains(facts.NewFact(ids.HydroStation, domain.PredHQ30, facts.Number(80))))
	assert.True(t, s.Contains(facts.NewFact(ids.Analysis, domain.PredHasTime, facts.Timestamp(readingTime))))

	assert.Zero(t, pipeline.Ingest(s, ids, reading(readingTime, 40, 55)), "re-ingesting is a no-op")
}

func TestIngest_AbsentValues(t *testing.T) {
	s := facts.NewStore()
	ids := domain.NewSnapshotIDs(readingTime)

	n := pipeline.Ingest(s, ids, domain.Reading{Timestamp: readingTime})
	assert.Equal(t, 11, n)
	assert.False(t, facts.Exists(s, ids.HydroStation), "no thresholds, no station facts")
	_, ok := facts.First(s, ids.HydroData, domain.PredWaterLevel)
	assert.False(t, ok)
}

func TestEvaluator_EndToEnd(t *testing.T) {
	clock := clockwork.NewFakeClockAt(readingTime.Add(time.Minute))
	a, err := newEvaluator(t, defaultCatalog(t), 0, clock).Evaluate(context.Background(), reading(readingTime, 40, 55))
	require.NoError(t, err)

	assert.Equal(t, domain.RiskHigh, a.RiskLevel)
	assert.Equal(t, domain.AlertRaised, a.AlertStatus)
	assert.Equal(t, []int{1, 2, 3, 5}, a.ReasonRules())
	assert.Equal(t, readingTime, a.Timestamp)
	assert.Equal(t, clock.Now(), a.ProducedAt)
	assert.Equal(t, "Ouagadougou", a.City)
	assert.False(t, a.IncompleteEvidence)

	s := a.Facts()
	assert.True(t, s.Contains(facts.NewFact(domain.EntityCity, domain.PredRiskLevel, facts.Ref(domain.EntityHighRisk))))
	assert.True(t, s.Contains(facts.NewFact(domain.EntityCity, domain.PredWarningStatus, facts.Ref(domain.EntityAlert))))
	assert.True(t, facts.HasKind(s, a.IDs.MeteoData, "Measurement"), "closed after ingestion")
	assert.True(t, facts.HasKind(s, a.IDs.Analysis, schema.Root))

	assert.Positive(t, a.Closure.Derived)
	assert.Equal(t, s.Len(), a.Statistics.TotalTriples)
	assert.Equal(t, 20, a.Graph.IndividualTotal, "seeded individuals plus analysis and two measurements")
	assert.NotEmpty(t, a.Graph.Links)
}

func TestEvaluator_ClosedAfterConclusions(t *testing.T) {
	a, err := newEvaluator(t, defaultCatalog(t), 0, clockwork.NewFakeClock()).Evaluate(context.Background(), reading(readingTime, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLow, a.RiskLevel)

	s := a.Facts().(*facts.Store)
	st, err := closure.New(a.Catalog(), 0).Materialize(s)
	require.NoError(t, err)
	assert.Equal(t, closure.Stats{Passes: 1, Derived: 0}, st)
}

func TestEvaluator_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := newEvaluator(t, staticCatalog{}, 0, clockwork.NewFakeClock()).Evaluate(ctx, reading(readingTime, 1, 1))
	assert.ErrorIs(t, err, projection.ErrSchemaUnavailable)

	bad := reading(readingTime, -1, 1)
	_, err = newEvaluator(t, defaultCatalog(t), 0, clockwork.NewFakeClock()).Evaluate(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidReading)

	_, err = newEvaluator(t, defaultCatalog(t), 1, clockwork.NewFakeClock()).Evaluate(ctx, reading(readingTime, 1, 1))
	assert.ErrorIs(t, err, closure.ErrNonConvergence)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = newEvaluator(t, defaultCatalog(t), 0, clockwork.NewFakeClock()).Evaluate(cancelled, reading(readingTime, 1, 1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEvaluator_SnapshotsAreIndependent(t *testing.T) {
	e := newEvaluator(t, defaultCatalog(t), 0, clockwork.NewFakeClock())
	ctx := context.Background()

	high, err := e.Evaluate(ctx, reading(readingTime, 40, 55))
	require.NoError(t, err)
	low, err := e.Evaluate(ctx, reading(readingTime.Add(time.Hour), 0, 0))
	require.NoError(t, err)

	assert.NotEqual(t, high.AnalysisID, low.AnalysisID)
	assert.Equal(t, domain.RiskHigh, high.RiskLevel)
	assert.Equal(t, domain.RiskLow, low.RiskLevel)
	assert.False(t, high.Facts().Contains(facts.NewFact(domain.EntityCity, domain.PredRiskLevel, facts.Ref(domain.EntityLowRisk))))
	assert.False(t, facts.Exists(low.Facts(), high.AnalysisID))
}
