package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flood_risk"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	// Evaluation cycle metrics.
	Evaluations        *prometheus.CounterVec // labels: outcome={success,error}
	EvaluationDuration prometheus.Histogram
	ClosurePasses      prometheus.Histogram
	DerivedFacts       prometheus.Histogram
	NonConvergence     prometheus.Counter
	SnapshotFacts      prometheus.Gauge
	RiskLevel          prometheus.Gauge // 0 low, 1 moderate, 2 high
	AlertRaised        prometheus.Gauge
	SchedulerRunning   prometheus.Gauge

	// Acquisition metrics.
	SourceRequests *prometheus.CounterVec   // labels: source={wigos,open-meteo,fanfar}, outcome={success,error,empty}
	SourceCache    *prometheus.CounterVec   // labels: source, result={hit,miss}
	SourceDuration *prometheus.HistogramVec // labels: source
	MeteoFallbacks prometheus.Counter

	SchemaReloads        *prometheus.CounterVec // labels: outcome={success,error}
	AssessmentsPublished *prometheus.CounterVec // labels: sink={cache,kafka}, outcome={success,error,stale}
}

func newMetrics() *Metrics {
	return &Metrics{
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluation cycles by outcome.",
		}, []string{"outcome"}),
		EvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of one ingest-close-classify cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		ClosurePasses: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "closure_passes",
			Help:      "Passes needed for the closure to reach a fixpoint.",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
		}),
		DerivedFacts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "closure_derived_facts",
			Help:      "Facts derived by one closure run.",
			Buckets:   []float64{0, 10, 25, 50, 100, 250, 500, 1000},
		}),
		NonConvergence: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "closure_non_convergence_total",
			Help:      "Closure runs that hit the pass ceiling.",
		}),
		SnapshotFacts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_facts",
			Help:      "Facts in the most recently published snapshot.",
		}),
		RiskLevel: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "risk_level",
			Help:      "Current risk level: 0 low, 1 moderate, 2 high.",
		}),
		AlertRaised: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alert_raised",
			Help:      "1 when the current assessment raises an alert.",
		}),
		SchedulerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scheduler_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Upstream data source requests by source and outcome.",
		}, []string{"source", "outcome"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Source cache lookups by source and result.",
		}, []string{"source", "result"}),
		SourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Upstream request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		MeteoFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "meteo_fallbacks_total",
			Help:      "Meteorological readings served by the fallback source.",
		}),
		SchemaReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_reloads_total",
			Help:      "Schema reload attempts by outcome.",
		}, []string{"outcome"}),
		AssessmentsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_published_total",
			Help:      "Assessment publications by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Evaluations,
		m.EvaluationDuration,
		m.ClosurePasses,
		m.DerivedFacts,
		m.NonConvergence,
		m.SnapshotFacts,
		m.RiskLevel,
		m.AlertRaised,
		m.SchedulerRunning,
		m.SourceRequests,
		m.SourceCache,
		m.SourceDuration,
		m.MeteoFallbacks,
		m.SchemaReloads,
		m.AssessmentsPublished,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsWith registers the metrics on reg. One-shot tools pass a private
// registry nothing scrapes.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics registered with a fresh registry to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetricsWith(prometheus.NewRegistry())
}
