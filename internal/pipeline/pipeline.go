package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// Acquirer produces the reading for the next cycle.
type Acquirer interface {
	Acquire(ctx context.Context) (domain.Reading, error)
}

// Publisher forwards a published assessment downstream.
type Publisher interface {
	Publish(ctx context.Context, a *Assessment) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Scheduler drives the acquire-evaluate-publish loop and owns the
// evaluation cache.
type Scheduler struct {
	acquirer  Acquirer
	evaluator *Evaluator
	cache     *EvaluationCache
	publisher Publisher
	interval  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	mu        sync.Mutex
}

// NewScheduler creates a Scheduler. publisher may be nil.
func NewScheduler(a Acquirer, e *Evaluator, cache *EvaluationCache, publisher Publisher, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		acquirer:  a,
		evaluator: e,
		cache:     cache,
		publisher: publisher,
		interval:  interval,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once an assessment has been published.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("no assessment has been published yet")
	}
	return nil
}

// Cache returns the evaluation cache the scheduler publishes into.
func (s *Scheduler) Cache() *EvaluationCache { return s.cache }

// Current returns the published assessment, fresh or not, without running a
// cycle.
func (s *Scheduler) Current() *Assessment { return s.cache.Current() }

// Run refreshes the assessment every interval until the context is cancelled.
// A failed cycle is retried with exponential backoff instead of waiting for
// the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)
	s.metrics.SchedulerRunning.Set(1)
	defer s.metrics.SchedulerRunning.Set(0)

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		}

		if _, err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Error("evaluation cycle failed", "error", err, "retry_in", backoff)
			if !retry.SleepWithContext(ctx, backoff) {
				return nil
			}
			backoff = retry.NextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = initialBackoff

		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-s.clock.After(s.interval):
		}
	}
}

// RunOnce acquires a reading, evaluates it and publishes the result. Cycles
// are serialized. The returned assessment is the cache's current one, which
// is the new assessment unless a newer one was already published.
func (s *Scheduler) RunOnce(ctx context.Context) (*Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLocked(ctx)
}

// runLocked runs one cycle. s.mu must be held.
func (s *Scheduler) runLocked(ctx context.Context) (*Assessment, error) {
	reading, err := s.acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	a, err := s.evaluator.Evaluate(ctx, reading)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, a)
	return s.cache.Current(), nil
}

// Latest serves the cached assessment while it is fresh and runs a cycle
// otherwise. When that cycle fails a stale assessment is still returned,
// with the error. Callers that queue behind an in-flight cycle are served
// its result instead of running another.
func (s *Scheduler) Latest(ctx context.Context) (*Assessment, error) {
	if a, ok := s.cache.Fresh(); ok {
		return a, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.cache.Fresh(); ok {
		return a, nil
	}
	a, err := s.runLocked(ctx)
	if err != nil {
		if stale := s.cache.Current(); stale != nil {
			s.logger.Warn("on-demand evaluation failed, serving stale assessment",
				"error", err, "analysis_id", stale.AnalysisID)
			return stale, err
		}
		return nil, err
	}
	return a, nil
}

func (s *Scheduler) publish(ctx context.Context, a *Assessment) {
	if !s.cache.Publish(a) {
		s.metrics.AssessmentsPublished.WithLabelValues("cache", "stale").Inc()
		s.logger.Warn("assessment superseded by a newer one, not published", "analysis_id", a.AnalysisID)
		return
	}
	s.metrics.AssessmentsPublished.WithLabelValues("cache", "success").Inc()
	s.metrics.RiskLevel.Set(float64(a.RiskLevel))
	if a.AlertStatus == domain.AlertRaised {
		s.metrics.AlertRaised.Set(1)
	} else {
		s.metrics.AlertRaised.Set(0)
	}
	s.ready.Store(true)
	s.logger.Info("assessment published",
		"analysis_id", a.AnalysisID,
		"risk_level", a.RiskLevel,
		"alert_status", a.AlertStatus,
		"incomplete_evidence", a.IncompleteEvidence,
	)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, a); err != nil {
		s.metrics.AssessmentsPublished.WithLabelValues("kafka", "error").Inc()
		s.logger.Error("forward assessment failed", "error", err, "analysis_id", a.AnalysisID)
		return
	}
	s.metrics.AssessmentsPublished.WithLabelValues("kafka", "success").Inc()
}
