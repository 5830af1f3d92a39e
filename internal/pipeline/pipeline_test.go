package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
	"github.com/couchcryptid/flood-risk-service/internal/pipeline"
)

// --- mocks ---

type mockAcquirer struct {
	mu       sync.Mutex
	readings []domain.Reading
	err      error
	calls    atomic.Int32
}

func (m *mockAcquirer) Acquire(_ context.Context) (domain.Reading, error) {
	i := int(m.calls.Add(1) - 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Reading{}, m.err
	}
	if i >= len(m.readings) {
		i = len(m.readings) - 1
	}
	return m.readings[i], nil
}

func (m *mockAcquirer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

type mockPublisher struct {
	mu        sync.Mutex
	published []*pipeline.Assessment
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, a *pipeline.Assessment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, a)
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

func newScheduler(t *testing.T, acq pipeline.Acquirer, pub pipeline.Publisher, clock clockwork.Clock) *pipeline.Scheduler {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	e := pipeline.NewEvaluator(defaultCatalog(t), 0, 0, clock, slog.Default(), metrics)
	cache := pipeline.NewEvaluationCache(5*time.Minute, clock)
	return pipeline.NewScheduler(acq, e, cache, pub, 290*time.Second, clock, slog.Default(), metrics)
}

// --- scheduler ---

func TestScheduler_RunOnce_PublishesAndBecomesReady(t *testing.T) {
	acq := &mockAcquirer{readings: []domain.Reading{reading(readingTime, 40, 55)}}
	pub := &mockPublisher{}
	s := newScheduler(t, acq, pub, clockwork.NewFakeClockAt(readingTime))

	require.Error(t, s.CheckReadiness(context.Background()))

	a, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, a.RiskLevel)
	assert.Same(t, a, s.Cache().Current())
	assert.Equal(t, 1, pub.count())
	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestScheduler_RunOnce_AcquireError(t *testing.T) {
	acq := &mockAcquirer{err: errors.New("all sources down")}
	s := newScheduler(t, acq, nil, clockwork.NewFakeClock())

	_, err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.Nil(t, s.Cache().Current())
	assert.Error(t, s.CheckReadiness(context.Background()))
}

func TestScheduler_PublisherErrorKeepsAssessment(t *testing.T) {
	acq := &mockAcquirer{readings: []domain.Reading{reading(readingTime, 5, 5)}}
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	s := newScheduler(t, acq, pub, clockwork.NewFakeClock())

	a, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestScheduler_NeverRegresses(t *testing.T) {
	acq := &mockAcquirer{readings: []domain.Reading{
		reading(readingTime.Add(time.Hour), 40, 55),
		reading(readingTime, 0, 0),
	}}
	pub := &mockPublisher{}
	s := newScheduler(t, acq, pub, clockwork.NewFakeClock())

	newer, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	got, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Same(t, newer, got, "the older reading is evaluated but not published")
	assert.Equal(t, domain.RiskHigh, s.Cache().Current().RiskLevel)
	assert.Equal(t, 1, pub.count())
}

func TestScheduler_Latest(t *testing.T) {
	clock := clockwork.NewFakeClockAt(readingTime)
	acq := &mockAcquirer{readings: []domain.Reading{
		reading(readingTime, 40, 55),
		reading(readingTime.Add(10*time.Minute), 0, 0),
	}}
	s := newScheduler(t, acq, nil, clock)
	ctx := context.Background()

	first, err := s.Latest(ctx)
	require.NoError(t, err)
	again, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Same(t, first, again, "served from cache while fresh")
	assert.Equal(t, int32(1), acq.calls.Load())

	clock.Advance(5 * time.Minute)
	refreshed, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, refreshed)
	assert.Equal(t, domain.RiskLow, refreshed.RiskLevel)

	clock.Advance(5 * time.Minute)
	acq.setErr(errors.New("timeout"))
	stale, err := s.Latest(ctx)
	require.Error(t, err)
	assert.Same(t, refreshed, stale, "a stale assessment is better than none")
}

// gatedAcquirer blocks every Acquire until release is closed.
type gatedAcquirer struct {
	mockAcquirer
	release chan struct{}
}

func (g *gatedAcquirer) Acquire(ctx context.Context) (domain.Reading, error) {
	<-g.release
	return g.mockAcquirer.Acquire(ctx)
}

func TestScheduler_Latest_ConcurrentCallersShareOneCycle(t *testing.T) {
	acq := &gatedAcquirer{
		mockAcquirer: mockAcquirer{readings: []domain.Reading{reading(readingTime, 40, 55)}},
		release:      make(chan struct{}),
	}
	s := newScheduler(t, acq, nil, clockwork.NewFakeClockAt(readingTime))

	const callers = 8
	results := make([]*pipeline.Assessment, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.Latest(context.Background())
			assert.NoError(t, err)
			results[i] = a
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(acq.release)
	wg.Wait()

	assert.Equal(t, int32(1), acq.calls.Load(), "queued callers reuse the fresh assessment")
	for _, a := range results {
		assert.Same(t, results[0], a)
	}
}

func TestScheduler_Run_RefreshesEveryInterval(t *testing.T) {
	clock := clockwork.NewFakeClockAt(readingTime)
	acq := &mockAcquirer{readings: []domain.Reading{
		reading(readingTime, 5, 5),
		reading(readingTime.Add(5*time.Minute), 40, 55),
	}}
	s := newScheduler(t, acq, nil, clock)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(1), acq.calls.Load())
	assert.NoError(t, s.CheckReadiness(ctx))

	clock.Advance(290 * time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, int32(2), acq.calls.Load())
	assert.Equal(t, domain.RiskHigh, s.Cache().Current().RiskLevel)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_Run_BacksOffOnFailure(t *testing.T) {
	acq := &mockAcquirer{err: errors.New("unreachable")}
	s := newScheduler(t, acq, nil, clockwork.NewFakeClock())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	calls := acq.calls.Load()
	assert.GreaterOrEqual(t, calls, int32(2), "retried after the first backoff")
	assert.LessOrEqual(t, calls, int32(3), "200ms then 400ms backoff")
}

// --- evaluation cache ---

func TestEvaluationCache(t *testing.T) {
	clock := clockwork.NewFakeClockAt(readingTime)
	e := pipeline.NewEvaluator(defaultCatalog(t), 0, 0, clock, slog.Default(), observability.NewMetricsForTesting())
	cache := pipeline.NewEvaluationCache(time.Minute, clock)
	ctx := context.Background()

	_, ok := cache.Fresh()
	assert.False(t, ok)
	assert.False(t, cache.Publish(nil))

	older, err := e.Evaluate(ctx, reading(readingTime, 1, 1))
	require.NoError(t, err)
	newer, err := e.Evaluate(ctx, reading(readingTime.Add(time.Hour), 1, 1))
	require.NoError(t, err)

	assert.True(t, cache.Publish(newer))
	assert.False(t, cache.Publish(older))
	assert.False(t, cache.Publish(newer), "republishing the same assessment is a no-op")
	assert.Same(t, newer, cache.Current())

	clock.Advance(time.Second)
	sameTime, err := e.Evaluate(ctx, reading(readingTime.Add(time.Hour), 2, 2))
	require.NoError(t, err)
	assert.True(t, cache.Publish(sameTime), "same reading time, produced later")

	a, ok := cache.Fresh()
	assert.True(t, ok)
	assert.Same(t, sameTime, a)

	clock.Advance(time.Minute)
	a, ok = cache.Fresh()
	assert.False(t, ok)
	assert.Same(t, sameTime, a, "stale entries are still returned")
}

func TestEvaluationCache_ConcurrentPublish(t *testing.T) {
	clock := clockwork.NewFakeClockAt(readingTime)
	e := pipeline.NewEvaluator(defaultCatalog(t), 0, 0, clock, slog.Default(), observability.NewMetricsForTesting())
	cache := pipeline.NewEvaluationCache(time.Minute, clock)

	var all []*pipeline.Assessment
	for i := range 8 {
		a, err := e.Evaluate(context.Background(), reading(readingTime.Add(time.Duration(i)*time.Minute), 1, 1))
		require.NoError(t, err)
		all = append(all, a)
	}

	var wg sync.WaitGroup
	for _, a := range all {
		wg.Go(func() { cache.Publish(a) })
	}
	wg.Wait()
	assert.Same(t, all[len(all)-1], cache.Current())
}

// --- registry ---

func TestRegistry_Reload(t *testing.T) {
	original, err := os.ReadFile(filepath.Join("..", "schema", "definitions", "flood.yaml"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "flood.yaml")
	require.NoError(t, os.WriteFile(path, original, 0o600))

	metrics := observability.NewMetricsForTesting()
	reg, err := pipeline.NewRegistry(path, "", slog.Default(), metrics)
	require.NoError(t, err)
	first := reg.Catalog()
	require.NotNil(t, first)

	require.NoError(t, os.WriteFile(path, []byte("kinds:\n  - id: A\n    parents: [Missing]\n"), 0o600))
	kept, err := reg.Reload()
	require.Error(t, err)
	assert.Same(t, first, kept)
	assert.Same(t, first, reg.Catalog(), "the previous catalog stays current")

	require.NoError(t, os.WriteFile(path, original, 0o600))
	next, err := reg.Reload()
	require.NoError(t, err)
	assert.NotSame(t, first, next)
	assert.Same(t, next, reg.Catalog())
}

func TestRegistry_InitialLoadError(t *testing.T) {
	_, err := pipeline.NewRegistry(filepath.Join(t.TempDir(), "missing.yaml"), "", slog.Default(), observability.NewMetricsForTesting())
	assert.Error(t, err)
}
