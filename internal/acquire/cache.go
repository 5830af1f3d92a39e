package acquire

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/flood-risk-service/internal/domain"
	"github.com/couchcryptid/flood-risk-service/internal/observability"
)

// CachedMeteo wraps a MeteoSource with an in-memory TTL cache keyed by the
// requested hour.
type CachedMeteo struct {
	inner   domain.MeteoSource
	name    string
	cache   *lruCache[time.Time, domain.MeteoObservation]
	metrics *observability.Metrics
}

// NewCachedMeteo creates a cache decorator around a meteo source. name labels
// the cache metrics.
func NewCachedMeteo(inner domain.MeteoSource, name string, ttl time.Duration, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) *CachedMeteo {
	return &CachedMeteo{
		inner:   inner,
		name:    name,
		cache:   newLRUCache[time.Time, domain.MeteoObservation](maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedMeteo) FetchMeteo(ctx context.Context, at time.Time) (domain.MeteoObservation, error) {
	key := at.UTC().Truncate(time.Hour)
	if obs, ok := c.cache.get(key); ok {
		c.metrics.SourceCache.WithLabelValues(c.name, "hit").Inc()
		return obs, nil
	}
	c.metrics.SourceCache.WithLabelValues(c.name, "miss").Inc()
	obs, err := c.inner.FetchMeteo(ctx, at)
	if err != nil {
		return obs, err
	}
	c.cache.put(key, obs)
	return obs, nil
}

// CachedHydro wraps a HydroSource with a single-entry TTL cache.
type CachedHydro struct {
	inner   domain.HydroSource
	name    string
	cache   *lruCache[struct{}, domain.HydroObservation]
	metrics *observability.Metrics
}

// NewCachedHydro creates a cache decorator around a hydro source.
func NewCachedHydro(inner domain.HydroSource, name string, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedHydro {
	return &CachedHydro{
		inner:   inner,
		name:    name,
		cache:   newLRUCache[struct{}, domain.HydroObservation](1, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedHydro) FetchHydro(ctx context.Context) (domain.HydroObservation, error) {
	if obs, ok := c.cache.get(struct{}{}); ok {
		c.metrics.SourceCache.WithLabelValues(c.name, "hit").Inc()
		return obs, nil
	}
	c.metrics.SourceCache.WithLabelValues(c.name, "miss").Inc()
	obs, err := c.inner.FetchHydro(ctx)
	if err != nil {
		return obs, err
	}
	c.cache.put(struct{}{}, obs)
	return obs, nil
}

type meteoHistoryKey struct {
	hour  time.Time
	query domain.MeteoHistoryQuery
}

// CachedMeteoHistory wraps a MeteoHistorySource with a TTL cache keyed by the
// clamped window and the hour of now.
type CachedMeteoHistory struct {
	inner   domain.MeteoHistorySource
	name    string
	cache   *lruCache[meteoHistoryKey, domain.MeteoHistory]
	metrics *observability.Metrics
}

func NewCachedMeteoHistory(inner domain.MeteoHistorySource, name string, ttl time.Duration, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) *CachedMeteoHistory {
	return &CachedMeteoHistory{
		inner:   inner,
		name:    name,
		cache:   newLRUCache[meteoHistoryKey, domain.MeteoHistory](maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedMeteoHistory) FetchMeteoHistory(ctx context.Context, now time.Time, q domain.MeteoHistoryQuery) (domain.MeteoHistory, error) {
	q = domain.MeteoHistoryQuery{
		DaysBefore: domain.ClampHistoryDays(q.DaysBefore),
		DaysAfter:  domain.ClampHistoryDays(q.DaysAfter),
	}
	key := meteoHistoryKey{hour: now.UTC().Truncate(time.Hour), query: q}
	if h, ok := c.cache.get(key); ok {
		c.metrics.SourceCache.WithLabelValues(c.name, "hit").Inc()
		return h, nil
	}
	c.metrics.SourceCache.WithLabelValues(c.name, "miss").Inc()
	h, err := c.inner.FetchMeteoHistory(ctx, now, q)
	if err != nil {
		return h, err
	}
	c.cache.put(key, h)
	return h, nil
}

// CachedHydroHistory wraps a HydroHistorySource with a TTL cache keyed by
// sub-basin.
type CachedHydroHistory struct {
	inner   domain.HydroHistorySource
	name    string
	cache   *lruCache[domain.HydroHistoryQuery, domain.HydroHistory]
	metrics *observability.Metrics
}

func NewCachedHydroHistory(inner domain.HydroHistorySource, name string, ttl time.Duration, maxEntries int, clock clockwork.Clock, metrics *observability.Metrics) *CachedHydroHistory {
	return &CachedHydroHistory{
		inner:   inner,
		name:    name,
		cache:   newLRUCache[domain.HydroHistoryQuery, domain.HydroHistory](maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedHydroHistory) FetchHydroHistory(ctx context.Context, q domain.HydroHistoryQuery) (domain.HydroHistory, error) {
	if h, ok := c.cache.get(q); ok {
		c.metrics.SourceCache.WithLabelValues(c.name, "hit").Inc()
		return h, nil
	}
	c.metrics.SourceCache.WithLabelValues(c.name, "miss").Inc()
	h, err := c.inner.FetchHydroHistory(ctx, q)
	if err != nil {
		return h, err
	}
	c.cache.put(q, h)
	return h, nil
}

// lruCache is a thread-safe LRU cache whose entries also expire ttl after
// they were stored.
type lruCache[K comparable, V any] struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[K]*entry[K, V]
	head       *entry[K, V] // most recently used
	tail       *entry[K, V] // least recently used
}

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
	prev    *entry[K, V]
	next    *entry[K, V]
}

func newLRUCache[K comparable, V any](maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache[K, V] {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache[K, V]{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[K]*entry[K, V]),
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if !c.clock.Now().Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return zero, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry[K, V]{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache[K, V]) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache[K, V]) moveToFront(e *entry[K, V]) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache[K, V]) addToFront(e *entry[K, V]) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache[K, V]) remove(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache[K, V]) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
