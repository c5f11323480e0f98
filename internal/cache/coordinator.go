package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jellydator/ttlcache/v3"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/upstreamlabs/fieldsync/config"
	"github.com/upstreamlabs/fieldsync/internal/metrics"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

// FetchFunc fills a cache entry from the upstream feed. It must be
// idempotent and safe to retry.
type FetchFunc func(ctx context.Context, key Key) (any, error)

type CoordinatorConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Fetch  FetchFunc

	// Schedules carries the per-kind staleness and GC profile; kinds
	// without an entry fall back to DefaultSchedule.
	Schedules       map[transport.Kind]config.Schedule
	DefaultSchedule config.Schedule

	// FetchTimeout bounds each fetch attempt.
	FetchTimeout time.Duration

	// Retry policy for transient fetch failures. Client errors are never
	// retried.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMaxTries        uint
}

func (c *CoordinatorConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Fetch == nil {
		return errors.New("fetch func is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.DefaultSchedule == (config.Schedule{}) {
		c.DefaultSchedule = config.Schedule{
			StaleAfter:      30 * time.Second,
			RefetchInterval: 30 * time.Second,
			GCWindow:        10 * time.Minute,
		}
	}
	if err := c.DefaultSchedule.Validate(); err != nil {
		return err
	}
	if c.FetchTimeout == 0 {
		c.FetchTimeout = config.DefaultFetchTimeout
	}
	if c.RetryInitialInterval == 0 {
		c.RetryInitialInterval = config.DefaultFetchRetryInitialInterval
	}
	if c.RetryMaxInterval == 0 {
		c.RetryMaxInterval = config.DefaultFetchRetryMaxInterval
	}
	if c.RetryMaxTries == 0 {
		c.RetryMaxTries = config.DefaultFetchMaxTries
	}
	return nil
}

type entry struct {
	key       Key
	value     any
	fetchedAt time.Time
	stale     bool
	hasValue  bool
}

// Coordinator is the shared read-through cache. It is the only shared
// mutable resource in the core; every write goes through Read's fill
// path, Invalidate, or the Snapshot/Apply/Restore protocol used by the
// mutation coordinator.
type Coordinator struct {
	log   *slog.Logger
	cfg   *CoordinatorConfig
	clock clockwork.Clock

	group singleflight.Group

	// mu guards entry contents. The ttlcache is internally synchronized;
	// the outer lock is what makes multi-entry apply/rollback atomic
	// with respect to readers.
	mu      sync.RWMutex
	entries *ttlcache.Cache[string, *entry]
}

func NewCoordinator(cfg *CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		log:     cfg.Logger,
		cfg:     cfg,
		clock:   cfg.Clock,
		entries: ttlcache.New[string, *entry](),
	}
	// The callback fires on the ttlcache cleanup goroutine with its
	// internal lock held; it must not take c.mu.
	c.entries.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *entry]) {
		if reason == ttlcache.EvictionReasonExpired {
			metrics.CacheEvictionsTotal.WithLabelValues(string(item.Value().key.Kind)).Inc()
		}
	})
	return c, nil
}

// Run drives garbage collection of untouched entries until the context
// is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	go c.entries.Start()
	<-ctx.Done()
	c.entries.Stop()
	return nil
}

// Close stops the GC loop. Safe to call after Run has returned.
func (c *Coordinator) Close() {
	c.entries.Stop()
}

func (c *Coordinator) scheduleFor(kind transport.Kind) config.Schedule {
	if s, ok := c.cfg.Schedules[kind]; ok {
		return s
	}
	return c.cfg.DefaultSchedule
}

// Read returns the cached value when present and fresh, otherwise
// fetches through the upstream feed. Concurrent reads of the same key
// share a single in-flight fetch. A failed fetch leaves the previous
// value intact: the caller receives the stale value together with the
// error and decides whether to show it.
func (c *Coordinator) Read(ctx context.Context, key Key) (any, error) {
	ks := key.String()

	c.mu.RLock()
	if e := c.getEntry(ks); e != nil && c.fresh(e, key.Kind) {
		value := e.value
		c.mu.RUnlock()
		metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "hit").Inc()
		return value, nil
	}
	c.mu.RUnlock()

	return c.fill(ctx, key, ks, false)
}

// Refresh re-fetches a key regardless of freshness, sharing any
// in-flight fetch for the same key. Used by the polling scheduler.
func (c *Coordinator) Refresh(ctx context.Context, key Key) (any, error) {
	return c.fill(ctx, key, key.String(), true)
}

func (c *Coordinator) fill(ctx context.Context, key Key, ks string, force bool) (any, error) {
	v, err, _ := c.group.Do(ks, func() (any, error) {
		if !force {
			// Another flight may have refreshed the entry while we waited
			// for the singleflight slot.
			c.mu.RLock()
			if e := c.getEntry(ks); e != nil && c.fresh(e, key.Kind) {
				value := e.value
				c.mu.RUnlock()
				metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "hit").Inc()
				return value, nil
			}
			c.mu.RUnlock()
		}
		metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "miss").Inc()

		value, err := c.fetchWithRetry(ctx, key)
		if err != nil {
			c.mu.RLock()
			prev := c.getEntry(ks)
			c.mu.RUnlock()
			if prev != nil && prev.hasValue {
				metrics.CacheReadsTotal.WithLabelValues(string(key.Kind), "stale").Inc()
				c.log.Warn("cache: fetch failed, keeping last known good value",
					"key", ks, "age", c.clock.Since(prev.fetchedAt), "error", err)
				return prev.value, err
			}
			return nil, err
		}

		c.store(key, ks, value)
		return value, nil
	})
	if err != nil && v != nil {
		// Stale value surfaced alongside the error.
		return v, err
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (c *Coordinator) fetchWithRetry(ctx context.Context, key Key) (any, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.RetryInitialInterval
	exp.MaxInterval = c.cfg.RetryMaxInterval

	start := c.clock.Now()
	defer func() {
		metrics.CacheFetchDuration.WithLabelValues(string(key.Kind)).Observe(c.clock.Since(start).Seconds())
	}()

	return backoff.Retry(ctx, func() (any, error) {
		fctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
		defer cancel()

		value, err := c.cfg.Fetch(fctx, key)
		if err != nil {
			metrics.CacheFetchFailuresTotal.WithLabelValues(string(key.Kind), errorClass(err)).Inc()
			if !transport.Retryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return value, nil
	}, backoff.WithBackOff(exp), backoff.WithMaxTries(c.cfg.RetryMaxTries))
}

func (c *Coordinator) store(key Key, ks string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.getEntry(ks)
	if e == nil {
		e = &entry{key: key}
		c.entries.Set(ks, e, c.scheduleFor(key.Kind).GCWindow)
	}
	e.value = value
	e.fetchedAt = c.clock.Now()
	e.stale = false
	e.hasValue = true
}

// getEntry must be called with mu held. The underlying Get touches the
// entry, deferring garbage collection.
func (c *Coordinator) getEntry(ks string) *entry {
	item := c.entries.Get(ks)
	if item == nil {
		return nil
	}
	return item.Value()
}

func (c *Coordinator) fresh(e *entry, kind transport.Kind) bool {
	return e.hasValue && !e.stale && c.clock.Since(e.fetchedAt) < c.scheduleFor(kind).StaleAfter
}

// Invalidate marks every entry whose key matches the predicate as
// stale. The previous value stays visible until the next read refetches
// it. Invalidation is idempotent; it never applies payload data.
// Returns the number of entries marked.
func (c *Coordinator) Invalidate(pred Predicate) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	marked := 0
	c.entries.Range(func(item *ttlcache.Item[string, *entry]) bool {
		e := item.Value()
		if pred(e.key) && !e.stale {
			e.stale = true
			marked++
			metrics.CacheInvalidationsTotal.WithLabelValues(string(e.key.Kind)).Inc()
		}
		return true
	})
	return marked
}

// peekEntry must be called with mu held. Unlike getEntry it does not
// extend the entry's GC deadline.
func (c *Coordinator) peekEntry(ks string) *entry {
	item := c.entries.Get(ks, ttlcache.WithDisableTouchOnHit[string, *entry]())
	if item == nil {
		return nil
	}
	return item.Value()
}

// Peek returns the cached value without fetching or touching staleness.
func (c *Coordinator) Peek(key Key) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e := c.peekEntry(key.String())
	if e == nil || !e.hasValue {
		return nil, false
	}
	return e.value, true
}

// Keys returns the live keys for a resource kind, for the poller.
func (c *Coordinator) Keys(kind transport.Kind) []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []Key
	c.entries.Range(func(item *ttlcache.Item[string, *entry]) bool {
		if item.Value().key.Kind == kind {
			out = append(out, item.Value().key)
		}
		return true
	})
	return out
}

// Snapshot captures the exact state of every entry matching the
// predicate, for verbatim restore on mutation rollback.
type Snapshot struct {
	Key       Key
	Value     any
	FetchedAt time.Time
	Stale     bool
}

// SnapshotMatching captures all populated entries matching the
// predicate.
func (c *Coordinator) SnapshotMatching(pred Predicate) []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Snapshot
	c.entries.Range(func(item *ttlcache.Item[string, *entry]) bool {
		e := item.Value()
		if pred(e.key) && e.hasValue {
			out = append(out, Snapshot{Key: e.key, Value: e.value, FetchedAt: e.fetchedAt, Stale: e.stale})
		}
		return true
	})
	return out
}

// Apply rewrites every populated entry matching the predicate through
// the transform, atomically with respect to readers. The transform must
// return a new value rather than mutating the old one, so snapshots
// taken before the apply stay intact for rollback.
func (c *Coordinator) Apply(pred Predicate, transform func(key Key, value any) any) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	applied := 0
	c.entries.Range(func(item *ttlcache.Item[string, *entry]) bool {
		e := item.Value()
		if pred(e.key) && e.hasValue {
			e.value = transform(e.key, e.value)
			applied++
		}
		return true
	})
	return applied
}

// Restore puts every snapshotted entry back verbatim. Entries evicted
// since the snapshot are re-created.
func (c *Coordinator) Restore(snaps []Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range snaps {
		ks := s.Key.String()
		e := c.peekEntry(ks)
		if e == nil {
			e = &entry{key: s.Key}
			c.entries.Set(ks, e, c.scheduleFor(s.Key.Kind).GCWindow)
		}
		e.value = s.Value
		e.fetchedAt = s.FetchedAt
		e.stale = s.Stale
		e.hasValue = true
	}
}

func errorClass(err error) string {
	var ce *transport.ClientError
	if errors.As(err, &ce) {
		return "client"
	}
	var ve *transport.ValidationError
	if errors.As(err, &ve) {
		return "validation"
	}
	if errors.Is(err, transport.ErrMutationConflict) {
		return "conflict"
	}
	return "transient"
}
