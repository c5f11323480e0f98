// Package poller drives the per-kind refetch cadence: every live cache
// key is refreshed on its kind's polling interval, independently of the
// push-event invalidation path.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"

	"github.com/upstreamlabs/fieldsync/config"
	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/metrics"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

const defaultPoolSize = 8

type PollerConfig struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Cache     *cache.Coordinator
	Schedules map[transport.Kind]config.Schedule
	PoolSize  int
}

func (c *PollerConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Cache == nil {
		return errors.New("cache coordinator is required")
	}
	if len(c.Schedules) == 0 {
		return errors.New("schedules are required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.PoolSize == 0 {
		c.PoolSize = defaultPoolSize
	}
	return nil
}

type Poller struct {
	log  *slog.Logger
	cfg  *PollerConfig
	pool pond.Pool
}

func NewPoller(cfg *PollerConfig) (*Poller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Poller{
		log:  cfg.Logger,
		cfg:  cfg,
		pool: pond.NewPool(cfg.PoolSize),
	}, nil
}

// Run starts one ticker per resource kind and blocks until the context
// is cancelled. Refreshes fan out on the worker pool; the cache's
// singleflight layer collapses any overlap with user reads.
func (p *Poller) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for kind, schedule := range p.cfg.Schedules {
		wg.Add(1)
		go func(kind transport.Kind, schedule config.Schedule) {
			defer wg.Done()
			p.runKind(ctx, kind, schedule)
		}(kind, schedule)
	}
	wg.Wait()
	p.pool.StopAndWait()
	return nil
}

func (p *Poller) runKind(ctx context.Context, kind transport.Kind, schedule config.Schedule) {
	ticker := p.cfg.Clock.NewTicker(schedule.RefetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.tick(ctx, kind)
		}
	}
}

// tick refreshes every live key of the kind, at most once each.
func (p *Poller) tick(ctx context.Context, kind transport.Kind) {
	keys := p.cfg.Cache.Keys(kind)
	for _, key := range keys {
		key := key
		p.pool.Submit(func() {
			if _, err := p.cfg.Cache.Refresh(ctx, key); err != nil {
				metrics.PollRefreshesTotal.WithLabelValues(string(kind), "error").Inc()
				p.log.Warn("poller: refresh failed", "key", key.String(), "error", err)
				return
			}
			metrics.PollRefreshesTotal.WithLabelValues(string(kind), "ok").Inc()
		})
	}
	if len(keys) > 0 {
		p.log.Debug("poller: tick", "kind", kind, "keys", len(keys))
	}
}
