// Package mutation executes state-changing actions against actionable
// entities (optimisation actions, alerts) with optimistic local
// application, snapshot/rollback, and post-settle invalidation.
package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/metrics"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

var errUnsupportedKind = errors.New("kind does not support mutations")

type CoordinatorConfig struct {
	Logger *slog.Logger
	Client transport.Client
	Cache  *cache.Coordinator
	Clock  clockwork.Clock
}

func (c *CoordinatorConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Client == nil {
		return errors.New("transport client is required")
	}
	if c.Cache == nil {
		return errors.New("cache coordinator is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Coordinator guarantees the UI never observes a mutation as stuck
// pending during the network round-trip, and that on failure every
// touched cache entry is restored verbatim.
type Coordinator struct {
	log *slog.Logger
	cfg *CoordinatorConfig
}

func NewCoordinator(cfg *CoordinatorConfig) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Do runs one mutating call: snapshot matching cache entries, apply the
// optimistic transform, issue the network call exactly once, then
// invalidate dependents on success or restore the snapshot on failure.
func (m *Coordinator) Do(ctx context.Context, kind transport.Kind, id string, action model.Action, user string) (any, error) {
	if kind != transport.KindOptimisations && kind != transport.KindAlerts {
		return nil, fmt.Errorf("%w: %s", errUnsupportedKind, kind)
	}

	plan, err := m.plan(kind, id, action, user)
	if err != nil {
		// Invalid transitions surface before any cache write.
		metrics.MutationsTotal.WithLabelValues(string(kind), string(action), "conflict").Inc()
		return nil, fmt.Errorf("%w: %v", transport.ErrMutationConflict, err)
	}

	pred := cache.Or(cache.KindIs(kind), cache.KindIs(transport.KindSummary))
	snapshot := m.cfg.Cache.SnapshotMatching(pred)

	// Entries scoped to another asset never contained the entity, so the
	// optimistic transforms skip them; unscoped entries still match.
	collectionPred := cache.KindIs(kind)
	summaryPred := cache.KindIs(transport.KindSummary)
	if plan.asset != "" {
		scope := cache.FilterMatches("asset", string(plan.asset))
		collectionPred = cache.And(collectionPred, scope)
		summaryPred = cache.And(summaryPred, scope)
	}

	m.cfg.Cache.Apply(collectionPred, plan.transform)
	if plan.summaryTransform != nil {
		m.cfg.Cache.Apply(summaryPred, plan.summaryTransform)
	}

	// State-changing call, not idempotent: issued at most once.
	updated, err := m.cfg.Client.Mutate(ctx, kind, id, action, map[string]any{"user": user})
	if err != nil {
		m.cfg.Cache.Restore(snapshot)
		metrics.MutationsTotal.WithLabelValues(string(kind), string(action), "rolled_back").Inc()
		metrics.MutationRollbacksTotal.WithLabelValues(string(kind)).Inc()
		m.log.Warn("mutation: failed, rolled back optimistic update",
			"kind", kind, "id", id, "action", action, "entries", len(snapshot), "error", err)
		return nil, err
	}

	m.cfg.Cache.Invalidate(cache.KindIs(dependentKinds(kind, action)...))
	metrics.MutationsTotal.WithLabelValues(string(kind), string(action), "ok").Inc()
	m.log.Info("mutation: applied", "kind", kind, "id", id, "action", action)
	return updated, nil
}

// dependentKinds lists the resource kinds whose cached values may have
// changed as a result of the mutation. Implementing or completing an
// optimisation can move production, so node and gap data go stale too.
func dependentKinds(kind transport.Kind, action model.Action) []transport.Kind {
	switch kind {
	case transport.KindOptimisations:
		if action == model.ActionImplement || action == model.ActionComplete {
			return []transport.Kind{
				transport.KindOptimisations,
				transport.KindSummary,
				transport.KindNodes,
				transport.KindAssets,
				transport.KindGapDrivers,
			}
		}
		return []transport.Kind{transport.KindOptimisations, transport.KindSummary}
	case transport.KindAlerts:
		return []transport.Kind{transport.KindAlerts, transport.KindSummary}
	default:
		return []transport.Kind{kind}
	}
}
