// Package events consumes the push-event subscription and maps each
// typed event onto cache invalidation scopes. Invalidation only marks
// staleness, so duplicate and out-of-order delivery are harmless.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/metrics"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

type NotifierConfig struct {
	Logger *slog.Logger
	Client transport.Client
	Cache  *cache.Coordinator
}

func (c *NotifierConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Client == nil {
		return errors.New("transport client is required")
	}
	if c.Cache == nil {
		return errors.New("cache coordinator is required")
	}
	return nil
}

// Notifier processes events in arrival order and fans them out to any
// registered listeners (e.g. the WebSocket rebroadcast).
type Notifier struct {
	log *slog.Logger
	cfg *NotifierConfig

	mu        sync.Mutex
	listeners map[int]chan model.Event
	nextID    int
}

func NewNotifier(cfg *NotifierConfig) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Notifier{
		log:       cfg.Logger,
		cfg:       cfg,
		listeners: make(map[int]chan model.Event),
	}, nil
}

// Run subscribes to the push feed and processes events until the
// context is cancelled or the subscription channel closes. Reconnecting
// after a closed subscription is the caller's concern; a gap loses no
// correctness since polling staleness still drives refetches.
func (n *Notifier) Run(ctx context.Context) error {
	ch, err := n.cfg.Client.SubscribeEvents(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				n.log.Info("events: subscription closed")
				return nil
			}
			n.Handle(ev)
		}
	}
}

// Handle maps one event onto its invalidation scopes and rebroadcasts
// it to listeners.
func (n *Notifier) Handle(ev model.Event) {
	metrics.EventsTotal.WithLabelValues(string(ev.Type)).Inc()

	marked := 0
	for _, pred := range invalidationsFor(ev) {
		marked += n.cfg.Cache.Invalidate(pred)
	}
	n.log.Debug("events: processed", "type", ev.Type, "asset", ev.Asset, "invalidated", marked)

	n.mu.Lock()
	for _, ch := range n.listeners {
		select {
		case ch <- ev:
		default:
			// Slow listener; drop rather than stall event processing.
		}
	}
	n.mu.Unlock()
}

// Subscribe registers a listener for rebroadcast events. The returned
// cancel func must be called to release the listener.
func (n *Notifier) Subscribe() (<-chan model.Event, func()) {
	ch := make(chan model.Event, 16)
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.listeners[id] = ch
	n.mu.Unlock()

	return ch, func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

// invalidationsFor maps an event type onto invalidation predicates.
// Asset-scoped events leave collections filtered to other assets
// untouched, but do catch unscoped collections.
func invalidationsFor(ev model.Event) []cache.Predicate {
	scoped := func(kinds ...transport.Kind) cache.Predicate {
		p := cache.KindIs(kinds...)
		if ev.Asset != "" {
			p = cache.And(p, cache.FilterMatches("asset", string(ev.Asset)))
		}
		return p
	}

	switch ev.Type {
	case model.EventKPIUpdate:
		return []cache.Predicate{scoped(
			transport.KindNodes,
			transport.KindAssets,
			transport.KindSummary,
			transport.KindGapDrivers,
		)}
	case model.EventConstraintAlert:
		preds := []cache.Predicate{scoped(transport.KindAlerts, transport.KindSummary)}
		if ev.OptimisationID != "" {
			preds = append(preds, cache.KindIs(transport.KindOptimisations))
		}
		return preds
	case model.EventOptimisationUpdate:
		return []cache.Predicate{scoped(transport.KindOptimisations, transport.KindSummary)}
	case model.EventSystemStatus:
		return []cache.Predicate{cache.KindIs(transport.KindSummary)}
	default:
		return nil
	}
}
