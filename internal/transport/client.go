// Package transport defines the network interface the sync core consumes
// and the error taxonomy used by the cache retry policy. The actual
// transport (HTTP, in-process simulator) is injected.
package transport

import (
	"context"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

// Kind identifies a resource class served by the upstream feed.
type Kind string

const (
	KindNodes              Kind = "nodes"
	KindSummary            Kind = "summary"
	KindAssets             Kind = "assets"
	KindGapDrivers         Kind = "gap-drivers"
	KindOptimisations      Kind = "optimisations"
	KindAlerts             Kind = "alerts"
	KindTerminalOperations Kind = "terminal-operations"
)

// Kinds lists every resource kind in canonical order.
var Kinds = []Kind{
	KindNodes,
	KindSummary,
	KindAssets,
	KindGapDrivers,
	KindOptimisations,
	KindAlerts,
	KindTerminalOperations,
}

// Filters is a canonicalized, order-independent set of scalar filters.
// Construct values through the per-kind constructors in the cache
// package so unknown fields are rejected at the boundary.
type Filters map[string]string

// Clone returns a copy safe to retain.
func (f Filters) Clone() Filters {
	if f == nil {
		return nil
	}
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Client is the network interface consumed by the core.
//
// FetchResource is an idempotent read and safe to retry. Mutate is a
// state-changing call and must be issued at most once per user action.
// SubscribeEvents is a long-lived push subscription; the returned
// channel is closed when the subscription ends. Reconnect gaps are
// tolerated by the core since staleness, not event delivery, is the
// source of truth.
type Client interface {
	FetchResource(ctx context.Context, kind Kind, filters Filters) (any, error)
	Mutate(ctx context.Context, kind Kind, id string, action model.Action, payload map[string]any) (any, error)
	SubscribeEvents(ctx context.Context) (<-chan model.Event, error)
}
