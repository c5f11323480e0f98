// Package feed adapts the network interface, the hierarchy store and
// the gap driver engine into the cache coordinator's fetch function.
// Hierarchy-backed kinds ingest the raw payload into the store and
// serve the computed roll-ups; everything else passes through.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/gap"
	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

type SourceConfig struct {
	Logger *slog.Logger
	Client transport.Client
	Store  *hierarchy.Store
	Gap    *gap.Engine
}

func (c *SourceConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Client == nil {
		return errors.New("transport client is required")
	}
	if c.Store == nil {
		return errors.New("hierarchy store is required")
	}
	if c.Gap == nil {
		return errors.New("gap engine is required")
	}
	return nil
}

type Source struct {
	log *slog.Logger
	cfg *SourceConfig
}

func NewSource(cfg *SourceConfig) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Fetch is the cache coordinator's fill function.
func (s *Source) Fetch(ctx context.Context, key cache.Key) (any, error) {
	switch key.Kind {
	case transport.KindAssets, transport.KindNodes:
		return s.fetchHierarchy(ctx, key)
	case transport.KindGapDrivers:
		return s.fetchGapDrivers(ctx, key)
	default:
		return s.cfg.Client.FetchResource(ctx, key.Kind, key.Filters)
	}
}

// fetchHierarchy pulls the raw asset payload, ingests it (validation,
// defaulting, roll-ups) and serves the store's computed view.
func (s *Source) fetchHierarchy(ctx context.Context, key cache.Key) (any, error) {
	raw, err := s.cfg.Client.FetchResource(ctx, transport.KindAssets, nil)
	if err != nil {
		return nil, err
	}
	payload, ok := raw.([]model.Asset)
	if !ok {
		return nil, &transport.ValidationError{Field: "assets", Msg: fmt.Sprintf("unexpected payload type %T", raw)}
	}
	s.cfg.Store.Ingest(payload)

	assets := s.cfg.Store.Assets()
	if asset := key.Filters["asset"]; asset != "" {
		scoped := assets[:0:0]
		for _, a := range assets {
			if a.ID == model.AssetID(asset) {
				scoped = append(scoped, a)
			}
		}
		assets = scoped
	}
	return assets, nil
}

// fetchGapDrivers refreshes the hierarchy and derives drivers from the
// facility leaves; the upstream feed is never asked for drivers.
func (s *Source) fetchGapDrivers(ctx context.Context, key cache.Key) (any, error) {
	if _, err := s.fetchHierarchy(ctx, cache.Key{Kind: transport.KindAssets}); err != nil {
		return nil, err
	}

	opts := gap.Options{
		Asset:         model.AssetID(key.Filters["asset"]),
		SecondarySort: gap.SortByPriority,
	}
	if raw := key.Filters["limit"]; raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return nil, &transport.ValidationError{Field: "limit", Msg: "must be a non-negative integer"}
		}
		opts.Limit = limit
	}
	return s.cfg.Gap.Derive(opts), nil
}
