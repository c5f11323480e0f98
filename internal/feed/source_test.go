package feed

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/gap"
	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/sim"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

func sourceFixture(t *testing.T) (*Source, *hierarchy.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	client, err := sim.NewClient(&sim.ClientConfig{Logger: log, Seed: 11})
	require.NoError(t, err)
	store, err := hierarchy.NewStore(&hierarchy.StoreConfig{Logger: log})
	require.NoError(t, err)
	engine, err := gap.NewEngine(&gap.EngineConfig{Logger: log, Store: store})
	require.NoError(t, err)

	s, err := NewSource(&SourceConfig{
		Logger: log,
		Client: client,
		Store:  store,
		Gap:    engine,
	})
	require.NoError(t, err)
	return s, store
}

func mustKey(t *testing.T, kind transport.Kind, filters map[string]string) cache.Key {
	t.Helper()
	key, err := cache.NewKey(kind, filters)
	require.NoError(t, err)
	return key
}

func TestFeed_HierarchyKindsIngestIntoStore(t *testing.T) {
	t.Parallel()

	s, store := sourceFixture(t)
	ctx := context.Background()

	payload, err := s.Fetch(ctx, mustKey(t, transport.KindNodes, nil))
	require.NoError(t, err)
	assets := payload.([]model.Asset)
	require.Len(t, assets, 2)

	// The store view carries the computed roll-ups.
	for _, a := range assets {
		require.NotZero(t, a.Performance.Capacity)
		for _, u := range a.Units {
			for _, f := range u.Facilities {
				require.Contains(t, f.Networks, model.NetworkFlaredGas)
			}
		}
	}
	require.Len(t, store.Assets(), 2)
}

func TestFeed_AssetFilterScopesHierarchy(t *testing.T) {
	t.Parallel()

	s, _ := sourceFixture(t)

	payload, err := s.Fetch(context.Background(), mustKey(t, transport.KindNodes, map[string]string{"asset": "west"}))
	require.NoError(t, err)
	assets := payload.([]model.Asset)
	require.Len(t, assets, 1)
	require.Equal(t, model.AssetWest, assets[0].ID)
}

func TestFeed_GapDriversDerivedLocally(t *testing.T) {
	t.Parallel()

	s, _ := sourceFixture(t)

	payload, err := s.Fetch(context.Background(), mustKey(t, transport.KindGapDrivers, map[string]string{"limit": "2"}))
	require.NoError(t, err)
	drivers := payload.([]model.GapDriver)
	require.NotEmpty(t, drivers)
	require.LessOrEqual(t, len(drivers), 2)
}

func TestFeed_GapDriversLimitValidation(t *testing.T) {
	t.Parallel()

	s, _ := sourceFixture(t)

	_, err := s.Fetch(context.Background(), mustKey(t, transport.KindGapDrivers, map[string]string{"limit": "nope"}))
	var validationErr *transport.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "limit", validationErr.Field)
}

func TestFeed_PassthroughKinds(t *testing.T) {
	t.Parallel()

	s, _ := sourceFixture(t)

	payload, err := s.Fetch(context.Background(), mustKey(t, transport.KindSummary, nil))
	require.NoError(t, err)
	require.IsType(t, model.Summary{}, payload)
}
