package gap

import (
	"io"
	"log/slog"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
)

func newEngineForTest(t *testing.T, clock clockwork.Clock) (*Engine, *hierarchy.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := hierarchy.NewStore(&hierarchy.StoreConfig{Logger: log, Clock: clock})
	require.NoError(t, err)

	engine, err := NewEngine(&EngineConfig{Logger: log, Store: store, Clock: clock})
	require.NoError(t, err)
	return engine, store
}

func gapFacility(id, unitID string, ftype model.FacilityType, target, production float64) model.Facility {
	return model.Facility{
		ID:     id,
		UnitID: unitID,
		Type:   ftype,
		Status: model.UnitStatusOnline,
		Networks: map[model.Network]model.NetworkMetrics{
			model.NetworkOil: {
				MaxCapacity:       1000,
				BusinessTarget:    target,
				CurrentProduction: production,
			},
		},
	}
}

func TestGap_EngineConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := &EngineConfig{}
	require.Error(t, cfg.Validate())

	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	require.Error(t, cfg.Validate())

	store, err := hierarchy.NewStore(&hierarchy.StoreConfig{Logger: cfg.Logger})
	require.NoError(t, err)
	cfg.Store = store
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)
}

func TestGap_Derive_PriorityThresholds(t *testing.T) {
	t.Parallel()

	engine, store := newEngineForTest(t, clockwork.NewFakeClock())
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				// Deferment 320 of capacity 1000: 32%, critical.
				gapFacility("crit", "hub-1", model.FacilityFlowstation, 920, 600),
				// 24%: high, not critical.
				gapFacility("high", "hub-1", model.FacilityFlowstation, 840, 600),
				// 12%: medium.
				gapFacility("med", "hub-1", model.FacilityFlowstation, 720, 600),
				// 5%: low.
				gapFacility("low", "hub-1", model.FacilityFlowstation, 650, 600),
			},
		}},
	}})

	drivers := engine.Derive(Options{})
	require.Len(t, drivers, 4)

	byNode := make(map[string]model.GapDriver)
	for _, d := range drivers {
		byNode[d.NodeID] = d
	}
	require.Equal(t, model.PriorityCritical, byNode["crit"].Priority)
	require.Equal(t, model.PriorityHigh, byNode["high"].Priority)
	require.Equal(t, model.PriorityMedium, byNode["med"].Priority)
	require.Equal(t, model.PriorityLow, byNode["low"].Priority)
}

func TestGap_Derive_SkipsZeroDefermentAndFlaredGas(t *testing.T) {
	t.Parallel()

	engine, store := newEngineForTest(t, clockwork.NewFakeClock())
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				{
					ID:     "flare-only",
					UnitID: "hub-1",
					Type:   model.FacilityFlowstation,
					Networks: map[model.Network]model.NetworkMetrics{
						// Flared gas is never a gap driver even with a shortfall.
						model.NetworkFlaredGas: {MaxCapacity: 100, BusinessTarget: 80, CurrentProduction: 20},
						// Sellable stream meeting target contributes nothing.
						model.NetworkOil: {MaxCapacity: 100, BusinessTarget: 50, CurrentProduction: 60},
					},
				},
			},
		}},
	}})

	require.Empty(t, engine.Derive(Options{}))
}

func TestGap_Derive_SortsByLostProductionDescending(t *testing.T) {
	t.Parallel()

	engine, store := newEngineForTest(t, clockwork.NewFakeClock())
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				gapFacility("small", "hub-1", model.FacilityFlowstation, 650, 600),
				gapFacility("big", "hub-1", model.FacilityFlowstation, 950, 600),
				gapFacility("mid", "hub-1", model.FacilityFlowstation, 800, 600),
			},
		}},
	}})

	drivers := engine.Derive(Options{SecondarySort: SortByPriority})
	require.Len(t, drivers, 3)
	require.Equal(t, "big", drivers[0].NodeID)
	require.Equal(t, "mid", drivers[1].NodeID)
	require.Equal(t, "small", drivers[2].NodeID)

	truncated := engine.Derive(Options{Limit: 2})
	require.Len(t, truncated, 2)
	require.Equal(t, "big", truncated[0].NodeID)
}

func TestGap_Derive_TieBreaksOnIDForDeterminism(t *testing.T) {
	t.Parallel()

	engine, store := newEngineForTest(t, clockwork.NewFakeClock())
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				gapFacility("b-fac", "hub-1", model.FacilityFlowstation, 800, 600),
				gapFacility("a-fac", "hub-1", model.FacilityFlowstation, 800, 600),
			},
		}},
	}})

	first := engine.Derive(Options{})
	second := engine.Derive(Options{})
	require.Equal(t, first, second)
	require.Equal(t, "a-fac", first[0].NodeID)
}

func TestGap_Derive_GapTypeByFacilityType(t *testing.T) {
	t.Parallel()

	engine, store := newEngineForTest(t, clockwork.NewFakeClock())
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				gapFacility("cs", "hub-1", model.FacilityCompressorStation, 700, 600),
				gapFacility("gp", "hub-1", model.FacilityGasPlant, 700, 600),
				gapFacility("fs", "hub-1", model.FacilityFlowstation, 700, 600),
				gapFacility("term", "hub-1", model.FacilityTerminal, 700, 600),
			},
		}},
	}})

	byNode := make(map[string]model.GapDriver)
	for _, d := range engine.Derive(Options{}) {
		byNode[d.NodeID] = d
	}
	require.Equal(t, model.GapTypeMaintenance, byNode["cs"].GapType)
	require.Equal(t, model.GapTypeEfficiency, byNode["gp"].GapType)
	require.Equal(t, model.GapTypeConstraint, byNode["fs"].GapType)
	require.Equal(t, model.GapTypeConstraint, byNode["term"].GapType)
}

func TestGap_Derive_StableIDAndImpact(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	engine, store := newEngineForTest(t, clock)
	store.Ingest([]model.Asset{{
		ID: model.AssetWest,
		Units: []model.ProductionUnit{{
			ID: "hub-9",
			Facilities: []model.Facility{
				gapFacility("fs-9", "hub-9", model.FacilityFlowstation, 900, 600),
			},
		}},
	}})

	drivers := engine.Derive(Options{Asset: model.AssetWest})
	require.Len(t, drivers, 1)

	d := drivers[0]
	require.Equal(t, "west:hub-9:fs-9:oil", d.ID)
	require.Equal(t, DriverID(model.AssetWest, "hub-9", "fs-9", model.NetworkOil), d.ID)
	require.Equal(t, 300.0, d.Impact.LostProduction)
	require.Equal(t, 30.0, d.Impact.Percentage)
	require.Equal(t, "bbl/d", d.Impact.Unit)
	require.Equal(t, []model.Network{model.NetworkOil}, d.AffectedStreams)
	require.Equal(t, model.GapStatusActive, d.Status)
	require.Equal(t, clock.Now(), d.LastUpdated)
}

func TestGap_PriorityFor_Boundaries(t *testing.T) {
	t.Parallel()

	require.Equal(t, model.PriorityCritical, PriorityFor(30))
	require.Equal(t, model.PriorityHigh, PriorityFor(29.9))
	require.Equal(t, model.PriorityHigh, PriorityFor(20))
	require.Equal(t, model.PriorityMedium, PriorityFor(19.9))
	require.Equal(t, model.PriorityMedium, PriorityFor(10))
	require.Equal(t, model.PriorityLow, PriorityFor(9.9))
	require.Equal(t, model.PriorityLow, PriorityFor(0))
}

func TestGap_Derive_EmptyStoreIsNotAnError(t *testing.T) {
	t.Parallel()

	engine, _ := newEngineForTest(t, clockwork.NewFakeClock())
	require.Empty(t, engine.Derive(Options{Limit: 10, SecondarySort: SortByDuration}))
}
