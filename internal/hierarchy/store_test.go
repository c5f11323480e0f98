package hierarchy

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

func newStoreForTest(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(&StoreConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return store
}

func facility(id, unitID string, ftype model.FacilityType, networks map[model.Network]model.NetworkMetrics) model.Facility {
	return model.Facility{
		ID:       id,
		UnitID:   unitID,
		Name:     id,
		Type:     ftype,
		Status:   model.UnitStatusOnline,
		Networks: networks,
	}
}

func TestHierarchy_StoreConfig_Validate(t *testing.T) {
	t.Parallel()

	cfg := &StoreConfig{}
	require.Error(t, cfg.Validate())

	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, cfg.Validate())
	require.NotNil(t, cfg.Clock)
}

func TestHierarchy_Ingest_StampsMissingLastUpdated(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	store, err := NewStore(&StoreConfig{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clock,
	})
	require.NoError(t, err)

	upstream := clock.Now().Add(-2 * time.Hour)
	stamped := facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
		model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 800, CurrentProduction: 600},
	})
	stamped.LastUpdated = upstream
	unstamped := facility("fs-2", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
		model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 800, CurrentProduction: 600},
	})

	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID:         "hub-1",
			Status:     model.UnitStatusOnline,
			Facilities: []model.Facility{stamped, unstamped},
		}},
	}})

	ref, ok := store.Facility("fs-1")
	require.True(t, ok)
	require.True(t, ref.Facility.LastUpdated.Equal(upstream), "upstream timestamp must be preserved")

	ref, ok = store.Facility("fs-2")
	require.True(t, ok)
	require.True(t, ref.Facility.LastUpdated.Equal(clock.Now()), "missing timestamp must be stamped with ingest time")
}

func TestHierarchy_Ingest_RecomputesDeferment(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID:     "hub-1",
			Status: model.UnitStatusOnline,
			Facilities: []model.Facility{
				facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {
						MaxCapacity:       1000,
						BusinessTarget:    800,
						CurrentProduction: 600,
						// Feed-supplied deferment is advisory and gets replaced.
						Deferment: 42,
					},
				}),
			},
		}},
	}})

	ref, ok := store.Facility("fs-1")
	require.True(t, ok)
	require.Equal(t, 200.0, ref.Facility.Networks[model.NetworkOil].Deferment)
}

func TestHierarchy_Ingest_OverproductionYieldsZeroDeferment(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetWest,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 500, CurrentProduction: 700},
				}),
			},
		}},
	}})

	ref, ok := store.Facility("fs-1")
	require.True(t, ok)
	require.Equal(t, 0.0, ref.Facility.Networks[model.NetworkOil].Deferment)
}

func TestHierarchy_Ingest_FlaredGasAlwaysPresent(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 800, CurrentProduction: 600},
				}),
			},
		}},
	}})

	ref, ok := store.Facility("fs-1")
	require.True(t, ok)
	flared, present := ref.Facility.Networks[model.NetworkFlaredGas]
	require.True(t, present)
	require.Equal(t, model.ZeroFlaredGas(), flared)

	// Present on the unit and asset roll-ups too.
	unit, ok := store.Unit(model.AssetEast, "hub-1")
	require.True(t, ok)
	require.Contains(t, unit.Networks, model.NetworkFlaredGas)

	asset, ok := store.Asset(model.AssetEast)
	require.True(t, ok)
	require.Contains(t, asset.Networks, model.NetworkFlaredGas)
}

func TestHierarchy_Ingest_DropsMalformedFacilitiesWithWarnings(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				{ID: "no-type", UnitID: "hub-1"},
				{ID: "no-unit", Type: model.FacilityFlowstation},
				facility("ok", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 100, BusinessTarget: 50, CurrentProduction: 50},
				}),
			},
		}},
	}})

	asset, ok := store.Asset(model.AssetEast)
	require.True(t, ok)
	require.Len(t, asset.Units[0].Facilities, 1)
	require.Equal(t, "ok", asset.Units[0].Facilities[0].ID)

	warnings := store.Warnings()
	require.Len(t, warnings, 2)
	require.Equal(t, "no-type", warnings[0].FacilityID)
	require.Equal(t, "type", warnings[0].Field)
	require.Equal(t, "no-unit", warnings[1].FacilityID)
	require.Equal(t, "unitId", warnings[1].Field)
}

func TestHierarchy_Ingest_ClampsNegativeNumerics(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: -10, BusinessTarget: 300, CurrentProduction: -5},
				}),
			},
		}},
	}})

	ref, ok := store.Facility("fs-1")
	require.True(t, ok)
	m := ref.Facility.Networks[model.NetworkOil]
	require.Equal(t, 0.0, m.MaxCapacity)
	require.Equal(t, 0.0, m.CurrentProduction)
	require.Equal(t, 300.0, m.Deferment)

	var fields []string
	for _, w := range store.Warnings() {
		fields = append(fields, w.Field)
	}
	require.Contains(t, fields, "oil.maxCapacity")
	require.Contains(t, fields, "oil.currentProduction")
}

func TestHierarchy_RollUp_SumsFacilitiesIntoUnitsAndAssets(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{
			{
				ID:     "hub-1",
				Status: model.UnitStatusOnline,
				Facilities: []model.Facility{
					facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
						model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 800, CurrentProduction: 700, Trend: model.TrendUp},
					}),
					facility("fs-2", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
						model.NetworkOil: {MaxCapacity: 500, BusinessTarget: 400, CurrentProduction: 300, Trend: model.TrendDown},
					}),
				},
			},
			{
				ID:     "hub-2",
				Status: model.UnitStatusOffline,
				Facilities: []model.Facility{
					facility("gp-1", "hub-2", model.FacilityGasPlant, map[model.Network]model.NetworkMetrics{
						model.NetworkExportGas: {MaxCapacity: 2000, BusinessTarget: 1500, CurrentProduction: 1500, Trend: model.TrendStable},
					}),
				},
			},
		},
	}})

	unit, ok := store.Unit(model.AssetEast, "hub-1")
	require.True(t, ok)
	oil := unit.Networks[model.NetworkOil]
	require.Equal(t, 1500.0, oil.MaxCapacity)
	require.Equal(t, 1200.0, oil.BusinessTarget)
	require.Equal(t, 1000.0, oil.CurrentProduction)
	require.Equal(t, 200.0, oil.Deferment)
	// fs-1 produces more than fs-2, so its trend wins the weighted vote.
	require.Equal(t, model.TrendUp, oil.Trend)

	asset, ok := store.Asset(model.AssetEast)
	require.True(t, ok)
	require.Equal(t, 2500.0, asset.Performance.CurrentProduction)
	require.Equal(t, 3500.0, asset.Performance.Capacity)
	require.Equal(t, 2700.0, asset.Performance.BusinessTarget)
	require.Equal(t, 200.0, asset.Performance.Deferment)

	require.Equal(t, model.AssetUnitSummary{TotalUnits: 2, ActiveUnits: 1, OfflineUnits: 1}, asset.Summary)
}

func TestHierarchy_RollUp_ConstraintCountsAndStatus(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{
		ID: model.AssetEast,
		Units: []model.ProductionUnit{{
			ID: "hub-1",
			Facilities: []model.Facility{
				// 35% gap: critical.
				facility("crit", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 950, CurrentProduction: 600},
				}),
				// 15% gap: warning.
				facility("warn", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 750, CurrentProduction: 600},
				}),
				// 5% gap: active only.
				facility("mild", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 650, CurrentProduction: 600},
				}),
				// No gap.
				facility("clean", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
					model.NetworkOil: {MaxCapacity: 1000, BusinessTarget: 500, CurrentProduction: 600},
				}),
			},
		}},
	}})

	asset, ok := store.Asset(model.AssetEast)
	require.True(t, ok)
	require.Equal(t, model.AssetConstraints{Active: 3, Critical: 1, Warning: 1}, asset.Constraints)
	require.Equal(t, model.AssetStatusCritical, asset.Status)
}

func TestHierarchy_Ingest_ReplacesSnapshotWholesale(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{ID: model.AssetEast, Units: []model.ProductionUnit{{
		ID: "hub-1",
		Facilities: []model.Facility{
			facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
				model.NetworkOil: {MaxCapacity: 100, BusinessTarget: 80, CurrentProduction: 80},
			}),
		},
	}}}})

	store.Ingest([]model.Asset{{ID: model.AssetWest}})

	_, ok := store.Facility("fs-1")
	require.False(t, ok)
	_, ok = store.Asset(model.AssetEast)
	require.False(t, ok)

	assets := store.Assets()
	require.Len(t, assets, 1)
	require.Equal(t, model.AssetWest, assets[0].ID)
}

func TestHierarchy_Accessors_ReturnDeepCopies(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{{ID: model.AssetEast, Units: []model.ProductionUnit{{
		ID: "hub-1",
		Facilities: []model.Facility{
			facility("fs-1", "hub-1", model.FacilityFlowstation, map[model.Network]model.NetworkMetrics{
				model.NetworkOil: {MaxCapacity: 100, BusinessTarget: 80, CurrentProduction: 80},
			}),
		},
	}}}})

	a := store.Assets()
	a[0].Units[0].Facilities[0].Networks[model.NetworkOil] = model.NetworkMetrics{MaxCapacity: 9999}

	fresh, ok := store.Facility("fs-1")
	require.True(t, ok)
	require.Equal(t, 100.0, fresh.Facility.Networks[model.NetworkOil].MaxCapacity)
}

func TestHierarchy_Facilities_FiltersByAssetAndIDSet(t *testing.T) {
	t.Parallel()

	store := newStoreForTest(t)
	store.Ingest([]model.Asset{
		{ID: model.AssetEast, Units: []model.ProductionUnit{{
			ID: "east-hub",
			Facilities: []model.Facility{
				facility("e-1", "east-hub", model.FacilityFlowstation, nil),
				facility("e-2", "east-hub", model.FacilityGasPlant, nil),
			},
		}}},
		{ID: model.AssetWest, Units: []model.ProductionUnit{{
			ID: "west-hub",
			Facilities: []model.Facility{
				facility("w-1", "west-hub", model.FacilityFlowstation, nil),
			},
		}}},
	})

	require.Len(t, store.Facilities("", nil), 3)
	require.Len(t, store.Facilities(model.AssetEast, nil), 2)

	scoped := store.Facilities("", []string{"e-2", "w-1"})
	require.Len(t, scoped, 2)

	require.Empty(t, store.Facilities(model.AssetWest, []string{"e-1"}))
}
