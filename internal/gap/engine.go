// Package gap derives ranked production-gap contributors from
// facility-level network metrics.
package gap

import (
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/model"
)

// SortKey selects the secondary ordering applied after lost production.
type SortKey string

const (
	SortByPriority    SortKey = "priority"
	SortByDuration    SortKey = "duration"
	SortByLastUpdated SortKey = "lastUpdated"
)

// Options scope a derivation run. The zero value derives every driver.
type Options struct {
	Asset       model.AssetID
	FacilityIDs []string
	// Limit truncates the result to the top N drivers; 0 means unlimited.
	Limit int
	// SecondarySort breaks lost-production ties; ids break any remaining
	// ties for determinism.
	SecondarySort SortKey
}

type EngineConfig struct {
	Logger *slog.Logger
	Store  *hierarchy.Store
	Clock  clockwork.Clock
}

func (c *EngineConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Store == nil {
		return errors.New("hierarchy store is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Engine recomputes gap drivers on every read; they have no persistent
// identity beyond the stable id derived from their position in the tree.
type Engine struct {
	log *slog.Logger
	cfg *EngineConfig
}

func NewEngine(cfg *EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Derive walks every (facility, network) pair with a positive deferment
// on a sellable stream and emits a ranked driver list. An empty result
// is valid, not an error.
func (e *Engine) Derive(opts Options) []model.GapDriver {
	refs := e.cfg.Store.Facilities(opts.Asset, opts.FacilityIDs)
	now := e.cfg.Clock.Now()

	var drivers []model.GapDriver
	for _, ref := range refs {
		for _, network := range model.ProductionStreams {
			m, ok := ref.Facility.Networks[network]
			if !ok || m.Deferment <= 0 {
				continue
			}
			drivers = append(drivers, deriveDriver(ref, network, m, now))
		}
	}

	sortDrivers(drivers, opts.SecondarySort)
	if opts.Limit > 0 && len(drivers) > opts.Limit {
		drivers = drivers[:opts.Limit]
	}
	e.log.Debug("gap: derived drivers", "count", len(drivers), "facilities", len(refs), "asset", opts.Asset)
	return drivers
}

func deriveDriver(ref hierarchy.FacilityRef, network model.Network, m model.NetworkMetrics, now time.Time) model.GapDriver {
	percentage := 0.0
	if m.MaxCapacity > 0 {
		percentage = m.Deferment / m.MaxCapacity * 100
	}

	start := ref.Facility.LastUpdated
	if start.IsZero() {
		start = now
	}
	totalHours := now.Sub(start).Hours()
	if totalHours < 0 {
		totalHours = 0
	}

	return model.GapDriver{
		ID:      DriverID(ref.Asset, ref.UnitID, ref.Facility.ID, network),
		NodeID:  ref.Facility.ID,
		Asset:   ref.Asset,
		UnitID:  ref.UnitID,
		Network: network,
		GapType: gapTypeFor(ref.Facility.Type),
		Impact: model.GapImpact{
			LostProduction: m.Deferment,
			Unit:           m.Unit,
			Percentage:     percentage,
		},
		AffectedStreams: []model.Network{network},
		Duration: model.GapDuration{
			Start:      start,
			TotalHours: totalHours,
		},
		Priority:    PriorityFor(percentage),
		Status:      model.GapStatusActive,
		LastUpdated: now,
	}
}

// DriverID is stable across reads for UI diffing.
func DriverID(asset model.AssetID, unitID, facilityID string, network model.Network) string {
	return string(asset) + ":" + unitID + ":" + facilityID + ":" + string(network)
}

// PriorityFor maps a gap percentage onto the severity thresholds.
func PriorityFor(percentage float64) model.Priority {
	switch {
	case percentage >= 30:
		return model.PriorityCritical
	case percentage >= 20:
		return model.PriorityHigh
	case percentage >= 10:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

// gapTypeFor maps facility types onto gap classifications: compressor
// stations gap on maintenance, gas plants on efficiency, everything else
// on constraints.
func gapTypeFor(t model.FacilityType) model.GapType {
	switch t {
	case model.FacilityCompressorStation:
		return model.GapTypeMaintenance
	case model.FacilityGasPlant:
		return model.GapTypeEfficiency
	default:
		return model.GapTypeConstraint
	}
}

// sortDrivers orders descending by lost production, then by the chosen
// secondary key, then by id.
func sortDrivers(drivers []model.GapDriver, secondary SortKey) {
	sort.SliceStable(drivers, func(i, j int) bool {
		a, b := drivers[i], drivers[j]
		if a.Impact.LostProduction != b.Impact.LostProduction {
			return a.Impact.LostProduction > b.Impact.LostProduction
		}
		switch secondary {
		case SortByPriority:
			if ra, rb := model.PriorityRank(a.Priority), model.PriorityRank(b.Priority); ra != rb {
				return ra < rb
			}
		case SortByDuration:
			if a.Duration.TotalHours != b.Duration.TotalHours {
				return a.Duration.TotalHours > b.Duration.TotalHours
			}
		case SortByLastUpdated:
			if !a.LastUpdated.Equal(b.LastUpdated) {
				return a.LastUpdated.After(b.LastUpdated)
			}
		}
		return a.ID < b.ID
	})
}
