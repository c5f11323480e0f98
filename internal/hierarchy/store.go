// Package hierarchy holds the current snapshot of the asset dimension
// tree (asset -> production unit -> facility -> well) with per-network
// KPI metrics, and performs the ingestion roll-ups.
package hierarchy

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

// IngestWarning records an entity dropped or a field corrected during
// ingestion. Ingestion never fails for per-entity problems.
type IngestWarning struct {
	AssetID    model.AssetID
	UnitID     string
	FacilityID string
	Field      string
	Reason     string
}

type StoreConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
}

func (c *StoreConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Store is the source of truth for the asset tree. Each successful
// ingest replaces the snapshot wholesale; there is no partial patching.
type Store struct {
	log *slog.Logger
	cfg *StoreConfig

	mu       sync.RWMutex
	assets   []model.Asset
	warnings []IngestWarning
}

func NewStore(cfg *StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Ingest validates and normalizes a raw asset payload, recomputes all
// roll-ups, and swaps it in as the current snapshot. Facilities missing
// a type or unit id are dropped with a structured warning; facilities
// without an upstream timestamp are stamped with the ingest time.
func (s *Store) Ingest(payload []model.Asset) {
	now := s.cfg.Clock.Now()
	normalized, warnings := normalize(payload)
	for i := range normalized {
		stampLastUpdated(&normalized[i], now)
		rollUpAsset(&normalized[i])
	}

	for _, w := range warnings {
		s.log.Warn("hierarchy: ingest warning",
			"asset", w.AssetID,
			"unit", w.UnitID,
			"facility", w.FacilityID,
			"field", w.Field,
			"reason", w.Reason,
		)
	}

	s.mu.Lock()
	s.assets = normalized
	s.warnings = warnings
	s.mu.Unlock()
}

// Assets returns a deep copy of the current snapshot.
func (s *Store) Assets() []model.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAssets(s.assets)
}

// Asset returns the asset with the given id.
func (s *Store) Asset(id model.AssetID) (model.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.assets {
		if s.assets[i].ID == id {
			return cloneAsset(s.assets[i]), true
		}
	}
	return model.Asset{}, false
}

// Unit returns the production unit with the given id within an asset.
func (s *Store) Unit(assetID model.AssetID, unitID string) (model.ProductionUnit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.assets {
		if s.assets[i].ID != assetID {
			continue
		}
		for j := range s.assets[i].Units {
			if s.assets[i].Units[j].ID == unitID {
				return cloneUnit(s.assets[i].Units[j]), true
			}
		}
	}
	return model.ProductionUnit{}, false
}

// Facility returns the facility with the given id, wherever it sits in
// the tree.
func (s *Store) Facility(id string) (FacilityRef, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.assets {
		for j := range s.assets[i].Units {
			for k := range s.assets[i].Units[j].Facilities {
				f := s.assets[i].Units[j].Facilities[k]
				if f.ID == id {
					return FacilityRef{
						Asset:    s.assets[i].ID,
						UnitID:   s.assets[i].Units[j].ID,
						Facility: cloneFacility(f),
					}, true
				}
			}
		}
	}
	return FacilityRef{}, false
}

// FacilityRef locates a facility within the tree.
type FacilityRef struct {
	Asset    model.AssetID
	UnitID   string
	Facility model.Facility
}

// Facilities returns every facility in scope, optionally filtered by
// asset and/or a facility-id set.
func (s *Store) Facilities(asset model.AssetID, facilityIDs []string) []FacilityRef {
	var idSet map[string]struct{}
	if len(facilityIDs) > 0 {
		idSet = make(map[string]struct{}, len(facilityIDs))
		for _, id := range facilityIDs {
			idSet[id] = struct{}{}
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []FacilityRef
	for i := range s.assets {
		if asset != "" && s.assets[i].ID != asset {
			continue
		}
		for j := range s.assets[i].Units {
			for k := range s.assets[i].Units[j].Facilities {
				f := s.assets[i].Units[j].Facilities[k]
				if idSet != nil {
					if _, ok := idSet[f.ID]; !ok {
						continue
					}
				}
				out = append(out, FacilityRef{
					Asset:    s.assets[i].ID,
					UnitID:   s.assets[i].Units[j].ID,
					Facility: cloneFacility(f),
				})
			}
		}
	}
	return out
}

func stampLastUpdated(a *model.Asset, now time.Time) {
	for i := range a.Units {
		for j := range a.Units[i].Facilities {
			if a.Units[i].Facilities[j].LastUpdated.IsZero() {
				a.Units[i].Facilities[j].LastUpdated = now
			}
		}
	}
}

// Warnings returns the structured warnings recorded by the last ingest.
func (s *Store) Warnings() []IngestWarning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]IngestWarning, len(s.warnings))
	copy(out, s.warnings)
	return out
}

func cloneAssets(assets []model.Asset) []model.Asset {
	out := make([]model.Asset, len(assets))
	for i := range assets {
		out[i] = cloneAsset(assets[i])
	}
	return out
}

func cloneAsset(a model.Asset) model.Asset {
	out := a
	out.Networks = cloneNetworks(a.Networks)
	out.Units = make([]model.ProductionUnit, len(a.Units))
	for i := range a.Units {
		out.Units[i] = cloneUnit(a.Units[i])
	}
	return out
}

func cloneUnit(u model.ProductionUnit) model.ProductionUnit {
	out := u
	out.Networks = cloneNetworks(u.Networks)
	out.Facilities = make([]model.Facility, len(u.Facilities))
	for i := range u.Facilities {
		out.Facilities[i] = cloneFacility(u.Facilities[i])
	}
	return out
}

func cloneFacility(f model.Facility) model.Facility {
	out := f
	out.Networks = cloneNetworks(f.Networks)
	out.Wells = make([]model.Well, len(f.Wells))
	copy(out.Wells, f.Wells)
	return out
}

func cloneNetworks(m map[model.Network]model.NetworkMetrics) map[model.Network]model.NetworkMetrics {
	out := make(map[model.Network]model.NetworkMetrics, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
