package sim

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

// facilitySpec seeds one generated facility. Capacity is split across
// the listed networks; production is drawn between 55% and 98% of
// target so some facilities always carry a gap.
type facilitySpec struct {
	id       string
	name     string
	ftype    model.FacilityType
	networks []model.Network
}

type unitSpec struct {
	id         string
	name       string
	facilities []facilitySpec
}

type assetSpec struct {
	id    model.AssetID
	name  string
	units []unitSpec
}

var worldSpec = []assetSpec{
	{
		id:   model.AssetEast,
		name: "East Asset",
		units: []unitSpec{
			{
				id:   "east-hub-alpha",
				name: "Alpha Hub",
				facilities: []facilitySpec{
					{"east-fs-1", "Alpha Flowstation 1", model.FacilityFlowstation, []model.Network{model.NetworkOil, model.NetworkFlaredGas}},
					{"east-fs-2", "Alpha Flowstation 2", model.FacilityFlowstation, []model.Network{model.NetworkOil, model.NetworkDomesticGas}},
					{"east-cs-1", "Alpha Compressor Station", model.FacilityCompressorStation, []model.Network{model.NetworkExportGas, model.NetworkDomesticGas}},
				},
			},
			{
				id:   "east-hub-bravo",
				name: "Bravo Hub",
				facilities: []facilitySpec{
					{"east-gp-1", "Bravo Gas Plant", model.FacilityGasPlant, []model.Network{model.NetworkExportGas, model.NetworkDomesticGas, model.NetworkFlaredGas}},
					{"east-fs-3", "Bravo Flowstation", model.FacilityFlowstation, []model.Network{model.NetworkOil}},
					{"east-term-1", "Bravo Export Terminal", model.FacilityTerminal, []model.Network{model.NetworkOil}},
				},
			},
		},
	},
	{
		id:   model.AssetWest,
		name: "West Asset",
		units: []unitSpec{
			{
				id:   "west-hub-delta",
				name: "Delta Hub",
				facilities: []facilitySpec{
					{"west-fs-1", "Delta Flowstation 1", model.FacilityFlowstation, []model.Network{model.NetworkOil, model.NetworkFlaredGas}},
					{"west-cs-1", "Delta Compressor Station", model.FacilityCompressorStation, []model.Network{model.NetworkExportGas}},
				},
			},
			{
				id:   "west-hub-echo",
				name: "Echo Hub",
				facilities: []facilitySpec{
					{"west-gp-1", "Echo Gas Plant", model.FacilityGasPlant, []model.Network{model.NetworkExportGas, model.NetworkDomesticGas}},
					{"west-fs-2", "Echo Flowstation", model.FacilityFlowstation, []model.Network{model.NetworkOil, model.NetworkDomesticGas}},
					{"west-term-1", "Echo Export Terminal", model.FacilityTerminal, []model.Network{model.NetworkOil}},
				},
			},
		},
	},
}

func buildAssets(rng *rand.Rand, now time.Time) []model.Asset {
	assets := make([]model.Asset, 0, len(worldSpec))
	for _, as := range worldSpec {
		asset := model.Asset{ID: as.id, Name: as.name}
		for _, us := range as.units {
			unit := model.ProductionUnit{
				ID:     us.id,
				Name:   us.name,
				Status: pickUnitStatus(rng),
			}
			for _, fs := range us.facilities {
				unit.Facilities = append(unit.Facilities, buildFacility(rng, us.id, fs, now))
			}
			asset.Units = append(asset.Units, unit)
		}
		assets = append(assets, asset)
	}
	return assets
}

func buildFacility(rng *rand.Rand, unitID string, spec facilitySpec, now time.Time) model.Facility {
	f := model.Facility{
		ID:          spec.id,
		UnitID:      unitID,
		Name:        spec.name,
		Type:        spec.ftype,
		Status:      model.UnitStatusOnline,
		Networks:    make(map[model.Network]model.NetworkMetrics, len(spec.networks)),
		LastUpdated: now.Add(-time.Duration(rng.Intn(72)) * time.Hour),
	}

	for _, network := range spec.networks {
		capacity := 20000 + rng.Float64()*60000
		if network == model.NetworkOil {
			capacity = 30000 + rng.Float64()*70000
		}
		target := capacity * (0.80 + rng.Float64()*0.12)
		production := target * (0.55 + rng.Float64()*0.43)
		f.Networks[network] = model.NetworkMetrics{
			MaxCapacity:       capacity,
			BusinessTarget:    target,
			CurrentProduction: production,
			Unit:              unitFor(network),
			Trend:             pickTrend(rng),
			ChangePercent:     (rng.Float64() - 0.5) * 10,
		}
	}

	wells := 2 + rng.Intn(4)
	for i := 0; i < wells; i++ {
		f.Wells = append(f.Wells, model.Well{
			ID:       fmt.Sprintf("%s-well-%d", spec.id, i+1),
			Name:     fmt.Sprintf("%s Well %d", spec.name, i+1),
			Status:   pickWellStatus(rng),
			Priority: 1 + rng.Intn(9),
		})
	}
	return f
}

func buildOptimisations(rng *rand.Rand, assets []model.Asset, now time.Time) []model.OptimisationAction {
	titles := []struct {
		title  string
		stream model.Network
		gain   float64
	}{
		{"Re-route gas lift to underperforming wells", model.NetworkOil, 4200},
		{"Recover flare gas to export compressor", model.NetworkExportGas, 2800},
		{"Stagger compressor maintenance window", model.NetworkExportGas, 1900},
		{"Rebalance domestic gas nominations", model.NetworkDomesticGas, 1500},
		{"Optimize separator pressure setpoints", model.NetworkOil, 3600},
		{"Clear terminal backpressure constraint", model.NetworkOil, 5100},
	}

	var out []model.OptimisationAction
	for i, t := range titles {
		asset := assets[i%len(assets)]
		unit := asset.Units[i%len(asset.Units)]
		fac := unit.Facilities[i%len(unit.Facilities)]
		out = append(out, model.OptimisationAction{
			ID:            uuid.NewString(),
			Asset:         asset.ID,
			NodeID:        fac.ID,
			Stream:        t.stream,
			Title:         t.title,
			Description:   fmt.Sprintf("%s at %s", t.title, fac.Name),
			Priority:      pickPriority(rng),
			Status:        model.OptimisationPending,
			PotentialGain: t.gain * (0.8 + rng.Float64()*0.4),
			Unit:          unitFor(t.stream),
			CreatedAt:     now.Add(-time.Duration(rng.Intn(48)) * time.Hour),
		})
	}
	return out
}

func buildAlerts(rng *rand.Rand, assets []model.Asset, now time.Time) []model.Alert {
	kinds := []struct {
		t     model.AlertType
		title string
	}{
		{model.AlertTypeConstraintDetected, "Export line pressure constraint"},
		{model.AlertTypeProductionDeviance, "Production below business target"},
		{model.AlertTypeEquipmentFailure, "Compressor trip detected"},
		{model.AlertTypeThresholdBreach, "Flare volume above permit threshold"},
	}

	var out []model.Alert
	i := 0
	for _, asset := range assets {
		for _, unit := range asset.Units {
			fac := unit.Facilities[rng.Intn(len(unit.Facilities))]
			k := kinds[i%len(kinds)]
			out = append(out, model.Alert{
				ID:          uuid.NewString(),
				Asset:       asset.ID,
				NodeID:      fac.ID,
				Stream:      model.ProductionStreams[rng.Intn(len(model.ProductionStreams))],
				Type:        k.t,
				Priority:    pickPriority(rng),
				Title:       k.title,
				Description: fmt.Sprintf("%s at %s", k.title, fac.Name),
				Status:      model.AlertActive,
				Timestamp:   now.Add(-time.Duration(rng.Intn(24)) * time.Hour),
			})
			i++
		}
	}
	return out
}

func buildTerminals(rng *rand.Rand, assets []model.Asset, now time.Time) map[string]model.TerminalOperations {
	out := make(map[string]model.TerminalOperations)
	for _, asset := range assets {
		for _, unit := range asset.Units {
			for _, fac := range unit.Facilities {
				if fac.Type != model.FacilityTerminal {
					continue
				}
				capacity := 2.0 + rng.Float64()*3.0
				gross := capacity * (0.4 + rng.Float64()*0.5)
				rate := 150 + rng.Float64()*250
				out[fac.ID] = model.TerminalOperations{
					TerminalID:    fac.ID,
					CapacityMMBbl: capacity,
					GrossMMBbl:    gross,
					ReadyKbpd:     rate * (0.8 + rng.Float64()*0.2),
					RateKbpd:      rate,
					EnduranceDays: (capacity - gross) * 1000 / rate,
					LastUpdated:   now,
				}
			}
		}
	}
	return out
}

func cloneAssetPayload(assets []model.Asset) []model.Asset {
	out := make([]model.Asset, len(assets))
	for i, a := range assets {
		out[i] = a
		out[i].Units = make([]model.ProductionUnit, len(a.Units))
		for j, u := range a.Units {
			out[i].Units[j] = u
			out[i].Units[j].Facilities = make([]model.Facility, len(u.Facilities))
			for k, f := range u.Facilities {
				nf := f
				nf.Networks = make(map[model.Network]model.NetworkMetrics, len(f.Networks))
				for network, m := range f.Networks {
					nf.Networks[network] = m
				}
				nf.Wells = make([]model.Well, len(f.Wells))
				copy(nf.Wells, f.Wells)
				out[i].Units[j].Facilities[k] = nf
			}
		}
	}
	return out
}

func unitFor(network model.Network) string {
	if network == model.NetworkOil {
		return "bbl/d"
	}
	return "mcf/d"
}

func pickTrend(rng *rand.Rand) model.Trend {
	switch rng.Intn(3) {
	case 0:
		return model.TrendUp
	case 1:
		return model.TrendDown
	default:
		return model.TrendStable
	}
}

func pickUnitStatus(rng *rand.Rand) model.UnitStatus {
	// Mostly online; the occasional unit in maintenance or startup.
	switch rng.Intn(10) {
	case 0:
		return model.UnitStatusMaintenance
	case 1:
		return model.UnitStatusStartup
	default:
		return model.UnitStatusOnline
	}
}

func pickWellStatus(rng *rand.Rand) model.WellStatus {
	switch rng.Intn(6) {
	case 0:
		return model.WellStatusShutIn
	case 1:
		return model.WellStatusMaintenance
	default:
		return model.WellStatusActive
	}
}

func pickPriority(rng *rand.Rand) model.Priority {
	switch rng.Intn(4) {
	case 0:
		return model.PriorityCritical
	case 1:
		return model.PriorityHigh
	case 2:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}
