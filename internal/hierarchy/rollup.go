package hierarchy

import (
	"fmt"

	"github.com/upstreamlabs/fieldsync/internal/model"
)

// gapPercentage is deferment relative to capacity, in percent. Zero
// capacity yields zero rather than a division blow-up.
func gapPercentage(m model.NetworkMetrics) float64 {
	if m.MaxCapacity <= 0 {
		return 0
	}
	return m.Deferment / m.MaxCapacity * 100
}

// normalize validates the raw payload: clamps negative numerics, drops
// facilities missing a type or unit id, defaults the flared-gas network,
// and recomputes deferment as max(0, businessTarget - currentProduction)
// regardless of what the feed supplied.
func normalize(payload []model.Asset) ([]model.Asset, []IngestWarning) {
	var warnings []IngestWarning
	out := make([]model.Asset, 0, len(payload))

	for _, asset := range payload {
		a := asset
		a.Units = make([]model.ProductionUnit, 0, len(asset.Units))
		for _, unit := range asset.Units {
			u := unit
			u.Facilities = make([]model.Facility, 0, len(unit.Facilities))
			for _, fac := range unit.Facilities {
				if fac.Type == "" {
					warnings = append(warnings, IngestWarning{
						AssetID: a.ID, UnitID: u.ID, FacilityID: fac.ID,
						Field: "type", Reason: "missing facility type, entity dropped",
					})
					continue
				}
				if fac.UnitID == "" {
					warnings = append(warnings, IngestWarning{
						AssetID: a.ID, UnitID: u.ID, FacilityID: fac.ID,
						Field: "unitId", Reason: "missing unit id, entity dropped",
					})
					continue
				}
				f, ws := normalizeFacility(a.ID, u.ID, fac)
				warnings = append(warnings, ws...)
				u.Facilities = append(u.Facilities, f)
			}
			a.Units = append(a.Units, u)
		}
		out = append(out, a)
	}
	return out, warnings
}

func normalizeFacility(assetID model.AssetID, unitID string, fac model.Facility) (model.Facility, []IngestWarning) {
	var warnings []IngestWarning

	clamp := func(network model.Network, field string, v *float64) {
		if *v < 0 {
			warnings = append(warnings, IngestWarning{
				AssetID: assetID, UnitID: unitID, FacilityID: fac.ID,
				Field:  fmt.Sprintf("%s.%s", network, field),
				Reason: "negative value clamped to 0",
			})
			*v = 0
		}
	}

	networks := make(map[model.Network]model.NetworkMetrics, len(fac.Networks)+1)
	for network, m := range fac.Networks {
		clamp(network, "maxCapacity", &m.MaxCapacity)
		clamp(network, "businessTarget", &m.BusinessTarget)
		clamp(network, "currentProduction", &m.CurrentProduction)
		// Canonical deferment definition; the feed's value is advisory.
		m.Deferment = max(0, m.BusinessTarget-m.CurrentProduction)
		if m.Unit == "" {
			m.Unit = defaultUnit(network)
		}
		if m.Trend == "" {
			m.Trend = model.TrendStable
		}
		networks[network] = m
	}

	// Every facility exposes flared gas, zeroed when the source omits it.
	if _, ok := networks[model.NetworkFlaredGas]; !ok {
		networks[model.NetworkFlaredGas] = model.ZeroFlaredGas()
	}

	fac.Networks = networks
	return fac, warnings
}

func defaultUnit(network model.Network) string {
	if network == model.NetworkOil {
		return "bbl/d"
	}
	return "mcf/d"
}

// rollUpAsset recomputes unit-level and asset-level aggregates from the
// facility leaves: summed network metrics, majority-vote trends, unit
// summaries, constraint counts and the derived asset status.
func rollUpAsset(a *model.Asset) {
	for i := range a.Units {
		rollUpUnit(&a.Units[i])
	}

	unitNetworks := make([]map[model.Network]model.NetworkMetrics, 0, len(a.Units))
	for i := range a.Units {
		unitNetworks = append(unitNetworks, a.Units[i].Networks)
	}
	a.Networks = sumNetworks(unitNetworks)

	var perf model.Performance
	trendWeights := make(map[model.Trend]float64)
	for _, m := range a.Networks {
		perf.CurrentProduction += m.CurrentProduction
		perf.Capacity += m.MaxCapacity
		perf.BusinessTarget += m.BusinessTarget
		perf.Deferment += m.Deferment
		w := m.CurrentProduction
		if w == 0 {
			w = 1
		}
		trendWeights[m.Trend] += w
	}
	perf.Trend = pickTrend(trendWeights)
	perf.ChangePercent = weightedChangePercent(a.Networks)
	a.Performance = perf

	a.Summary = model.AssetUnitSummary{TotalUnits: len(a.Units)}
	for _, u := range a.Units {
		switch u.Status {
		case model.UnitStatusOnline, model.UnitStatusStartup:
			a.Summary.ActiveUnits++
		case model.UnitStatusOffline:
			a.Summary.OfflineUnits++
		}
	}

	a.Constraints = countConstraints(a)
	a.Status = deriveAssetStatus(a.Constraints)
}

func rollUpUnit(u *model.ProductionUnit) {
	facilityNetworks := make([]map[model.Network]model.NetworkMetrics, 0, len(u.Facilities))
	for i := range u.Facilities {
		facilityNetworks = append(facilityNetworks, u.Facilities[i].Networks)
	}
	u.Networks = sumNetworks(facilityNetworks)
}

// sumNetworks folds child network maps into one, summing the numeric
// fields, majority-voting the trend weighted by production, and
// production-weighting the change percent. Flared gas is always present
// in the result.
func sumNetworks(children []map[model.Network]model.NetworkMetrics) map[model.Network]model.NetworkMetrics {
	type acc struct {
		m            model.NetworkMetrics
		trendWeights map[model.Trend]float64
		changeWeight float64
		changeSum    float64
	}
	accs := make(map[model.Network]*acc)

	for _, networks := range children {
		for network, m := range networks {
			a, ok := accs[network]
			if !ok {
				a = &acc{trendWeights: make(map[model.Trend]float64)}
				a.m.Unit = m.Unit
				accs[network] = a
			}
			a.m.MaxCapacity += m.MaxCapacity
			a.m.BusinessTarget += m.BusinessTarget
			a.m.CurrentProduction += m.CurrentProduction
			a.m.Deferment += m.Deferment
			// Weight trend votes by throughput; a zero-rate facility still
			// gets a nominal vote.
			w := m.CurrentProduction
			if w == 0 {
				w = 1
			}
			a.trendWeights[m.Trend] += w
			a.changeSum += m.ChangePercent * m.CurrentProduction
			a.changeWeight += m.CurrentProduction
		}
	}

	out := make(map[model.Network]model.NetworkMetrics, len(accs)+1)
	for network, a := range accs {
		m := a.m
		m.Trend = pickTrend(a.trendWeights)
		if a.changeWeight > 0 {
			m.ChangePercent = a.changeSum / a.changeWeight
		}
		if m.Unit == "" {
			m.Unit = defaultUnit(network)
		}
		out[network] = m
	}
	if _, ok := out[model.NetworkFlaredGas]; !ok {
		out[model.NetworkFlaredGas] = model.ZeroFlaredGas()
	}
	return out
}

// pickTrend returns the heaviest trend, stable on ties or no votes.
func pickTrend(weights map[model.Trend]float64) model.Trend {
	best := model.TrendStable
	bestW := weights[model.TrendStable]
	for _, t := range []model.Trend{model.TrendUp, model.TrendDown} {
		if weights[t] > bestW {
			best, bestW = t, weights[t]
		}
	}
	return best
}

func weightedChangePercent(networks map[model.Network]model.NetworkMetrics) float64 {
	var sum, weight float64
	for _, m := range networks {
		sum += m.ChangePercent * m.CurrentProduction
		weight += m.CurrentProduction
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// countConstraints counts facilities with a production shortfall on any
// sellable stream, split by the gap-percentage severity thresholds.
func countConstraints(a *model.Asset) model.AssetConstraints {
	var c model.AssetConstraints
	for _, u := range a.Units {
		for _, f := range u.Facilities {
			worst := -1.0
			for _, network := range model.ProductionStreams {
				m, ok := f.Networks[network]
				if !ok || m.Deferment <= 0 {
					continue
				}
				if pct := gapPercentage(m); pct > worst {
					worst = pct
				}
			}
			if worst < 0 {
				continue
			}
			c.Active++
			switch {
			case worst >= 30:
				c.Critical++
			case worst >= 10:
				c.Warning++
			}
		}
	}
	return c
}

func deriveAssetStatus(c model.AssetConstraints) model.AssetStatus {
	switch {
	case c.Critical > 0:
		return model.AssetStatusCritical
	case c.Warning > 0 || c.Active > 0:
		return model.AssetStatusWarning
	default:
		return model.AssetStatusNormal
	}
}
