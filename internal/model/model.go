// Package model defines the domain types shared by the fieldsync core:
// the asset hierarchy, network KPI metrics, gap drivers, alerts and
// optimisation actions.
package model

import "time"

// Network identifies a product stream overlay cutting across facilities.
type Network string

const (
	NetworkOil         Network = "oil"
	NetworkDomesticGas Network = "domesticGas"
	NetworkExportGas   Network = "exportGas"
	NetworkFlaredGas   Network = "flaredGas"
)

// Networks lists all product streams in canonical order.
var Networks = []Network{NetworkOil, NetworkDomesticGas, NetworkExportGas, NetworkFlaredGas}

// ProductionStreams lists the networks that count as sellable streams.
// Flared gas is tracked as a network but is never an affected stream.
var ProductionStreams = []Network{NetworkOil, NetworkExportGas, NetworkDomesticGas}

type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

type AssetID string

const (
	AssetEast AssetID = "east"
	AssetWest AssetID = "west"
)

type AssetStatus string

const (
	AssetStatusNormal   AssetStatus = "normal"
	AssetStatusWarning  AssetStatus = "warning"
	AssetStatusCritical AssetStatus = "critical"
)

type UnitStatus string

const (
	UnitStatusOnline      UnitStatus = "online"
	UnitStatusOffline     UnitStatus = "offline"
	UnitStatusMaintenance UnitStatus = "maintenance"
	UnitStatusStartup     UnitStatus = "startup"
)

type FacilityType string

const (
	FacilityFlowstation       FacilityType = "flowstation"
	FacilityCompressorStation FacilityType = "compressor-station"
	FacilityGasPlant          FacilityType = "gas-plant"
	FacilityTerminal          FacilityType = "terminal"
)

type WellStatus string

const (
	WellStatusActive      WellStatus = "active"
	WellStatusShutIn      WellStatus = "shut-in"
	WellStatusMaintenance WellStatus = "maintenance"
	WellStatusUnknown     WellStatus = "unknown"
)

// NetworkMetrics is the per-stream KPI snapshot attached to facilities,
// units and assets. All quantities are non-negative; Unit tags the rate
// unit (bbl/d for oil, mcf/d for gas streams).
type NetworkMetrics struct {
	MaxCapacity       float64 `json:"maxCapacity"`
	BusinessTarget    float64 `json:"businessTarget"`
	CurrentProduction float64 `json:"currentProduction"`
	Deferment         float64 `json:"deferment"`
	Unit              string  `json:"unit"`
	Trend             Trend   `json:"trend"`
	ChangePercent     float64 `json:"changePercent"`
}

// ZeroFlaredGas is the defaulted flared-gas snapshot used when a source
// payload omits the flared-gas network. Every unit and facility exposes
// flared gas, zeroed when absent.
func ZeroFlaredGas() NetworkMetrics {
	return NetworkMetrics{Unit: "mcf/d", Trend: TrendStable}
}

type Well struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Status   WellStatus `json:"status"`
	Priority int        `json:"priority,omitempty"`
}

// Facility is a physical processing node. Networks carries keys only for
// the streams the facility participates in before ingestion; the
// hierarchy store guarantees flared gas is present afterwards.
type Facility struct {
	ID          string                     `json:"id"`
	UnitID      string                     `json:"unitId"`
	Name        string                     `json:"name"`
	Type        FacilityType               `json:"type"`
	Status      UnitStatus                 `json:"status"`
	Networks    map[Network]NetworkMetrics `json:"networks"`
	Wells       []Well                     `json:"wells,omitempty"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

// ProductionUnit ("hub") is a cluster of facilities within an asset. Its
// Networks map is rolled up from its facilities by the hierarchy store.
type ProductionUnit struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Status     UnitStatus                 `json:"status"`
	Facilities []Facility                 `json:"facilities"`
	Networks   map[Network]NetworkMetrics `json:"networks"`
}

// Performance is the asset-level aggregate across all networks.
type Performance struct {
	CurrentProduction float64 `json:"currentProduction"`
	Capacity          float64 `json:"capacity"`
	BusinessTarget    float64 `json:"businessTarget"`
	Deferment         float64 `json:"deferment"`
	Trend             Trend   `json:"trend"`
	ChangePercent     float64 `json:"changePercent"`
}

type AssetUnitSummary struct {
	TotalUnits   int `json:"totalUnits"`
	ActiveUnits  int `json:"activeUnits"`
	OfflineUnits int `json:"offlineUnits"`
}

type AssetConstraints struct {
	Active   int `json:"active"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
}

// Asset is a top-level operating region (east/west).
type Asset struct {
	ID          AssetID                    `json:"id"`
	Name        string                     `json:"name"`
	Status      AssetStatus                `json:"status"`
	Performance Performance                `json:"performance"`
	Units       []ProductionUnit           `json:"units"`
	Summary     AssetUnitSummary           `json:"summary"`
	Constraints AssetConstraints           `json:"constraints"`
	Networks    map[Network]NetworkMetrics `json:"networks"`
}

type GapType string

const (
	GapTypeThroughput  GapType = "throughput"
	GapTypeEfficiency  GapType = "efficiency"
	GapTypeMaintenance GapType = "maintenance"
	GapTypeConstraint  GapType = "constraint"
)

type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityRank orders priorities for sorting, lowest rank first.
func PriorityRank(p Priority) int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type GapStatus string

const (
	GapStatusActive       GapStatus = "active"
	GapStatusAcknowledged GapStatus = "acknowledged"
	GapStatusResolved     GapStatus = "resolved"
)

type GapImpact struct {
	LostProduction float64 `json:"lostProduction"`
	Unit           string  `json:"unit"`
	Percentage     float64 `json:"percentage"`
}

type GapDuration struct {
	Start        time.Time  `json:"start"`
	EstimatedEnd *time.Time `json:"estimatedEnd,omitempty"`
	TotalHours   float64    `json:"totalHours"`
}

// GapDriver is a derived, ranked production-gap contributor. It has no
// identity across reads beyond the stable ID derived from
// (asset, unit, facility, network).
type GapDriver struct {
	ID              string      `json:"id"`
	NodeID          string      `json:"nodeId"`
	Asset           AssetID     `json:"asset"`
	UnitID          string      `json:"unitId"`
	Network         Network     `json:"network"`
	GapType         GapType     `json:"gapType"`
	Impact          GapImpact   `json:"impact"`
	AffectedStreams []Network   `json:"affectedStreams"`
	Duration        GapDuration `json:"duration"`
	Priority        Priority    `json:"priority"`
	Status          GapStatus   `json:"status"`
	LastUpdated     time.Time   `json:"lastUpdated"`
}

// OptimisationAction is a recommended state-changing action with a
// lifecycle driven by the mutation coordinator.
type OptimisationAction struct {
	ID             string             `json:"id"`
	Asset          AssetID            `json:"asset"`
	NodeID         string             `json:"nodeId"`
	Stream         Network            `json:"stream"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Priority       Priority           `json:"priority"`
	Status         OptimisationStatus `json:"status"`
	PotentialGain  float64            `json:"potentialGain"`
	Unit           string             `json:"unit"`
	CreatedAt      time.Time          `json:"createdAt"`
	AcknowledgedBy string             `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time         `json:"acknowledgedAt,omitempty"`
	ResolvedBy     string             `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time         `json:"resolvedAt,omitempty"`
}

type AlertType string

const (
	AlertTypeProductionDeviance AlertType = "production_deviance"
	AlertTypeEquipmentFailure   AlertType = "equipment_failure"
	AlertTypeThresholdBreach    AlertType = "threshold_breach"
	AlertTypeConstraintDetected AlertType = "constraint_detected"
)

// Alert is an operational alert raised against a facility or stream.
type Alert struct {
	ID             string      `json:"id"`
	Asset          AssetID     `json:"asset"`
	NodeID         string      `json:"nodeId"`
	Stream         Network     `json:"stream"`
	Type           AlertType   `json:"type"`
	Priority       Priority    `json:"priority"`
	Title          string      `json:"title"`
	Description    string      `json:"description"`
	Status         AlertState  `json:"status"`
	Timestamp      time.Time   `json:"timestamp"`
	AcknowledgedBy string      `json:"acknowledgedBy,omitempty"`
	AcknowledgedAt *time.Time  `json:"acknowledgedAt,omitempty"`
	ResolvedBy     string      `json:"resolvedBy,omitempty"`
	ResolvedAt     *time.Time  `json:"resolvedAt,omitempty"`
}

// OptimisationCounts and AlertCounts are the summary counters the
// mutation coordinator keeps consistent during optimistic applies.
type OptimisationCounts struct {
	Pending      int `json:"pending"`
	Acknowledged int `json:"acknowledged"`
	Implementing int `json:"implementing"`
	Completed    int `json:"completed"`
	Dismissed    int `json:"dismissed"`
}

type AlertCounts struct {
	Active       int `json:"active"`
	Acknowledged int `json:"acknowledged"`
	Resolved     int `json:"resolved"`
}

// Summary is the cross-asset KPI rollup served to dashboards.
type Summary struct {
	Timeframe       string             `json:"timeframe"`
	Production      float64            `json:"production"`
	Capacity        float64            `json:"capacity"`
	BusinessTarget  float64            `json:"businessTarget"`
	Deferment       float64            `json:"deferment"`
	AssetCount      int                `json:"assetCount"`
	UnitCount       int                `json:"unitCount"`
	FacilityCount   int                `json:"facilityCount"`
	Optimisations   OptimisationCounts `json:"optimisations"`
	Alerts          AlertCounts        `json:"alerts"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// TerminalOperations carries the export-terminal KPI snapshot.
type TerminalOperations struct {
	TerminalID    string    `json:"terminalId"`
	CapacityMMBbl float64   `json:"capacityMmbbl"`
	GrossMMBbl    float64   `json:"grossMmbbl"`
	ReadyKbpd     float64   `json:"readyKbpd"`
	RateKbpd      float64   `json:"rateKbpd"`
	EnduranceDays float64   `json:"enduranceDays"`
	LastUpdated   time.Time `json:"lastUpdated"`
}
