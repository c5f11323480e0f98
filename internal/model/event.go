package model

import "time"

// EventType classifies push events from the upstream notifier feed.
type EventType string

const (
	EventKPIUpdate          EventType = "kpi_update"
	EventConstraintAlert    EventType = "constraint_alert"
	EventOptimisationUpdate EventType = "optimisation_update"
	EventSystemStatus       EventType = "system_status"
)

// Event is a typed push notification identifying affected entities.
// Events carry no sequence numbers; duplicate or out-of-order delivery
// is tolerated because consumers only derive idempotent invalidations
// from them, never payload data.
type Event struct {
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	Asset          AssetID   `json:"asset,omitempty"`
	NodeID         string    `json:"nodeId,omitempty"`
	OptimisationID string    `json:"optimisationId,omitempty"`
	AlertID        string    `json:"alertId,omitempty"`
}
