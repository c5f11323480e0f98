package model

import "fmt"

// Action is a user-initiated state change applied through the mutation
// coordinator.
type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionImplement   Action = "implement"
	ActionComplete    Action = "complete"
	ActionResolve     Action = "resolve"
	ActionDismiss     Action = "dismiss"
	ActionReject      Action = "reject"
	ActionInvestigate Action = "investigate"
)

type OptimisationStatus string

const (
	OptimisationPending      OptimisationStatus = "pending"
	OptimisationAcknowledged OptimisationStatus = "acknowledged"
	OptimisationImplementing OptimisationStatus = "implementing"
	OptimisationCompleted    OptimisationStatus = "completed"
	OptimisationRejected     OptimisationStatus = "rejected"
	OptimisationDismissed    OptimisationStatus = "dismissed"
)

type AlertState string

const (
	AlertActive        AlertState = "active"
	AlertAcknowledged  AlertState = "acknowledged"
	AlertInvestigating AlertState = "investigating"
	AlertResolved      AlertState = "resolved"
	AlertDismissed     AlertState = "dismissed"
)

// ErrInvalidTransition is returned when an action is not legal from the
// entity's current state, including actions against terminal states.
type ErrInvalidTransition struct {
	From   string
	Action Action
}

func (e *ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition: action %q from state %q", e.Action, e.From)
}

// optimisationTransitions maps (current status, action) to the resulting
// status. Completed, rejected and dismissed are absorbing.
var optimisationTransitions = map[OptimisationStatus]map[Action]OptimisationStatus{
	OptimisationPending: {
		ActionAcknowledge: OptimisationAcknowledged,
		ActionDismiss:     OptimisationDismissed,
		ActionReject:      OptimisationRejected,
	},
	OptimisationAcknowledged: {
		ActionImplement: OptimisationImplementing,
		ActionDismiss:   OptimisationDismissed,
		ActionReject:    OptimisationRejected,
	},
	OptimisationImplementing: {
		ActionComplete: OptimisationCompleted,
	},
}

// alertTransitions maps (current state, action) to the resulting state.
// Investigating is an optional intermediate; dismissed is an alternate
// terminal reachable only from active.
var alertTransitions = map[AlertState]map[Action]AlertState{
	AlertActive: {
		ActionAcknowledge: AlertAcknowledged,
		ActionDismiss:     AlertDismissed,
	},
	AlertAcknowledged: {
		ActionInvestigate: AlertInvestigating,
		ActionResolve:     AlertResolved,
	},
	AlertInvestigating: {
		ActionResolve: AlertResolved,
	},
}

// NextOptimisationStatus returns the status resulting from applying
// action to the current status.
func NextOptimisationStatus(from OptimisationStatus, action Action) (OptimisationStatus, error) {
	to, ok := optimisationTransitions[from][action]
	if !ok {
		return "", &ErrInvalidTransition{From: string(from), Action: action}
	}
	return to, nil
}

// NextAlertState returns the state resulting from applying action to the
// current state.
func NextAlertState(from AlertState, action Action) (AlertState, error) {
	to, ok := alertTransitions[from][action]
	if !ok {
		return "", &ErrInvalidTransition{From: string(from), Action: action}
	}
	return to, nil
}
