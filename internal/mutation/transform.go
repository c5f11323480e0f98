package mutation

import (
	"fmt"

	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

// mutationPlan carries the validated optimistic transforms for one
// mutating call. asset scopes the apply to cache entries that can
// actually contain the entity; empty when the entity is uncached.
type mutationPlan struct {
	asset            model.AssetID
	transform        func(key cache.Key, value any) any
	summaryTransform func(key cache.Key, value any) any
}

// plan validates the transition against the entity's current cached
// state and builds the transforms. When the entity appears in no cached
// collection the transition is validated server-side only and the
// transforms are no-ops for collections that lack it.
func (m *Coordinator) plan(kind transport.Kind, id string, action model.Action, user string) (*mutationPlan, error) {
	switch kind {
	case transport.KindOptimisations:
		return m.planOptimisation(id, action, user)
	case transport.KindAlerts:
		return m.planAlert(id, action, user)
	default:
		return nil, fmt.Errorf("no transform for kind %s", kind)
	}
}

func (m *Coordinator) planOptimisation(id string, action model.Action, user string) (*mutationPlan, error) {
	var from model.OptimisationStatus
	var asset model.AssetID
	found := false
	for _, snap := range m.cfg.Cache.SnapshotMatching(cache.KindIs(transport.KindOptimisations)) {
		actions, ok := snap.Value.([]model.OptimisationAction)
		if !ok {
			continue
		}
		for _, a := range actions {
			if a.ID == id {
				from, asset, found = a.Status, a.Asset, true
				break
			}
		}
		if found {
			break
		}
	}

	var to model.OptimisationStatus
	if found {
		var err error
		to, err = model.NextOptimisationStatus(from, action)
		if err != nil {
			return nil, err
		}
	}

	now := m.cfg.Clock.Now()
	transform := func(_ cache.Key, value any) any {
		actions, ok := value.([]model.OptimisationAction)
		if !ok {
			return value
		}
		out := make([]model.OptimisationAction, len(actions))
		copy(out, actions)
		for i := range out {
			if out[i].ID != id {
				continue
			}
			next, err := model.NextOptimisationStatus(out[i].Status, action)
			if err != nil {
				continue
			}
			out[i].Status = next
			switch action {
			case model.ActionAcknowledge:
				out[i].AcknowledgedBy = user
				t := now
				out[i].AcknowledgedAt = &t
			case model.ActionComplete, model.ActionResolve:
				out[i].ResolvedBy = user
				t := now
				out[i].ResolvedAt = &t
			}
		}
		return out
	}

	var summaryTransform func(key cache.Key, value any) any
	if found {
		summaryTransform = optimisationCountShift(from, to)
	}
	return &mutationPlan{asset: asset, transform: transform, summaryTransform: summaryTransform}, nil
}

func (m *Coordinator) planAlert(id string, action model.Action, user string) (*mutationPlan, error) {
	var from model.AlertState
	var asset model.AssetID
	found := false
	for _, snap := range m.cfg.Cache.SnapshotMatching(cache.KindIs(transport.KindAlerts)) {
		alerts, ok := snap.Value.([]model.Alert)
		if !ok {
			continue
		}
		for _, a := range alerts {
			if a.ID == id {
				from, asset, found = a.Status, a.Asset, true
				break
			}
		}
		if found {
			break
		}
	}

	var to model.AlertState
	if found {
		var err error
		to, err = model.NextAlertState(from, action)
		if err != nil {
			return nil, err
		}
	}

	now := m.cfg.Clock.Now()
	transform := func(_ cache.Key, value any) any {
		alerts, ok := value.([]model.Alert)
		if !ok {
			return value
		}
		out := make([]model.Alert, len(alerts))
		copy(out, alerts)
		for i := range out {
			if out[i].ID != id {
				continue
			}
			next, err := model.NextAlertState(out[i].Status, action)
			if err != nil {
				continue
			}
			out[i].Status = next
			switch action {
			case model.ActionAcknowledge:
				out[i].AcknowledgedBy = user
				t := now
				out[i].AcknowledgedAt = &t
			case model.ActionResolve:
				out[i].ResolvedBy = user
				t := now
				out[i].ResolvedAt = &t
			}
		}
		return out
	}

	var summaryTransform func(key cache.Key, value any) any
	if found {
		summaryTransform = alertCountShift(from, to)
	}
	return &mutationPlan{asset: asset, transform: transform, summaryTransform: summaryTransform}, nil
}

// optimisationCountShift moves one action between summary counters so
// cached summaries stay consistent with the optimistic collection view.
func optimisationCountShift(from, to model.OptimisationStatus) func(key cache.Key, value any) any {
	return func(_ cache.Key, value any) any {
		s, ok := value.(model.Summary)
		if !ok {
			return value
		}
		adjustOptimisationCount(&s.Optimisations, from, -1)
		adjustOptimisationCount(&s.Optimisations, to, +1)
		return s
	}
}

func adjustOptimisationCount(c *model.OptimisationCounts, status model.OptimisationStatus, delta int) {
	switch status {
	case model.OptimisationPending:
		c.Pending += delta
	case model.OptimisationAcknowledged:
		c.Acknowledged += delta
	case model.OptimisationImplementing:
		c.Implementing += delta
	case model.OptimisationCompleted:
		c.Completed += delta
	case model.OptimisationDismissed, model.OptimisationRejected:
		c.Dismissed += delta
	}
}

func alertCountShift(from, to model.AlertState) func(key cache.Key, value any) any {
	return func(_ cache.Key, value any) any {
		s, ok := value.(model.Summary)
		if !ok {
			return value
		}
		adjustAlertCount(&s.Alerts, from, -1)
		adjustAlertCount(&s.Alerts, to, +1)
		return s
	}
}

func adjustAlertCount(c *model.AlertCounts, state model.AlertState, delta int) {
	switch state {
	case model.AlertActive:
		c.Active += delta
	case model.AlertAcknowledged, model.AlertInvestigating:
		c.Acknowledged += delta
	case model.AlertResolved:
		c.Resolved += delta
	}
}
