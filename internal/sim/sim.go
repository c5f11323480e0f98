// Package sim is an in-process implementation of the network interface
// backed by generated production data. It honors the mutation state
// machines and pushes typed events on a jittered cadence, so the full
// sync core can run against it in demos and tests.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/upstreamlabs/fieldsync/config"
	"github.com/upstreamlabs/fieldsync/internal/model"
	"github.com/upstreamlabs/fieldsync/internal/transport"
)

type ClientConfig struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	Seed   int64

	EventCadence time.Duration
	EventJitter  time.Duration
}

func (c *ClientConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	if c.Seed == 0 {
		c.Seed = 1
	}
	if c.EventCadence == 0 {
		c.EventCadence = config.DefaultEventCadence
	}
	if c.EventJitter == 0 {
		c.EventJitter = config.DefaultEventJitter
	}
	return nil
}

// Client generates and owns its world state. All methods are safe for
// concurrent use.
type Client struct {
	log   *slog.Logger
	cfg   *ClientConfig
	clock clockwork.Clock

	mu            sync.Mutex
	rng           *rand.Rand
	assets        []model.Asset
	optimisations []model.OptimisationAction
	alerts        []model.Alert
	terminals     map[string]model.TerminalOperations

	// Fault injection: the next failFetches fetches fail with failStatus.
	failFetches int
	failStatus  int
}

func NewClient(cfg *ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		log:   cfg.Logger,
		cfg:   cfg,
		clock: cfg.Clock,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	c.assets = buildAssets(c.rng, c.clock.Now())
	c.optimisations = buildOptimisations(c.rng, c.assets, c.clock.Now())
	c.alerts = buildAlerts(c.rng, c.assets, c.clock.Now())
	c.terminals = buildTerminals(c.rng, c.assets, c.clock.Now())
	return c, nil
}

// FailNextFetches makes the next n FetchResource calls fail with the
// given HTTP-style status. Status >= 500 yields a transient error, 4xx
// a client error.
func (c *Client) FailNextFetches(n, status int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failFetches = n
	c.failStatus = status
}

func (c *Client) FetchResource(ctx context.Context, kind transport.Kind, filters transport.Filters) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.TransientError{Err: err}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failFetches > 0 {
		c.failFetches--
		if c.failStatus >= 400 && c.failStatus < 500 {
			return nil, &transport.ClientError{Status: c.failStatus, Msg: "injected fault"}
		}
		return nil, &transport.TransientError{Status: c.failStatus, Err: errors.New("injected fault")}
	}

	switch kind {
	case transport.KindAssets, transport.KindNodes:
		c.drift()
		return cloneAssetPayload(c.assets), nil
	case transport.KindSummary:
		return c.summaryLocked(filters), nil
	case transport.KindOptimisations:
		return filterOptimisations(c.optimisations, filters), nil
	case transport.KindAlerts:
		return filterAlerts(c.alerts, filters), nil
	case transport.KindTerminalOperations:
		ops, ok := c.terminals[filters["terminalId"]]
		if !ok {
			return nil, &transport.ClientError{Status: 404, Msg: "unknown terminal " + filters["terminalId"]}
		}
		return ops, nil
	default:
		return nil, &transport.ClientError{Status: 404, Msg: "unknown resource kind " + string(kind)}
	}
}

func (c *Client) Mutate(ctx context.Context, kind transport.Kind, id string, action model.Action, payload map[string]any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, &transport.TransientError{Err: err}
	}

	user, _ := payload["user"].(string)
	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case transport.KindOptimisations:
		for i := range c.optimisations {
			if c.optimisations[i].ID != id {
				continue
			}
			next, err := model.NextOptimisationStatus(c.optimisations[i].Status, action)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", transport.ErrMutationConflict, err)
			}
			c.optimisations[i].Status = next
			switch action {
			case model.ActionAcknowledge:
				c.optimisations[i].AcknowledgedBy = user
				t := now
				c.optimisations[i].AcknowledgedAt = &t
			case model.ActionComplete:
				c.optimisations[i].ResolvedBy = user
				t := now
				c.optimisations[i].ResolvedAt = &t
			}
			return c.optimisations[i], nil
		}
		return nil, fmt.Errorf("%w: optimisation %s not found", transport.ErrMutationConflict, id)
	case transport.KindAlerts:
		for i := range c.alerts {
			if c.alerts[i].ID != id {
				continue
			}
			next, err := model.NextAlertState(c.alerts[i].Status, action)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", transport.ErrMutationConflict, err)
			}
			c.alerts[i].Status = next
			switch action {
			case model.ActionAcknowledge:
				c.alerts[i].AcknowledgedBy = user
				t := now
				c.alerts[i].AcknowledgedAt = &t
			case model.ActionResolve:
				c.alerts[i].ResolvedBy = user
				t := now
				c.alerts[i].ResolvedAt = &t
			}
			return c.alerts[i], nil
		}
		return nil, fmt.Errorf("%w: alert %s not found", transport.ErrMutationConflict, id)
	default:
		return nil, &transport.ClientError{Status: 400, Msg: "kind does not support mutations: " + string(kind)}
	}
}

// SubscribeEvents emits typed events on the configured cadence with
// jitter until the context is cancelled, then closes the channel.
func (c *Client) SubscribeEvents(ctx context.Context) (<-chan model.Event, error) {
	ch := make(chan model.Event, 16)
	go func() {
		defer close(ch)
		for {
			timer := c.clock.NewTimer(c.nextEventDelay())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.Chan():
			}
			select {
			case ch <- c.nextEvent():
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (c *Client) nextEventDelay() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	jitter := time.Duration(0)
	if c.cfg.EventJitter > 0 {
		jitter = time.Duration(c.rng.Int63n(int64(2*c.cfg.EventJitter))) - c.cfg.EventJitter
	}
	d := c.cfg.EventCadence + jitter
	if d <= 0 {
		d = time.Second
	}
	return d
}

func (c *Client) nextEvent() model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	ev := model.Event{Timestamp: c.clock.Now()}
	assets := []model.AssetID{model.AssetEast, model.AssetWest}
	ev.Asset = assets[c.rng.Intn(len(assets))]

	switch c.rng.Intn(4) {
	case 0:
		ev.Type = model.EventKPIUpdate
		if refs := facilityIDs(c.assets, ev.Asset); len(refs) > 0 {
			ev.NodeID = refs[c.rng.Intn(len(refs))]
		}
	case 1:
		ev.Type = model.EventConstraintAlert
		if len(c.alerts) > 0 {
			a := c.alerts[c.rng.Intn(len(c.alerts))]
			ev.Asset = a.Asset
			ev.NodeID = a.NodeID
			ev.AlertID = a.ID
		}
	case 2:
		ev.Type = model.EventOptimisationUpdate
		if len(c.optimisations) > 0 {
			o := c.optimisations[c.rng.Intn(len(c.optimisations))]
			ev.Asset = o.Asset
			ev.OptimisationID = o.ID
		}
	default:
		ev.Type = model.EventSystemStatus
		ev.Asset = ""
	}
	return ev
}

// drift nudges current production on each fetch so repeated reads see
// live-looking data. Must be called with mu held.
func (c *Client) drift() {
	for ai := range c.assets {
		for ui := range c.assets[ai].Units {
			for fi := range c.assets[ai].Units[ui].Facilities {
				f := &c.assets[ai].Units[ui].Facilities[fi]
				for network, m := range f.Networks {
					if m.MaxCapacity == 0 {
						continue
					}
					m.CurrentProduction *= 1 + (c.rng.Float64()-0.5)*0.02
					if m.CurrentProduction > m.MaxCapacity {
						m.CurrentProduction = m.MaxCapacity
					}
					f.Networks[network] = m
				}
				f.LastUpdated = c.clock.Now()
			}
		}
	}
}

func (c *Client) summaryLocked(filters transport.Filters) model.Summary {
	s := model.Summary{
		Timeframe:   filters["timeframe"],
		GeneratedAt: c.clock.Now(),
	}
	if s.Timeframe == "" {
		s.Timeframe = "24h"
	}

	assetFilter := model.AssetID(filters["asset"])
	for _, a := range c.assets {
		if assetFilter != "" && a.ID != assetFilter {
			continue
		}
		s.AssetCount++
		s.UnitCount += len(a.Units)
		for _, u := range a.Units {
			s.FacilityCount += len(u.Facilities)
			for _, f := range u.Facilities {
				for _, m := range f.Networks {
					s.Production += m.CurrentProduction
					s.Capacity += m.MaxCapacity
					s.BusinessTarget += m.BusinessTarget
					s.Deferment += max(0, m.BusinessTarget-m.CurrentProduction)
				}
			}
		}
	}

	for _, o := range c.optimisations {
		if assetFilter != "" && o.Asset != assetFilter {
			continue
		}
		adjustCounts(&s.Optimisations, o.Status)
	}
	for _, a := range c.alerts {
		if assetFilter != "" && a.Asset != assetFilter {
			continue
		}
		switch a.Status {
		case model.AlertActive:
			s.Alerts.Active++
		case model.AlertAcknowledged, model.AlertInvestigating:
			s.Alerts.Acknowledged++
		case model.AlertResolved:
			s.Alerts.Resolved++
		}
	}
	return s
}

func adjustCounts(c *model.OptimisationCounts, status model.OptimisationStatus) {
	switch status {
	case model.OptimisationPending:
		c.Pending++
	case model.OptimisationAcknowledged:
		c.Acknowledged++
	case model.OptimisationImplementing:
		c.Implementing++
	case model.OptimisationCompleted:
		c.Completed++
	case model.OptimisationDismissed, model.OptimisationRejected:
		c.Dismissed++
	}
}

func filterOptimisations(actions []model.OptimisationAction, filters transport.Filters) []model.OptimisationAction {
	out := make([]model.OptimisationAction, 0, len(actions))
	for _, a := range actions {
		if v := filters["asset"]; v != "" && string(a.Asset) != v {
			continue
		}
		if v := filters["stream"]; v != "" && string(a.Stream) != v {
			continue
		}
		if v := filters["status"]; v != "" && string(a.Status) != v {
			continue
		}
		if v := filters["priority"]; v != "" && string(a.Priority) != v {
			continue
		}
		out = append(out, a)
	}
	return out
}

func filterAlerts(alerts []model.Alert, filters transport.Filters) []model.Alert {
	out := make([]model.Alert, 0, len(alerts))
	for _, a := range alerts {
		if v := filters["asset"]; v != "" && string(a.Asset) != v {
			continue
		}
		if v := filters["stream"]; v != "" && string(a.Stream) != v {
			continue
		}
		if v := filters["status"]; v != "" && string(a.Status) != v {
			continue
		}
		if v := filters["priority"]; v != "" && string(a.Priority) != v {
			continue
		}
		out = append(out, a)
	}
	return out
}

func facilityIDs(assets []model.Asset, asset model.AssetID) []string {
	var out []string
	for _, a := range assets {
		if asset != "" && a.ID != asset {
			continue
		}
		for _, u := range a.Units {
			for _, f := range u.Facilities {
				out = append(out, f.ID)
			}
		}
	}
	return out
}
