// Package config holds the named environments and the per-resource-kind
// cache schedules (staleness window, polling cadence, GC window).
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/upstreamlabs/fieldsync/internal/transport"
)

const (
	EnvDemo       = "demo"
	EnvStaging    = "staging"
	EnvProduction = "production"
)

var ErrInvalidEnvironment = errors.New("invalid environment")

// Schedule is the cache timing profile for one resource kind.
type Schedule struct {
	// StaleAfter is the age past which a cached value must be refetched
	// before being trusted.
	StaleAfter time.Duration
	// RefetchInterval is the polling cadence for live keys of the kind.
	RefetchInterval time.Duration
	// GCWindow is how long an untouched entry survives before eviction,
	// independent of staleness.
	GCWindow time.Duration
}

func (s Schedule) Validate() error {
	if s.StaleAfter <= 0 {
		return errors.New("stale-after must be greater than 0")
	}
	if s.RefetchInterval <= 0 {
		return errors.New("refetch interval must be greater than 0")
	}
	if s.GCWindow <= 0 {
		return errors.New("gc window must be greater than 0")
	}
	return nil
}

// EnvironmentConfig carries the addresses and timing profile for one
// deployment environment.
type EnvironmentConfig struct {
	APIListenAddr string
	MetricsAddr   string

	// EventCadence is the average push-event interval; EventJitter is the
	// +/- spread around it.
	EventCadence time.Duration
	EventJitter  time.Duration

	// FetchTimeout bounds each network call attempt.
	FetchTimeout time.Duration

	Schedules map[transport.Kind]Schedule
}

// ScheduleForKind returns the timing profile for a resource kind,
// falling back to the nodes schedule for unknown kinds.
func (c *EnvironmentConfig) ScheduleForKind(kind transport.Kind) Schedule {
	if s, ok := c.Schedules[kind]; ok {
		return s
	}
	return c.Schedules[transport.KindNodes]
}

func (c *EnvironmentConfig) Validate() error {
	if c.EventCadence <= 0 {
		return errors.New("event cadence must be greater than 0")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("fetch timeout must be greater than 0")
	}
	if len(c.Schedules) == 0 {
		return errors.New("schedules are required")
	}
	for kind, s := range c.Schedules {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("schedule for %s is invalid: %w", kind, err)
		}
	}
	return nil
}

// ForEnv returns the configuration for a named environment.
func ForEnv(env string) (*EnvironmentConfig, error) {
	switch env {
	case EnvDemo:
		return &EnvironmentConfig{
			APIListenAddr: DemoAPIListenAddr,
			MetricsAddr:   DemoMetricsAddr,
			EventCadence:  DefaultEventCadence,
			EventJitter:   DefaultEventJitter,
			FetchTimeout:  DefaultFetchTimeout,
			Schedules:     defaultSchedules(),
		}, nil
	case EnvStaging:
		return &EnvironmentConfig{
			APIListenAddr: StagingAPIListenAddr,
			MetricsAddr:   StagingMetricsAddr,
			EventCadence:  DefaultEventCadence,
			EventJitter:   DefaultEventJitter,
			FetchTimeout:  DefaultFetchTimeout,
			Schedules:     defaultSchedules(),
		}, nil
	case EnvProduction:
		cfg := &EnvironmentConfig{
			APIListenAddr: ProductionAPIListenAddr,
			MetricsAddr:   ProductionMetricsAddr,
			EventCadence:  DefaultEventCadence,
			EventJitter:   DefaultEventJitter,
			FetchTimeout:  DefaultFetchTimeout,
			Schedules:     defaultSchedules(),
		}
		// Production polls summaries less aggressively.
		s := cfg.Schedules[transport.KindSummary]
		s.RefetchInterval = ProductionSummaryRefetchInterval
		cfg.Schedules[transport.KindSummary] = s
		return cfg, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, env)
	}
}

func defaultSchedules() map[transport.Kind]Schedule {
	return map[transport.Kind]Schedule{
		transport.KindNodes: {
			StaleAfter:      30 * time.Second,
			RefetchInterval: 30 * time.Second,
			GCWindow:        10 * time.Minute,
		},
		transport.KindAssets: {
			StaleAfter:      30 * time.Second,
			RefetchInterval: 60 * time.Second,
			GCWindow:        10 * time.Minute,
		},
		transport.KindGapDrivers: {
			StaleAfter:      30 * time.Second,
			RefetchInterval: 60 * time.Second,
			GCWindow:        10 * time.Minute,
		},
		transport.KindSummary: {
			StaleAfter:      2 * time.Minute,
			RefetchInterval: 2 * time.Minute,
			GCWindow:        30 * time.Minute,
		},
		transport.KindOptimisations: {
			StaleAfter:      30 * time.Second,
			RefetchInterval: 30 * time.Second,
			GCWindow:        10 * time.Minute,
		},
		transport.KindAlerts: {
			StaleAfter:      15 * time.Second,
			RefetchInterval: 15 * time.Second,
			GCWindow:        5 * time.Minute,
		},
		transport.KindTerminalOperations: {
			StaleAfter:      5 * time.Minute,
			RefetchInterval: 5 * time.Minute,
			GCWindow:        30 * time.Minute,
		},
	}
}
