package config

import "time"

const (
	// Demo constants.
	DemoAPIListenAddr = "127.0.0.1:8090"
	DemoMetricsAddr   = "127.0.0.1:9090"

	// Staging constants.
	StagingAPIListenAddr = ":8090"
	StagingMetricsAddr   = ":9090"

	// Production constants.
	ProductionAPIListenAddr          = ":8080"
	ProductionMetricsAddr            = ":9090"
	ProductionSummaryRefetchInterval = 5 * time.Minute

	// Push events average cadence and jitter spread.
	DefaultEventCadence = 15 * time.Second
	DefaultEventJitter  = 3 * time.Second

	// Upper bound on each network call attempt.
	DefaultFetchTimeout = 30 * time.Second

	// Fetch retry policy: up to 3 retries after the initial attempt,
	// exponential backoff from 1s capped at 30s.
	DefaultFetchMaxTries             = 4
	DefaultFetchRetryInitialInterval = 1 * time.Second
	DefaultFetchRetryMaxInterval     = 30 * time.Second
)
