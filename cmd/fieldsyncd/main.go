package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/upstreamlabs/fieldsync/config"
	"github.com/upstreamlabs/fieldsync/internal/cache"
	"github.com/upstreamlabs/fieldsync/internal/events"
	"github.com/upstreamlabs/fieldsync/internal/feed"
	"github.com/upstreamlabs/fieldsync/internal/gap"
	"github.com/upstreamlabs/fieldsync/internal/hierarchy"
	"github.com/upstreamlabs/fieldsync/internal/metrics"
	"github.com/upstreamlabs/fieldsync/internal/mutation"
	"github.com/upstreamlabs/fieldsync/internal/poller"
	"github.com/upstreamlabs/fieldsync/internal/server"
	"github.com/upstreamlabs/fieldsync/internal/sim"
)

var (
	env         = flag.String("env", config.EnvDemo, "environment to run in (demo, staging, production)")
	listenAddr  = flag.String("listen-addr", "", "api listen address (overrides environment default)")
	metricsAddr = flag.String("metrics-addr", "", "prometheus metrics listen address (overrides environment default)")
	seed        = flag.Int64("seed", 0, "seed for the simulated upstream (0 picks a fixed default)")
	verbose     = flag.Bool("verbose", false, "enable verbose logging")
	showVersion = flag.Bool("version", false, "print the version and exit")

	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Load .env file if it exists.
	_ = godotenv.Load()
	flag.Parse()

	if *showVersion {
		fmt.Printf("version: %s, commit: %s, date: %s\n", version, commit, date)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))

	envCfg, err := config.ForEnv(*env)
	if err != nil {
		log.Error("failed to resolve environment", "env", *env, "error", err)
		flag.Usage()
		os.Exit(1)
	}
	if *listenAddr != "" {
		envCfg.APIListenAddr = *listenAddr
	}
	if *metricsAddr != "" {
		envCfg.MetricsAddr = *metricsAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	go func() {
		listener, err := net.Listen("tcp", envCfg.MetricsAddr)
		if err != nil {
			log.Error("failed to start prometheus metrics listener", "error", err)
			return
		}
		log.Info("prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.Serve(listener, mux); err != nil {
			log.Error("prometheus metrics server failed", "error", err)
		}
	}()

	client, err := sim.NewClient(&sim.ClientConfig{
		Logger:       log,
		Seed:         *seed,
		EventCadence: envCfg.EventCadence,
		EventJitter:  envCfg.EventJitter,
	})
	if err != nil {
		log.Error("failed to create simulated upstream", "error", err)
		os.Exit(1)
	}

	store, err := hierarchy.NewStore(&hierarchy.StoreConfig{Logger: log})
	if err != nil {
		log.Error("failed to create hierarchy store", "error", err)
		os.Exit(1)
	}

	gapEngine, err := gap.NewEngine(&gap.EngineConfig{Logger: log, Store: store})
	if err != nil {
		log.Error("failed to create gap engine", "error", err)
		os.Exit(1)
	}

	source, err := feed.NewSource(&feed.SourceConfig{
		Logger: log,
		Client: client,
		Store:  store,
		Gap:    gapEngine,
	})
	if err != nil {
		log.Error("failed to create feed source", "error", err)
		os.Exit(1)
	}

	cacheCoord, err := cache.NewCoordinator(&cache.CoordinatorConfig{
		Logger:       log,
		Fetch:        source.Fetch,
		Schedules:    envCfg.Schedules,
		FetchTimeout: envCfg.FetchTimeout,
	})
	if err != nil {
		log.Error("failed to create cache coordinator", "error", err)
		os.Exit(1)
	}

	mutationCoord, err := mutation.NewCoordinator(&mutation.CoordinatorConfig{
		Logger: log,
		Client: client,
		Cache:  cacheCoord,
	})
	if err != nil {
		log.Error("failed to create mutation coordinator", "error", err)
		os.Exit(1)
	}

	notifier, err := events.NewNotifier(&events.NotifierConfig{
		Logger: log,
		Client: client,
		Cache:  cacheCoord,
	})
	if err != nil {
		log.Error("failed to create event notifier", "error", err)
		os.Exit(1)
	}

	refetcher, err := poller.NewPoller(&poller.PollerConfig{
		Logger:    log,
		Cache:     cacheCoord,
		Schedules: envCfg.Schedules,
	})
	if err != nil {
		log.Error("failed to create poller", "error", err)
		os.Exit(1)
	}

	apiServer, err := server.NewServer(&server.ServerConfig{
		Logger:    log,
		Cache:     cacheCoord,
		Mutations: mutationCoord,
		Notifier:  notifier,
		Hierarchy: store,
	})
	if err != nil {
		log.Error("failed to create api server", "error", err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", envCfg.APIListenAddr)
	if err != nil {
		log.Error("failed to listen", "address", envCfg.APIListenAddr, "error", err)
		os.Exit(1)
	}

	log.Info("starting", "env", *env, "version", version, "address", listener.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cacheCoord.Run(ctx) })
	g.Go(func() error { return notifier.Run(ctx) })
	g.Go(func() error { return refetcher.Run(ctx) })
	g.Go(func() error { return apiServer.Serve(ctx, listener) })

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
