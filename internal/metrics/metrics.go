package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fieldsync_build_info",
			Help: "Build information of the fieldsync daemon",
		},
		[]string{"version", "commit", "date"},
	)

	CacheReadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_cache_reads_total",
		Help: "Total cache reads by resource kind and result (hit, stale, miss)",
	}, []string{"kind", "result"})

	CacheFetchFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_cache_fetch_failures_total",
		Help: "Total fetch failures by resource kind and error class",
	}, []string{"kind", "class"})

	CacheInvalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_cache_invalidations_total",
		Help: "Total entries marked stale by predicate invalidation",
	}, []string{"kind"})

	CacheEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_cache_evictions_total",
		Help: "Total entries garbage-collected from the cache",
	}, []string{"kind"})

	CacheFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldsync_cache_fetch_duration_seconds",
		Help:    "Duration of cache fill fetches",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // ~5ms .. ~10s
	}, []string{"kind"})

	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_mutations_total",
		Help: "Total mutations by resource kind, action and result",
	}, []string{"kind", "action", "result"})

	MutationRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_mutation_rollbacks_total",
		Help: "Total optimistic rollbacks by resource kind",
	}, []string{"kind"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_events_total",
		Help: "Total push events processed by type",
	}, []string{"type"})

	PollRefreshesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldsync_poll_refreshes_total",
		Help: "Total poller-triggered refreshes by resource kind and result",
	}, []string{"kind", "result"})
)
