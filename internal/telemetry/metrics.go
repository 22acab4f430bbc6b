package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var SubmissionsCheckedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "adjudicator",
		Name:      "submissions_checked_total",
		Help:      "Total number of submissions adjudicated, by final status.",
	},
	[]string{"status"},
)

var SubmissionCheckDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "cdsctf",
		Subsystem: "adjudicator",
		Name:      "submission_check_duration_seconds",
		Help:      "Time spent adjudicating a single submission.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	},
)

var GamesRecomputedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "scoring",
		Name:      "games_recomputed_total",
		Help:      "Total number of per-game scoring recomputation passes.",
	},
)

var EnvironmentsCreatedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "cluster",
		Name:      "environments_created_total",
		Help:      "Total number of challenge environments created.",
	},
)

var EnvironmentsRenewedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "cluster",
		Name:      "environments_renewed_total",
		Help:      "Total number of challenge environment renewals.",
	},
)

var EnvironmentsReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "cluster",
		Name:      "environments_reaped_total",
		Help:      "Total number of expired challenge environments deleted by the reaper.",
	},
)

var EngineCacheHitsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "cdsctf",
		Subsystem: "engine",
		Name:      "unit_cache_total",
		Help:      "Total number of sandboxed-script unit cache lookups, by outcome.",
	},
	[]string{"outcome"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "cdsctf",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration by method, route, and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)

// All returns all cdsctf-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		SubmissionsCheckedTotal,
		SubmissionCheckDuration,
		GamesRecomputedTotal,
		EnvironmentsCreatedTotal,
		EnvironmentsRenewedTotal,
		EnvironmentsReapedTotal,
		EngineCacheHitsTotal,
		HTTPRequestDuration,
	}
}

// NewRegistry creates a Prometheus registry with Go/process collectors and
// the module's own collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
