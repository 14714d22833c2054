// Package metrics exposes Prometheus collectors for convergence runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jsonforge_runs_started_total",
			Help: "Total number of convergence runs started",
		},
	)

	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonforge_runs_finished_total",
			Help: "Total number of convergence runs finished, by status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jsonforge_run_duration_seconds",
			Help:    "Duration of convergence runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"status"},
	)

	RunRounds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jsonforge_run_rounds",
			Help:    "Routing rounds needed per run",
			Buckets: prometheus.LinearBuckets(1, 1, 12),
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonforge_decisions_total",
			Help: "Routing decisions, by decision and deciding rule",
		},
		[]string{"decision", "rule"},
	)

	CollaboratorCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jsonforge_collaborator_calls_total",
			Help: "Collaborator calls, by call and result",
		},
		[]string{"call", "result"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "jsonforge_collaborator_duration_seconds",
			Help: "Duration of collaborator calls in seconds",
		},
		[]string{"call"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "jsonforge_runs_active",
			Help: "Number of convergence runs in progress",
		},
	)
)

// Collaborator call results.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultFallback = "fallback"
)
