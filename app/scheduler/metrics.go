package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Messages resolved by the engines partitioned by outcome (sent, failed, rescheduled, requeued)
	messagesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_messages_processed_total",
			Help: "Total number of campaign messages resolved by run engines",
		},
		[]string{"outcome"},
	)

	// Suspensions entered by the engines partitioned by reason
	runSuspensionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_run_suspensions_total",
			Help: "Total number of times a run engine suspended sending",
		},
		[]string{"reason"},
	)

	// Send primitive latency in seconds
	sendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campaign_send_duration_seconds",
			Help:    "Latency of a single message send in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Runs with a live drive loop
	activeRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_runs_active",
			Help: "Number of campaign runs currently running or paused",
		},
	)

	// Runs that reached a terminal state partitioned by final status
	finishedRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_runs_finished_total",
			Help: "Total number of campaign runs that reached a terminal state",
		},
		[]string{"status"},
	)
)
