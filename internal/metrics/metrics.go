// Package metrics exposes the farm's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ClaimAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_claim_attempts_total",
			Help: "Task claim attempts, partitioned by outcome",
		},
		[]string{"outcome"}, // claimed, empty, conflict, error
	)

	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hydra_tasks_completed_total",
			Help: "Tasks that reached a terminal state on this process",
		},
		[]string{"status"}, // finished, error, killed
	)

	TasksRequeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hydra_tasks_requeued_total",
			Help: "Tasks reset to Ready by the retry coordinator",
		},
	)

	NodesReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hydra_nodes_reaped_total",
			Help: "Nodes marked offline by the staleness reaper",
		},
	)

	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hydra_heartbeats_total",
			Help: "Pulse writes performed by this node",
		},
	)

	TaskDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hydra_task_duration_seconds",
			Help:    "Wall-clock task execution duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16), // 1s to ~18h
		},
	)
)
