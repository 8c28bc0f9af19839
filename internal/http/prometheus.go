package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HookRequestsTotal counts webhook deliveries.
	// Labels: source, status (recorded, skipped, failed, rejected, rate_limited)
	HookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "membank",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Total number of webhook hook deliveries by source and outcome",
		},
		[]string{"source", "status"},
	)

	// HookDuration tracks how long handling one delivery takes.
	HookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "membank",
			Subsystem: "webhook",
			Name:      "handle_duration_seconds",
			Help:      "Duration of webhook hook handling in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)
)
