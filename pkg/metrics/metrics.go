// Package metrics exposes Prometheus collectors for the relay pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookEvents counts inbound webhook payloads by decode outcome
	// ("message", "skip", "invalid").
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_webhook_events_total",
			Help: "Inbound webhook payloads by decode outcome",
		},
		[]string{"outcome"},
	)

	// Replies counts pipeline runs by terminal outcome
	// ("replied", "unknown_user", "generation_failed").
	Replies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_replies_total",
			Help: "Pipeline runs by terminal outcome",
		},
		[]string{"outcome"},
	)

	// BackendErrors counts swallowed external-call failures by backend
	// ("store", "embedding", "search", "generation", "delivery").
	BackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_backend_errors_total",
			Help: "External backend failures absorbed at adapter boundaries",
		},
		[]string{"backend"},
	)

	// PipelineDuration observes end-to-end handling time per inbound message.
	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "concierge_pipeline_duration_seconds",
			Help:    "Inbound message handling duration",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// ContextChunks observes how many context chunks each retrieval produced.
	ContextChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "concierge_context_chunks",
			Help:    "Context chunks returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
)
