// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ticket_responder"

var (
	TicketsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_processed_total",
			Help:      "Tickets that reached a terminal state, by state",
		},
		[]string{"state"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Ticket failures by originating stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	DataQualityEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_quality_events_total",
			Help:      "Locally handled data-quality events by kind",
		},
		[]string{"kind"},
	)

	CommentsTriaged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comments_triaged_total",
			Help:      "Candidate comments scored, by outcome",
		},
		[]string{"outcome"},
	)

	ReferencesRetrieved = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "references_retrieved",
			Help:      "Usable reference chunks returned per ticket",
			Buckets:   prometheus.LinearBuckets(0, 2, 11),
		},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Redis cache lookups by cache and result",
		},
		[]string{"cache", "result"},
	)

	TicketsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tickets_active",
			Help:      "Tickets currently in flight",
		},
	)
)
