// Package metrics defines prometheus metrics to expose
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatgate_stream_duration_seconds",
			Help:    "Total time taken for chat streams in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100, 150, 200, 350, 400, 500, 600},
		},
		[]string{"model", "provider"},
	)

	TimeToFirstChunk = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatgate_time_to_first_chunk_seconds",
			Help:    "Time to first streamed chunk in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 15, 20, 25, 30, 40, 50, 75, 100, 150, 200},
		},
		[]string{"model", "provider"},
	)

	StreamChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatgate_stream_chunks_total",
			Help: "Total number of chunks streamed to clients",
		},
		[]string{"model", "provider"},
	)

	StreamCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatgate_stream_count_total",
			Help: "Total number of chat streams processed",
		},
		[]string{"model", "provider", "status"},
	)

	InflightStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatgate_inflight_streams",
			Help: "Current inflight chat streams",
		},
		[]string{"user_id"},
	)

	CanceledStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chatgate_canceled_streams",
			Help: "Streams canceled by the client",
		},
		[]string{"model", "user_id"},
	)

	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatgate_route_decisions_total",
			Help: "Gate pipeline decisions",
		},
		[]string{"decision"},
	)

	ErrorCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatgate_error_count",
			Help: "Error count",
		},
		[]string{"model", "provider", "user_id", "from"},
	)
	ResponseCodes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatgate_status_code",
			Help: "Status Codes",
		},
		[]string{"path", "status_code"},
	)
)
