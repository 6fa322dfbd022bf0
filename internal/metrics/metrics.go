// Package metrics holds the Prometheus collectors for the eyeguide processes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	FramesDemuxed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eyeguide",
			Subsystem: "camera",
			Name:      "frames_demuxed_total",
			Help:      "Complete frames extracted from the capture stream",
		},
	)

	BytesDiscarded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "eyeguide",
			Subsystem: "camera",
			Name:      "bytes_discarded_total",
			Help:      "Stream bytes dropped because they belonged to no frame",
		},
	)

	StreamClients = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "eyeguide",
			Subsystem: "stream",
			Name:      "clients",
			Help:      "Connected frame consumers",
		},
		[]string{"transport"},
	)

	FramesServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eyeguide",
			Subsystem: "stream",
			Name:      "frames_served_total",
			Help:      "Frames written to consumers",
		},
		[]string{"transport"},
	)

	Commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eyeguide",
			Subsystem: "client",
			Name:      "commands_total",
			Help:      "Voice commands processed",
		},
		[]string{"kind"},
	)

	Detections = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "eyeguide",
			Subsystem: "detection",
			Name:      "duration_seconds",
			Help:      "Detection latency by mode and outcome",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"mode", "outcome"},
	)

	DetectRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "eyeguide",
			Subsystem: "detector",
			Name:      "requests_total",
			Help:      "Remote detection requests by HTTP status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(
		FramesDemuxed,
		BytesDiscarded,
		StreamClients,
		FramesServed,
		Commands,
		Detections,
		DetectRequests,
	)
}
