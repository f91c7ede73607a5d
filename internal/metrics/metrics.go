// Package metrics holds the Prometheus collectors of the face registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RegistrationsTotal counts register_face outcomes by model.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_registry_registrations_total",
			Help: "Total number of face registrations by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	// RecognitionsTotal counts recognize_face outcomes by model.
	RecognitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_registry_recognitions_total",
			Help: "Total number of face recognitions by model and outcome",
		},
		[]string{"model", "outcome"},
	)

	// ComparisonsSkippedTotal counts candidates dropped because the comparison failed.
	ComparisonsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "face_registry_comparisons_skipped_total",
			Help: "Total number of candidate comparisons skipped after an error",
		},
		[]string{"model"},
	)

	// MatchDistance observes the best distance of each recognition.
	MatchDistance = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_registry_match_distance",
			Help:    "Distance of the best candidate per recognition",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1.0, 1.5},
		},
		[]string{"model"},
	)

	// RegisteredFaces reports the number of records per pipeline store.
	RegisteredFaces = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "face_registry_registered_faces",
			Help: "Current number of registered faces per model",
		},
		[]string{"model"},
	)

	// HTTPRequestDuration observes request latency by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "face_registry_http_request_duration_seconds",
			Help:    "HTTP request duration by method, route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)
