// Package metrics holds the Prometheus series exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesExtractedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecmp_frames_extracted_total",
		Help: "Total number of frames extracted, by video kind",
	}, []string{"kind"})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framecmp_extraction_duration_seconds",
		Help:    "Duration of frame extraction for one video",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"outcome"})

	ComparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framecmp_comparisons_total",
		Help: "Total number of frame comparisons, by outcome",
	}, []string{"outcome"})

	ComparisonDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "framecmp_comparison_duration_seconds",
		Help:    "Duration of loading and scoring one frame pair",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framecmp_active_sessions",
		Help: "Number of sessions currently held on disk",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
