// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_uploads_total",
		Help: "Total number of finished upload pipelines by outcome",
	}, []string{"outcome"})

	uploadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pixup_upload_duration_seconds",
		Help:    "Wall time of one upload pipeline from start to terminal state",
		Buckets: prometheus.ExponentialBuckets(0.05, 2.0, 12), // 50ms to ~100s
	}, []string{"outcome"})

	uploadsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pixup_uploads_in_flight",
		Help: "Number of upload pipelines currently running",
	})

	uploadsSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixup_uploads_submitted_total",
		Help: "Total number of records created by submissions and retries",
	})
)

// ObserveUploadFinished records a terminal pipeline outcome.
// outcome ∈ {success,error,cancelled,unknown}
func ObserveUploadFinished(outcome string, d time.Duration) {
	label := normalizeOutcomeLabel(outcome)
	uploadsTotal.WithLabelValues(label).Inc()
	uploadDuration.WithLabelValues(label).Observe(d.Seconds())
}

// IncUploadsSubmitted counts one new pipeline run.
func IncUploadsSubmitted() {
	uploadsSubmitted.Inc()
}

// UploadStarted and UploadDone track the in-flight gauge.
func UploadStarted() { uploadsInFlight.Inc() }
func UploadDone()    { uploadsInFlight.Dec() }

func normalizeOutcomeLabel(outcome string) string {
	switch v := strings.ToLower(strings.TrimSpace(outcome)); v {
	case "success", "error", "cancelled":
		return v
	default:
		return "unknown"
	}
}
