// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TranscoderBytesInput tracks total bytes read by the transcoder
	TranscoderBytesInput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_transcoder_bytes_input_total",
		Help: "Total bytes processed by transcoder",
	}, []string{"format"})

	// TranscoderBytesOutput tracks total bytes produced by the transcoder
	TranscoderBytesOutput = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_transcoder_bytes_output_total",
		Help: "Total bytes produced by transcoder",
	}, []string{"format"})

	// TranscoderProcessingDuration tracks duration of decode+resize+encode
	TranscoderProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pixup_transcoder_processing_duration_seconds",
		Help:    "Duration of transcoder processing operations",
		Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 15), // 1ms to ~16s
	}, []string{"format"})

	// TranscoderErrors tracks errors during transcoding
	TranscoderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_transcoder_errors_total",
		Help: "Total errors during transcoding",
	}, []string{"format", "error_type"})
)
