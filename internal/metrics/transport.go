// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransportBytesSent tracks payload bytes handed to the network
	TransportBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixup_transport_bytes_sent_total",
		Help: "Total payload bytes written to upload requests",
	})

	transportRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_transport_requests_total",
		Help: "Upload requests by result",
	}, []string{"result"})
)

// IncTransportRequest records one finished upload request.
// result ∈ {ok,cancelled,http_error,network_error,bad_response,circuit_open}
func IncTransportRequest(result string) {
	switch result {
	case "ok", "cancelled", "http_error", "network_error", "bad_response", "circuit_open":
	default:
		result = "unknown"
	}
	transportRequests.WithLabelValues(result).Inc()
}
