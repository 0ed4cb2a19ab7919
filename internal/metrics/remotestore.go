// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteStoreReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_remotestore_uploads_total",
		Help: "Uploads received by the remote store server by result",
	}, []string{"result"})

	// RemoteStoreBytes tracks blob bytes persisted by the remote store server
	RemoteStoreBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixup_remotestore_bytes_total",
		Help: "Total blob bytes written by the remote store server",
	})
)

// IncRemoteStoreUpload records one handled upload request.
// result ∈ {stored,rejected,failed}
func IncRemoteStoreUpload(result string) {
	switch result {
	case "stored", "rejected", "failed":
	default:
		result = "unknown"
	}
	remoteStoreReceived.WithLabelValues(result).Inc()
}
