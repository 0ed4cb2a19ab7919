// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StoreNotifyDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_store_notify_dropped_total",
		Help: "Total number of record change events dropped because a subscriber was full",
	}, []string{"subscriber"})

	StorePatchRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pixup_store_patch_rejected_total",
		Help: "Total number of record patches rejected by the state machine",
	})
)

// IncStoreNotifyDrop records a dropped change event for the named subscriber.
func IncStoreNotifyDrop(subscriber string) {
	if subscriber == "" {
		subscriber = "unknown"
	}
	StoreNotifyDroppedTotal.WithLabelValues(subscriber).Inc()
}

// IncStorePatchRejected records a patch refused as an illegal transition.
func IncStorePatchRejected() {
	StorePatchRejectedTotal.Inc()
}
