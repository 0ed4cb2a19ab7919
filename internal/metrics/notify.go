// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notifyPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pixup_notify_published_total",
	Help: "Record change notifications handed to redis, by result",
}, []string{"result"})

// IncNotifyPublished counts one notification attempt ("ok" or "error").
func IncNotifyPublished(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	notifyPublished.WithLabelValues(result).Inc()
}
