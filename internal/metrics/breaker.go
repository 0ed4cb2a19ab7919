// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var breakerStates = []string{"closed", "open", "half-open"}

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pixup_circuit_breaker_state",
		Help: "Circuit breaker state (1 for the current state, 0 otherwise)",
	}, []string{"name", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pixup_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"name", "reason"})
)

// SetCircuitBreakerState marks state as the current one for name.
func SetCircuitBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		circuitBreakerState.WithLabelValues(name, s).Set(v)
	}
}

// RecordCircuitBreakerTrip counts one trip to open.
func RecordCircuitBreakerTrip(name, reason string) {
	circuitBreakerTrips.WithLabelValues(name, reason).Inc()
}
