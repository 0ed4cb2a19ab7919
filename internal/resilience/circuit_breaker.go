// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package resilience guards remote dependencies against repeated failures.
package resilience

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/pixup/internal/metrics"
)

// State represents the circuit breaker state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// clock abstracts time operations for testability.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// CircuitBreaker opens after threshold consecutive failures and rejects calls
// until cooldown has passed. It then lets a single probe through: success closes
// the breaker, failure reopens it.
type CircuitBreaker struct {
	mu        sync.Mutex
	name      string // component name for metrics
	state     State
	failures  int
	threshold int
	cooldown  time.Duration
	openedAt  time.Time
	probing   bool
	clock     clock

	// neutral outcomes count neither as failure nor as success.
	neutral func(error) bool
}

// Option configuration pattern
type Option func(*CircuitBreaker)

func WithClock(c clock) Option {
	return func(cb *CircuitBreaker) { cb.clock = c }
}

// WithNeutral marks errors that say nothing about the dependency's health, such
// as a caller cancelling.
func WithNeutral(fn func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.neutral = fn }
}

func NewCircuitBreaker(name string, threshold int, cooldown time.Duration, opts ...Option) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	cb := &CircuitBreaker{
		name:      name,
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
		clock:     realClock{},
		neutral:   func(error) bool { return false },
	}
	for _, opt := range opts {
		opt(cb)
	}

	metrics.SetCircuitBreakerState(cb.name, string(cb.state))
	return cb
}

// Execute runs fn unless the breaker rejects the call with ErrCircuitOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, ok := cb.allow()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probe {
		cb.probing = false
	}
	switch {
	case err == nil:
		cb.failures = 0
		cb.transitionTo(StateClosed)
	case cb.neutral(err):
	default:
		cb.failures++
		if cb.state == StateHalfOpen {
			metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
			cb.transitionTo(StateOpen)
		} else if cb.state == StateClosed && cb.failures >= cb.threshold {
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
			cb.transitionTo(StateOpen)
		}
	}
	return err
}

// allow reports whether a call may proceed and whether it is the half-open probe.
func (cb *CircuitBreaker) allow() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.clock.Now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.transitionTo(StateHalfOpen)
	}

	// half-open: one probe at a time
	if cb.probing {
		return false, false
	}
	cb.probing = true
	return true, true
}

// transitionTo updates state and metrics. Caller must hold lock.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}
	cb.state = newState
	if newState == StateOpen {
		cb.openedAt = cb.clock.Now()
	}
	metrics.SetCircuitBreakerState(cb.name, string(newState))
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}
