// SPDX-License-Identifier: MIT

// Package health serves liveness and readiness probes with per-component status.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/pixup/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness body.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness body.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	timeout  time.Duration
	checkers []Checker
	now      func() time.Time
}

func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: 2 * time.Second, now: time.Now}
}

// Register adds checkers. Not safe for use after serving has started.
func (m *Manager) Register(checkers ...Checker) {
	m.checkers = append(m.checkers, checkers...)
}

// run evaluates every checker under a shared deadline and folds the results into
// one status: any unhealthy wins over degraded.
func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	overall := StatusHealthy
	results := make(map[string]CheckResult, len(m.checkers))
	for _, c := range m.checkers {
		res := c.Check(ctx)
		results[c.Name()] = res
		switch {
		case res.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case res.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}
	return overall, results
}

// Health is the liveness view. The process is alive whenever it can answer;
// component checks only run when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{Status: StatusHealthy, Version: m.version, Timestamp: m.now()}
	if verbose && len(m.checkers) > 0 {
		resp.Status, resp.Checks = m.run(ctx)
	}
	return resp
}

// Ready reports whether every component can serve traffic. Degraded components
// still count as ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: m.now()}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Status, resp.Checks = m.run(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)
	writeJSON(w, r, http.StatusOK, resp, "health", resp.Status)
}

// ServeReady answers 503 while any component is unhealthy.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, resp, "readiness", resp.Status)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, body any, kind string, status Status) {
	logger := log.WithContext(r.Context(), log.WithComponent("health"))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error().Err(err).Str("event", kind+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str("event", kind+".checked").
		Str("status", string(status)).
		Int("code", code).
		Msg("probe answered")
}

// CheckFunc adapts a function returning an error into a Checker. A nil error is
// healthy; anything else is unhealthy.
type CheckFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func NewCheckFunc(name string, fn func(ctx context.Context) error) CheckFunc {
	return CheckFunc{name: name, fn: fn}
}

func (c CheckFunc) Name() string { return c.name }

func (c CheckFunc) Check(ctx context.Context) CheckResult {
	if err := c.fn(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// DirChecker verifies a directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

func (c *DirChecker) Name() string { return c.name }

func (c *DirChecker) Check(ctx context.Context) CheckResult {
	info, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CheckResult{Status: StatusUnhealthy, Error: "directory not found", Message: c.path}
		}
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	if !info.IsDir() {
		return CheckResult{Status: StatusUnhealthy, Error: "expected directory, got file", Message: c.path}
	}

	probe, err := os.CreateTemp(c.path, ".probe-*")
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: "directory not writable", Message: err.Error()}
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(filepath.Clean(name))
	return CheckResult{Status: StatusHealthy, Message: "writable"}
}
