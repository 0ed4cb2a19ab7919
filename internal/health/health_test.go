// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	name   string
	status Status
}

func (c staticChecker) Name() string { return c.name }
func (c staticChecker) Check(context.Context) CheckResult {
	return CheckResult{Status: c.status}
}

func TestHealthIgnoresChecksUnlessVerbose(t *testing.T) {
	m := NewManager("v1")
	m.Register(staticChecker{"db", StatusUnhealthy})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Empty(t, resp.Checks)
	assert.Equal(t, "v1", resp.Version)

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, StatusUnhealthy, resp.Checks["db"].Status)
}

func TestReadyAggregation(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		wantReady bool
		want      Status
	}{
		{"no checkers", nil, true, StatusHealthy},
		{"all healthy", []Checker{staticChecker{"a", StatusHealthy}, staticChecker{"b", StatusHealthy}}, true, StatusHealthy},
		{"degraded stays ready", []Checker{staticChecker{"a", StatusDegraded}, staticChecker{"b", StatusHealthy}}, true, StatusDegraded},
		{"unhealthy wins", []Checker{staticChecker{"a", StatusUnhealthy}, staticChecker{"b", StatusDegraded}}, false, StatusUnhealthy},
		{"unhealthy first then degraded", []Checker{staticChecker{"a", StatusDegraded}, staticChecker{"b", StatusUnhealthy}}, false, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("")
			m.Register(tt.checkers...)
			resp := m.Ready(context.Background())
			assert.Equal(t, tt.wantReady, resp.Ready)
			assert.Equal(t, tt.want, resp.Status)
		})
	}
}

func TestServeReadyStatusCode(t *testing.T) {
	m := NewManager("")
	m.Register(NewCheckFunc("index", func(context.Context) error { return errors.New("database is locked") }))

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body ReadinessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Ready)
	assert.Equal(t, "database is locked", body.Checks["index"].Error)

	rec = httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestDirChecker(t *testing.T) {
	dir := t.TempDir()
	res := NewDirChecker("blobs", dir).Check(context.Background())
	assert.Equal(t, StatusHealthy, res.Status)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	res = NewDirChecker("blobs", filepath.Join(dir, "missing")).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)

	file := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	res = NewDirChecker("blobs", file).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
}
