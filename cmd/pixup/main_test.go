// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/pixup/internal/config"
	"github.com/ManuGH/pixup/internal/remotestore"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/progress"
	"github.com/ManuGH/pixup/internal/version"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startReceiver(t *testing.T) *httptest.Server {
	t.Helper()
	srv, err := remotestore.New(remotestore.Config{
		DataDir:   t.TempDir(),
		PublicURL: "http://cdn.test",
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Close()
	})
	return ts
}

func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "pixup "+version.Version)
}

func TestUploadCommandSuccess(t *testing.T) {
	ts := startReceiver(t)
	t.Setenv("PIXUP_UPLOAD_ENDPOINT", ts.URL+"/uploads")

	dir := t.TempDir()
	a := writePNG(t, dir, "a.png", 64, 48)
	b := writePNG(t, dir, "b.png", 1600, 20)

	out, _, err := execute(t, "upload", "--quiet", "--format", "jpeg", a, b)
	require.NoError(t, err)
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "a.png")
	assert.Contains(t, out, "b.png")
	assert.Contains(t, out, "http://cdn.test/uploads/")
	assert.NotContains(t, out, "error")
}

func TestUploadCommandReportsFailures(t *testing.T) {
	ts := startReceiver(t)
	t.Setenv("PIXUP_UPLOAD_ENDPOINT", ts.URL+"/uploads")

	dir := t.TempDir()
	good := writePNG(t, dir, "good.png", 10, 10)
	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("plain text"), 0o600))

	out, _, err := execute(t, "upload", "-q", "--retries", "2", good, bad)
	require.ErrorIs(t, err, errUploadsFailed)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, string(model.ReasonUnsupportedFormat))
}

func TestUploadCommandRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = r.MultipartReader()
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "http://cdn.test/x.webp"})
	}))
	defer ts.Close()
	t.Setenv("PIXUP_UPLOAD_ENDPOINT", ts.URL)

	path := writePNG(t, t.TempDir(), "x.png", 8, 8)
	out, _, err := execute(t, "upload", "-q", "--retries", "1", path)
	require.NoError(t, err)
	assert.Contains(t, out, "http://cdn.test/x.webp")
	assert.Equal(t, int32(2), calls.Load())
}

func TestUploadCommandRejectsBadFlags(t *testing.T) {
	path := writePNG(t, t.TempDir(), "x.png", 8, 8)
	_, _, err := execute(t, "upload", "--quality", "3", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcode.quality")
}

func TestUploadCommandMissingFile(t *testing.T) {
	_, _, err := execute(t, "upload", filepath.Join(t.TempDir(), "absent.png"))
	require.Error(t, err)
}

func TestUploadCommandPrintsProgress(t *testing.T) {
	ts := startReceiver(t)
	t.Setenv("PIXUP_UPLOAD_ENDPOINT", ts.URL+"/uploads")

	path := writePNG(t, t.TempDir(), "p.png", 32, 32)
	_, errOut, err := execute(t, "upload", "--log-level", "error", path)
	require.NoError(t, err)
	assert.Contains(t, errOut, "100%")
}

func TestFormatSummary(t *testing.T) {
	s := progress.Summary{
		HasPending:     true,
		GlobalProgress: 42,
		TotalExpected:  2000,
		TotalSent:      840,
		Counts: map[model.Status]int{
			model.StatusUploading: 1,
			model.StatusSuccess:   2,
			model.StatusError:     1,
		},
	}
	line := formatSummary(s)
	assert.Contains(t, line, " 42%")
	assert.Contains(t, line, "840 B / 2.0 kB")
	assert.Contains(t, line, "uploading 1")
	assert.Contains(t, line, "done 2")
	assert.Contains(t, line, "failed 1")
}

func TestPrintReport(t *testing.T) {
	compressed := int64(250)
	records := []model.Record{
		{DisplayName: "a.webp", Status: model.StatusSuccess, OriginalSizeBytes: 1000, CompressedSizeBytes: &compressed, RemoteLocation: "http://cdn.test/a"},
		{DisplayName: "b.gif", Status: model.StatusError, OriginalSizeBytes: 10, Reason: model.ReasonUnsupportedFormat, Detail: "image/gif"},
	}
	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, records))
	out := buf.String()
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "http://cdn.test/a")
	assert.Contains(t, out, "unsupported_format: image/gif")
}

func TestIsWatchedImage(t *testing.T) {
	assert.True(t, isWatchedImage("/in/photo.JPG"))
	assert.True(t, isWatchedImage("scan.webp"))
	assert.False(t, isWatchedImage("notes.txt"))
	assert.False(t, isWatchedImage("/in/.photo.png.swp"))
	assert.False(t, isWatchedImage("/in/.hidden.png"))
}

func TestDebouncerCoalesces(t *testing.T) {
	var mu sync.Mutex
	fired := map[string]int{}
	d := newDebouncer(30*time.Millisecond, func(p string) {
		mu.Lock()
		fired[p]++
		mu.Unlock()
	})
	defer d.Stop()

	for i := 0; i < 5; i++ {
		d.Touch("a")
		time.Sleep(5 * time.Millisecond)
	}
	d.Touch("b")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired["a"] == 1 && fired["b"] == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fired["a"])
}

func TestDebouncerStopDiscardsPending(t *testing.T) {
	var fired atomic.Int32
	d := newDebouncer(20*time.Millisecond, func(string) { fired.Add(1) })
	d.Touch("a")
	d.Stop()
	d.Stop()
	d.Touch("b")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, fired.Load())
}

func TestRunWatchUploadsNewFiles(t *testing.T) {
	ts := startReceiver(t)

	t.Setenv("PIXUP_UPLOAD_ENDPOINT", ts.URL+"/uploads")
	t.Setenv("PIXUP_WATCH_DEBOUNCE", "20ms")
	cfg, err := config.NewLoader("", "test").Load()
	require.NoError(t, err)

	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runWatch(ctx, cfg, dir) }()

	// Give the watcher a moment to register before the file appears.
	time.Sleep(100 * time.Millisecond)
	writePNG(t, dir, "new.png", 16, 16)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/uploads")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		var body struct {
			Uploads []remotestore.Entry `json:"uploads"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return false
		}
		return len(body.Uploads) == 1 && body.Uploads[0].OriginalName == "new.webp"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestRunWatchRejectsFile(t *testing.T) {
	cfg, err := config.NewLoader("", "test").Load()
	require.NoError(t, err)
	path := writePNG(t, t.TempDir(), "x.png", 4, 4)
	require.Error(t, runWatch(context.Background(), cfg, path))
}
