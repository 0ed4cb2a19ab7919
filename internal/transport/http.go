// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transport uploads a compressed payload to the remote store as a single
// multipart/form-data request.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	xlog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/resilience"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Payload is the file part of the request.
type Payload struct {
	Name      string
	MediaType string
	Data      []byte
}

// ProgressFunc receives the cumulative number of payload bytes handed to the
// network. Values never decrease. It must not block.
type ProgressFunc func(sent int64)

// Config configures the HTTP transport.
type Config struct {
	Endpoint         string
	FieldName        string        // multipart file field, default "file"
	LocatorField     string        // JSON response field, default "url"
	Timeout          time.Duration // 0 = no client timeout; cancellation comes from ctx
	ProgressInterval time.Duration // minimum spacing of progress ticks
	// BreakerThreshold consecutive endpoint failures make Send fail fast for
	// BreakerCooldown. 0 disables the breaker.
	BreakerThreshold int
	BreakerCooldown  time.Duration
	Client           *http.Client
	Logger           zerolog.Logger
}

// HTTP is the multipart upload transport.
type HTTP struct {
	endpoint     string
	field        string
	locatorField string
	interval     time.Duration
	client       *http.Client
	breaker      *resilience.CircuitBreaker
	logger       zerolog.Logger
}

func New(cfg Config) (*HTTP, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("transport: endpoint is required")
	}
	if cfg.FieldName == "" {
		cfg.FieldName = "file"
	}
	if cfg.LocatorField == "" {
		cfg.LocatorField = "url"
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 50 * time.Millisecond
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	h := &HTTP{
		endpoint:     cfg.Endpoint,
		field:        cfg.FieldName,
		locatorField: cfg.LocatorField,
		interval:     cfg.ProgressInterval,
		client:       client,
		logger:       cfg.Logger,
	}
	if cfg.BreakerThreshold > 0 {
		h.breaker = resilience.NewCircuitBreaker("upload_endpoint", cfg.BreakerThreshold, cfg.BreakerCooldown,
			resilience.WithNeutral(isNeutral))
	}
	return h, nil
}

// isNeutral reports failures that say nothing about the endpoint's health: the
// caller cancelling, or the server refusing this particular file.
func isNeutral(err error) bool {
	if errors.Is(err, model.ErrCancelled) {
		return true
	}
	var se *SendError
	if errors.As(err, &se) {
		return se.Status >= 400 && se.Status < 500 && se.Status != http.StatusTooManyRequests
	}
	return false
}

// Send uploads p and returns the remote locator from the JSON response.
//
// Exactly one of three results happens: a locator with a nil error, an error
// matching model.ErrCancelled when ctx was cancelled, or an error matching
// model.ErrTransportFailure. On success onProgress has been called with len(p.Data)
// before Send returns. While the endpoint breaker is open Send fails without
// contacting the server.
func (h *HTTP) Send(ctx context.Context, p Payload, onProgress ProgressFunc) (string, error) {
	if h.breaker == nil {
		return h.send(ctx, p, onProgress)
	}
	var locator string
	err := h.breaker.Execute(func() error {
		var err error
		locator, err = h.send(ctx, p, onProgress)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		metrics.IncTransportRequest("circuit_open")
		return "", h.fail(model.ErrTransportFailure, 0, "", err)
	}
	return locator, err
}

func (h *HTTP) send(ctx context.Context, p Payload, onProgress ProgressFunc) (string, error) {
	logger := xlog.WithContext(ctx, h.logger)
	size := int64(len(p.Data))

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	tracker := newProgressTracker(h.interval, onProgress)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pw.CloseWithError(writeBody(mw, h.field, p, tracker))
	}()
	// The writer goroutine must never outlive Send.
	defer func() {
		_ = pr.CloseWithError(io.ErrClosedPipe)
		wg.Wait()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, pr)
	if err != nil {
		metrics.IncTransportRequest("network_error")
		return "", h.fail(model.ErrTransportFailure, 0, "", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	res, err := h.client.Do(req)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			metrics.IncTransportRequest("cancelled")
			logger.Debug().Str(xlog.FieldFileName, p.Name).Int64(xlog.FieldSentBytes, tracker.sent()).Msg("upload cancelled")
			return "", h.fail(model.ErrCancelled, 0, "", ctx.Err())
		}
		metrics.IncTransportRequest("network_error")
		return "", h.fail(model.ErrTransportFailure, 0, "", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		metrics.IncTransportRequest("http_error")
		return "", h.fail(model.ErrTransportFailure, res.StatusCode, strings.TrimSpace(string(body)), nil)
	}

	var decoded map[string]any
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&decoded); err != nil {
		if ctx.Err() != nil {
			metrics.IncTransportRequest("cancelled")
			return "", h.fail(model.ErrCancelled, 0, "", ctx.Err())
		}
		metrics.IncTransportRequest("bad_response")
		return "", h.fail(model.ErrTransportFailure, res.StatusCode, "", fmt.Errorf("decode response: %w", err))
	}
	locator, _ := decoded[h.locatorField].(string)
	if locator == "" {
		metrics.IncTransportRequest("bad_response")
		return "", h.fail(model.ErrTransportFailure, res.StatusCode, "", fmt.Errorf("response has no %q string field", h.locatorField))
	}

	// A server may answer before draining the body; an accepted upload still
	// reports the full size, and later reads from the writer are ignored.
	tracker.finish(size)
	metrics.IncTransportRequest("ok")

	logger.Debug().
		Str(xlog.FieldFileName, p.Name).
		Int64(xlog.FieldSizeBytes, size).
		Str(xlog.FieldLocation, locator).
		Msg("upload complete")
	return locator, nil
}

func (h *HTTP) fail(sentinel error, status int, body string, err error) error {
	return &SendError{Sentinel: sentinel, Endpoint: h.endpoint, Status: status, Body: body, Err: err}
}

func writeBody(mw *multipart.Writer, field string, p Payload, tracker *progressTracker) error {
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(field), escapeQuotes(p.Name)))
	mediaType := p.MediaType
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	hdr.Set("Content-Type", mediaType)

	part, err := mw.CreatePart(hdr)
	if err != nil {
		return err
	}
	if _, err := (&countingWriter{w: part, tracker: tracker}).Write(p.Data); err != nil {
		return err
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// writeChunk bounds each write so progress advances while the client drains the pipe.
const writeChunk = 32 << 10

// countingWriter reports bytes once the request body has consumed them.
type countingWriter struct {
	w       io.Writer
	tracker *progressTracker
}

func (c *countingWriter) Write(b []byte) (int, error) {
	written := 0
	for written < len(b) {
		end := min(written+writeChunk, len(b))
		n, err := c.w.Write(b[written:end])
		if n > 0 {
			c.tracker.add(int64(n))
			written += n
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// progressTracker throttles callbacks and keeps them monotonic.
type progressTracker struct {
	mu       sync.Mutex
	done     bool
	total    int64
	reported int64
	gate     rate.Sometimes
	fn       ProgressFunc
}

func newProgressTracker(interval time.Duration, fn ProgressFunc) *progressTracker {
	return &progressTracker{gate: rate.Sometimes{Interval: interval}, fn: fn, reported: -1}
}

func (t *progressTracker) add(n int64) {
	metrics.TransportBytesSent.Add(float64(n))
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.total += n
	t.gate.Do(t.reportLocked)
}

func (t *progressTracker) sent() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *progressTracker) finish(size int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	if size > t.total {
		t.total = size
	}
	t.reportLocked()
}

func (t *progressTracker) reportLocked() {
	if t.fn == nil || t.total <= t.reported {
		return
	}
	t.reported = t.total
	t.fn(t.total)
}
