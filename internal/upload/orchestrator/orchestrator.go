// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package orchestrator drives upload records through transcode and transport.
//
// Every submitted file gets its own goroutine and cancellation handle. The store is
// the only shared mutable state; pipelines never touch each other's records.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	xlog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/telemetry"
	"github.com/ManuGH/pixup/internal/transcoder"
	"github.com/ManuGH/pixup/internal/transport"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/progress"
	"github.com/ManuGH/pixup/internal/upload/store"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// ErrClosed is returned by Submit and Retry after Shutdown.
var ErrClosed = errors.New("orchestrator is shut down")

// Transcoder produces the compressed derivative.
type Transcoder interface {
	Transcode(ctx context.Context, src model.Source, c transcoder.Constraints) (transcoder.Result, error)
}

// Transport uploads a derivative and returns its remote locator.
type Transport interface {
	Send(ctx context.Context, p transport.Payload, onProgress transport.ProgressFunc) (string, error)
}

// Deps wires an Orchestrator.
type Deps struct {
	Store       store.Store
	Transcoder  Transcoder
	Transport   Transport
	Constraints transcoder.Constraints
	// MaxConcurrent caps running pipelines; 0 means unlimited. Waiting records
	// stay Queued.
	MaxConcurrent int
	Logger        zerolog.Logger
}

type run struct {
	id        string
	handle    *Handle
	done      chan struct{}
	startedAt time.Time
}

type Orchestrator struct {
	store       store.Store
	transcoder  Transcoder
	transport   Transport
	constraints transcoder.Constraints
	sem         *semaphore.Weighted
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu      sync.Mutex
	runs    map[string]*run
	sources map[string]model.Source
	closed  bool
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Store == nil || deps.Transcoder == nil || deps.Transport == nil {
		return nil, errors.New("orchestrator: store, transcoder and transport are required")
	}
	o := &Orchestrator{
		store:       deps.Store,
		transcoder:  deps.Transcoder,
		transport:   deps.Transport,
		constraints: deps.Constraints,
		logger:      deps.Logger,
		tracer:      telemetry.Tracer("pixup/orchestrator"),
		runs:        make(map[string]*run),
		sources:     make(map[string]model.Source),
	}
	if deps.MaxConcurrent > 0 {
		o.sem = semaphore.NewWeighted(int64(deps.MaxConcurrent))
	}
	return o, nil
}

// Submit creates one Queued record per source and launches its pipeline. It
// returns as soon as the records exist; pipeline failures only show up as record
// state.
func (o *Orchestrator) Submit(ctx context.Context, sources []model.Source) ([]string, error) {
	if len(sources) == 0 {
		return nil, model.ErrEmptyBatch
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		id, err := o.store.Create(ctx, model.CreateInput{
			DisplayName:       src.Name,
			MediaType:         src.MediaType,
			OriginalSizeBytes: src.Size,
		})
		if err != nil {
			return ids, fmt.Errorf("create record for %s: %w", src.Name, err)
		}
		o.sources[id] = src
		o.launchLocked(id, src)
		ids = append(ids, id)
		metrics.IncUploadsSubmitted()
	}

	o.logger.Info().Int("count", len(ids)).Msg("batch submitted")
	return ids, nil
}

// Cancel triggers the record's handle while it is Compressing or Uploading. Unknown
// ids, Queued and terminal records are left alone. Repeated calls are no-ops.
func (o *Orchestrator) Cancel(id string) {
	o.mu.Lock()
	r, ok := o.runs[id]
	o.mu.Unlock()
	if !ok {
		return
	}

	rec, err := o.store.Get(context.Background(), id)
	if err != nil || rec == nil || !rec.Status.IsCancellable() {
		return
	}
	if r.handle.Trigger() {
		o.logger.Info().Str(xlog.FieldUploadID, id).Str(xlog.FieldStatus, string(rec.Status)).Msg("cancel requested")
	}
}

// Retry starts a new cycle for a record that ended in Error or Cancelled. The
// record keeps its id, gets a fresh handle and re-enters Queued.
func (o *Orchestrator) Retry(ctx context.Context, id string) error {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if rec.Status != model.StatusError && rec.Status != model.StatusCancelled {
		return fmt.Errorf("%w: record is %s", model.ErrNotRetryable, rec.Status)
	}
	if !rec.Reason.Retryable() {
		return fmt.Errorf("%w: %s", model.ErrNotRetryable, rec.Reason)
	}

	// The previous run patches its terminal state before it deregisters.
	o.mu.Lock()
	prev := o.runs[id]
	o.mu.Unlock()
	if prev != nil {
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if _, running := o.runs[id]; running {
		return fmt.Errorf("%w: already retried", model.ErrNotRetryable)
	}
	src, ok := o.sources[id]
	if !ok {
		return fmt.Errorf("%w: source for %s", model.ErrNotFound, id)
	}

	if _, err := o.store.Patch(ctx, id, model.Patch{Status: model.Ptr(model.StatusQueued), Restart: true}); err != nil {
		return fmt.Errorf("restart %s: %w", id, err)
	}
	o.launchLocked(id, src)
	o.logger.Info().Str(xlog.FieldUploadID, id).Int(xlog.FieldAttempt, rec.Attempt+1).Msg("upload retried")
	return nil
}

// Records is a snapshot of all records in submission order.
func (o *Orchestrator) Records(ctx context.Context) ([]model.Record, error) {
	return o.store.List(ctx)
}

// Record returns one record, or model.ErrNotFound.
func (o *Orchestrator) Record(ctx context.Context, id string) (model.Record, error) {
	rec, err := o.store.Get(ctx, id)
	if err != nil {
		return model.Record{}, err
	}
	if rec == nil {
		return model.Record{}, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return *rec, nil
}

// Summary is the aggregate progress over all records.
func (o *Orchestrator) Summary(ctx context.Context) (progress.Summary, error) {
	records, err := o.store.List(ctx)
	if err != nil {
		return progress.Summary{}, err
	}
	return progress.Summarize(records), nil
}

// Wait blocks until no pipeline is running or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	for {
		o.mu.Lock()
		var pending *run
		for _, r := range o.runs {
			pending = r
			break
		}
		o.mu.Unlock()

		if pending == nil {
			return nil
		}
		select {
		case <-pending.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Shutdown refuses new work, triggers every running handle and waits for the
// pipelines to finish.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	runs := make([]*run, 0, len(o.runs))
	for _, r := range o.runs {
		runs = append(runs, r)
	}
	o.mu.Unlock()

	o.logger.Info().Int("count", len(runs)).Msg("shutdown: cancelling running uploads")
	for _, r := range runs {
		r.handle.Trigger()
	}
	return o.Wait(ctx)
}

func (o *Orchestrator) launchLocked(id string, src model.Source) {
	r := &run{
		id:        id,
		handle:    newHandle(),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	o.runs[id] = r
	metrics.UploadStarted()
	go o.execute(r, src)
}
