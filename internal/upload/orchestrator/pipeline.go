// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	xlog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/telemetry"
	"github.com/ManuGH/pixup/internal/transport"
	"github.com/ManuGH/pixup/internal/upload/lifecycle"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// execute is the per-record worker goroutine.
func (o *Orchestrator) execute(r *run, src model.Source) {
	ctx := xlog.ContextWithUploadID(r.handle.Context(), r.id)
	logger := xlog.WithContext(ctx, o.logger)

	defer func() {
		if p := recover(); p != nil {
			logger.Error().Interface("panic", p).Msg("upload pipeline panicked")
			o.finish(ctx, r, logger, fmt.Errorf("panic: %v", p))
		}

		r.handle.release()
		metrics.UploadDone()

		o.mu.Lock()
		if o.runs[r.id] == r {
			delete(o.runs, r.id)
		}
		o.mu.Unlock()
		close(r.done)
	}()

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			logger.Debug().Msg("run cancelled while queued")
			return
		}
		defer o.sem.Release(1)
	}
	if r.handle.Triggered() {
		return
	}

	rec, err := o.store.Get(ctx, r.id)
	if err != nil || rec == nil {
		logger.Warn().Err(err).Msg("record vanished before start")
		return
	}

	ctx, span := o.tracer.Start(ctx, "upload.pipeline",
		trace.WithAttributes(telemetry.UploadAttributes(r.id, src.Name, rec.Attempt)...))
	defer span.End()

	o.finish(ctx, r, logger, o.runStages(ctx, r, src, logger))
}

// runStages moves the record through Compressing and Uploading. A nil error means
// the record already holds its terminal state (Success, or Cancelled right after
// transcoding); any other error is left for finish to map.
func (o *Orchestrator) runStages(ctx context.Context, r *run, src model.Source, logger zerolog.Logger) error {
	if err := o.transition(ctx, r.id, model.Patch{Status: model.Ptr(model.StatusCompressing)}, logger); err != nil {
		return err
	}

	tctx, tspan := o.tracer.Start(ctx, "upload.transcode")
	res, err := o.transcoder.Transcode(tctx, src, o.constraints)
	if err != nil {
		tspan.RecordError(err)
		tspan.SetStatus(codes.Error, "transcode failed")
		tspan.End()
		return err
	}
	tspan.SetAttributes(telemetry.TranscodeAttributes(src.MediaType, res.MediaType, res.Width, res.Height, res.Size())...)
	tspan.End()

	compressed := res.Size()

	// Transcoding is not interruptible; a cancel that arrived meanwhile is honoured
	// here, keeping the size history.
	if r.handle.Triggered() {
		return o.transition(ctx, r.id, model.Patch{
			Status:              model.Ptr(model.StatusCancelled),
			CompressedSizeBytes: model.Ptr(compressed),
			Reason:              model.Ptr(model.ReasonCancelled),
		}, logger)
	}

	if err := o.transition(ctx, r.id, model.Patch{
		Status:              model.Ptr(model.StatusUploading),
		CompressedSizeBytes: model.Ptr(compressed),
	}, logger); err != nil {
		return err
	}

	sctx, sspan := o.tracer.Start(ctx, "upload.send")
	defer sspan.End()

	onProgress := func(sent int64) {
		// Store patches never block; the record clamps and orders the values.
		if _, err := o.store.Patch(context.Background(), r.id, model.Patch{TransportSentBytes: model.Ptr(sent)}); err != nil {
			logger.Debug().Err(err).Int64(xlog.FieldSentBytes, sent).Msg("progress patch rejected")
		}
	}

	location, err := o.transport.Send(sctx, transport.Payload{
		Name:      res.Name,
		MediaType: res.MediaType,
		Data:      res.Data,
	}, onProgress)
	if err != nil {
		sspan.RecordError(err)
		sspan.SetStatus(codes.Error, "send failed")
		return err
	}
	if location == "" {
		return fmt.Errorf("%w: empty remote location", model.ErrTransportFailure)
	}

	return o.transition(ctx, r.id, model.Patch{
		Status:             model.Ptr(model.StatusSuccess),
		TransportSentBytes: model.Ptr(compressed),
		RemoteLocation:     model.Ptr(location),
	}, logger)
}

// finish writes the terminal state for err unless the record already has one.
func (o *Orchestrator) finish(ctx context.Context, r *run, logger zerolog.Logger, err error) {
	rec, gerr := o.store.Get(context.Background(), r.id)
	if gerr != nil || rec == nil {
		return
	}

	if !rec.Status.IsTerminal() {
		out := lifecycle.TerminalOutcome(err, r.handle.Triggered())
		if out.Status == model.StatusSuccess {
			// Success is only ever written by runStages.
			out = lifecycle.TerminalOutcome(errors.New("pipeline ended without a terminal state"), false)
		}
		if rec.Status == model.StatusQueued && out.Status != model.StatusError {
			return
		}
		if rec.Status == model.StatusQueued {
			// Queued -> Error is not an edge; fail through Compressing.
			_ = o.transition(ctx, r.id, model.Patch{Status: model.Ptr(model.StatusCompressing)}, logger)
		}
		if terr := o.transition(ctx, r.id, out.Patch(), logger); terr != nil {
			logger.Warn().Err(terr).Msg("terminal transition rejected")
			return
		}
		rec, _ = o.store.Get(context.Background(), r.id)
		if rec == nil {
			return
		}
	}

	elapsed := time.Since(r.startedAt)
	metrics.ObserveUploadFinished(string(rec.Status), elapsed)

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.OutcomeAttributes(string(rec.Status), string(rec.Reason))...)
	if rec.Status == model.StatusError {
		span.SetStatus(codes.Error, string(rec.Reason))
	}

	ev := logger.Info()
	if rec.Status == model.StatusError {
		ev = logger.Warn()
	}
	ev = ev.Str(xlog.FieldFileName, rec.DisplayName).
		Str(xlog.FieldStatus, string(rec.Status)).
		Int64(xlog.FieldSizeBytes, rec.OriginalSizeBytes).
		Dur("elapsed", elapsed)
	if rec.Reason != model.ReasonNone {
		ev = ev.Str(xlog.FieldReason, string(rec.Reason))
	}
	if rec.Detail != "" {
		ev = ev.Str("detail", rec.Detail)
	}
	if reduction, ok := rec.Reduction(); ok {
		ev = ev.Int(xlog.FieldReduction, reduction)
	}
	if rec.RemoteLocation != "" {
		ev = ev.Str(xlog.FieldLocation, rec.RemoteLocation)
	}
	ev.Msg("upload finished")
}

func (o *Orchestrator) transition(ctx context.Context, id string, p model.Patch, logger zerolog.Logger) error {
	before, _ := o.store.Get(context.Background(), id)
	after, err := o.store.Patch(context.Background(), id, p)
	if err != nil {
		return err
	}
	if after == nil {
		return fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	if before != nil && before.Status != after.Status {
		logger.Debug().
			Str(xlog.FieldOldState, string(before.Status)).
			Str(xlog.FieldNewState, string(after.Status)).
			Msg("upload state changed")
		trace.SpanFromContext(ctx).AddEvent("state." + string(after.Status))
	}
	return nil
}
