// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"sync/atomic"

	"github.com/ManuGH/pixup/internal/upload/model"
)

// errRunFinished releases a handle's context once its run is over. It is never
// observed as a cancellation.
var errRunFinished = context.Canceled

// Handle is the cancellation capability of one pipeline run. A retry gets a fresh
// handle; a triggered handle is never reset.
type Handle struct {
	ctx       context.Context
	cancel    context.CancelCauseFunc
	triggered atomic.Bool
}

func newHandle() *Handle {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Handle{ctx: ctx, cancel: cancel}
}

// Trigger requests cancellation. Only the first call has an effect; it reports
// whether this call was that one.
func (h *Handle) Trigger() bool {
	if !h.triggered.CompareAndSwap(false, true) {
		return false
	}
	h.cancel(model.ErrCancelled)
	return true
}

// Triggered reports whether cancellation was requested.
func (h *Handle) Triggered() bool {
	return h.triggered.Load()
}

// Context is done once the handle is triggered or its run has finished.
func (h *Handle) Context() context.Context {
	return h.ctx
}

func (h *Handle) release() {
	h.cancel(errRunFinished)
}
