// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"context"
	"errors"

	"github.com/ManuGH/pixup/internal/upload/model"
)

// Outcome is the canonical terminal mapping for a finished pipeline run.
type Outcome struct {
	Status model.Status
	Reason model.Reason
	Detail string
}

// TerminalOutcome is the single source of truth for how a pipeline error becomes a
// terminal record state. cancelRequested reports whether the record's cancellation
// handle fired; a plain context.Canceled only counts as a cancellation in that case.
func TerminalOutcome(err error, cancelRequested bool) Outcome {
	if err == nil {
		return Outcome{Status: model.StatusSuccess}
	}

	if errors.Is(err, model.ErrCancelled) || (cancelRequested && errors.Is(err, context.Canceled)) {
		return Outcome{Status: model.StatusCancelled, Reason: model.ReasonCancelled}
	}

	reason, detail := ClassifyReason(err)
	if reason == model.ReasonCancelled {
		return Outcome{Status: model.StatusCancelled, Reason: model.ReasonCancelled}
	}
	return Outcome{Status: model.StatusError, Reason: reason, Detail: detail}
}

// Patch converts the outcome into a record patch.
func (o Outcome) Patch() model.Patch {
	p := model.Patch{
		Status: model.Ptr(o.Status),
		Reason: model.Ptr(o.Reason),
	}
	if o.Detail != "" {
		p.Detail = model.Ptr(o.Detail)
	}
	return p
}
