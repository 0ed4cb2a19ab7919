// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lifecycle

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ManuGH/pixup/internal/upload/model"
)

type reasonError struct {
	reason model.Reason
	detail string
	err    error
}

func (e *reasonError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return string(e.reason)
}

// Is matches the taxonomy sentinel for the carried reason, so callers can use
// errors.Is(err, model.ErrTransportFailure) without unwrapping by hand.
func (e *reasonError) Is(target error) bool {
	if target == nil {
		return false
	}
	class := ReasonErrorClass(e.reason)
	return class != nil && target == class
}

func (e *reasonError) Unwrap() error {
	return e.err
}

// NewReasonError attaches a reason and a human detail to err.
func NewReasonError(reason model.Reason, detail string, err error) error {
	return &reasonError{reason: reason, detail: detail, err: err}
}

// ReasonErrorClass maps a reason to its taxonomy sentinel.
func ReasonErrorClass(reason model.Reason) error {
	switch reason {
	case model.ReasonUnsupportedFormat:
		return model.ErrUnsupportedFormat
	case model.ReasonEncodingFailed:
		return model.ErrEncodingFailed
	case model.ReasonTransportFailure:
		return model.ErrTransportFailure
	case model.ReasonCancelled:
		return model.ErrCancelled
	default:
		return nil
	}
}

// ReasonFromError extracts an explicitly attached reason.
func ReasonFromError(err error) (model.Reason, string, bool) {
	var rerr *reasonError
	if errors.As(err, &rerr) {
		detail := rerr.detail
		if detail == "" && rerr.err != nil {
			detail = rerr.err.Error()
		}
		return rerr.reason, detail, true
	}
	return "", "", false
}

// ClassifyReason maps any pipeline error onto the error taxonomy.
func ClassifyReason(err error) (model.Reason, string) {
	if err == nil {
		return model.ReasonNone, ""
	}
	if reason, detail, ok := ReasonFromError(err); ok {
		return reason, sanitizeDetail(detail)
	}

	switch {
	case errors.Is(err, model.ErrCancelled):
		return model.ReasonCancelled, ""
	case errors.Is(err, model.ErrUnsupportedFormat):
		return model.ReasonUnsupportedFormat, sanitizeDetail(err.Error())
	case errors.Is(err, model.ErrEncodingFailed):
		return model.ReasonEncodingFailed, sanitizeDetail(err.Error())
	case errors.Is(err, model.ErrTransportFailure):
		return model.ReasonTransportFailure, sanitizeDetail(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return model.ReasonTransportFailure, "deadline exceeded"
	}
	return model.ReasonInternal, sanitizeDetail(err.Error())
}

func sanitizeDetail(detail string) string {
	if detail == "" {
		return ""
	}
	const maxLen = 160
	clean := strings.ReplaceAll(detail, "\n", " ")
	if len(clean) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(clean[cut]) {
			cut--
		}
		return clean[:cut] + "..."
	}
	return clean
}
