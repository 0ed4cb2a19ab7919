// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "errors"

var (
	// ErrUnsupportedFormat is returned by the transcoder when the declared media type
	// is not on the allow-list.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrEncodingFailed is returned when decode or encode cannot produce output.
	ErrEncodingFailed = errors.New("image encoding failed")
	// ErrTransportFailure covers network and server errors during upload.
	ErrTransportFailure = errors.New("transport failure")
	// ErrCancelled marks a failure caused by the record's cancellation handle.
	ErrCancelled = errors.New("upload cancelled")

	ErrIllegalTransition = errors.New("illegal status transition")
	ErrNotFound          = errors.New("upload not found")
	ErrEmptyBatch        = errors.New("empty upload batch")
	ErrNotRetryable      = errors.New("upload not retryable")
)
