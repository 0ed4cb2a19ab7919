// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Status is the lifecycle state of one upload record.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusCompressing Status = "compressing"
	StatusUploading   Status = "uploading"
	StatusSuccess     Status = "success"
	StatusError       Status = "error"
	StatusCancelled   Status = "cancelled"
)

// AllStatuses lists every status in pipeline order.
var AllStatuses = []Status{
	StatusQueued,
	StatusCompressing,
	StatusUploading,
	StatusSuccess,
	StatusError,
	StatusCancelled,
}

// IsTerminal reports whether no further automatic transition occurs from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSuccess, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsPending reports whether s still counts towards outstanding work.
func (s Status) IsPending() bool {
	switch s {
	case StatusQueued, StatusCompressing, StatusUploading:
		return true
	default:
		return false
	}
}

// IsCancellable reports whether a cancel request has an effect in state s.
// Queued records have not started yet and terminal records are final.
func (s Status) IsCancellable() bool {
	return s == StatusCompressing || s == StatusUploading
}

func (s Status) String() string { return string(s) }

// Reason is the machine-readable cause attached to a terminal Error or Cancelled record.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonUnsupportedFormat Reason = "unsupported_format"
	ReasonEncodingFailed    Reason = "encoding_failed"
	ReasonTransportFailure  Reason = "transport_failure"
	ReasonCancelled         Reason = "cancelled"
	ReasonInternal          Reason = "internal"
)

// Retryable reports whether a record that failed for this reason may be retried
// with the same source file.
func (r Reason) Retryable() bool {
	return r != ReasonUnsupportedFormat
}
