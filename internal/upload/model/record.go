// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"fmt"
	"time"
)

// Record is the per-file state tracked through the pipeline.
// Records handed out by a store are copies; mutating them has no effect.
type Record struct {
	ID          string
	DisplayName string
	MediaType   string
	Status      Status

	OriginalSizeBytes   int64
	CompressedSizeBytes *int64 // nil until the transcoder finished
	TransportSentBytes  int64
	RemoteLocation      string // set only while Status == StatusSuccess

	Reason  Reason
	Detail  string
	Attempt int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateInput carries the immutable fields of a new record.
type CreateInput struct {
	DisplayName       string
	MediaType         string
	OriginalSizeBytes int64
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Status              *Status
	CompressedSizeBytes *int64
	TransportSentBytes  *int64
	RemoteLocation      *string
	Reason              *Reason
	Detail              *string

	// Restart begins a new cycle: only valid together with Status=Queued from
	// Error or Cancelled. It clears the per-cycle fields and bumps Attempt.
	Restart bool
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	cp := r
	if r.CompressedSizeBytes != nil {
		v := *r.CompressedSizeBytes
		cp.CompressedSizeBytes = &v
	}
	return cp
}

// HasCompressedSize reports whether the transcoder already produced output.
func (r Record) HasCompressedSize() bool {
	return r.CompressedSizeBytes != nil
}

// ItemProgress is the per-record upload percentage shown next to each item:
// 0 until the compressed size is known, never above 100.
func (r Record) ItemProgress() int {
	if r.Status == StatusSuccess {
		return 100
	}
	if r.CompressedSizeBytes == nil || *r.CompressedSizeBytes <= 0 {
		return 0
	}
	return percent(r.TransportSentBytes, *r.CompressedSizeBytes)
}

// Reduction is the size saving of the compressed derivative in percent, and
// false while the compressed size is unknown.
func (r Record) Reduction() (int, bool) {
	if r.CompressedSizeBytes == nil || r.OriginalSizeBytes <= 0 {
		return 0, false
	}
	return roundPercent(r.OriginalSizeBytes-*r.CompressedSizeBytes, r.OriginalSizeBytes), true
}

// Apply returns r with p merged in. All record invariants are enforced here so a
// store only has to apply patches atomically.
func (r Record) Apply(p Patch, now time.Time) (Record, error) {
	if r.Status.IsTerminal() && !p.Restart {
		return r, fmt.Errorf("%w: record is %s", ErrIllegalTransition, r.Status)
	}

	next := r.Clone()

	if p.Status != nil && *p.Status != r.Status {
		if !CanTransition(r.Status, *p.Status, p.Restart) {
			return r, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, r.Status, *p.Status)
		}
		next.Status = *p.Status
	} else if p.Restart {
		return r, fmt.Errorf("%w: restart without status change from %s", ErrIllegalTransition, r.Status)
	}

	if p.Restart {
		next.CompressedSizeBytes = nil
		next.TransportSentBytes = 0
		next.RemoteLocation = ""
		next.Reason = ReasonNone
		next.Detail = ""
		next.Attempt++
	}

	// Single assignment.
	if p.CompressedSizeBytes != nil && next.CompressedSizeBytes == nil {
		v := *p.CompressedSizeBytes
		if v < 0 {
			v = 0
		}
		next.CompressedSizeBytes = &v
	}

	// Monotonic and bounded by the compressed size.
	if p.TransportSentBytes != nil && *p.TransportSentBytes > next.TransportSentBytes {
		next.TransportSentBytes = *p.TransportSentBytes
	}
	if next.CompressedSizeBytes != nil && next.TransportSentBytes > *next.CompressedSizeBytes {
		next.TransportSentBytes = *next.CompressedSizeBytes
	}

	if p.RemoteLocation != nil {
		next.RemoteLocation = *p.RemoteLocation
	}
	if next.Status != StatusSuccess {
		next.RemoteLocation = ""
	}

	if p.Reason != nil {
		next.Reason = *p.Reason
	}
	if p.Detail != nil {
		next.Detail = *p.Detail
	}

	next.UpdatedAt = now
	return next, nil
}

func percent(part, total int64) int {
	v := roundPercent(part, total)
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}
