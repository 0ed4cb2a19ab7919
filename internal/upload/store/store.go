// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package store

import (
	"context"

	"github.com/ManuGH/pixup/internal/upload/model"
)

// EventKind distinguishes record creation from later patches.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventPatched EventKind = "patched"
)

// Event is delivered to subscribers after every successful mutation.
type Event struct {
	Seq    uint64
	Kind   EventKind
	Record model.Record
}

// Subscription receives change events until Close is called.
type Subscription interface {
	C() <-chan Event
	Close() error
}

// Store is the system-of-record for upload records.
//
// Design intent:
// - Readers only ever get copies; nothing outside the store can reach its memory.
// - Patch computes the new record from the authoritative current value under one
//   lock, so a patch is never derived from a stale snapshot.
// - Records are independent; there is no cross-record operation.
type Store interface {
	// Create inserts a Queued record and returns its generated id.
	Create(ctx context.Context, in model.CreateInput) (string, error)
	// Get returns a copy of the record. If not found, it returns (nil, nil).
	Get(ctx context.Context, id string) (*model.Record, error)
	// Patch merges p into the record atomically. Unknown ids are a no-op; patches
	// the state machine forbids return model.ErrIllegalTransition.
	Patch(ctx context.Context, id string, p model.Patch) (*model.Record, error)
	// List returns a snapshot of all records in insertion order.
	List(ctx context.Context) ([]model.Record, error)
	// Subscribe registers an observer; name labels drop metrics.
	Subscribe(name string) Subscription
}
