// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progress derives the aggregate upload progress from record snapshots.
package progress

import (
	"context"

	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/store"
)

// Summary is the read-only aggregate over all records.
type Summary struct {
	HasPending     bool
	GlobalProgress int
	TotalExpected  int64
	TotalSent      int64
	Counts         map[model.Status]int
}

// Summarize is a pure function of the snapshot.
//
// Records without a compressed size count their original size as expected and
// nothing as sent, so progress under-reports until compression completes.
func Summarize(records []model.Record) Summary {
	sum := Summary{Counts: make(map[model.Status]int, len(model.AllStatuses))}

	for _, r := range records {
		sum.Counts[r.Status]++
		if r.Status.IsPending() {
			sum.HasPending = true
		}
		if r.CompressedSizeBytes != nil {
			sum.TotalExpected += *r.CompressedSizeBytes
			sum.TotalSent += r.TransportSentBytes
		} else {
			sum.TotalExpected += r.OriginalSizeBytes
		}
	}

	if !sum.HasPending {
		sum.GlobalProgress = 100
		return sum
	}
	if sum.TotalExpected <= 0 {
		return sum
	}

	p := model.RoundPercent(sum.TotalSent, sum.TotalExpected)
	switch {
	case p > 100:
		p = 100
	case p < 0:
		p = 0
	}
	sum.GlobalProgress = p
	return sum
}

// Projector recomputes the summary from a store.
type Projector struct {
	store store.Store
}

func NewProjector(s store.Store) *Projector {
	return &Projector{store: s}
}

// Current summarizes the store's current snapshot.
func (p *Projector) Current(ctx context.Context) (Summary, error) {
	records, err := p.store.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(records), nil
}

// Run calls fn with an initial summary and then with a fresh summary after every
// store change, until ctx is done. Events are only a trigger; the summary is
// always recomputed from a new snapshot, so dropped events merely coalesce.
func (p *Projector) Run(ctx context.Context, fn func(Summary)) error {
	sub := p.store.Subscribe("progress")
	defer func() { _ = sub.Close() }()

	emit := func() error {
		s, err := p.Current(ctx)
		if err != nil {
			return err
		}
		fn(s)
		return nil
	}

	if err := emit(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.C():
			if !ok {
				return nil
			}
			// Coalesce bursts of progress ticks into one recompute.
			drain(sub.C())
			if err := emit(); err != nil {
				return err
			}
		}
	}
}

func drain(ch <-chan store.Event) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
