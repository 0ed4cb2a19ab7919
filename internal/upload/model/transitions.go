// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

// Transition is a single allowed edge in the record state machine.
type Transition struct {
	From Status
	To   Status
	// Restart marks the retry edge that starts a new cycle on the same record.
	Restart bool
}

var transitionsTable = []Transition{
	{From: StatusQueued, To: StatusCompressing},

	{From: StatusCompressing, To: StatusUploading},
	{From: StatusCompressing, To: StatusError},
	{From: StatusCompressing, To: StatusCancelled},

	{From: StatusUploading, To: StatusSuccess},
	{From: StatusUploading, To: StatusError},
	{From: StatusUploading, To: StatusCancelled},

	// Retry
	{From: StatusError, To: StatusQueued, Restart: true},
	{From: StatusCancelled, To: StatusQueued, Restart: true},
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	return append([]Transition(nil), transitionsTable...)
}

// CanTransition reports whether from -> to is an edge of the state machine.
// Restart edges are only valid when restart is set, and restart is only valid on them.
func CanTransition(from, to Status, restart bool) bool {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return tr.Restart == restart
		}
	}
	return false
}
