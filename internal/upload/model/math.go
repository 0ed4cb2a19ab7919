// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import "math"

// roundPercent returns round(part*100/total), or 0 when total is not positive.
func roundPercent(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// RoundPercent is roundPercent for callers outside the package.
func RoundPercent(part, total int64) int {
	return roundPercent(part, total)
}

// Ptr returns a pointer to v. It keeps patch literals short.
func Ptr[T any](v T) *T {
	return &v
}
