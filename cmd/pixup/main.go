// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// pixup transcodes images and uploads the derivatives to a remote store.
//
// Usage:
//
//	pixup upload photo.jpg scan.png
//	pixup watch ./inbox
//	pixup serve
//
// Exit codes:
//   - 0: every upload succeeded
//   - 1: at least one upload failed or was cancelled, or a command error
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errUploadsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
