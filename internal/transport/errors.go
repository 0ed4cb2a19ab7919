// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transport

import (
	"fmt"
)

// SendError wraps a taxonomy sentinel (model.ErrTransportFailure or
// model.ErrCancelled) with request context.
type SendError struct {
	Sentinel error
	Endpoint string
	Status   int
	Body     string
	Err      error // underlying net/json error, if any
}

func (e *SendError) Error() string {
	msg := fmt.Sprintf("upload to %s: %v", e.Endpoint, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Sentinel}
	}
	return []error{e.Sentinel, e.Err}
}
