// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldUploadID      = "upload_id"
	FieldCorrelationID = "correlation_id"
	FieldAttempt       = "attempt"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldStage     = "stage"

	// Media fields
	FieldMediaType  = "media_type"
	FieldFileName   = "file_name"
	FieldWidth      = "width"
	FieldHeight     = "height"
	FieldSizeBytes  = "size_bytes"
	FieldSentBytes  = "sent_bytes"
	FieldReduction  = "reduction_pct"
	FieldOutputType = "output_type"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Network fields
	FieldEndpoint = "endpoint"
	FieldLocation = "location"
	FieldStatus   = "status"
)
