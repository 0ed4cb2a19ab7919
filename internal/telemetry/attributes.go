// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across pixup.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"

	// Upload attributes
	UploadIDKey      = "upload.id"
	UploadNameKey    = "upload.name"
	UploadAttemptKey = "upload.attempt"
	UploadStatusKey  = "upload.status"
	UploadReasonKey  = "upload.reason"

	// Transcoding attributes
	TranscodeInputTypeKey  = "transcode.input_type"
	TranscodeOutputTypeKey = "transcode.output_type"
	TranscodeWidthKey      = "transcode.width"
	TranscodeHeightKey     = "transcode.height"
	TranscodeSizeKey       = "transcode.size_bytes"

	// Transport attributes
	TransportBytesKey    = "transport.bytes"
	TransportEndpointKey = "transport.endpoint"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// UploadAttributes identifies one pipeline run.
func UploadAttributes(id, name string, attempt int) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	attrs = append(attrs, attribute.String(UploadIDKey, id))
	if name != "" {
		attrs = append(attrs, attribute.String(UploadNameKey, name))
	}
	if attempt > 0 {
		attrs = append(attrs, attribute.Int(UploadAttemptKey, attempt))
	}
	return attrs
}

// OutcomeAttributes records the terminal status of a run.
func OutcomeAttributes(status, reason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(UploadStatusKey, status)}
	if reason != "" {
		attrs = append(attrs, attribute.String(UploadReasonKey, reason))
	}
	return attrs
}

// TranscodeAttributes describes a finished transcode.
func TranscodeAttributes(inputType, outputType string, width, height int, size int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TranscodeInputTypeKey, inputType),
		attribute.String(TranscodeOutputTypeKey, outputType),
		attribute.Int(TranscodeWidthKey, width),
		attribute.Int(TranscodeHeightKey, height),
		attribute.Int64(TranscodeSizeKey, size),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
