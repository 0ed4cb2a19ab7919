// SPDX-License-Identifier: MIT
package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("POST", "/uploads", 201)
	if len(attrs) != 3 {
		t.Fatalf("Expected 3 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, HTTPMethodKey, "POST")
	verifyAttribute(t, attrs, HTTPRouteKey, "/uploads")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 201)
}

func TestUploadAttributes(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		file    string
		attempt int
		wantLen int
	}{
		{"all fields", "u-1", "a.png", 2, 3},
		{"id only", "u-1", "", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := UploadAttributes(tt.id, tt.file, tt.attempt)
			if len(attrs) != tt.wantLen {
				t.Errorf("Expected %d attributes, got %d", tt.wantLen, len(attrs))
			}
			verifyAttribute(t, attrs, UploadIDKey, tt.id)
		})
	}
}

func TestOutcomeAttributes(t *testing.T) {
	attrs := OutcomeAttributes("error", "transport_failure")
	verifyAttribute(t, attrs, UploadStatusKey, "error")
	verifyAttribute(t, attrs, UploadReasonKey, "transport_failure")

	if got := OutcomeAttributes("success", ""); len(got) != 1 {
		t.Errorf("Expected 1 attribute for success, got %d", len(got))
	}
}

func TestTranscodeAttributes(t *testing.T) {
	attrs := TranscodeAttributes("image/png", "image/webp", 800, 600, 1234)
	if len(attrs) != 5 {
		t.Fatalf("Expected 5 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, TranscodeOutputTypeKey, "image/webp")
	verifyIntAttribute(t, attrs, TranscodeWidthKey, 800)
}

func TestErrorAttributes(t *testing.T) {
	attrs := ErrorAttributes(errors.New("boom"), "encoding_failed")
	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}
	verifyAttribute(t, attrs, ErrorTypeKey, "encoding_failed")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsString() != want {
				t.Errorf("attribute %s: expected %q, got %q", key, want, a.Value.AsString())
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, a := range attrs {
		if string(a.Key) == key {
			if a.Value.AsInt64() != want {
				t.Errorf("attribute %s: expected %d, got %d", key, want, a.Value.AsInt64())
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}
