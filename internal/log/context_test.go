// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestContextWithUploadID(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		id   string
		want string
	}{
		{name: "nil context", ctx: nil, id: "up-1", want: "up-1"},
		{name: "background context", ctx: context.Background(), id: "up-2", want: "up-2"},
		{name: "empty id", ctx: context.Background(), id: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := ContextWithUploadID(tt.ctx, tt.id)
			if got := UploadIDFromContext(ctx); got != tt.want {
				t.Errorf("UploadIDFromContext() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUploadIDFromContext_Missing(t *testing.T) {
	if got := UploadIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
	//nolint:staticcheck // nil context is part of the contract
	if got := UploadIDFromContext(nil); got != "" {
		t.Errorf("expected empty id for nil context, got %q", got)
	}
}

func TestWithContext_AddsFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := ContextWithUploadID(context.Background(), "up-42")
	ctx = ContextWithCorrelationID(ctx, "batch-7")

	l := WithContext(ctx, base)
	l.Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry[FieldUploadID] != "up-42" {
		t.Errorf("expected upload_id field, got %v", entry[FieldUploadID])
	}
	if entry[FieldCorrelationID] != "batch-7" {
		t.Errorf("expected correlation_id field, got %v", entry[FieldCorrelationID])
	}
}

func TestWithContext_NoFieldsReturnsSameLogger(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	l := WithContext(context.Background(), base)
	l.Info().Msg("plain")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if _, ok := entry[FieldUploadID]; ok {
		t.Error("did not expect upload_id field")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "pixup-test", Version: "v0.0.0"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("store")
	l.Debug().Msg("component line")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry[FieldComponent] != "store" {
		t.Errorf("expected component=store, got %v", entry[FieldComponent])
	}
	if entry["service"] != "pixup-test" {
		t.Errorf("expected service=pixup-test, got %v", entry["service"])
	}
	if entry["version"] != "v0.0.0" {
		t.Errorf("expected version=v0.0.0, got %v", entry["version"])
	}
}
