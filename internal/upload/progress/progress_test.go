// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/ManuGH/pixup/internal/upload/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func rec(status model.Status, orig int64, compressed *int64, sent int64) model.Record {
	return model.Record{Status: status, OriginalSizeBytes: orig, CompressedSizeBytes: compressed, TransportSentBytes: sent}
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name    string
		records []model.Record
		pending bool
		want    int
	}{
		{"empty", nil, false, 100},
		{"all terminal", []model.Record{
			rec(model.StatusSuccess, 100, model.Ptr[int64](50), 50),
			rec(model.StatusError, 100, nil, 0),
			rec(model.StatusCancelled, 100, model.Ptr[int64](40), 10),
		}, false, 100},
		{"compressing contributes original size only", []model.Record{
			rec(model.StatusCompressing, 1000, nil, 0),
		}, true, 0},
		{"half uploaded", []model.Record{
			rec(model.StatusUploading, 2000000, model.Ptr[int64](500000), 250000),
		}, true, 50},
		{"mixed with compressing denominator", []model.Record{
			rec(model.StatusUploading, 400, model.Ptr[int64](100), 100),
			rec(model.StatusCompressing, 300, nil, 0),
		}, true, 25},
		{"rounds half up", []model.Record{
			rec(model.StatusUploading, 1000, model.Ptr[int64](200), 1),
		}, true, 1},
		{"terminal records still count", []model.Record{
			rec(model.StatusSuccess, 1000, model.Ptr[int64](100), 100),
			rec(model.StatusQueued, 100, nil, 0),
		}, true, 50},
		{"zero expected", []model.Record{
			rec(model.StatusQueued, 0, nil, 0),
		}, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.records)
			require.Equal(t, tt.pending, got.HasPending)
			require.Equal(t, tt.want, got.GlobalProgress)
			require.GreaterOrEqual(t, got.GlobalProgress, 0)
			require.LessOrEqual(t, got.GlobalProgress, 100)
		})
	}
}

func TestSummarize_Counts(t *testing.T) {
	s := Summarize([]model.Record{
		rec(model.StatusSuccess, 1, nil, 0),
		rec(model.StatusSuccess, 1, nil, 0),
		rec(model.StatusError, 1, nil, 0),
	})
	require.Equal(t, 2, s.Counts[model.StatusSuccess])
	require.Equal(t, 1, s.Counts[model.StatusError])
	require.Zero(t, s.Counts[model.StatusQueued])
}

func TestProjector_Current(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	id, err := st.Create(ctx, model.CreateInput{DisplayName: "a.png", OriginalSizeBytes: 100})
	require.NoError(t, err)

	p := NewProjector(st)
	s, err := p.Current(ctx)
	require.NoError(t, err)
	require.True(t, s.HasPending)
	require.Equal(t, int64(100), s.TotalExpected)

	_, _ = st.Patch(ctx, id, model.Patch{Status: model.Ptr(model.StatusCompressing)})
	_, _ = st.Patch(ctx, id, model.Patch{Status: model.Ptr(model.StatusError)})
	s, err = p.Current(ctx)
	require.NoError(t, err)
	require.False(t, s.HasPending)
	require.Equal(t, 100, s.GlobalProgress)
}

func TestProjector_RunRecomputesOnChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	st := store.NewMemoryStore()
	p := NewProjector(st)

	var mu sync.Mutex
	var last Summary
	calls := 0

	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(s Summary) {
			mu.Lock()
			defer mu.Unlock()
			last = s
			calls++
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 1
	}, time.Second, 5*time.Millisecond)

	id, err := st.Create(ctx, model.CreateInput{OriginalSizeBytes: 10})
	require.NoError(t, err)
	_, err = st.Patch(ctx, id, model.Patch{Status: model.Ptr(model.StatusCompressing)})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.HasPending && last.Counts[model.StatusCompressing] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
