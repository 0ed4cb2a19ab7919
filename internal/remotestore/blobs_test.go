// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlobDir_WriteAndOpen(t *testing.T) {
	b, err := NewBlobDir(t.TempDir())
	require.NoError(t, err)

	n, sum, err := b.Write("x.webp", bytes.NewReader([]byte("hello")), 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", sum)

	f, err := b.Open("x.webp")
	require.NoError(t, err)
	defer f.Close()
	data, _ := io.ReadAll(f)
	require.Equal(t, "hello", string(data))
}

func TestBlobDir_TooLargeLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	b, err := NewBlobDir(dir)
	require.NoError(t, err)

	_, _, err = b.Write("big.webp", bytes.NewReader(make([]byte, 100)), 10)
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestBlobDir_RejectsPathNames(t *testing.T) {
	b, err := NewBlobDir(t.TempDir())
	require.NoError(t, err)
	for _, name := range []string{"", "../x", "a/b", ".hidden"} {
		_, _, err := b.Write(name, bytes.NewReader(nil), 0)
		require.Error(t, err, name)
	}
	require.NoError(t, b.Remove("missing.webp"))
}

func TestIndex_InsertGetList(t *testing.T) {
	ctx := context.Background()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer idx.Close()

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := Entry{Name: "n1.webp", OriginalName: "a.webp", MediaType: "image/webp", SizeBytes: 42, SHA256: "abc", StoredAt: at}
	require.NoError(t, idx.Insert(ctx, e))
	require.Error(t, idx.Insert(ctx, e), "duplicate name")

	got, err := idx.Get(ctx, "n1.webp")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.OriginalName, got.OriginalName)
	require.True(t, at.Equal(got.StoredAt))

	missing, err := idx.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	list, err := idx.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestBlobDir_RefusesSymlinkOutsideRoot(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "leak.webp")))

	b, err := NewBlobDir(dir)
	require.NoError(t, err)
	_, err = b.Open("leak.webp")
	require.Error(t, err)
}
