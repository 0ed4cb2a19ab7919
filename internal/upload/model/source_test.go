// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileSource_ExtensionDeclaresType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holiday.PNG")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o600))

	src, err := FileSource(path)
	require.NoError(t, err)
	require.Equal(t, "holiday.PNG", src.Name)
	require.Equal(t, "image/png", src.MediaType)
	require.Equal(t, int64(16), src.Size)

	rc, err := src.Open()
	require.NoError(t, err)
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "not really a png", string(data))
}

func TestFileSource_SniffsWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noext")
	gif := []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	require.NoError(t, os.WriteFile(path, gif, 0o600))

	src, err := FileSource(path)
	require.NoError(t, err)
	require.Equal(t, "image/gif", src.MediaType)
}

func TestFileSource_Errors(t *testing.T) {
	_, err := FileSource(filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)

	_, err = FileSource(t.TempDir())
	require.Error(t, err)
}

func TestBytesSource_Reopenable(t *testing.T) {
	src := BytesSource("a.jpg", "image/jpeg", []byte("abc"))
	for i := 0; i < 2; i++ {
		rc, err := src.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.Equal(t, "abc", string(data))
	}
	require.Equal(t, int64(3), src.Size)
}
