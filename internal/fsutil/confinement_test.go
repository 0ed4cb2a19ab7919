// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "inside.webp"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "link.webp")))

	realRoot, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)

	tests := []struct {
		name    string
		target  string
		want    string
		wantErr bool
	}{
		{name: "existing file", target: "inside.webp", want: filepath.Join(realRoot, "inside.webp")},
		{name: "new file", target: "new.webp", want: filepath.Join(realRoot, "new.webp")},
		{name: "dotdot in name", target: "a..b.webp", want: filepath.Join(realRoot, "a..b.webp")},
		{name: "traversal", target: "../etc/passwd", wantErr: true},
		{name: "absolute", target: "/etc/passwd", wantErr: true},
		{name: "backslash", target: `..\x`, wantErr: true},
		{name: "symlink out", target: "link.webp", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConfineRelPath(root, tt.target)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
