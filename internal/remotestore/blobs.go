// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package remotestore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/pixup/internal/fsutil"
	"github.com/google/renameio/v2"
)

// ErrTooLarge is returned when a blob exceeds the configured limit.
var ErrTooLarge = errors.New("blob exceeds size limit")

// BlobDir stores blobs as flat files. Names are generated by the server and never
// contain path separators.
type BlobDir struct {
	root string
}

func NewBlobDir(root string) (*BlobDir, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobDir{root: root}, nil
}

func (b *BlobDir) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name %q", name)
	}
	return fsutil.ConfineRelPath(b.root, name)
}

// Write streams r into name atomically. Nothing is left behind on failure.
// It returns the byte count and hex sha256 of the content.
func (b *BlobDir) Write(name string, r io.Reader, limit int64) (int64, string, error) {
	path, err := b.path(name)
	if err != nil {
		return 0, "", err
	}

	pending, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o640))
	if err != nil {
		return 0, "", fmt.Errorf("create pending blob: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	h := sha256.New()
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(io.MultiWriter(pending, h), src)
	if err != nil {
		return 0, "", fmt.Errorf("write blob: %w", err)
	}
	if limit > 0 && n > limit {
		return 0, "", ErrTooLarge
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, "", fmt.Errorf("atomically replace blob: %w", err)
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// Open returns the blob for reading.
func (b *BlobDir) Open(name string) (*os.File, error) {
	path, err := b.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes a blob; a missing blob is not an error.
func (b *BlobDir) Remove(name string) error {
	path, err := b.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
