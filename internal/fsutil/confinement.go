// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsutil keeps file access inside a root directory.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfineRelPath joins root and relTarget and verifies the result, after
// resolving symlinks, is still underneath root. relTarget must be relative and
// may name a file that does not exist yet.
func ConfineRelPath(root, relTarget string) (string, error) {
	if strings.Contains(relTarget, "\\") {
		return "", fmt.Errorf("path contains backslash: %s", relTarget)
	}
	cleanRel := filepath.Clean(relTarget)
	if filepath.IsAbs(cleanRel) {
		return "", fmt.Errorf("target path must be relative: %s", relTarget)
	}
	if escapes(cleanRel) {
		return "", fmt.Errorf("path traversal attempt: %s", relTarget)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("invalid root path: %w", err)
	}
	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		return "", err
	}

	full := filepath.Join(realRoot, cleanRel)
	real, err := resolve(full)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(realRoot, real)
	if err != nil {
		return "", fmt.Errorf("rel computation failed: %w", err)
	}
	if escapes(rel) {
		return "", fmt.Errorf("path escapes root via symlinks: %s", real)
	}
	return real, nil
}

// resolve follows symlinks in path. A missing final element is resolved through
// its parent; anything else that cannot be resolved fails closed.
func resolve(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		return real, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	dir, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve parent path: %w", err)
	}
	return filepath.Join(dir, filepath.Base(path)), nil
}

func escapes(rel string) bool {
	return rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
