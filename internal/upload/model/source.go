// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package model

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Source is a file handle submitted for upload. Open may be called more than once
// (a retry re-reads the original file).
type Source struct {
	Name      string
	MediaType string // declared media type, e.g. "image/jpeg"
	Size      int64
	Open      func() (io.ReadCloser, error)
}

// BytesSource wraps an in-memory file.
func BytesSource(name, mediaType string, data []byte) Source {
	return Source{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileSource stats path and declares its media type from the extension, falling back
// to content sniffing.
func FileSource(path string) (Source, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Source{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if fi.IsDir() {
		return Source{}, fmt.Errorf("%s is a directory", path)
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType, err = sniff(path)
		if err != nil {
			return Source{}, err
		}
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = mt
	}

	return Source{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      fi.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func sniff(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("detect media type of %s: %w", path, err)
	}
	return m.String(), nil
}
