// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
)

// Format is the output encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
)

// ParseFormat accepts the config spelling of a format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "webp", "image/webp":
		return FormatWebP, nil
	case "jpeg", "jpg", "image/jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

func (f Format) MediaType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/webp"
}

func (f Format) Extension() string {
	if f == FormatJPEG {
		return ".jpg"
	}
	return ".webp"
}

// Constraints bound the derivative. Quality is a factor in (0, 1].
type Constraints struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64
	Format    Format
}

// DefaultConstraints: 800x800 box, quality 0.8, webp.
func DefaultConstraints() Constraints {
	return Constraints{MaxWidth: 800, MaxHeight: 800, Quality: 0.8, Format: FormatWebP}
}

func (c Constraints) withDefaults() Constraints {
	if c.Format == "" {
		c.Format = FormatWebP
	}
	if c.Quality <= 0 || c.Quality > 1 {
		c.Quality = DefaultConstraints().Quality
	}
	return c
}

// encoderQuality maps the (0, 1] factor onto the 1..100 scale encoders use.
func (c Constraints) encoderQuality() int {
	q := int(math.Round(c.Quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// FitWithin scales (w, h) down, preserving aspect ratio, until neither side exceeds
// its bound. Images that already fit are returned unchanged. A bound <= 0 is
// unbounded.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	if w <= 0 || h <= 0 {
		return w, h
	}
	scale := 1.0
	if maxW > 0 {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if scale >= 1 {
		return w, h
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	if maxW > 0 && nw > maxW {
		nw = maxW
	}
	if maxH > 0 && nh > maxH {
		nh = maxH
	}
	return nw, nh
}

// DerivedName replaces the extension of name with the format's extension.
func DerivedName(name string, f Format) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "image"
	}
	if ext := filepath.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base + f.Extension()
}
