// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"image"
	"image/color"
	"image/jpeg"
	"io"

	"github.com/gen2brain/webp"
	"golang.org/x/image/draw"
)

func resize(src image.Image, w, h int, f Format) image.Image {
	b := src.Bounds()
	needsFlatten := f == FormatJPEG && !opaque(src)
	if b.Dx() == w && b.Dy() == h && !needsFlatten {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	op := draw.Src
	if needsFlatten {
		// JPEG has no alpha channel; composite onto white like a canvas export.
		draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
		op = draw.Over
	}
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, b.Min, op)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, op, nil)
	return dst
}

func encode(w io.Writer, img image.Image, c Constraints) error {
	switch c.Format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: c.encoderQuality()})
	default:
		return webp.Encode(w, img, webp.Options{Quality: c.encoderQuality()})
	}
}

func opaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}
