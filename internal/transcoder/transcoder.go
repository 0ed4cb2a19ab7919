// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package transcoder resizes and re-encodes submitted images into the compressed
// derivative that gets uploaded.
//
// Transcode is a pure function of its input: it holds no shared state and is safe
// for concurrent use. The context is only consulted before decoding starts; a
// running decode/resize/encode is not interruptible.
package transcoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"mime"
	"strings"
	"time"

	xlog "github.com/ManuGH/pixup/internal/log"
	"github.com/ManuGH/pixup/internal/metrics"
	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/webp" // register decoder
)

// maxPixels bounds the decoded canvas so a tiny file cannot expand into gigabytes.
const maxPixels = 64 * 1024 * 1024

var allowedInputTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// Result is a transcoded derivative.
type Result struct {
	Name      string
	MediaType string
	Width     int
	Height    int
	Data      []byte
}

// Size is the encoded payload length.
func (r Result) Size() int64 {
	return int64(len(r.Data))
}

// Transcoder is stateless apart from its logger.
type Transcoder struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Transcoder {
	return &Transcoder{logger: logger}
}

// AllowedInput reports whether mediaType is on the input allow-list. Parameters
// and case are ignored.
func AllowedInput(mediaType string) bool {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return false
	}
	return allowedInputTypes[strings.ToLower(mt)]
}

// Transcode decodes src, fits it inside the constraint box and re-encodes it in the
// configured output format.
//
// Errors match model.ErrUnsupportedFormat when the declared media type is not
// allowed, model.ErrEncodingFailed when no output could be produced, or the context
// error when ctx was already done.
func (t *Transcoder) Transcode(ctx context.Context, src model.Source, c Constraints) (Result, error) {
	c = c.withDefaults()
	format := string(c.Format)
	logger := xlog.WithContext(ctx, t.logger)

	if !AllowedInput(src.MediaType) {
		metrics.TranscoderErrors.WithLabelValues(format, "unsupported").Inc()
		return Result{}, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, src.MediaType)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := time.Now()
	data, err := readSource(src)
	if err != nil {
		metrics.TranscoderErrors.WithLabelValues(format, "read").Inc()
		return Result{}, fmt.Errorf("%w: read %s: %v", model.ErrEncodingFailed, src.Name, err)
	}
	metrics.TranscoderBytesInput.WithLabelValues(format).Add(float64(len(data)))

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		metrics.TranscoderErrors.WithLabelValues(format, "decode").Inc()
		return Result{}, fmt.Errorf("%w: decode config: %v", model.ErrEncodingFailed, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxPixels {
		metrics.TranscoderErrors.WithLabelValues(format, "too_large").Inc()
		return Result{}, fmt.Errorf("%w: %dx%d exceeds pixel limit", model.ErrEncodingFailed, cfg.Width, cfg.Height)
	}

	img, inFormat, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		metrics.TranscoderErrors.WithLabelValues(format, "decode").Inc()
		return Result{}, fmt.Errorf("%w: decode: %v", model.ErrEncodingFailed, err)
	}

	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), c.MaxWidth, c.MaxHeight)

	var buf bytes.Buffer
	if err := encode(&buf, resize(img, w, h, c.Format), c); err != nil {
		metrics.TranscoderErrors.WithLabelValues(format, "encode").Inc()
		return Result{}, fmt.Errorf("%w: encode %s: %v", model.ErrEncodingFailed, format, err)
	}

	elapsed := time.Since(start)
	metrics.TranscoderBytesOutput.WithLabelValues(format).Add(float64(buf.Len()))
	metrics.TranscoderProcessingDuration.WithLabelValues(format).Observe(elapsed.Seconds())

	logger.Debug().
		Str(xlog.FieldFileName, src.Name).
		Str("input_format", inFormat).
		Str(xlog.FieldOutputType, c.Format.MediaType()).
		Int("src_width", b.Dx()).
		Int("src_height", b.Dy()).
		Int(xlog.FieldWidth, w).
		Int(xlog.FieldHeight, h).
		Int64(xlog.FieldSizeBytes, int64(buf.Len())).
		Dur("elapsed", elapsed).
		Msg("image transcoded")

	return Result{
		Name:      DerivedName(src.Name, c.Format),
		MediaType: c.Format.MediaType(),
		Width:     w,
		Height:    h,
		Data:      buf.Bytes(),
	}, nil
}

func readSource(src model.Source) ([]byte, error) {
	if src.Open == nil {
		return nil, fmt.Errorf("source %q has no reader", src.Name)
	}
	rc, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}
