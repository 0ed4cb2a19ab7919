// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package transcoder

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/ManuGH/pixup/internal/upload/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int, alpha bool) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := uint8(255)
			if alpha && x < w/2 {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: a})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func newTestTranscoder() *Transcoder {
	return New(zerolog.Nop())
}

func TestTranscode_PNGToWebPDownscaled(t *testing.T) {
	src := model.BytesSource("holiday.png", "image/png", pngBytes(t, gradient(1600, 1200, false)))

	res, err := newTestTranscoder().Transcode(context.Background(), src, DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, "holiday.webp", res.Name)
	require.Equal(t, "image/webp", res.MediaType)
	require.Equal(t, 800, res.Width)
	require.Equal(t, 600, res.Height)
	require.Equal(t, int64(len(res.Data)), res.Size())

	require.Equal(t, "RIFF", string(res.Data[:4]))
	require.Equal(t, "WEBP", string(res.Data[8:12]))

	cfg, format, err := image.DecodeConfig(bytes.NewReader(res.Data))
	require.NoError(t, err)
	require.Equal(t, "webp", format)
	require.Equal(t, 800, cfg.Width)
	require.Equal(t, 600, cfg.Height)
}

func TestTranscode_SmallImageNotUpscaled(t *testing.T) {
	src := model.BytesSource("icon.jpg", "image/jpg", jpegBytes(t, gradient(120, 80, false)))

	res, err := newTestTranscoder().Transcode(context.Background(), src, DefaultConstraints())
	require.NoError(t, err)
	require.Equal(t, 120, res.Width)
	require.Equal(t, 80, res.Height)
	require.Equal(t, "icon.webp", res.Name)
}

func TestTranscode_JPEGOutputFlattensAlpha(t *testing.T) {
	src := model.BytesSource("logo.png", "image/png", pngBytes(t, gradient(40, 20, true)))
	c := DefaultConstraints()
	c.Format = FormatJPEG

	res, err := newTestTranscoder().Transcode(context.Background(), src, c)
	require.NoError(t, err)
	require.Equal(t, "logo.jpg", res.Name)
	require.Equal(t, "image/jpeg", res.MediaType)

	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	r, g, b, _ := img.At(2, 10).RGBA()
	// Transparent pixels end up near white, not black.
	require.Greater(t, r>>8, uint32(200))
	require.Greater(t, g>>8, uint32(200))
	require.Greater(t, b>>8, uint32(200))
}

func TestTranscode_UnsupportedFormat(t *testing.T) {
	opened := false
	src := model.Source{
		Name:      "anim.gif",
		MediaType: "image/gif",
		Size:      10,
		Open: func() (rc io.ReadCloser, err error) {
			opened = true
			return nil, nil
		},
	}
	_, err := newTestTranscoder().Transcode(context.Background(), src, DefaultConstraints())
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
	require.False(t, opened)
}

func TestTranscode_CorruptInputIsEncodingFailure(t *testing.T) {
	src := model.BytesSource("broken.png", "image/png", []byte("definitely not a png"))
	_, err := newTestTranscoder().Transcode(context.Background(), src, DefaultConstraints())
	require.ErrorIs(t, err, model.ErrEncodingFailed)
}

func TestTranscode_ContextCheckedBeforeDecode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := model.BytesSource("a.png", "image/png", pngBytes(t, gradient(10, 10, false)))
	_, err := newTestTranscoder().Transcode(ctx, src, DefaultConstraints())
	require.ErrorIs(t, err, context.Canceled)
}

func TestAllowedInput(t *testing.T) {
	for mt, want := range map[string]bool{
		"image/jpeg":               true,
		"IMAGE/PNG":                true,
		"image/jpg":                true,
		"image/webp; charset=none": true,
		"image/gif":                false,
		"application/pdf":          false,
		"":                         false,
	} {
		require.Equal(t, want, AllowedInput(mt), mt)
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, maxW, maxH int
		wantW, wantH     int
	}{
		{1600, 1200, 800, 800, 800, 600},
		{1200, 1600, 800, 800, 600, 800},
		{800, 800, 800, 800, 800, 800},
		{400, 300, 800, 800, 400, 300},
		{4000, 10, 800, 800, 800, 2},
		{10000, 1, 800, 800, 800, 1},
		{1000, 900, 800, 600, 667, 600},
		{1000, 900, 0, 0, 1000, 900},
		{1000, 900, 500, 0, 500, 450},
	}
	for _, tt := range tests {
		gotW, gotH := FitWithin(tt.w, tt.h, tt.maxW, tt.maxH)
		require.Equal(t, tt.wantW, gotW, "%+v", tt)
		require.Equal(t, tt.wantH, gotH, "%+v", tt)
		if tt.maxW > 0 {
			require.LessOrEqual(t, gotW, tt.maxW)
		}
		if tt.maxH > 0 {
			require.LessOrEqual(t, gotH, tt.maxH)
		}
	}
}

func TestDerivedName(t *testing.T) {
	require.Equal(t, "photo.webp", DerivedName("photo.jpeg", FormatWebP))
	require.Equal(t, "photo.jpg", DerivedName("photo.png", FormatJPEG))
	require.Equal(t, "archive.tar.webp", DerivedName("archive.tar.png", FormatWebP))
	require.Equal(t, "README.webp", DerivedName("README", FormatWebP))
	require.Equal(t, "b.webp", DerivedName("dir/b.png", FormatWebP))
	require.Equal(t, "image.webp", DerivedName("", FormatWebP))
	require.Equal(t, ".hidden.webp", DerivedName(".hidden", FormatWebP))
}

func TestConstraints(t *testing.T) {
	require.Equal(t, 80, DefaultConstraints().encoderQuality())
	require.Equal(t, 1, Constraints{Quality: 0.001}.encoderQuality())
	require.Equal(t, 100, Constraints{Quality: 1}.encoderQuality())

	c := Constraints{}.withDefaults()
	require.Equal(t, FormatWebP, c.Format)
	require.InDelta(t, 0.8, c.Quality, 1e-9)

	f, err := ParseFormat("JPG")
	require.NoError(t, err)
	require.Equal(t, FormatJPEG, f)
	_, err = ParseFormat("avif")
	require.Error(t, err)
}
