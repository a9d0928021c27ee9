// Package imaging normalizes uploaded item pictures.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// Defaults for Options.
const (
	DefaultMaxDimension = 1024
	DefaultQuality      = 85
	DefaultMaxBytes     = 5 << 20
)

// ErrUnsupported is returned for input that is not a JPEG or PNG image.
var ErrUnsupported = errors.New("unsupported image format")

// ErrTooLarge is returned when the input exceeds Options.MaxBytes.
var ErrTooLarge = errors.New("image too large")

// Options control Normalize. Zero fields take the defaults.
type Options struct {
	MaxDimension int
	Quality      int
	MaxBytes     int64
}

func (o Options) withDefaults() Options {
	if o.MaxDimension <= 0 {
		o.MaxDimension = DefaultMaxDimension
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	return o
}

var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Normalize reads an uploaded picture, sniffs its real type, shrinks it to fit
// within MaxDimension on both sides and re-encodes it as JPEG.
func Normalize(r io.Reader, opts Options) (data []byte, mime string, err error) {
	opts = opts.withDefaults()

	raw, err := io.ReadAll(io.LimitReader(r, opts.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("reading image data: %w", err)
	}
	if int64(len(raw)) > opts.MaxBytes {
		return nil, "", ErrTooLarge
	}

	// Client-declared content types are not trusted.
	if detected := http.DetectContentType(raw); !allowedMIME[detected] {
		return nil, "", fmt.Errorf("%w: %s", ErrUnsupported, detected)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	img = fit(img, opts.MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, "", fmt.Errorf("encoding JPEG: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

// fit scales img down, keeping its aspect ratio, so neither side exceeds limit.
// Images already within bounds are returned unchanged.
func fit(img image.Image, limit int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= limit && h <= limit {
		return img
	}

	nw, nh := limit, limit
	if w > h {
		nh = max(1, h*limit/w)
	} else {
		nw = max(1, w*limit/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
