// Package codec turns raw frames into compressed image payloads.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"example.com/desk_bridge/pkg/capture"
)

// Format selects the still-image codec for outgoing frames.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatWebP Format = "webp"
	FormatAVIF Format = "avif"
)

var (
	// ErrUnsupportedFormat is returned by NewEncoder for a format this
	// build cannot encode. Checked once at configuration time, never in
	// the per-frame path.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrEncodeFailed wraps per-frame codec failures.
	ErrEncodeFailed = errors.New("image encoding failed")
)

// Encoder encodes raw frames into the negotiated image format.
type Encoder interface {
	Encode(frame capture.RawFrame) ([]byte, error)
}

// NewEncoder builds an encoder for the given format and quality (0-100,
// clamped). webp and avif are recognized protocol formats but no
// encoder for them ships in this build, so they fail here rather than
// on the first frame.
func NewEncoder(format Format, quality int) (Encoder, error) {
	switch format {
	case FormatJPEG:
		if quality < 1 {
			quality = 1
		}
		if quality > 100 {
			quality = 100
		}
		return &jpegEncoder{quality: quality}, nil
	case FormatWebP, FormatAVIF:
		return nil, fmt.Errorf("%w: no %s encoder in this build", ErrUnsupportedFormat, format)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

type jpegEncoder struct {
	quality int
}

func (e *jpegEncoder) Encode(frame capture.RawFrame) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrEncodeFailed)
	}
	if len(frame.Pix) < frame.Width*frame.Height*4 {
		return nil, fmt.Errorf("%w: short pixel buffer", ErrEncodeFailed)
	}
	img := &image.RGBA{
		Pix:    frame.Pix,
		Stride: frame.Width * 4,
		Rect:   image.Rect(0, 0, frame.Width, frame.Height),
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailed, err)
	}
	return buf.Bytes(), nil
}
