package session

import (
	"time"

	"example.com/desk_bridge/pkg/codec"
	"example.com/desk_bridge/pkg/compress"
)

// Resolution is the negotiated streaming size. Outgoing frames are
// resized to it; incoming pointer coordinates are scaled back from it
// to native screen space.
type Resolution struct {
	Width  int
	Height int
}

// Config controls a streaming session.
type Config struct {
	// Quality is the image codec quality, 0-100.
	Quality int

	// Compression is the second-stage compression percent, 0-100.
	Compression int

	// Format selects the image codec: jpeg, webp or avif. Validated
	// when the manager is built, not per frame.
	Format codec.Format

	// Algorithm selects the second-stage compressor.
	Algorithm compress.Algorithm

	// Resolution, when non-nil, fixes the streaming size. When nil the
	// native size of the first captured frame is adopted and locked for
	// the life of the manager.
	Resolution *Resolution

	// ActivityThreshold is the per-pixel difference gate; zero sends
	// every frame.
	ActivityThreshold int

	// ActivityFloor is the changed-pixel count a gated frame must
	// exceed to be sent. Zero uses activity.DefaultFloor.
	ActivityFloor int

	// SecondCompress enables the second compression stage.
	SecondCompress bool

	// FallbackReference is the coordinate space assumed for incoming
	// pointer positions before any resolution is negotiated. The zero
	// value uses 1920x1090 — not a typo, existing viewers scale against
	// this exact reference.
	FallbackReference Resolution

	// HandshakeTimeout bounds the wait for the subchannel hello in
	// Attach. Zero uses 5 seconds.
	HandshakeTimeout time.Duration

	// QueueSize is the frame queue capacity, the pipeline's
	// backpressure point. Zero uses 10.
	QueueSize int
}

// DefaultConfig returns the settings viewers expect by default.
func DefaultConfig() Config {
	return Config{
		Quality:        50,
		Compression:    50,
		Format:         codec.FormatJPEG,
		Algorithm:      compress.AlgorithmZstd,
		SecondCompress: true,
	}
}

func (c Config) withDefaults() Config {
	if c.Format == "" {
		c.Format = codec.FormatJPEG
	}
	if c.Algorithm == "" {
		c.Algorithm = compress.AlgorithmZstd
	}
	if c.FallbackReference == (Resolution{}) {
		c.FallbackReference = Resolution{Width: 1920, Height: 1090}
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 5 * time.Second
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 10
	}
	return c
}
