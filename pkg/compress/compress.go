// Package compress provides the optional second compression stage
// applied to encoded frame payloads, plus the matching decompressor for
// viewers. A single 0-100 percent knob maps linearly onto the selected
// algorithm's native level and window ranges.
package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm selects the byte compressor.
type Algorithm string

const (
	AlgorithmNone Algorithm = "none"
	AlgorithmZstd Algorithm = "zstd"
	AlgorithmLZ4  Algorithm = "lz4"
)

// Window size exponents for the zstd percent mapping: 0% is a 64 KiB
// window, 100% is 8 MiB.
const (
	minWindowExp = 16
	maxWindowExp = 23
)

// lz4Levels orders the lz4 compression levels for the percent mapping.
var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

// Compressor compresses and decompresses frame payloads. Safe for
// concurrent use.
type Compressor struct {
	algorithm Algorithm
	zstdEnc   *zstd.Encoder
	zstdDec   *zstd.Decoder
	lz4Level  lz4.CompressionLevel
}

// New builds a compressor. percent (clamped to 0-100) trades speed for
// ratio: it scales the encoder level across the algorithm's full range
// and, for zstd, the window size from 64 KiB up to 8 MiB.
func New(algorithm Algorithm, percent int) (*Compressor, error) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	switch algorithm {
	case AlgorithmNone:
		return &Compressor{algorithm: algorithm}, nil

	case AlgorithmZstd:
		enc, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstdLevel(percent)),
			zstd.WithWindowSize(1<<windowExp(percent)),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		return &Compressor{algorithm: algorithm, zstdEnc: enc, zstdDec: dec}, nil

	case AlgorithmLZ4:
		return &Compressor{algorithm: algorithm, lz4Level: lz4Level(percent)}, nil

	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", algorithm)
	}
}

// zstdLevel maps percent onto SpeedFastest..SpeedBestCompression.
func zstdLevel(percent int) zstd.EncoderLevel {
	return zstd.EncoderLevel(int(zstd.SpeedFastest) +
		percent*(int(zstd.SpeedBestCompression)-int(zstd.SpeedFastest))/100)
}

// windowExp maps percent onto the window size exponent range.
func windowExp(percent int) int {
	return minWindowExp + percent*(maxWindowExp-minWindowExp)/100
}

// lz4Level maps percent onto the ordered lz4 level set.
func lz4Level(percent int) lz4.CompressionLevel {
	return lz4Levels[percent*(len(lz4Levels)-1)/100]
}

// Algorithm returns the configured algorithm.
func (c *Compressor) Algorithm() Algorithm {
	return c.algorithm
}

// Compress wraps data in the configured format. The output is always
// decodable by Decompress, even when the input is incompressible: the
// wire protocol carries no compression flag, so the stage must be
// unconditional.
func (c *Compressor) Compress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		return c.zstdEnc.EncodeAll(data, nil), nil
	case AlgorithmLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if err := w.Apply(lz4.CompressionLevelOption(c.lz4Level)); err != nil {
			return nil, fmt.Errorf("lz4 level: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", c.algorithm)
	}
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(data []byte) ([]byte, error) {
	switch c.algorithm {
	case AlgorithmNone:
		return data, nil
	case AlgorithmZstd:
		out, err := c.zstdDec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	case AlgorithmLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression algorithm %q", c.algorithm)
	}
}
