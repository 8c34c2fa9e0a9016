// Package capture defines the screen grab capability consumed by the
// streaming pipeline. Implementations wrap whatever capture primitive
// the host platform provides.
package capture

// RawFrame is an uncompressed RGBA frame, 4 bytes per pixel, row-major.
type RawFrame struct {
	Width  int
	Height int
	Pix    []byte
}

// Empty reports whether the frame carries no pixels. A failed capture
// is represented as an empty frame.
func (f RawFrame) Empty() bool {
	return f.Width <= 0 || f.Height <= 0 || len(f.Pix) == 0
}

// Capturer grabs raw frames from the host screen.
type Capturer interface {
	Grab() (RawFrame, error)
}

// ResizeNearest scales the frame to the given size with
// nearest-neighbor sampling. Speed matters more than quality here:
// the result is immediately re-encoded.
func (f RawFrame) ResizeNearest(width, height int) RawFrame {
	if f.Empty() || width <= 0 || height <= 0 {
		return RawFrame{}
	}
	if width == f.Width && height == f.Height {
		return f
	}
	out := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		srcRow := (y * f.Height / height) * f.Width * 4
		dstRow := y * width * 4
		for x := 0; x < width; x++ {
			srcOff := srcRow + (x*f.Width/width)*4
			dstOff := dstRow + x*4
			copy(out[dstOff:dstOff+4], f.Pix[srcOff:srcOff+4])
		}
	}
	return RawFrame{Width: width, Height: height, Pix: out}
}
