// Package activity implements the frame-diff gate that suppresses
// transmission of static screens.
package activity

import "example.com/desk_bridge/pkg/capture"

// DefaultFloor is the number of changed pixels a frame must exceed to
// count as activity.
const DefaultFloor = 500

// Detector compares consecutive frames and decides whether the newest
// one is worth sending. A zero threshold disables gating: every frame
// is sent.
type Detector struct {
	threshold int
	floor     int
	prev      capture.RawFrame
	seeded    bool
}

// NewDetector creates a detector. threshold is the per-pixel grayscale
// difference (0-255) a pixel must exceed to count as changed; zero or
// negative disables gating. floor is the changed-pixel count a frame
// must exceed to be sent; zero or negative uses DefaultFloor.
func NewDetector(threshold, floor int) *Detector {
	if floor <= 0 {
		floor = DefaultFloor
	}
	return &Detector{threshold: threshold, floor: floor}
}

// ShouldSend reports whether frame differs enough from the previous one
// to transmit. The first frame after construction is never sent; it
// only seeds the comparison. The stored frame advances on every call
// regardless of the decision, trading one frame of latency for not
// encoding idle screens.
func (d *Detector) ShouldSend(frame capture.RawFrame) bool {
	if d.threshold <= 0 {
		return true
	}
	if !d.seeded {
		d.prev = frame
		d.seeded = true
		return false
	}
	prev := d.prev
	d.prev = frame

	if frame.Width != prev.Width || frame.Height != prev.Height {
		// Size change: every pixel differs.
		return true
	}

	changed := 0
	n := len(frame.Pix)
	if len(prev.Pix) < n {
		n = len(prev.Pix)
	}
	for off := 0; off+3 < n; off += 4 {
		// Grayscale magnitude of the per-pixel difference, alpha skipped.
		diff := (absDiff(frame.Pix[off], prev.Pix[off]) +
			absDiff(frame.Pix[off+1], prev.Pix[off+1]) +
			absDiff(frame.Pix[off+2], prev.Pix[off+2])) / 3
		if diff > d.threshold {
			changed++
			if changed > d.floor {
				return true
			}
		}
	}
	return changed > d.floor
}

func absDiff(a, b byte) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
