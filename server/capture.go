package main

import (
	"time"

	"example.com/desk_bridge/pkg/capture"
)

// patternCapturer generates a moving test pattern so the server runs
// on any machine without a display grabber. Swap in a platform
// capture.Capturer for real use.
type patternCapturer struct {
	width  int
	height int
	tick   uint8
}

func newPatternCapturer(width, height int) *patternCapturer {
	return &patternCapturer{width: width, height: height}
}

// Grab renders the next pattern frame. The sleep paces the demo at
// roughly 20 fps; a real grabber is paced by the OS capture call.
func (c *patternCapturer) Grab() (capture.RawFrame, error) {
	time.Sleep(50 * time.Millisecond)
	c.tick++

	pix := make([]byte, c.width*c.height*4)
	for y := 0; y < c.height; y++ {
		row := y * c.width * 4
		for x := 0; x < c.width; x++ {
			off := row + x*4
			pix[off] = uint8(x) + c.tick
			pix[off+1] = uint8(y)
			pix[off+2] = c.tick
			pix[off+3] = 0xff
		}
	}
	return capture.RawFrame{Width: c.width, Height: c.height, Pix: pix}, nil
}
