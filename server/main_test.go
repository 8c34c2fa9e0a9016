package main

import "testing"

func TestParseResolution(t *testing.T) {
	res, err := parseResolution("1280x720")
	if err != nil {
		t.Fatalf("parseResolution failed: %v", err)
	}
	if res.Width != 1280 || res.Height != 720 {
		t.Errorf("Got %dx%d, want 1280x720", res.Width, res.Height)
	}

	for _, bad := range []string{"", "1280", "x720", "1280x", "0x720", "-1x5", "axb"} {
		if _, err := parseResolution(bad); err == nil {
			t.Errorf("parseResolution(%q) should fail", bad)
		}
	}
}

func TestPatternCapturerFramesChange(t *testing.T) {
	c := newPatternCapturer(16, 8)

	first, err := c.Grab()
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	if first.Width != 16 || first.Height != 8 || len(first.Pix) != 16*8*4 {
		t.Fatalf("Unexpected frame geometry: %dx%d, %d bytes", first.Width, first.Height, len(first.Pix))
	}

	second, err := c.Grab()
	if err != nil {
		t.Fatalf("Grab failed: %v", err)
	}
	same := true
	for i := range first.Pix {
		if first.Pix[i] != second.Pix[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("Pattern frames do not change between grabs")
	}
}
