package session

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"example.com/desk_bridge/pkg/capture"
	"example.com/desk_bridge/pkg/input"
	"example.com/desk_bridge/pkg/wire"
)

// testCapturer produces a fixed pattern frame and counts grabs. The
// short sleep keeps the producer loop from spinning hot in tests.
type testCapturer struct {
	width  int
	height int

	mu    sync.Mutex
	count int
}

func newTestCapturer(width, height int) *testCapturer {
	return &testCapturer{width: width, height: height}
}

func (c *testCapturer) Grab() (capture.RawFrame, error) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
	time.Sleep(time.Millisecond)

	pix := make([]byte, c.width*c.height*4)
	for i := range pix {
		pix[i] = byte(i)
	}
	return capture.RawFrame{Width: c.width, Height: c.height, Pix: pix}, nil
}

func (c *testCapturer) grabs() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// fakeStream is an in-memory viewer transport. Reads serve the
// scripted bytes first, then either report EOF or block until the
// stream closes.
type fakeStream struct {
	script   io.Reader
	eofAfter bool

	mu         sync.Mutex
	failWrites bool
	attempts   int
	written    bytes.Buffer

	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{closed: make(chan struct{})}
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if s.script != nil {
		n, _ := s.script.Read(p)
		if n > 0 {
			return n, nil
		}
		if s.eofAfter {
			return 0, io.EOF
		}
	}
	<-s.closed
	return 0, io.EOF
}

func (s *fakeStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failWrites {
		return 0, errors.New("broken pipe")
	}
	s.written.Write(p)
	return len(p), nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeStream) writeAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *fakeStream) bytesWritten() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.Len()
}

// blockingStream parks every write until released, simulating a viewer
// whose transport has stalled.
type blockingStream struct {
	fakeStream
	release chan struct{}
}

func newBlockingStream() *blockingStream {
	return &blockingStream{
		fakeStream: fakeStream{closed: make(chan struct{})},
		release:    make(chan struct{}),
	}
}

func (s *blockingStream) Write(p []byte) (int, error) {
	select {
	case <-s.release:
		return s.fakeStream.Write(p)
	case <-s.closed:
		return 0, errors.New("closed")
	}
}

// recordInjector collects injected events in order.
type recordInjector struct {
	mu     sync.Mutex
	fail   bool
	events []string
}

func (r *recordInjector) record(event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("injection refused")
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordInjector) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recordInjector) Move(x, y int) error {
	return r.record(fmt.Sprintf("move %d,%d", x, y))
}

func (r *recordInjector) PressButton(button input.Button) error {
	return r.record("press " + button.String())
}

func (r *recordInjector) ReleaseButton(button input.Button) error {
	return r.record("release " + button.String())
}

func (r *recordInjector) PressKey(key string) error {
	return r.record("press key " + key)
}

func (r *recordInjector) ReleaseKey(key string) error {
	return r.record("release key " + key)
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func testManager(t *testing.T, cfg Config) (*Manager, *testCapturer, *recordInjector) {
	t.Helper()
	capturer := newTestCapturer(8, 8)
	injector := &recordInjector{}
	m, err := NewManager(cfg, capturer, injector)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, capturer, injector
}

func (m *Manager) currentPipeline() *pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pipeline
}

// The pipeline must run exactly while viewers are attached: one
// instance across overlapping attaches, a full stop on empty, and a
// fresh instance on re-attach.
func TestPipelineLifecycle(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	if m.Active() {
		t.Fatal("Pipeline running before any viewer attached")
	}

	first := newFakeStream()
	m.AttachDirect(first, 1)
	if !m.Active() {
		t.Fatal("Pipeline not started by first attach")
	}
	p1 := m.currentPipeline()

	second := newFakeStream()
	m.AttachDirect(second, 2)
	if m.currentPipeline() != p1 {
		t.Fatal("Second attach started a second pipeline")
	}

	waitFor(t, "both viewers to receive frames", func() bool {
		return first.bytesWritten() > 0 && second.bytesWritten() > 0
	})

	first.Close()
	second.Close()
	waitFor(t, "pipeline to stop", func() bool {
		return !m.Active() && m.ViewerCount() == 0
	})

	third := newFakeStream()
	m.AttachDirect(third, 3)
	if !m.Active() {
		t.Fatal("Re-attach did not restart the pipeline")
	}
	if m.currentPipeline() == p1 {
		t.Fatal("Re-attach reused a stale pipeline")
	}
	waitFor(t, "new viewer to receive frames", func() bool {
		return third.bytesWritten() > 0
	})
	third.Close()
}

// A failed send removes exactly that viewer; the others keep
// receiving and the session stays up.
func TestBroadcasterRemovesFailedViewer(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	good := newFakeStream()
	bad := newFakeStream()
	bad.failWrites = true

	m.AttachDirect(good, 1)
	m.AttachDirect(bad, 2)

	waitFor(t, "failed viewer to be pruned", func() bool {
		return m.ViewerCount() == 1
	})
	if bad.writeAttempts() != 1 {
		t.Errorf("Failed viewer saw %d sends, want exactly 1", bad.writeAttempts())
	}

	// The survivor keeps receiving after the prune.
	before := good.bytesWritten()
	waitFor(t, "surviving viewer to keep receiving", func() bool {
		return good.bytesWritten() > before
	})
	if !m.Active() {
		t.Fatal("Session went idle with a viewer still attached")
	}
	good.Close()
}

// With a stalled viewer the bounded queue fills and capture stalls:
// the producer blocks on the push instead of dropping frames.
func TestProducerBackpressure(t *testing.T) {
	m, capturer, _ := testManager(t, Config{QueueSize: 10})

	stream := newBlockingStream()
	m.AttachDirect(stream, 1)

	// Producer runs until the queue (10) plus in-flight frames fill up.
	time.Sleep(300 * time.Millisecond)
	stalled := capturer.grabs()
	if stalled > 20 {
		t.Fatalf("Producer ran %d captures against a stalled viewer, want bounded by queue", stalled)
	}

	time.Sleep(200 * time.Millisecond)
	if capturer.grabs() > stalled+1 {
		t.Fatalf("Producer kept capturing while the queue was full: %d -> %d", stalled, capturer.grabs())
	}

	// Draining the viewer frees the queue and capture resumes.
	close(stream.release)
	waitFor(t, "capture to resume", func() bool {
		return capturer.grabs() > stalled+5
	})
	stream.Close()
}

func TestAttachHandshake(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	hello, err := wire.EncodeHello(wire.Hello{Subchannel: 9})
	if err != nil {
		t.Fatalf("EncodeHello failed: %v", err)
	}
	stream := newFakeStream()
	stream.script = bytes.NewReader(hello)

	viewer, err := m.Attach(stream)
	if err != nil {
		t.Fatalf("Attach failed: %v", err)
	}
	if viewer.Subchannel != 9 {
		t.Errorf("Subchannel = %d, want 9", viewer.Subchannel)
	}
	if m.ViewerCount() != 1 {
		t.Errorf("ViewerCount = %d, want 1", m.ViewerCount())
	}
	stream.Close()
}

func TestAttachHandshakeTimeout(t *testing.T) {
	m, _, _ := testManager(t, Config{HandshakeTimeout: 50 * time.Millisecond})

	stream := newFakeStream()
	defer stream.Close()

	if _, err := m.Attach(stream); !errors.Is(err, ErrHandshakeTimeout) {
		t.Fatalf("Got %v, want ErrHandshakeTimeout", err)
	}
	if m.ViewerCount() != 0 {
		t.Errorf("Timed-out handshake registered a viewer")
	}
	if m.Active() {
		t.Errorf("Timed-out handshake started the pipeline")
	}
}

func TestTranslateCoordinates(t *testing.T) {
	m, _, _ := testManager(t, Config{})

	// Identity when the negotiated resolution matches native.
	m.mu.Lock()
	m.native = Resolution{Width: 1920, Height: 1090}
	res := Resolution{Width: 1920, Height: 1090}
	m.resolution = &res
	m.mu.Unlock()

	if x, y := m.translate(960, 545); x != 960 || y != 545 {
		t.Errorf("translate(960,545) = (%d,%d), want (960,545)", x, y)
	}
	if x, y := m.translate(0, 0); x != 0 || y != 0 {
		t.Errorf("translate(0,0) = (%d,%d), want (0,0)", x, y)
	}

	// Downscaled stream maps back to full native coordinates.
	m.mu.Lock()
	m.native = Resolution{Width: 1920, Height: 1090}
	res = Resolution{Width: 960, Height: 545}
	m.resolution = &res
	m.mu.Unlock()

	if x, y := m.translate(480, 272); x != 960 || y != 544 {
		t.Errorf("translate(480,272) = (%d,%d), want (960,544)", x, y)
	}

	// No negotiated resolution: the fallback reference applies.
	m.mu.Lock()
	m.native = Resolution{Width: 3840, Height: 2180}
	m.resolution = nil
	m.mu.Unlock()

	if x, y := m.translate(960, 545); x != 1920 || y != 1090 {
		t.Errorf("fallback translate(960,545) = (%d,%d), want (1920,1090)", x, y)
	}
}

func TestDispatch(t *testing.T) {
	m, _, injector := testManager(t, Config{})

	m.mu.Lock()
	m.native = Resolution{Width: 100, Height: 100}
	res := Resolution{Width: 100, Height: 100}
	m.resolution = &res
	m.mu.Unlock()

	m.dispatch(wire.MoveCommand(50, 60))
	m.dispatch(wire.ClickCommand(wire.ButtonRight, wire.StateDown))
	m.dispatch(wire.ClickCommand(wire.ButtonLeft, wire.StateUp))
	m.dispatch(wire.KeyCommand("a", wire.StateUp))
	// Unknown buttons are reserved and ignored.
	m.dispatch(wire.ClickCommand(wire.Button(9), wire.StateDown))

	want := []string{"move 50,60", "press right", "release left", "release key a"}
	got := injector.list()
	if len(got) != len(want) {
		t.Fatalf("Events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDispatchSwallowsInjectionFailure(t *testing.T) {
	m, _, injector := testManager(t, Config{})
	injector.fail = true

	// Must not panic or propagate.
	m.dispatch(wire.MoveCommand(1, 2))
	m.dispatch(wire.ClickCommand(wire.ButtonLeft, wire.StateDown))
	m.dispatch(wire.KeyCommand("x", wire.StateDown))
}

// A malformed command body is skipped; the loop keeps decoding, and
// running out of input detaches only this viewer.
func TestCommandLoopSkipsInvalidAndDetachesOnEOF(t *testing.T) {
	m, _, injector := testManager(t, Config{})

	valid, err := wire.EncodeCommand(wire.KeyCommand("enter", wire.StateDown))
	if err != nil {
		t.Fatalf("EncodeCommand failed: %v", err)
	}
	// Well-formed framing around a garbage body.
	invalid := []byte{0, 0, 0, 3, 0xFF, 0xFF, 0xFF}

	script := append(append([]byte(nil), invalid...), valid...)
	stream := newFakeStream()
	stream.script = bytes.NewReader(script)
	stream.eofAfter = true

	m.AttachDirect(stream, 1)

	waitFor(t, "viewer to detach on EOF", func() bool {
		return m.ViewerCount() == 0
	})
	events := injector.list()
	if len(events) != 1 || events[0] != "press key enter" {
		t.Errorf("Events = %v, want the command after the invalid one dispatched", events)
	}
}

// Frames written to a viewer parse back as wire frames carrying the
// negotiated resolution.
func TestBroadcastFramesAreWellFormed(t *testing.T) {
	res := Resolution{Width: 4, Height: 4}
	m, _, _ := testManager(t, Config{Resolution: &res})

	stream := newFakeStream()
	m.AttachDirect(stream, 1)

	waitFor(t, "a frame to arrive", func() bool {
		return stream.bytesWritten() > wire.HeaderSize
	})
	stream.Close()
	waitFor(t, "pipeline to stop", func() bool { return !m.Active() })

	stream.mu.Lock()
	data := append([]byte(nil), stream.written.Bytes()...)
	stream.mu.Unlock()

	frame, err := wire.ReadFrame(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("First broadcast frame unreadable: %v", err)
	}
	if frame.Width != 4 || frame.Height != 4 {
		t.Errorf("Frame size = %dx%d, want 4x4", frame.Width, frame.Height)
	}
	if len(frame.Payload) == 0 {
		t.Error("Frame has no payload")
	}
}
