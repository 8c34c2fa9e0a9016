// Package session implements the screen streaming protocol core: the
// viewer registry, the idle/active pipeline lifecycle, frame
// production and fan-out, and the per-viewer command channel.
package session

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"example.com/desk_bridge/pkg/capture"
	"example.com/desk_bridge/pkg/codec"
	"example.com/desk_bridge/pkg/compress"
	"example.com/desk_bridge/pkg/input"
	"example.com/desk_bridge/pkg/wire"
)

// ErrHandshakeTimeout is returned by Attach when the viewer does not
// complete the subchannel hello within the configured timeout.
var ErrHandshakeTimeout = errors.New("subchannel handshake timed out")

// Manager owns the viewer registry and the capture/broadcast pipeline.
// The pipeline runs exactly while the registry is non-empty: the first
// attach starts it, the broadcaster stops it when the last viewer is
// gone.
type Manager struct {
	cfg        Config
	capturer   capture.Capturer
	injector   input.Injector
	encoder    codec.Encoder
	compressor *compress.Compressor

	mu         sync.Mutex
	viewers    []*Viewer
	running    bool
	pipeline   *pipeline
	resolution *Resolution // negotiated; nil until configured or adopted
	native     Resolution  // last observed native capture size
}

// pipeline is one activation of the producer/broadcaster pair. Every
// idle-to-active transition creates a fresh instance, so a re-attach
// never drains a stale queue.
type pipeline struct {
	queue chan []byte
	done  chan struct{}
}

// NewManager builds a session manager. The codec format and compressor
// settings are validated here, eagerly — an unsupported format fails
// now instead of on the first frame.
func NewManager(cfg Config, capturer capture.Capturer, injector input.Injector) (*Manager, error) {
	cfg = cfg.withDefaults()

	encoder, err := codec.NewEncoder(cfg.Format, cfg.Quality)
	if err != nil {
		return nil, err
	}

	var compressor *compress.Compressor
	if cfg.SecondCompress {
		compressor, err = compress.New(cfg.Algorithm, cfg.Compression)
		if err != nil {
			return nil, err
		}
	}

	m := &Manager{
		cfg:        cfg,
		capturer:   capturer,
		injector:   injector,
		encoder:    encoder,
		compressor: compressor,
	}
	if cfg.Resolution != nil {
		r := *cfg.Resolution
		m.resolution = &r
	}
	return m, nil
}

// Attach performs the subchannel handshake on stream and registers the
// viewer. The first viewer starts the capture pipeline; the viewer's
// command loop starts in every case. On timeout the stream is left to
// the caller and nothing is registered.
func (m *Manager) Attach(stream Stream) (*Viewer, error) {
	type helloResult struct {
		hello wire.Hello
		err   error
	}
	result := make(chan helloResult, 1)
	go func() {
		body, err := wire.ReadMessage(stream)
		if err != nil {
			result <- helloResult{err: err}
			return
		}
		hello, err := wire.DecodeHello(body)
		result <- helloResult{hello: hello, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, fmt.Errorf("subchannel handshake: %w", r.err)
		}
		return m.register(stream, r.hello.Subchannel), nil
	case <-time.After(m.cfg.HandshakeTimeout):
		return nil, ErrHandshakeTimeout
	}
}

// AttachDirect registers a viewer whose subchannel is already
// established, skipping the hello exchange.
func (m *Manager) AttachDirect(stream Stream, subchannel uint32) *Viewer {
	return m.register(stream, subchannel)
}

func (m *Manager) register(stream Stream, subchannel uint32) *Viewer {
	viewer := newViewer(stream, subchannel)

	m.mu.Lock()
	m.viewers = append(m.viewers, viewer)
	if !m.running {
		m.running = true
		p := &pipeline{
			queue: make(chan []byte, m.cfg.QueueSize),
			done:  make(chan struct{}),
		}
		m.pipeline = p
		go m.produce(p)
		go m.broadcast(p)
		log.Printf("session: pipeline started for viewer %s (subchannel %d)", viewer.ID, subchannel)
	}
	m.mu.Unlock()

	go m.commandLoop(viewer)
	return viewer
}

// remove deletes viewer from the registry and closes its stream. It
// never touches the pipeline: the broadcaster alone owns the
// active-to-idle transition.
func (m *Manager) remove(viewer *Viewer) {
	m.mu.Lock()
	for i, v := range m.viewers {
		if v == viewer {
			m.viewers = append(m.viewers[:i], m.viewers[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	viewer.close()
}

// snapshot returns the registry in attach order.
func (m *Manager) snapshot() []*Viewer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Viewer(nil), m.viewers...)
}

// ViewerCount returns the number of registered viewers.
func (m *Manager) ViewerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.viewers)
}

// Active reports whether the capture pipeline is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// idleIfEmpty performs the active-to-idle transition when the registry
// is empty, stopping the producer via the done channel. Reports whether
// the pipeline was stopped.
func (m *Manager) idleIfEmpty(p *pipeline) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.viewers) > 0 {
		return false
	}
	m.running = false
	m.pipeline = nil
	close(p.done)
	log.Printf("session: no viewers connected, standby")
	return true
}

// observeNative records the native screen size seen by the capturer.
// Coordinate translation scales into this space.
func (m *Manager) observeNative(frame capture.RawFrame) {
	m.mu.Lock()
	m.native = Resolution{Width: frame.Width, Height: frame.Height}
	m.mu.Unlock()
}

// adoptResolution returns the streaming resolution. When none was
// configured, the first real frame's native size is adopted and locked
// so subsequent coordinate translation stays consistent.
func (m *Manager) adoptResolution(frame capture.RawFrame) Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolution != nil {
		return *m.resolution
	}
	if frame.Empty() {
		return Resolution{}
	}
	r := Resolution{Width: frame.Width, Height: frame.Height}
	m.resolution = &r
	return r
}
