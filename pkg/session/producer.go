package session

import (
	"log"

	"example.com/desk_bridge/pkg/activity"
	"example.com/desk_bridge/pkg/capture"
	"example.com/desk_bridge/pkg/wire"
)

// produce runs the capture, gate, resize, encode, compress, frame
// pipeline and pushes wire frames onto the bounded queue. The push
// blocks when the queue is full: a slow broadcaster throttles capture.
// Only whole frames ever enter the queue.
func (m *Manager) produce(p *pipeline) {
	detector := activity.NewDetector(m.cfg.ActivityThreshold, m.cfg.ActivityFloor)

	for {
		select {
		case <-p.done:
			return
		default:
		}

		frame, err := m.capturer.Grab()
		if err != nil {
			// Capture failures are transient. Carry on with an empty
			// frame; the encoder rejects it below and the loop survives.
			log.Printf("session: capture failed: %v", err)
			frame = capture.RawFrame{}
		}
		if !frame.Empty() {
			m.observeNative(frame)
		}

		if !detector.ShouldSend(frame) {
			continue
		}

		res := m.adoptResolution(frame)
		if !frame.Empty() && (frame.Width != res.Width || frame.Height != res.Height) {
			frame = frame.ResizeNearest(res.Width, res.Height)
		}

		payload, err := m.encoder.Encode(frame)
		if err != nil {
			// One bad frame must not kill the stream.
			log.Printf("session: encode failed: %v", err)
			continue
		}

		if m.compressor != nil {
			payload, err = m.compressor.Compress(payload)
			if err != nil {
				log.Printf("session: compress failed: %v", err)
				continue
			}
		}

		data := wire.EncodeFrame(wire.Frame{
			Width:   uint32(res.Width),
			Height:  uint32(res.Height),
			Payload: payload,
		})

		select {
		case p.queue <- data:
		case <-p.done:
			return
		}
	}
}

// broadcast drains the frame queue and fans each frame out to every
// registered viewer in attach order. A failed send removes that viewer
// immediately — a broken transport stays broken — without aborting
// delivery to the rest. When the registry empties, the broadcaster
// stops the pipeline and returns the session to idle.
func (m *Manager) broadcast(p *pipeline) {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.queue:
			for _, viewer := range m.snapshot() {
				if err := viewer.send(data); err != nil {
					log.Printf("session: dropping viewer %s: %v", viewer.ID, err)
					m.remove(viewer)
				}
			}
			if m.idleIfEmpty(p) {
				return
			}
		}
	}
}
