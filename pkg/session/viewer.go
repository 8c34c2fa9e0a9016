package session

import (
	"io"
	"sync"

	"github.com/google/uuid"
)

// Stream is the bidirectional byte channel a viewer is attached over.
// The hosting layer owns transport establishment, authentication and
// encryption; the session only writes frames to it and reads commands
// from it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Viewer is one connected party receiving the video stream and sending
// input commands.
type Viewer struct {
	ID         string
	Subchannel uint32

	stream    Stream
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newViewer(stream Stream, subchannel uint32) *Viewer {
	return &Viewer{
		ID:         uuid.NewString(),
		Subchannel: subchannel,
		stream:     stream,
	}
}

// send writes one wire frame to the viewer. Writes are serialized per
// viewer so a future writer cannot interleave with the broadcaster.
func (v *Viewer) send(data []byte) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_, err := v.stream.Write(data)
	return err
}

func (v *Viewer) close() {
	v.closeOnce.Do(func() {
		v.stream.Close()
	})
}
