package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// HeaderSize is the fixed size of the video frame header: payload
// length, width and height, each a big-endian uint32.
const HeaderSize = 12

// MaxPayloadSize caps the frame payload length a reader accepts. A
// larger value means the stream is corrupt.
const MaxPayloadSize = 64 << 20

// Frame is one header-plus-payload unit of the video stream. The
// payload is codec output, optionally wrapped by the second-stage
// compressor.
type Frame struct {
	Width   uint32
	Height  uint32
	Payload []byte
}

// EncodeFrame builds the wire representation of a frame:
// [payloadLength:u32be][width:u32be][height:u32be][payload].
func EncodeFrame(f Frame) []byte {
	buf := make([]byte, HeaderSize+len(f.Payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(f.Payload)))
	binary.BigEndian.PutUint32(buf[4:8], f.Width)
	binary.BigEndian.PutUint32(buf[8:12], f.Height)
	copy(buf[HeaderSize:], f.Payload)
	return buf
}

// ReadFrame reads exactly one frame from r. The header is read in full
// before the payload, so it works regardless of how the underlying
// transport fragments the bytes across reads.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(header[0:4])
	if length > MaxPayloadSize {
		return Frame{}, fmt.Errorf("frame payload of %d bytes exceeds limit", length)
	}
	frame := Frame{
		Width:   binary.BigEndian.Uint32(header[4:8]),
		Height:  binary.BigEndian.Uint32(header[8:12]),
		Payload: make([]byte, length),
	}
	if _, err := io.ReadFull(r, frame.Payload); err != nil {
		return Frame{}, err
	}
	return frame, nil
}
