package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxMessageSize caps the length prefix of a command-channel message.
// A prefix beyond this means the stream has desynchronized; a corrupt
// length cannot be resynchronized, so readers must treat it as fatal.
const MaxMessageSize = 1 << 20

// ErrMessageTooLarge is returned by ReadMessage for a length prefix
// exceeding MaxMessageSize.
var ErrMessageTooLarge = errors.New("message length exceeds limit")

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: the same command always produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder. Unknown fields are ignored for forward
// compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("wire: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("wire: CBOR decoder initialization failed: " + err.Error())
	}
}

// ReadMessage reads one length-prefixed message body from r. Transport
// errors and oversized lengths are fatal to the stream; the caller
// owns interpreting the body.
func ReadMessage(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(prefix[:])
	if length > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

// appendPrefixed serializes v to CBOR behind a u32be length prefix.
func appendPrefixed(v any) ([]byte, error) {
	body, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	buf := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(body)))
	copy(buf[4:], body)
	return buf, nil
}

// EncodeCommand serializes a command with its length prefix, ready to
// write to the command channel.
func EncodeCommand(c Command) ([]byte, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	return appendPrefixed(c)
}

// DecodeCommand decodes a command message body. An error here means
// the body is malformed, not that the stream is broken: the framing
// remains intact and the reader may continue with the next message.
func DecodeCommand(body []byte) (Command, error) {
	var c Command
	if err := decMode.Unmarshal(body, &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if err := c.validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

// Hello is the subchannel handshake message a viewer sends right after
// its transport channel opens.
type Hello struct {
	Subchannel uint32 `cbor:"subchannel"`
}

// EncodeHello serializes a hello with its length prefix.
func EncodeHello(h Hello) ([]byte, error) {
	return appendPrefixed(h)
}

// DecodeHello decodes a hello message body.
func DecodeHello(body []byte) (Hello, error) {
	var h Hello
	if err := decMode.Unmarshal(body, &h); err != nil {
		return Hello{}, fmt.Errorf("decode hello: %w", err)
	}
	return h, nil
}
