// Package client implements a desk bridge viewer: it attaches to a
// server, receives the video stream, and sends input commands back.
package client

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"example.com/desk_bridge/pkg/compress"
	"example.com/desk_bridge/pkg/wire"
)

// FrameCallback is called for every received video frame. The payload
// has already been through the second-stage decompressor when one is
// configured.
type FrameCallback func(frame wire.Frame)

// DisconnectCallback is called once when the stream ends.
type DisconnectCallback func(err error)

// Client is a viewer connection to a desk bridge server.
type Client struct {
	ServerURL string

	conn         *websocket.Conn
	stream       *wsStream
	decompressor *compress.Compressor
	onFrame      FrameCallback
	onDisconnect DisconnectCallback

	mu        sync.Mutex
	writeMu   sync.Mutex // separate mutex for WebSocket writes
	connected bool
	done      chan struct{}
}

// NewClient creates a viewer client for the given websocket URL.
func NewClient(serverURL string) *Client {
	return &Client{
		ServerURL: serverURL,
		done:      make(chan struct{}),
	}
}

// OnFrame sets the callback for received frames.
func (c *Client) OnFrame(callback FrameCallback) {
	c.onFrame = callback
}

// OnDisconnect sets the callback for stream termination.
func (c *Client) OnDisconnect(callback DisconnectCallback) {
	c.onDisconnect = callback
}

// SetCompression configures the decompressor matching the server's
// second-stage settings. Call before Connect; without it, frame
// payloads are delivered as received.
func (c *Client) SetCompression(algorithm compress.Algorithm, percent int) error {
	decompressor, err := compress.New(algorithm, percent)
	if err != nil {
		return err
	}
	c.decompressor = decompressor
	return nil
}

// Connect dials the server, sends the subchannel hello, and starts the
// frame reader.
func (c *Client) Connect(subchannel uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	hello, err := wire.EncodeHello(wire.Hello{Subchannel: subchannel})
	if err != nil {
		conn.Close()
		return fmt.Errorf("encode hello: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, hello); err != nil {
		conn.Close()
		return fmt.Errorf("send hello: %w", err)
	}

	c.conn = conn
	c.stream = &wsStream{conn: conn}
	c.connected = true

	go c.readFrames()
	return nil
}

// readFrames delivers decoded frames to the callback until the stream
// ends.
func (c *Client) readFrames() {
	for {
		frame, err := wire.ReadFrame(c.stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("client: frame stream ended: %v", err)
			}
			c.disconnect(err)
			return
		}

		if c.decompressor != nil {
			payload, err := c.decompressor.Decompress(frame.Payload)
			if err != nil {
				log.Printf("client: frame decompress failed: %v", err)
				continue
			}
			frame.Payload = payload
		}

		if c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

// SendMouseMove sends a pointer position in the negotiated resolution's
// coordinate space.
func (c *Client) SendMouseMove(x, y int) error {
	return c.send(wire.MoveCommand(x, y))
}

// SendMouseClick sends a button press or release.
func (c *Client) SendMouseClick(button wire.Button, state wire.KeyState) error {
	return c.send(wire.ClickCommand(button, state))
}

// SendKey sends a keyboard key press or release.
func (c *Client) SendKey(key string, state wire.KeyState) error {
	return c.send(wire.KeyCommand(key, state))
}

func (c *Client) send(command wire.Command) error {
	data, err := wire.EncodeCommand(command)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("not connected")
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *Client) disconnect(err error) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.mu.Unlock()

	if wasConnected {
		c.conn.Close()
		close(c.done)
		if c.onDisconnect != nil {
			c.onDisconnect(err)
		}
	}
}

// Done returns a channel closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	err := c.conn.Close()
	return err
}

// wsStream adapts the websocket connection to an io.Reader spanning
// message boundaries, so frame reads are unaffected by how the server
// fragments its writes.
type wsStream struct {
	conn   *websocket.Conn
	reader io.Reader
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.reader == nil {
			_, r, err := s.conn.NextReader()
			if err != nil {
				return 0, err
			}
			s.reader = r
		}
		n, err := s.reader.Read(p)
		if errors.Is(err, io.EOF) {
			s.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}
