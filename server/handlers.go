package main

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"example.com/desk_bridge/pkg/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream upgrades the connection and hands the resulting byte
// stream to the session manager. The manager performs the subchannel
// handshake and owns the viewer from there on.
func handleStream(manager *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		viewer, err := manager.Attach(&wsStream{conn: conn})
		if err != nil {
			log.Printf("Viewer attach failed: %v", err)
			conn.Close()
			return
		}
		log.Printf("Viewer %s attached from %s", viewer.ID, r.RemoteAddr)
	}
}

// wsStream adapts a websocket connection to the byte stream the
// session layer expects. Frames go out as one binary message each;
// reads continue across message boundaries so length-prefixed commands
// can span fragments.
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

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
