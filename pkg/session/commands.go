package session

import (
	"errors"
	"io"
	"log"

	"example.com/desk_bridge/pkg/input"
	"example.com/desk_bridge/pkg/wire"
)

// commandLoop decodes length-prefixed command messages from the viewer
// and dispatches them until the transport fails. Leaving the loop is
// this viewer's detach signal — it never ends the session.
func (m *Manager) commandLoop(viewer *Viewer) {
	defer m.remove(viewer)

	for {
		body, err := wire.ReadMessage(viewer.stream)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("session: viewer %s command channel closed: %v", viewer.ID, err)
			}
			return
		}

		command, err := wire.DecodeCommand(body)
		if err != nil {
			// Malformed body with intact framing; keep reading.
			log.Printf("session: viewer %s sent invalid command: %v", viewer.ID, err)
			continue
		}

		m.dispatch(command)
	}
}

// dispatch routes a decoded command to the input injector. Injection
// failures are logged and swallowed; nothing here may end the channel
// loop.
func (m *Manager) dispatch(command wire.Command) {
	switch command.Action {
	case wire.ActionMoveMouse:
		x, y := m.translate(command.Move.X, command.Move.Y)
		if err := m.injector.Move(x, y); err != nil {
			log.Printf("session: mouse move failed: %v", err)
		}

	case wire.ActionClickMouse:
		m.dispatchClick(command.Click)

	case wire.ActionKeyboardKey:
		var err error
		if command.Key.State == wire.StateDown {
			err = m.injector.PressKey(command.Key.Key)
		} else {
			err = m.injector.ReleaseKey(command.Key.Key)
		}
		if err != nil {
			log.Printf("session: key %q failed: %v", command.Key.Key, err)
		}
	}
}

func (m *Manager) dispatchClick(click *wire.MouseClick) {
	var button input.Button
	switch click.Button {
	case wire.ButtonLeft:
		button = input.ButtonLeft
	case wire.ButtonMiddle:
		button = input.ButtonMiddle
	case wire.ButtonRight:
		button = input.ButtonRight
	default:
		// Reserved for wheel support.
		return
	}

	var err error
	if click.State == wire.StateDown {
		err = m.injector.PressButton(button)
	} else {
		err = m.injector.ReleaseButton(button)
	}
	if err != nil {
		log.Printf("session: mouse button %s failed: %v", button, err)
	}
}

// translate maps viewer coordinates from the negotiated resolution's
// space to native screen space by linear scaling. Before any
// resolution is negotiated, the configured fallback reference applies.
func (m *Manager) translate(x, y int) (int, int) {
	m.mu.Lock()
	native := m.native
	res := m.cfg.FallbackReference
	if m.resolution != nil {
		res = *m.resolution
	}
	m.mu.Unlock()

	if res.Width == 0 || res.Height == 0 {
		return x, y
	}
	return x * native.Width / res.Width, y * native.Height / res.Height
}
