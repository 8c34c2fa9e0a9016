package wire

import (
	"errors"
	"fmt"
)

// Action identifies a command variant. The set is closed: decoding
// rejects anything else, so dispatch switches are exhaustive.
type Action uint8

const (
	ActionMoveMouse Action = iota + 1
	ActionClickMouse
	ActionKeyboardKey
)

// String returns the action name used in logs.
func (a Action) String() string {
	switch a {
	case ActionMoveMouse:
		return "move_mouse"
	case ActionClickMouse:
		return "click_mouse"
	case ActionKeyboardKey:
		return "keyboard_key"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(a))
	}
}

// Button numbering on the wire: 1=left, 2=middle, 3=right. Values 4 and
// 5 are reserved for wheel support.
type Button uint8

const (
	ButtonLeft   Button = 1
	ButtonMiddle Button = 2
	ButtonRight  Button = 3
)

// KeyState is the press phase of a button or key.
type KeyState uint8

const (
	StateDown KeyState = iota + 1
	StateUp
)

// MouseMove positions the pointer in the negotiated resolution's
// coordinate space. The server rescales to native screen coordinates.
type MouseMove struct {
	X int `cbor:"x"`
	Y int `cbor:"y"`
}

// MouseClick presses or releases a pointer button.
type MouseClick struct {
	Button Button   `cbor:"button"`
	State  KeyState `cbor:"state"`
}

// KeyPress presses or releases a keyboard key, named by its key string.
type KeyPress struct {
	Key   string   `cbor:"key"`
	State KeyState `cbor:"state"`
}

// Command is one viewer input command. Exactly the payload field
// matching Action is set; the rest are nil.
type Command struct {
	Action Action      `cbor:"action"`
	Move   *MouseMove  `cbor:"move,omitempty"`
	Click  *MouseClick `cbor:"click,omitempty"`
	Key    *KeyPress   `cbor:"key,omitempty"`
}

// MoveCommand builds a moveMouse command.
func MoveCommand(x, y int) Command {
	return Command{Action: ActionMoveMouse, Move: &MouseMove{X: x, Y: y}}
}

// ClickCommand builds a clickMouse command.
func ClickCommand(button Button, state KeyState) Command {
	return Command{Action: ActionClickMouse, Click: &MouseClick{Button: button, State: state}}
}

// KeyCommand builds a keyboardKey command.
func KeyCommand(key string, state KeyState) Command {
	return Command{Action: ActionKeyboardKey, Key: &KeyPress{Key: key, State: state}}
}

var errMissingPayload = errors.New("command payload missing for action")

// validate checks that the action tag and payload agree.
func (c Command) validate() error {
	switch c.Action {
	case ActionMoveMouse:
		if c.Move == nil {
			return fmt.Errorf("%w: %s", errMissingPayload, c.Action)
		}
	case ActionClickMouse:
		if c.Click == nil {
			return fmt.Errorf("%w: %s", errMissingPayload, c.Action)
		}
	case ActionKeyboardKey:
		if c.Key == nil {
			return fmt.Errorf("%w: %s", errMissingPayload, c.Action)
		}
	default:
		return fmt.Errorf("unknown command action %d", uint8(c.Action))
	}
	return nil
}
