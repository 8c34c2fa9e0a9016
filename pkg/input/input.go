// Package input defines the OS input injection capability driven by
// viewer commands. Implementations wrap the platform mouse/keyboard
// primitives; the session core never touches the OS directly.
package input

import "log"

// Button is a pointer button the injector can press.
type Button int

const (
	ButtonLeft Button = iota + 1
	ButtonMiddle
	ButtonRight
)

// String returns the button name used in logs.
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonMiddle:
		return "middle"
	case ButtonRight:
		return "right"
	default:
		return "unknown"
	}
}

// Injector performs mouse and keyboard injection in native screen
// coordinates.
type Injector interface {
	// Move positions the pointer at native screen coordinates.
	Move(x, y int) error

	// PressButton presses a pointer button.
	PressButton(button Button) error

	// ReleaseButton releases a pointer button.
	ReleaseButton(button Button) error

	// PressKey presses a keyboard key, named by its key string.
	PressKey(key string) error

	// ReleaseKey releases a keyboard key.
	ReleaseKey(key string) error
}

// LogInjector logs every injection instead of performing it. It stands
// in while no platform backend is wired, and in tests.
type LogInjector struct{}

func (LogInjector) Move(x, y int) error {
	log.Printf("inject: move %d,%d", x, y)
	return nil
}

func (LogInjector) PressButton(button Button) error {
	log.Printf("inject: press %s button", button)
	return nil
}

func (LogInjector) ReleaseButton(button Button) error {
	log.Printf("inject: release %s button", button)
	return nil
}

func (LogInjector) PressKey(key string) error {
	log.Printf("inject: press key %q", key)
	return nil
}

func (LogInjector) ReleaseKey(key string) error {
	log.Printf("inject: release key %q", key)
	return nil
}
