// Package input turns polled controller state into joystick, mouse and
// keyboard events. Devices keep the state of the previous poll and emit an
// event only for what changed.
package input

import "fmt"

// Kind is the type of an event.
type Kind uint8

const (
	ButtonDown Kind = iota
	ButtonUp
	AxisMotion
	HatMotion
	MouseMotion
	MouseButtonDown
	MouseButtonUp
	KeyDown
	KeyUp
	TextInput
	Quit
)

func (k Kind) String() string {
	switch k {
	case ButtonDown:
		return "button-down"
	case ButtonUp:
		return "button-up"
	case AxisMotion:
		return "axis"
	case HatMotion:
		return "hat"
	case MouseMotion:
		return "mouse-motion"
	case MouseButtonDown:
		return "mouse-down"
	case MouseButtonUp:
		return "mouse-up"
	case KeyDown:
		return "key-down"
	case KeyUp:
		return "key-up"
	case TextInput:
		return "text"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Hat positions, or'ed together for diagonals.
const (
	HatCentered = 0
	HatUp       = 1
	HatRight    = 2
	HatDown     = 4
	HatLeft     = 8
)

// Mouse buttons.
const (
	MouseLeft  = 1
	MouseRight = 3
)

// Axis range.
const (
	AxisMin = -32768
	AxisMax = 32767
)

// Event is one input change.
type Event struct {
	Kind   Kind
	Device int // joystick index
	Index  int // button, axis, hat, mouse button or key code
	Value  int // axis position or hat bits
	X, Y   int // mouse position
	Text   string
}

// State is a polled controller snapshot: PadState or WiimoteState.
type State interface {
	state()
}

// Device is an opened joystick.
type Device interface {
	Name() string
	// Counts returns the number of buttons, axes and hats.
	Counts() (buttons, axes, hats int)
	// Update compares s with the previous poll and emits the changes.
	Update(s State, emit func(Event))
}

func hat(up, down, left, right bool) int {
	h := HatCentered
	if up {
		h |= HatUp
	}
	if down {
		h |= HatDown
	}
	if left {
		h |= HatLeft
	}
	if right {
		h |= HatRight
	}
	return h
}

func button(dev, i int, pressed bool) Event {
	if pressed {
		return Event{Kind: ButtonDown, Device: dev, Index: i}
	}
	return Event{Kind: ButtonUp, Device: dev, Index: i}
}

func clampAxis(v int) int {
	return min(max(v, AxisMin), AxisMax)
}
