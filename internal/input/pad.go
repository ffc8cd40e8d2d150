package input

import "fmt"

// GameCube controller button bits.
const (
	PadLeft  uint16 = 0x0001
	PadRight uint16 = 0x0002
	PadDown  uint16 = 0x0004
	PadUp    uint16 = 0x0008
	PadZ     uint16 = 0x0010
	PadR     uint16 = 0x0020
	PadL     uint16 = 0x0040
	PadA     uint16 = 0x0100
	PadB     uint16 = 0x0200
	PadX     uint16 = 0x0400
	PadY     uint16 = 0x0800
	PadStart uint16 = 0x1000
)

// padButtons maps joystick button numbers to controller bits.
var padButtons = [...]uint16{PadA, PadB, PadX, PadY, PadL, PadR, PadZ, PadStart}

const padDPad = PadLeft | PadRight | PadDown | PadUp

// PadState is a GameCube controller poll.
type PadState struct {
	Buttons            uint16
	StickX, StickY     int8
	SubX, SubY         int8
	TriggerL, TriggerR uint8
}

func (PadState) state() {}

// Pad is a GameCube controller: 8 buttons, 6 axes and the D-pad as a hat.
type Pad struct {
	index int
	prev  PadState
}

// NewPad returns the controller in port index.
func NewPad(index int) *Pad { return &Pad{index: index} }

func (p *Pad) Name() string { return fmt.Sprintf("Gamecube %d", p.index) }

func (p *Pad) Counts() (buttons, axes, hats int) { return len(padButtons), 6, 1 }

func (p *Pad) Update(s State, emit func(Event)) {
	st, ok := s.(PadState)
	if !ok {
		return
	}
	changed := st.Buttons ^ p.prev.Buttons
	if changed&padDPad != 0 {
		b := st.Buttons
		emit(Event{Kind: HatMotion, Device: p.index,
			Value: hat(b&PadUp != 0, b&PadDown != 0, b&PadLeft != 0, b&PadRight != 0)})
	}
	for i, bit := range padButtons {
		if changed&bit != 0 {
			emit(button(p.index, i, st.Buttons&bit != 0))
		}
	}

	// Stick y axes grow upward on the controller and downward as events.
	axes := [6][2]int{
		{int(st.StickX) << 8, int(p.prev.StickX) << 8},
		{-int(st.StickY) << 8, -int(p.prev.StickY) << 8},
		{int(st.SubX) << 8, int(p.prev.SubX) << 8},
		{-int(st.SubY) << 8, -int(p.prev.SubY) << 8},
		{int(st.TriggerL) << 7, int(p.prev.TriggerL) << 7},
		{int(st.TriggerR) << 7, int(p.prev.TriggerR) << 7},
	}
	for i, a := range axes {
		if a[0] != a[1] {
			emit(Event{Kind: AxisMotion, Device: p.index, Index: i, Value: clampAxis(a[0])})
		}
	}
	p.prev = st
}
