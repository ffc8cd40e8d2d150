package input

import "fmt"

// Wii remote and nunchuk button bits.
const (
	WiiTwo   uint32 = 0x0001
	WiiOne   uint32 = 0x0002
	WiiB     uint32 = 0x0004
	WiiA     uint32 = 0x0008
	WiiMinus uint32 = 0x0010
	WiiHome  uint32 = 0x0080
	WiiLeft  uint32 = 0x0100
	WiiRight uint32 = 0x0200
	WiiDown  uint32 = 0x0400
	WiiUp    uint32 = 0x0800
	WiiPlus  uint32 = 0x1000

	NunchukZ uint32 = 0x10000
	NunchukC uint32 = 0x20000
)

var wiimoteButtons = [...]uint32{WiiA, WiiB, WiiOne, WiiTwo, WiiMinus, WiiPlus, WiiHome, NunchukZ, NunchukC}

const wiiDPad = WiiLeft | WiiRight | WiiDown | WiiUp

// Expansion is the accessory plugged into a Wii remote.
type Expansion uint8

const (
	ExpNone Expansion = iota
	ExpNunchuk
)

// Stick is a raw analog stick reading with its calibration.
type Stick struct {
	X, Y                int16
	MinX, CenterX, MaxX int16
	MinY, CenterY, MaxY int16
}

// IR is the pointer position the remote's camera resolves on screen.
type IR struct {
	X, Y  int
	Angle float32 // degrees
	Valid bool
}

// WiimoteState is a Wii remote poll.
type WiimoteState struct {
	Buttons          uint32
	Expansion        Expansion
	Nunchuk          Stick
	Pitch, Roll, Yaw float32 // degrees
	IR               IR
}

func (WiimoteState) state() {}

// buttons drops nunchuk bits while no nunchuk is attached.
func (s WiimoteState) buttons() uint32 {
	if s.Expansion != ExpNunchuk {
		return s.Buttons &^ (NunchukZ | NunchukC)
	}
	return s.Buttons
}

// Joystick axes of a Wii remote.
const (
	AxisNunchukX = iota
	AxisNunchukY
	AxisPitch
	AxisRoll
	AxisYaw
	wiimoteAxes
)

// Wiimote is a Wii remote with an optional nunchuk: 9 buttons, 5 axes and
// the D-pad as a hat.
type Wiimote struct {
	index int
	prev  WiimoteState
	axes  [wiimoteAxes]int
}

// NewWiimote returns the remote on channel index.
func NewWiimote(index int) *Wiimote { return &Wiimote{index: index} }

func (w *Wiimote) Name() string {
	name := fmt.Sprintf("Wiimote %d", w.index)
	if w.prev.Expansion == ExpNunchuk {
		name += " + Nunchuk"
	}
	return name
}

func (w *Wiimote) Counts() (buttons, axes, hats int) {
	return len(wiimoteButtons), wiimoteAxes, 1
}

// StickAxis scales a raw stick reading to the axis range around its
// calibrated center. Badly calibrated sticks read as centered.
func StickAxis(pos, lo, center, hi int16, flip bool) int {
	if center-lo < 5 || hi-center < 5 {
		return 0
	}
	x := int(pos) - int(center)
	d := int(hi) - int(center)
	if x < 0 {
		d = int(center) - int(lo)
	}
	v := (x << 15) / d
	if flip {
		v = -v
	}
	return clampAxis(v)
}

// orient converts an angle to the axis range, half a turn per full scale.
func orient(deg float32) int {
	return int(int16(deg/180*128)) << 8
}

func (w *Wiimote) Update(s State, emit func(Event)) {
	st, ok := s.(WiimoteState)
	if !ok {
		return
	}
	cur := st.buttons()
	changed := cur ^ w.prev.buttons()
	if changed&wiiDPad != 0 {
		emit(Event{Kind: HatMotion, Device: w.index,
			Value: hat(cur&WiiUp != 0, cur&WiiDown != 0, cur&WiiLeft != 0, cur&WiiRight != 0)})
	}
	for i, bit := range wiimoteButtons {
		if changed&bit != 0 {
			emit(button(w.index, i, cur&bit != 0))
		}
	}

	var axes [wiimoteAxes]int
	if st.Expansion == ExpNunchuk {
		n := st.Nunchuk
		axes[AxisNunchukX] = StickAxis(n.X, n.MinX, n.CenterX, n.MaxX, false)
		axes[AxisNunchukY] = StickAxis(n.Y, n.MinY, n.CenterY, n.MaxY, true)
	}
	axes[AxisPitch] = clampAxis(-orient(st.Pitch))
	axes[AxisRoll] = clampAxis(orient(st.Roll))
	axes[AxisYaw] = clampAxis(orient(st.Yaw))
	for i, v := range axes {
		if v != w.axes[i] {
			emit(Event{Kind: AxisMotion, Device: w.index, Index: i, Value: v})
		}
	}
	w.axes = axes
	w.prev = st
}

// Pointer turns a Wii remote into a mouse: the IR position moves the
// pointer, B is the left button and A the right one.
type Pointer struct {
	index int
	prev  uint32
}

// NewPointer returns the mouse driven by the remote on channel index.
func NewPointer(index int) *Pointer { return &Pointer{index: index} }

var pointerButtons = [...]struct {
	bit   uint32
	mouse int
}{
	{WiiB, MouseLeft},
	{WiiA, MouseRight},
}

// Update emits mouse events for st. Nothing is emitted while the remote
// points off screen; button edges seen meanwhile are reported once it
// points back.
func (p *Pointer) Update(st WiimoteState, emit func(Event)) {
	if !st.IR.Valid {
		return
	}
	emit(Event{Kind: MouseMotion, Device: p.index, X: st.IR.X, Y: st.IR.Y})
	changed := st.Buttons ^ p.prev
	for _, b := range pointerButtons {
		if changed&b.bit == 0 {
			continue
		}
		k := MouseButtonUp
		if st.Buttons&b.bit != 0 {
			k = MouseButtonDown
		}
		emit(Event{Kind: k, Device: p.index, Index: b.mouse, X: st.IR.X, Y: st.IR.Y})
	}
	p.prev = st.Buttons
}
