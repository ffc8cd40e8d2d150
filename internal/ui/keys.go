package ui

import (
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
	"github.com/hajimehoshi/ebiten/v2"
)

// padKeys maps keyboard keys to GameCube controller buttons.
var padKeys = []struct {
	key ebiten.Key
	bit uint16
}{
	{ebiten.KeyArrowLeft, input.PadLeft},
	{ebiten.KeyArrowRight, input.PadRight},
	{ebiten.KeyArrowUp, input.PadUp},
	{ebiten.KeyArrowDown, input.PadDown},
	{ebiten.KeyZ, input.PadA},
	{ebiten.KeyX, input.PadB},
	{ebiten.KeyC, input.PadX},
	{ebiten.KeyV, input.PadY},
	{ebiten.KeyQ, input.PadL},
	{ebiten.KeyE, input.PadR},
	{ebiten.KeyF, input.PadZ},
	{ebiten.KeyEnter, input.PadStart},
}

// Keyboard turns the host keyboard and mouse into controller port 0 and,
// on the Wii, remote 0. It implements system.Controllers.
type Keyboard struct {
	wii    bool
	pad    [1]input.PadState
	remote [1]input.WiimoteState
}

func (k *Keyboard) Pads() []input.PadState { return k.pad[:] }

func (k *Keyboard) Wiimotes() []input.WiimoteState {
	if !k.wii {
		return nil
	}
	return k.remote[:]
}

// axis returns full deflection toward whichever key is held.
func axis(pressed func(ebiten.Key) bool, neg, pos ebiten.Key) int8 {
	switch {
	case pressed(neg) && !pressed(pos):
		return -127
	case pressed(pos) && !pressed(neg):
		return 127
	}
	return 0
}

// poll samples the keys through pressed. WASD is the main stick, IJKL the
// C stick; Q and E pull the triggers fully as well as clicking L and R.
func (k *Keyboard) poll(pressed func(ebiten.Key) bool) {
	var st input.PadState
	for _, m := range padKeys {
		if pressed(m.key) {
			st.Buttons |= m.bit
		}
	}
	st.StickX = axis(pressed, ebiten.KeyA, ebiten.KeyD)
	st.StickY = axis(pressed, ebiten.KeyS, ebiten.KeyW)
	st.SubX = axis(pressed, ebiten.KeyJ, ebiten.KeyL)
	st.SubY = axis(pressed, ebiten.KeyK, ebiten.KeyI)
	if st.Buttons&input.PadL != 0 {
		st.TriggerL = 0xFF
	}
	if st.Buttons&input.PadR != 0 {
		st.TriggerR = 0xFF
	}
	k.pad[0] = st
}

// pointMouse aims remote 0 at (x, y); the remote points off screen while
// the mouse is outside the w×h window.
func (k *Keyboard) pointMouse(x, y, w, h int, left, right bool, pressed func(ebiten.Key) bool) {
	var st input.WiimoteState
	if left {
		st.Buttons |= input.WiiB
	}
	if right {
		st.Buttons |= input.WiiA
	}
	dpad := []struct {
		key ebiten.Key
		bit uint32
	}{
		{ebiten.KeyArrowLeft, input.WiiLeft},
		{ebiten.KeyArrowRight, input.WiiRight},
		{ebiten.KeyArrowUp, input.WiiUp},
		{ebiten.KeyArrowDown, input.WiiDown},
		{ebiten.KeyEnter, input.WiiPlus},
		{ebiten.KeyHome, input.WiiHome},
	}
	for _, m := range dpad {
		if pressed(m.key) {
			st.Buttons |= m.bit
		}
	}
	st.IR = input.IR{X: x, Y: y, Valid: x >= 0 && y >= 0 && x < w && y < h}
	k.remote[0] = st
}
