package input

import (
	"testing"
)

// nunchukZ is the joystick button number of the nunchuk Z button.
const nunchukZ = 7

type recorder struct{ events []Event }

func (r *recorder) emit(e Event) { r.events = append(r.events, e) }

func (r *recorder) take() []Event {
	e := r.events
	r.events = nil
	return e
}

func TestPadButtonsAndHat(t *testing.T) {
	p := NewPad(2)
	var r recorder
	if p.Name() != "Gamecube 2" {
		t.Fatalf("name got %q", p.Name())
	}
	if b, a, h := p.Counts(); b != 8 || a != 6 || h != 1 {
		t.Fatalf("counts got %d/%d/%d", b, a, h)
	}

	p.Update(PadState{Buttons: PadA | PadUp | PadRight | PadStart}, r.emit)
	got := r.take()
	want := []Event{
		{Kind: HatMotion, Device: 2, Value: HatUp | HatRight},
		{Kind: ButtonDown, Device: 2, Index: 0},
		{Kind: ButtonDown, Device: 2, Index: 7},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d got %+v want %+v", i, got[i], want[i])
		}
	}

	p.Update(PadState{Buttons: PadA | PadUp | PadRight | PadStart}, r.emit)
	if n := len(r.take()); n != 0 {
		t.Fatalf("unchanged poll emitted %d events", n)
	}

	p.Update(PadState{Buttons: PadUp | PadRight | PadStart}, r.emit)
	got = r.take()
	if len(got) != 1 || got[0] != (Event{Kind: ButtonUp, Device: 2, Index: 0}) {
		t.Fatalf("release got %v", got)
	}
}

func TestPadAxes(t *testing.T) {
	p := NewPad(0)
	var r recorder
	p.Update(PadState{StickX: 100, StickY: 50, SubY: -10, TriggerR: 255}, r.emit)
	want := map[int]int{0: 100 << 8, 1: -50 << 8, 3: 10 << 8, 5: 255 << 7}
	got := r.take()
	if len(got) != len(want) {
		t.Fatalf("got %d axis events want %d: %v", len(got), len(want), got)
	}
	for _, e := range got {
		if e.Kind != AxisMotion || want[e.Index] != e.Value {
			t.Fatalf("axis %d got %d want %d", e.Index, e.Value, want[e.Index])
		}
	}
	p.Update(PadState{StickX: -128}, r.emit)
	for _, e := range r.take() {
		if e.Index == 0 && e.Value != AxisMin {
			t.Fatalf("full left got %d", e.Value)
		}
	}
}

func TestStickAxis(t *testing.T) {
	for _, tc := range []struct {
		pos, lo, c, hi int16
		flip           bool
		want           int
	}{
		{128, 0, 128, 255, false, 0},
		{255, 0, 128, 255, false, AxisMax},
		{0, 0, 128, 255, false, AxisMin},
		{0, 0, 128, 255, true, AxisMax},
		{192, 0, 128, 256, false, 16384},
		{200, 126, 128, 255, false, 0}, // not calibrated
	} {
		if got := StickAxis(tc.pos, tc.lo, tc.c, tc.hi, tc.flip); got != tc.want {
			t.Fatalf("StickAxis(%d, %d, %d, %d, %v) got %d want %d", tc.pos, tc.lo, tc.c, tc.hi, tc.flip, got, tc.want)
		}
	}
}

func TestWiimoteNunchuk(t *testing.T) {
	w := NewWiimote(1)
	var r recorder
	stick := Stick{X: 128, Y: 128, MinX: 0, CenterX: 128, MaxX: 255, MinY: 0, CenterY: 128, MaxY: 255}

	w.Update(WiimoteState{Buttons: NunchukZ | WiiA}, r.emit)
	for _, e := range r.take() {
		if e.Kind == ButtonDown && e.Index == nunchukZ {
			t.Fatal("nunchuk button reported without a nunchuk")
		}
	}

	w.Update(WiimoteState{Buttons: NunchukZ | WiiA, Expansion: ExpNunchuk, Nunchuk: stick, Pitch: 90}, r.emit)
	if w.Name() != "Wiimote 1 + Nunchuk" {
		t.Fatalf("name got %q", w.Name())
	}
	var z, pitch bool
	for _, e := range r.take() {
		switch {
		case e.Kind == ButtonDown && e.Index == nunchukZ:
			z = true
		case e.Kind == AxisMotion && e.Index == AxisPitch:
			pitch = e.Value == -(64 << 8)
		case e.Kind == AxisMotion && (e.Index == AxisNunchukX || e.Index == AxisNunchukY):
			t.Fatalf("centered stick moved axis %d to %d", e.Index, e.Value)
		}
	}
	if !z || !pitch {
		t.Fatalf("attach got z=%v pitch=%v", z, pitch)
	}

	w.Update(WiimoteState{Buttons: WiiA, Pitch: 90}, r.emit)
	got := r.take()
	if len(got) != 1 || got[0] != (Event{Kind: ButtonUp, Device: 1, Index: nunchukZ}) {
		t.Fatalf("detach got %v", got)
	}
	if w.Name() != "Wiimote 1" {
		t.Fatalf("name got %q", w.Name())
	}
}

func TestPointer(t *testing.T) {
	p := NewPointer(0)
	var r recorder
	p.Update(WiimoteState{Buttons: WiiB, IR: IR{X: 10, Y: 20}}, r.emit)
	if n := len(r.take()); n != 0 {
		t.Fatalf("off-screen remote emitted %d events", n)
	}
	p.Update(WiimoteState{Buttons: WiiB, IR: IR{X: 10, Y: 20, Valid: true}}, r.emit)
	got := r.take()
	if len(got) != 2 || got[0].Kind != MouseMotion || got[0].X != 10 || got[0].Y != 20 {
		t.Fatalf("got %v", got)
	}
	if got[1].Kind != MouseButtonDown || got[1].Index != MouseLeft {
		t.Fatalf("B got %+v want left button down", got[1])
	}
	p.Update(WiimoteState{Buttons: WiiA, IR: IR{X: 11, Y: 20, Valid: true}}, r.emit)
	got = r.take()
	if len(got) != 3 || got[1].Kind != MouseButtonUp || got[2].Index != MouseRight {
		t.Fatalf("got %v", got)
	}
}
