package ui

import (
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
	"github.com/hajimehoshi/ebiten/v2"
)

func held(keys ...ebiten.Key) func(ebiten.Key) bool {
	return func(k ebiten.Key) bool {
		for _, h := range keys {
			if h == k {
				return true
			}
		}
		return false
	}
}

func TestKeyboardPad(t *testing.T) {
	var k Keyboard
	k.poll(held(ebiten.KeyZ, ebiten.KeyArrowUp, ebiten.KeyD, ebiten.KeyW, ebiten.KeyQ, ebiten.KeyJ, ebiten.KeyL))
	st := k.Pads()[0]
	if want := input.PadA | input.PadUp | input.PadL; st.Buttons != want {
		t.Fatalf("buttons got %#x want %#x", st.Buttons, want)
	}
	if st.StickX != 127 || st.StickY != 127 || st.SubX != 0 || st.TriggerL != 0xFF || st.TriggerR != 0 {
		t.Fatalf("axes got %+v", st)
	}
	if k.Wiimotes() != nil {
		t.Fatal("remote reported without Wii mode")
	}
}

func TestKeyboardRemote(t *testing.T) {
	k := Keyboard{wii: true}
	k.pointMouse(10, 20, 640, 480, true, false, held(ebiten.KeyArrowLeft))
	st := k.Wiimotes()[0]
	if st.Buttons != input.WiiB|input.WiiLeft || !st.IR.Valid || st.IR.X != 10 || st.IR.Y != 20 {
		t.Fatalf("remote got %+v", st)
	}
	k.pointMouse(-1, 20, 640, 480, false, false, held())
	if k.Wiimotes()[0].IR.Valid {
		t.Fatal("pointer outside the window reported valid")
	}
}

func TestWrapText(t *testing.T) {
	var a App
	got := a.wrapText("one two three four", 9)
	want := []string{"one two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("got %q want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("line %d got %q want %q", i, got[i], want[i])
		}
	}
	if s := a.truncateText("abcdefgh", 6); s != "abc..." {
		t.Fatalf("truncate got %q", s)
	}
}
