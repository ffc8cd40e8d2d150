package dsp

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
)

func newTestDSP(t *testing.T, spf int) (*DSP, *mem.Arena) {
	t.Helper()
	m := mem.New(0x10000000, 1<<20)
	d := New(m, Config{SamplesPerFrame: spf, Voices: 2, RingFrames: 64})
	d.Init()
	return d, m
}

func writeSamples(t *testing.T, m *mem.Arena, s []int16) mem.Block {
	t.Helper()
	b, err := m.Alloc(len(s)*2, 32)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range s {
		binary.BigEndian.PutUint16(b.Data[i*2:], uint16(v))
	}
	m.StoreRange(b.Addr, b.Size())
	return b
}

func TestVoiceLoopsBetweenOffsets(t *testing.T) {
	d, m := newTestDSP(t, 4)
	b := writeSamples(t, m, []int16{100, 200, 300, 400, 500, 600})
	v, err := d.AcquireVoice(31)
	if err != nil {
		t.Fatal(err)
	}
	v.SetVolume(UnityVolume)
	v.SetDeviceMix(TV, Mix{UnityVolume, UnityVolume})
	v.SetOffsets(Offsets{Format: PCM16, Looping: true, Data: b.Addr, Loop: 2, End: 3, Current: 0})
	v.SetState(VoicePlaying)

	d.Step()
	d.Step()
	got := d.PullStereo(8)
	want := []int16{100, 200, 300, 400, 300, 400, 300, 400}
	for i, w := range want {
		if got[i*2] != w || got[i*2+1] != w {
			t.Fatalf("frame %d got %d/%d want %d", i, got[i*2], got[i*2+1], w)
		}
	}
	if v.Loops() != 3 {
		t.Fatalf("loops got %d want 3", v.Loops())
	}
}

func TestFrameCallbackRunsBeforeMix(t *testing.T) {
	d, m := newTestDSP(t, 2)
	b := writeSamples(t, m, []int16{1, 2, 3, 4})
	v, _ := d.AcquireVoice(31)
	v.SetVolume(UnityVolume)
	v.SetDeviceMix(TV, Mix{UnityVolume, 0})
	v.SetOffsets(Offsets{Looping: true, Data: b.Addr, End: 1})
	v.SetState(VoicePlaying)
	d.RegisterAppFrameCallback(func() {
		if v.Offsets().Current == 0 {
			v.SetCurrentOffset(2)
			v.SetLoopOffset(2)
			v.SetEndOffset(3)
		}
	})
	d.Step()
	got := d.PullStereo(2)
	if got[0] != 3 || got[2] != 4 || got[1] != 0 {
		t.Fatalf("got %v want left 3,4 and silent right", got)
	}
	d.DeregisterAppFrameCallback()
	d.Step()
	if d.Frames() != 2 {
		t.Fatalf("frames got %d", d.Frames())
	}
}

func TestVoicePool(t *testing.T) {
	d, _ := newTestDSP(t, 4)
	a, _ := d.AcquireVoice(1)
	if _, err := d.AcquireVoice(1); err != nil {
		t.Fatal(err)
	}
	if _, err := d.AcquireVoice(1); !errors.Is(err, ErrNoVoice) {
		t.Fatalf("got %v want ErrNoVoice", err)
	}
	d.FreeVoice(a)
	if d.ActiveVoices() != 1 {
		t.Fatalf("active got %d want 1", d.ActiveVoices())
	}
	d.Quit()
	if _, err := d.AcquireVoice(1); !errors.Is(err, ErrNotInit) {
		t.Fatalf("got %v want ErrNotInit", err)
	}
}

func TestRingDropsWhenFull(t *testing.T) {
	d, _ := newTestDSP(t, 16)
	for i := 0; i < 5; i++ {
		d.Step()
	}
	if got := d.StereoAvailable(); got != 63 {
		t.Fatalf("available got %d want 63", got)
	}
	if d.Dropped() != 80-63 {
		t.Fatalf("dropped got %d", d.Dropped())
	}
}

func TestStreamEncodesLittleEndian(t *testing.T) {
	d, m := newTestDSP(t, 2)
	b := writeSamples(t, m, []int16{0x1234, -2})
	v, _ := d.AcquireVoice(31)
	v.SetVolume(UnityVolume)
	v.SetDeviceMix(TV, Mix{UnityVolume, UnityVolume})
	v.SetOffsets(Offsets{Looping: true, Data: b.Addr, End: 1})
	v.SetState(VoicePlaying)
	d.Step()

	s := NewStream(d)
	p := make([]byte, 64)
	n, err := s.Read(p)
	if err != nil || n != 8 {
		t.Fatalf("read got %d, %v want 8 bytes", n, err)
	}
	if p[0] != 0x34 || p[1] != 0x12 || int16(binary.LittleEndian.Uint16(p[6:])) != -2 {
		t.Fatalf("bytes got % x", p[:8])
	}
	if s.Underruns() != 0 {
		t.Fatal("unexpected underrun")
	}
}
