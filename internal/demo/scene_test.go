package demo

import (
	"io"
	"log"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/sink"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/system"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/vi"
)

func newScene(t *testing.T, cfg Config) (*Scene, *system.System) {
	t.Helper()
	sys, err := system.New(system.Config{TV: vi.NTSC, Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatal(err)
	}
	s, err := New(sys, cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close()
		sys.Close()
	})
	return s, sys
}

func near(a, b uint8) bool { return a-b < 4 || b-a < 4 }

func TestFramesReachTheScreen(t *testing.T) {
	s, sys := newScene(t, Config{Mute: true})
	for i := 0; i < 3; i++ {
		if err := s.Frame(); err != nil {
			t.Fatal(err)
		}
	}
	if s.Frames() != 3 {
		t.Fatalf("frames got %d", s.Frames())
	}
	img := sys.VI.Frame()
	if c := img.RGBAAt(2, 2); !near(c.R, 0x10) || !near(c.G, 0x18) || !near(c.B, 0x30) {
		t.Fatalf("background got %v", c)
	}
	if c := img.RGBAAt(320, 240); near(c.B, 0x30) && near(c.R, 0x10) {
		t.Fatalf("quad missing at the centre: %v", c)
	}
	if sys.Audio() != nil {
		t.Fatal("muted scene opened audio")
	}
}

func TestToneStreamsThroughDSP(t *testing.T) {
	s, sys := newScene(t, Config{})
	e := s.Audio()
	if e == nil {
		t.Fatal("no audio")
	}
	spec := e.Spec()
	for step := 0; step < 32; step++ {
		if e.Rendering() != e.Playing() {
			if err := s.FillAudio(); err != nil {
				t.Fatal(err)
			}
		}
		sys.DSP.Step()
	}
	out := sys.DSP.PullStereo(1 << 14)
	var loud int
	for _, v := range out {
		if v > 1000 || v < -1000 {
			loud++
		}
	}
	if loud == 0 {
		t.Fatalf("tone silent over %d frames of %d samples", len(out)/2, spec.Samples)
	}
}

func TestClipLoops(t *testing.T) {
	clip := &sink.Clip{Rate: 48000, Channels: 1, Samples: []int16{100, 200, 300}}
	s, _ := newScene(t, Config{Clip: clip})
	spec := s.Audio().Spec()
	if spec.Channels != 1 {
		t.Fatalf("channels got %d", spec.Channels)
	}
	for n, want := range []int16{100, 200, 300, 100, 200} {
		if got := s.sampleAt(n, 0, spec); got != want {
			t.Fatalf("sample %d got %d want %d", n, got, want)
		}
	}
}
