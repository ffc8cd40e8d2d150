package dsp

import (
	"encoding/binary"
	"sync/atomic"
	"time"
)

// Stream implements io.Reader over the engine's stereo output as 16-bit
// little-endian frames, for host audio players.
type Stream struct {
	d          *DSP
	Mono       bool
	LowLatency bool
	muted      atomic.Bool
	underruns  atomic.Int64
}

// NewStream returns a reader draining d's output.
func NewStream(d *DSP) *Stream { return &Stream{d: d} }

// SetMuted makes Read return silence while still draining the engine.
func (s *Stream) SetMuted(m bool) { s.muted.Store(m) }

// Underruns returns how often Read had to pad with silence.
func (s *Stream) Underruns() int64 { return s.underruns.Load() }

func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 || s == nil || s.d == nil {
		return 0, nil
	}
	// A buffer smaller than one stereo frame gets silence rather than 0 bytes.
	if len(p) < 4 {
		clear(p)
		return len(p), nil
	}
	maxReq := len(p) / 4
	capFrames := 2048 // ~42.7ms at 48kHz
	waitDur := 15 * time.Millisecond
	if s.LowLatency {
		capFrames = 1024
		waitDur = 8 * time.Millisecond
	}
	if maxReq > capFrames {
		maxReq = capFrames
	}

	want := s.d.StereoAvailable()
	if want == 0 {
		deadline := time.Now().Add(waitDur)
		for time.Now().Before(deadline) {
			if want = s.d.StereoAvailable(); want > 0 {
				break
			}
			time.Sleep(time.Millisecond)
		}
	}
	if want > maxReq {
		want = maxReq
	}
	if want <= 0 {
		n := 256
		if n > maxReq {
			n = maxReq
		}
		clear(p[:n*4])
		s.underruns.Add(1)
		return n * 4, nil
	}

	frames := s.d.PullStereo(want)
	i := 0
	for j := 0; j+1 < len(frames); j += 2 {
		l, r := frames[j], frames[j+1]
		if s.Mono {
			m := int16((int32(l) + int32(r)) / 2)
			l, r = m, m
		}
		binary.LittleEndian.PutUint16(p[i:], uint16(l))
		binary.LittleEndian.PutUint16(p[i+2:], uint16(r))
		i += 4
	}
	if s.muted.Load() {
		clear(p[:i])
	}
	return i, nil
}
