// Package dsp models the audio DSP voice engine: a pool of hardware voices
// that stream PCM straight out of main memory, looping between offsets the
// application reprograms from a per-frame callback.
package dsp

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
)

var (
	// ErrNoVoice is returned when every voice is in use.
	ErrNoVoice = errors.New("no free voice")
	// ErrNotInit is returned when the engine has not been initialised.
	ErrNotInit = errors.New("dsp not initialised")
)

// MaxDeviceChannels is the number of output channels per device.
const MaxDeviceChannels = 6

// UnityVolume is the fixed point volume that leaves a sample unchanged.
const UnityVolume = 0x8000

// Config holds the model parameters.
type Config struct {
	SampleRate      int    // output rate in Hz
	SamplesPerFrame int    // samples rendered per frame callback
	Voices          int    // size of the voice pool
	PCM8            bool   // voices accept 8-bit PCM
	DMAWindow       uint32 // voices only address memory inside one window
	RingFrames      int    // stereo output buffer capacity (power of two)
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if c.SamplesPerFrame <= 0 {
		c.SamplesPerFrame = 144 // 3 ms at 48 kHz
	}
	if c.Voices <= 0 {
		c.Voices = 96
	}
	if c.DMAWindow == 0 {
		c.DMAWindow = 0x20000000
	}
	if c.RingFrames <= 0 {
		c.RingFrames = 1 << 15
	}
	n := 1
	for n < c.RingFrames {
		n <<= 1
	}
	c.RingFrames = n
}

// DSP is the voice engine model.
type DSP struct {
	cfg Config
	mem *mem.Arena

	initd  atomic.Bool
	mu     sync.Mutex // guards voice acquisition and the clock
	voices []*Voice
	cb     atomic.Pointer[func()]
	frames atomic.Uint64

	// per-frame mix accumulators, touched only by the frame step
	mixL, mixR []int32
	smp        [2]byte

	// stereo output ring
	ringMu sync.Mutex
	sL, sR []int16
	sHead  int
	sTail  int
	drops  int

	stepMu sync.Mutex
	stop   context.CancelFunc
	done   chan struct{}
}

// New returns a voice engine reading sample data from m.
func New(m *mem.Arena, cfg Config) *DSP {
	cfg.Defaults()
	d := &DSP{
		cfg:  cfg,
		mem:  m,
		mixL: make([]int32, cfg.SamplesPerFrame),
		mixR: make([]int32, cfg.SamplesPerFrame),
		sL:   make([]int16, cfg.RingFrames),
		sR:   make([]int16, cfg.RingFrames),
	}
	d.voices = make([]*Voice, cfg.Voices)
	for i := range d.voices {
		d.voices[i] = &Voice{id: i}
	}
	return d
}

// Init powers the engine up. Calling it again is a no-op.
func (d *DSP) Init() { d.initd.Store(true) }

// IsInit reports whether Init was called since the last Quit.
func (d *DSP) IsInit() bool { return d.initd.Load() }

// Quit stops the clock, frees every voice and drops the frame callback.
func (d *DSP) Quit() {
	d.Stop()
	d.cb.Store(nil)
	d.mu.Lock()
	for _, v := range d.voices {
		v.reset()
	}
	d.mu.Unlock()
	d.initd.Store(false)
}

// InputSamplesPerFrame is the number of samples a voice consumes per frame
// at a 1:1 source ratio.
func (d *DSP) InputSamplesPerFrame() int { return d.cfg.SamplesPerFrame }

// InputSamplesPerSec is the engine's native rate.
func (d *DSP) InputSamplesPerSec() int { return d.cfg.SampleRate }

// SupportsPCM8 reports whether voices can play 8-bit PCM.
func (d *DSP) SupportsPCM8() bool { return d.cfg.PCM8 }

// DMAWindow returns the aliasing window voice data must sit in.
func (d *DSP) DMAWindow() uint32 { return d.cfg.DMAWindow }

// Frames returns the number of frames rendered.
func (d *DSP) Frames() uint64 { return d.frames.Load() }

// AcquireVoice reserves a voice. Priority is accepted for API parity; the
// pool never steals voices.
func (d *DSP) AcquireVoice(priority int) (*Voice, error) {
	if !d.IsInit() {
		return nil, ErrNotInit
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.voices {
		if !v.acquired {
			v.reset()
			v.acquired = true
			v.priority = priority
			return v, nil
		}
	}
	return nil, ErrNoVoice
}

// FreeVoice stops a voice and returns it to the pool.
func (d *DSP) FreeVoice(v *Voice) {
	if v == nil {
		return
	}
	d.mu.Lock()
	v.reset()
	d.mu.Unlock()
}

// ActiveVoices returns the number of acquired voices.
func (d *DSP) ActiveVoices() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, v := range d.voices {
		if v.acquired {
			n++
		}
	}
	return n
}

// RegisterAppFrameCallback installs fn to run at the start of every frame,
// on the engine's goroutine. fn must not block.
func (d *DSP) RegisterAppFrameCallback(fn func()) { d.cb.Store(&fn) }

// DeregisterAppFrameCallback removes the frame callback.
func (d *DSP) DeregisterAppFrameCallback() { d.cb.Store(nil) }

// Step renders one frame: it runs the frame callback, then mixes every
// playing voice into the stereo output.
func (d *DSP) Step() {
	d.stepMu.Lock()
	defer d.stepMu.Unlock()
	if !d.IsInit() {
		return
	}
	if cb := d.cb.Load(); cb != nil {
		(*cb)()
	}
	for i := range d.mixL {
		d.mixL[i], d.mixR[i] = 0, 0
	}
	for _, v := range d.voices {
		if v.State() == VoicePlaying {
			d.render(v)
		}
	}
	d.ringMu.Lock()
	for i := range d.mixL {
		d.pushStereo(clamp16(d.mixL[i]), clamp16(d.mixR[i]))
	}
	d.ringMu.Unlock()
	d.frames.Add(1)
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// Start runs Step at real time until ctx is done or Stop is called.
func (d *DSP) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.stop = cancel
	d.done = make(chan struct{})
	period := time.Duration(d.cfg.SamplesPerFrame) * time.Second / time.Duration(d.cfg.SampleRate)
	go func(done chan struct{}) {
		defer close(done)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				d.Step()
			}
		}
	}(d.done)
}

// Stop halts the clock started by Start.
func (d *DSP) Stop() {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

// pushStereo pushes a stereo frame to the ring buffers. ringMu must be held.
func (d *DSP) pushStereo(l, r int16) {
	next := (d.sHead + 1) & (len(d.sL) - 1)
	if next == d.sTail {
		d.drops++
		return // drop if full
	}
	d.sL[d.sHead] = l
	d.sR[d.sHead] = r
	d.sHead = next
}

// PullStereo returns up to max stereo frames as an interleaved int16 slice [L0,R0,L1,R1,...].
func (d *DSP) PullStereo(max int) []int16 {
	d.ringMu.Lock()
	defer d.ringMu.Unlock()
	count := d.available()
	if count > max {
		count = max
	}
	if count <= 0 {
		return nil
	}
	out := make([]int16, 0, count*2)
	for i := 0; i < count; i++ {
		out = append(out, d.sL[d.sTail], d.sR[d.sTail])
		d.sTail = (d.sTail + 1) & (len(d.sL) - 1)
	}
	return out
}

// StereoAvailable returns the number of stereo frames currently buffered.
func (d *DSP) StereoAvailable() int {
	d.ringMu.Lock()
	defer d.ringMu.Unlock()
	return d.available()
}

func (d *DSP) available() int {
	if d.sHead >= d.sTail {
		return d.sHead - d.sTail
	}
	return (len(d.sL) - d.sTail) + d.sHead
}

// Dropped returns the number of frames lost to a full output ring.
func (d *DSP) Dropped() int {
	d.ringMu.Lock()
	defer d.ringMu.Unlock()
	return d.drops
}
