// Package audio streams application samples to the DSP through a ring of
// mix buffers in shared memory. The producer fills the rendering slot while
// the DSP plays another; a frame callback on the DSP goroutine follows the
// hardware cursor and reprograms each voice's loop and end offsets so that
// playback moves on to the next slot only once it has been rendered.
package audio

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/dsp"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
)

var (
	// ErrInvalidSpec is returned for a spec the engine cannot play.
	ErrInvalidSpec = errors.New("invalid audio spec")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("audio device closed")
)

// MaxChannels is the largest channel count the engine plays.
const MaxChannels = 2

// Format is a sample format tag: the low byte is the bit size, bit 15 marks
// signed samples and bit 12 big-endian ones.
type Format uint16

const (
	U8     Format = 0x0008
	S8     Format = 0x8008
	S16LSB Format = 0x8010
	S16MSB Format = 0x9010
)

// BitSize returns the sample width in bits.
func (f Format) BitSize() int { return int(f & 0xFF) }

func (f Format) String() string {
	switch f {
	case U8:
		return "U8"
	case S8:
		return "S8"
	case S16LSB:
		return "S16LSB"
	case S16MSB:
		return "S16MSB"
	}
	return fmt.Sprintf("Format(%#04x)", uint16(f))
}

// Spec is the stream description. Open rewrites it to what the engine
// actually plays; callers must re-read it.
type Spec struct {
	Freq     int
	Format   Format
	Channels int
	Samples  int // sample frames per slot
	Size     int // bytes per slot
}

func (s *Spec) calculate() {
	s.Size = s.Format.BitSize() / 8 * s.Channels * s.Samples
}

// Config holds engine tunables.
type Config struct {
	NumBuffers    int           // mix buffer slots
	EndTrimBytes  int           // subtracted from each slot end when programming end offsets
	SleepQuantum  time.Duration // WaitDevice poll interval
	ProbeAttempts int           // allocations tried for a DMA-reachable mix buffer
	Align         int
	Logger        *log.Logger
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.NumBuffers < 2 {
		c.NumBuffers = 2
	}
	if c.EndTrimBytes == 0 {
		c.EndTrimBytes = 2
	}
	if c.SleepQuantum <= 0 {
		c.SleepQuantum = 3 * time.Millisecond
	}
	if c.ProbeAttempts <= 0 {
		c.ProbeAttempts = 32
	}
	if c.Align <= 0 {
		c.Align = 0x40
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Mix tables: mono feeds both TV/DRC front channels from one voice, stereo
// routes voice 0 left and voice 1 right.
var (
	monoMix   = [1]dsp.Mix{{dsp.UnityVolume, dsp.UnityVolume}}
	stereoMix = [2]dsp.Mix{{dsp.UnityVolume, 0}, {0, dsp.UnityVolume}}
)

// Engine is an open audio stream.
type Engine struct {
	cfg  Config
	dsp  *dsp.DSP
	mem  *mem.Arena
	spec Spec
	bps  int

	mu      sync.Mutex // producer calls against Close
	buf     mem.Block
	slots   []mem.Block
	deintv  []byte
	voices  []*dsp.Voice
	data    []uint32 // per voice data address
	enabled atomic.Bool

	playing   atomic.Int32 // published by the frame callback
	rendering atomic.Int32 // written by the producer only
	desyncs   atomic.Uint64
	reported  uint64
}

// Open validates spec, adapts it to the hardware and starts the voices.
// Nothing is allocated when spec is rejected.
func Open(d *dsp.DSP, m *mem.Arena, spec Spec, cfg Config) (*Engine, error) {
	cfg.Defaults()
	if spec.Freq <= 0 {
		return nil, fmt.Errorf("audio: frequency %d: %w", spec.Freq, ErrInvalidSpec)
	}
	if !d.IsInit() {
		d.Init()
	}

	if spec.Channels < 1 {
		spec.Channels = 1
	}
	if spec.Channels > MaxChannels {
		spec.Channels = MaxChannels
	}
	if spec.Format.BitSize() == 8 && d.SupportsPCM8() {
		spec.Format = S8
	} else {
		spec.Format = S16MSB
	}
	q := d.InputSamplesPerFrame()
	if spec.Samples < q {
		spec.Samples = q
	} else if r := spec.Samples % q; r != 0 {
		spec.Samples += q - r
	}
	spec.calculate()

	e := &Engine{cfg: cfg, dsp: d, mem: m, spec: spec, bps: spec.Format.BitSize() / 8}
	if err := e.allocBuffers(); err != nil {
		return nil, err
	}
	if err := e.startVoices(); err != nil {
		e.release()
		return nil, err
	}
	e.enabled.Store(true)
	d.RegisterAppFrameCallback(e.frame)
	return e, nil
}

// allocBuffers finds a mix buffer the DSP can address in one DMA window.
func (e *Engine) allocBuffers() error {
	total := e.spec.Size * e.cfg.NumBuffers
	var rejected []mem.Block
	var found bool
	for i := 0; i < e.cfg.ProbeAttempts; i++ {
		b, err := e.mem.Alloc(total, e.cfg.Align)
		if err != nil {
			break
		}
		if mem.FitsWindow(b.Addr, total, e.dsp.DMAWindow()) {
			e.buf, found = b, true
			break
		}
		rejected = append(rejected, b)
	}
	for _, b := range rejected {
		e.mem.Free(b)
	}
	if !found {
		e.cfg.Logger.Printf("audio: couldn't allocate mix buffer (%d bytes, %d probes)", total, len(rejected))
		return fmt.Errorf("audio: mix buffer of %d bytes: %w", total, mem.ErrOutOfMemory)
	}

	clear(e.buf.Data)
	e.mem.StoreRange(e.buf.Addr, total)
	e.slots = make([]mem.Block, e.cfg.NumBuffers)
	for i := range e.slots {
		off := e.spec.Size * i
		e.slots[i] = mem.Block{Addr: e.buf.Addr + uint32(off), Data: e.buf.Data[off : off+e.spec.Size]}
	}
	e.deintv = make([]byte, e.spec.Size)
	return nil
}

func (e *Engine) startVoices() error {
	format := dsp.PCM16
	if e.bps == 1 {
		format = dsp.PCM8
	}
	ratio := float64(e.spec.Freq) / float64(e.dsp.InputSamplesPerSec())
	e.playing.Store(0)
	e.rendering.Store(1)
	for i := 0; i < e.spec.Channels; i++ {
		v, err := e.dsp.AcquireVoice(31)
		if err != nil {
			e.cfg.Logger.Printf("audio: couldn't get voice %d: %v", i, err)
			return fmt.Errorf("audio: voice %d: %w", i, mem.ErrOutOfMemory)
		}
		e.voices = append(e.voices, v)
		v.SetVolume(dsp.UnityVolume)
		mix := monoMix[0]
		if e.spec.Channels == 2 {
			mix = stereoMix[i]
		}
		v.SetDeviceMix(dsp.DRC, mix)
		v.SetDeviceMix(dsp.TV, mix)
		v.SetSrcRatio(ratio)

		data := e.slots[0].Addr + uint32(e.spec.Samples*e.bps*i)
		e.data = append(e.data, data)
		v.SetOffsets(dsp.Offsets{
			Format:  format,
			Looping: true,
			Data:    data,
			End:     uint32(e.spec.Samples),
		})
		v.SetState(dsp.VoicePlaying)
	}
	return nil
}

func (e *Engine) next(id int32) int32 { return (id + 1) % int32(e.cfg.NumBuffers) }

// frame runs on the DSP goroutine before every audio frame.
func (e *Engine) frame() {
	if len(e.voices) == 0 {
		return
	}
	cur := e.voices[0].Offsets().Current
	samples := uint32(e.spec.Samples)
	playing := int32(-1)
	for i, s := range e.slots {
		start := (s.Addr - e.data[0]) / uint32(e.bps)
		if cur >= start && cur <= start+samples {
			playing = int32(i)
			break
		}
	}
	if playing < 0 {
		e.desyncs.Add(1)
		playing = 0
	}
	e.playing.Store(playing)

	rendering := e.rendering.Load()
	chanBytes := uint32(e.spec.Samples * e.bps)
	for ch, v := range e.voices {
		base := e.data[ch]
		end := e.slots[playing].Addr + chanBytes*uint32(ch+1) - uint32(e.cfg.EndTrimBytes)
		v.SetEndOffset((end - base) / uint32(e.bps))

		loopSlot := playing
		if rendering != e.next(playing) {
			loopSlot = e.next(playing)
		}
		loop := e.slots[loopSlot].Addr + chanBytes*uint32(ch)
		v.SetLoopOffset((loop - base) / uint32(e.bps))
	}
}

// Spec returns the effective stream description.
func (e *Engine) Spec() Spec { return e.spec }

// DeviceBuf returns the slot the producer fills next, as interleaved
// samples in the spec's format. It is nil once the engine is closed.
func (e *Engine) DeviceBuf() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.slots == nil {
		return nil
	}
	return e.slots[e.rendering.Load()].Data
}

// PlayDevice hands the rendering slot to the DSP and moves on to the next.
func (e *Engine) PlayDevice() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.enabled.Load() || e.slots == nil {
		return ErrClosed
	}
	r := e.rendering.Load()
	buf := e.slots[r]
	ch := e.spec.Channels
	n := e.spec.Samples
	bps := e.bps
	for i := 0; i < n; i++ {
		for c := 0; c < ch; c++ {
			copy(e.deintv[(n*c+i)*bps:(n*c+i+1)*bps], buf.Data[(i*ch+c)*bps:(i*ch+c+1)*bps])
		}
	}
	copy(buf.Data, e.deintv)
	e.mem.StoreRange(buf.Addr, buf.Size())
	e.rendering.Store(e.next(r))

	if d := e.desyncs.Load(); d != e.reported {
		e.cfg.Logger.Printf("audio: DSP cursor outside the mix buffers, %d desync(s) clamped to slot 0", d-e.reported)
		e.reported = d
	}
	return nil
}

// WaitDevice blocks until the slot to render is no longer the one playing,
// or the engine is closed.
func (e *Engine) WaitDevice() {
	for e.enabled.Load() && e.rendering.Load() == e.playing.Load() {
		time.Sleep(e.cfg.SleepQuantum)
	}
}

// Playing returns the slot the DSP is playing.
func (e *Engine) Playing() int { return int(e.playing.Load()) }

// Rendering returns the slot the producer fills.
func (e *Engine) Rendering() int { return int(e.rendering.Load()) }

// Desyncs returns how often the DSP cursor was found outside every slot.
func (e *Engine) Desyncs() uint64 { return e.desyncs.Load() }

// Voices returns the voices the engine plays through, one per channel.
func (e *Engine) Voices() []*dsp.Voice { return e.voices }

// MixBuffer returns the whole mix buffer block.
func (e *Engine) MixBuffer() mem.Block { return e.buf }

// Close stops playback and releases every resource. It is safe to call
// more than once.
func (e *Engine) Close() {
	if !e.enabled.Swap(false) {
		return
	}
	e.dsp.DeregisterAppFrameCallback()
	e.dsp.Quit()
	e.mu.Lock()
	e.release()
	e.mu.Unlock()
}

func (e *Engine) release() {
	for _, v := range e.voices {
		e.dsp.FreeVoice(v)
	}
	e.voices = nil
	e.mem.Free(e.buf)
	e.buf = mem.Block{}
	e.slots = nil
	e.deintv = nil
}
