package dsp

import (
	"sync/atomic"
)

// SampleFormat is the PCM layout a voice reads.
type SampleFormat uint8

const (
	PCM16 SampleFormat = iota // signed 16-bit big-endian
	PCM8                      // signed 8-bit
)

// BytesPerSample returns the storage size of one sample.
func (f SampleFormat) BytesPerSample() int {
	if f == PCM8 {
		return 1
	}
	return 2
}

// Device selects an output device for a voice's mix.
type Device uint8

const (
	TV Device = iota
	DRC
	numDevices
)

// VoiceState is the playback state of a voice.
type VoiceState uint32

const (
	VoiceStopped VoiceState = iota
	VoicePlaying
)

// Mix holds one volume per device channel. Each channel has a volume and a
// delta in hardware; the delta is always zero here.
type Mix [MaxDeviceChannels]uint16

// Offsets describes a voice's sample stream. Loop, End and Current are
// sample offsets relative to Data.
type Offsets struct {
	Format  SampleFormat
	Looping bool
	Data    uint32
	Loop    uint32
	End     uint32
	Current uint32
}

// Voice is one hardware voice. Format, Data and the mix are programmed
// before playback starts; the loop, end and current offsets may be changed
// from the frame callback while the voice plays.
type Voice struct {
	id       int
	acquired bool
	priority int

	format  SampleFormat
	looping bool
	data    uint32
	volume  uint16
	ratio   float64
	mix     [numDevices]Mix

	state   atomic.Uint32
	loop    atomic.Uint32
	end     atomic.Uint32
	current atomic.Uint32
	loops   atomic.Uint64

	frac float64 // resampler phase, owned by the frame step
}

func (v *Voice) reset() {
	v.acquired = false
	v.priority = 0
	v.format = PCM16
	v.looping = false
	v.data = 0
	v.volume = 0
	v.ratio = 1
	v.mix = [numDevices]Mix{}
	v.state.Store(uint32(VoiceStopped))
	v.loop.Store(0)
	v.end.Store(0)
	v.current.Store(0)
	v.loops.Store(0)
	v.frac = 0
}

// ID returns the voice's index in the pool.
func (v *Voice) ID() int { return v.id }

// Priority returns the priority the voice was acquired with.
func (v *Voice) Priority() int { return v.priority }

// SetVolume sets the voice volume; UnityVolume is 1.0.
func (v *Voice) SetVolume(vol uint16) { v.volume = vol }

// SetDeviceMix sets the per-channel volumes for one device.
func (v *Voice) SetDeviceMix(d Device, m Mix) {
	if d < numDevices {
		v.mix[d] = m
	}
}

// DeviceMix returns the mix programmed for a device.
func (v *Voice) DeviceMix(d Device) Mix {
	if d < numDevices {
		return v.mix[d]
	}
	return Mix{}
}

// SetSrcRatio sets the resampling ratio (input rate / output rate).
func (v *Voice) SetSrcRatio(r float64) {
	if r <= 0 {
		r = 1
	}
	v.ratio = r
}

// SrcRatio returns the resampling ratio.
func (v *Voice) SrcRatio() float64 { return v.ratio }

// SetOffsets programs the whole stream description.
func (v *Voice) SetOffsets(o Offsets) {
	v.format = o.Format
	v.looping = o.Looping
	v.data = o.Data
	v.loop.Store(o.Loop)
	v.end.Store(o.End)
	v.current.Store(o.Current)
	v.frac = 0
}

// Offsets returns the stream description with the live current offset.
func (v *Voice) Offsets() Offsets {
	return Offsets{
		Format:  v.format,
		Looping: v.looping,
		Data:    v.data,
		Loop:    v.loop.Load(),
		End:     v.end.Load(),
		Current: v.current.Load(),
	}
}

// SetEndOffset moves the last sample played before looping.
func (v *Voice) SetEndOffset(off uint32) { v.end.Store(off) }

// SetLoopOffset moves the sample playback resumes at after End.
func (v *Voice) SetLoopOffset(off uint32) { v.loop.Store(off) }

// SetCurrentOffset repositions playback.
func (v *Voice) SetCurrentOffset(off uint32) { v.current.Store(off) }

// SetState starts or stops the voice.
func (v *Voice) SetState(s VoiceState) { v.state.Store(uint32(s)) }

// State returns the playback state.
func (v *Voice) State() VoiceState { return VoiceState(v.state.Load()) }

// Loops returns how often playback wrapped from End to Loop.
func (v *Voice) Loops() uint64 { return v.loops.Load() }

// render mixes one frame of v into the accumulators.
func (d *DSP) render(v *Voice) {
	cur := v.current.Load()
	end := v.end.Load()
	loop := v.loop.Load()
	bps := v.format.BytesPerSample()
	gl := int64(v.volume) * int64(v.mix[TV][0])
	gr := int64(v.volume) * int64(v.mix[TV][1])

	for i := range d.mixL {
		s := d.sample(v.data+cur*uint32(bps), v.format)
		d.mixL[i] += int32(int64(s) * gl >> 30)
		d.mixR[i] += int32(int64(s) * gr >> 30)

		v.frac += v.ratio
		for v.frac >= 1 {
			v.frac--
			if cur != end {
				cur++
				continue
			}
			if !v.looping {
				v.current.Store(cur)
				v.state.Store(uint32(VoiceStopped))
				return
			}
			cur = loop
			v.loops.Add(1)
			// the callback may only reprogram the next wrap between frames
			end = v.end.Load()
			loop = v.loop.Load()
		}
	}
	v.current.Store(cur)
}

func (d *DSP) sample(addr uint32, f SampleFormat) int16 {
	if f == PCM8 {
		if d.mem.ReadDevice(addr, d.smp[:1]) < 1 {
			return 0
		}
		return int16(int8(d.smp[0])) << 8
	}
	if d.mem.ReadDevice(addr, d.smp[:2]) < 2 {
		return 0
	}
	return int16(uint16(d.smp[0])<<8 | uint16(d.smp[1]))
}
