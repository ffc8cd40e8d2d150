package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWAV is returned when a file is not a PCM WAV file.
var ErrNotWAV = errors.New("not a valid wav file")

// WAV records 16-bit stereo frames into a WAV file. It is an io.Writer so
// a stream can be copied into it; partial frames are held until completed.
type WAV struct {
	enc     *wav.Encoder
	buf     *audio.IntBuffer
	partial []byte
	frames  int
}

// NewWAV starts a 16-bit stereo WAV file at rate on w. The header is
// finished by Close.
func NewWAV(w io.WriteSeeker, rate int) *WAV {
	return &WAV{
		enc: wav.NewEncoder(w, rate, 16, Channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: Channels, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}
}

func (w *WAV) Write(p []byte) (int, error) {
	n := len(p)
	if len(w.partial) > 0 {
		p = append(w.partial, p...)
		w.partial = nil
	}
	whole := (len(p) / 2) &^ (Channels - 1) // whole frames, in samples
	if rest := p[whole*2:]; len(rest) > 0 {
		w.partial = append([]byte(nil), rest...)
	}
	if whole == 0 {
		return n, nil
	}
	data := w.buf.Data[:0]
	for i := 0; i < whole; i++ {
		data = append(data, int(int16(binary.LittleEndian.Uint16(p[i*2:]))))
	}
	w.buf.Data = data
	if err := w.enc.Write(w.buf); err != nil {
		return 0, fmt.Errorf("sink: wav: %w", err)
	}
	w.frames += whole / Channels
	return n, nil
}

// Frames returns the number of stereo frames written.
func (w *WAV) Frames() int { return w.frames }

// Close finishes the file. Trailing partial frames are dropped.
func (w *WAV) Close() error {
	if err := w.enc.Close(); err != nil {
		return fmt.Errorf("sink: wav: %w", err)
	}
	return nil
}

// Capture copies frames stereo frames from r into a new WAV file on w.
func Capture(w io.WriteSeeker, r io.Reader, rate, frames int) error {
	out := NewWAV(w, rate)
	if _, err := io.CopyN(out, r, int64(frames*Channels*2)); err != nil {
		return fmt.Errorf("sink: capture: %w", err)
	}
	return out.Close()
}

// Clip is decoded PCM audio.
type Clip struct {
	Rate     int
	Channels int
	// Samples are interleaved signed 16-bit samples.
	Samples []int16
}

// Frames returns the length of the clip in sample frames.
func (c Clip) Frames() int {
	if c.Channels == 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// ReadWAV decodes a PCM WAV file, scaling any bit depth to 16 bits.
func ReadWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, ErrNotWAV
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("sink: wav: %w", err)
	}
	shift := int(dec.BitDepth) - 16
	c := Clip{Rate: int(dec.SampleRate), Channels: int(dec.NumChans), Samples: make([]int16, len(buf.Data))}
	for i, v := range buf.Data {
		switch {
		case dec.BitDepth == 8:
			v = (v - 128) << 8
		case shift > 0:
			v >>= shift
		}
		c.Samples[i] = int16(v)
	}
	return c, nil
}
