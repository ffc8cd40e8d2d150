// Package sink carries the DSP output off the console: to the host sound
// card or into a WAV file. Both take 16-bit little-endian stereo frames,
// which is what dsp.Stream produces.
package sink

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Channels is the channel count of every sink.
const Channels = 2

// Player plays a stream on the host sound card without a window.
type Player struct {
	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
}

// NewPlayer opens the sound card at rate and prepares r for playback.
// Only one player can exist per process.
func NewPlayer(r io.Reader, rate int, buffer time.Duration) (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("sink: audio context: %w", err)
	}
	<-ready
	return &Player{ctx: ctx, player: ctx.NewPlayer(r)}, nil
}

// Play starts or resumes playback.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Play()
	}
}

// Pause stops playback, keeping the buffered audio.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.Pause()
	}
}

// SetVolume sets the output volume, 0 to 1.
func (p *Player) SetVolume(v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player != nil {
		p.player.SetVolume(v)
	}
}

// Close stops playback. The sound card stays open for the process.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.player == nil {
		return nil
	}
	err := p.player.Close()
	p.player = nil
	return err
}
