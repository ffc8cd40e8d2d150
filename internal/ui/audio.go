package ui

import (
	"fmt"
	"time"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/dsp"
	ebaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// startAudio plays the DSP output through the host. The DSP must be
// clocked in real time for the stream to keep up.
func (a *App) startAudio() error {
	d := a.sys.DSP
	a.stream = dsp.NewStream(d)
	a.stream.Mono = a.cfg.AudioMono
	a.stream.LowLatency = a.cfg.AudioLowLatency
	ctx := ebaudio.CurrentContext()
	if ctx == nil {
		ctx = ebaudio.NewContext(d.InputSamplesPerSec())
	}
	p, err := ctx.NewPlayer(a.stream)
	if err != nil {
		return fmt.Errorf("ui: audio player: %w", err)
	}
	a.audioPlayer = p
	a.applyPlayerBufferSize()
	p.Play()
	return nil
}

// applyPlayerBufferSize sets the audio player's internal buffer:
// - ~20ms in low-latency mode
// - the configured size otherwise
func (a *App) applyPlayerBufferSize() {
	if a.audioPlayer == nil {
		return
	}
	bufMs := a.cfg.AudioBufferMs
	if a.cfg.AudioLowLatency {
		bufMs = 20
	}
	a.audioPlayer.SetBufferSize(time.Duration(bufMs) * time.Millisecond)
}

func (a *App) setMuted(m bool) {
	a.muted = m
	if a.stream != nil {
		a.stream.SetMuted(m)
	}
}

func (a *App) stopAudio() {
	if a.audioPlayer != nil {
		a.audioPlayer.Close()
		a.audioPlayer = nil
	}
}
