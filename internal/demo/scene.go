// Package demo is a small program for the backend: an animated 2D scene
// drawn through the renderer and a tone (or a looped clip) streamed through
// the audio engine. Everything is derived from the frame and sample
// counters, so a headless run is reproducible.
package demo

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/audio"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/render"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/sink"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/system"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// Config selects what the scene plays.
type Config struct {
	ToneHz float64    // 0 means 440
	Volume float64    // 0 means 0.25
	Clip   *sink.Clip // played in a loop instead of the tone when set
	Mute   bool       // no audio stream at all
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.ToneHz <= 0 {
		c.ToneHz = 440
	}
	if c.Volume <= 0 {
		c.Volume = 0.25
	}
}

// Scene owns the renderer, its textures and the audio stream.
type Scene struct {
	cfg  Config
	sys  *system.System
	r    *render.Renderer
	w, h int

	checker *surface.Texture
	glyph   *surface.Texture

	eng    *audio.Engine
	sample int // next sample frame of the tone or clip

	frame int
}

// New builds the scene for the current video mode of sys.
func New(sys *system.System, cfg Config) (*Scene, error) {
	cfg.Defaults()
	m := sys.Video.Mode()
	s := &Scene{cfg: cfg, sys: sys, w: m.FBWidth, h: m.EFBHeight}
	s.r = sys.CreateRenderer(s.w, s.h)

	var err error
	if s.checker, err = s.checkerTexture(64, 64); err != nil {
		return nil, err
	}
	if s.glyph, err = s.glyphTexture(); err != nil {
		s.r.DestroyTexture(s.checker)
		return nil, err
	}
	if !cfg.Mute {
		if err := s.openAudio(); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// checkerTexture is an opaque RGB565 checkerboard.
func (s *Scene) checkerTexture(w, h int) (*surface.Texture, error) {
	tex, err := s.r.CreateTexture(w, h, texconv.RGB565Px)
	if err != nil {
		return nil, fmt.Errorf("demo: checker: %w", err)
	}
	pix := make([]byte, w*h*2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := texconv.Pack565(0x20, 0x20, 0x60)
			if (x/8+y/8)%2 == 0 {
				v = texconv.Pack565(0xF0, 0xC0, 0x20)
			}
			binary.BigEndian.PutUint16(pix[(y*w+x)*2:], v)
		}
	}
	if err := s.r.UpdateTexture(tex, surface.Rect{}, pix, w*2, texconv.RGB565Px); err != nil {
		s.r.DestroyTexture(tex)
		return nil, fmt.Errorf("demo: checker: %w", err)
	}
	tex.SetScaleMode(gx.Linear)
	return tex, nil
}

// glyphTexture is a translucent disc, blended over the scene.
func (s *Scene) glyphTexture() (*surface.Texture, error) {
	const n = 32
	tex, err := s.r.CreateTexture(n, n, texconv.RGBA8888)
	if err != nil {
		return nil, fmt.Errorf("demo: glyph: %w", err)
	}
	pix := make([]byte, n*n*4)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			dx, dy := float64(x)-n/2+0.5, float64(y)-n/2+0.5
			if dx*dx+dy*dy > n*n/4 {
				continue
			}
			o := (y*n + x) * 4
			pix[o], pix[o+1], pix[o+2], pix[o+3] = 0xFF, 0xFF, 0xFF, 0xA0
		}
	}
	if err := s.r.UpdateTexture(tex, surface.Rect{}, pix, n*4, texconv.RGBA8888); err != nil {
		s.r.DestroyTexture(tex)
		return nil, fmt.Errorf("demo: glyph: %w", err)
	}
	return tex, nil
}

func (s *Scene) openAudio() error {
	spec := audio.Spec{Freq: 48000, Format: audio.S16LSB, Channels: 2, Samples: 512}
	if c := s.cfg.Clip; c != nil {
		spec.Freq, spec.Channels = c.Rate, c.Channels
	}
	eng, err := s.sys.OpenAudio(spec)
	if err != nil {
		return fmt.Errorf("demo: %w", err)
	}
	s.eng = eng
	return nil
}

// Audio returns the audio stream, or nil when muted.
func (s *Scene) Audio() *audio.Engine { return s.eng }

// Renderer returns the scene's renderer.
func (s *Scene) Renderer() *render.Renderer { return s.r }

// Frames returns the number of frames presented.
func (s *Scene) Frames() int { return s.frame }

// Frame queues, runs and presents one frame.
func (s *Scene) Frame() error {
	r := s.r
	f := float32(s.frame)
	w, h := float32(s.w), float32(s.h)

	r.QueueSetViewport(surface.Rect{W: s.w, H: s.h})
	r.QueueClear(color.RGBA{0x10, 0x18, 0x30, 0xFF})

	// Bouncing bars.
	r.QueueSetDrawColor(color.RGBA{0x30, 0xA0, 0x50, 0xFF})
	var bars []render.FRect
	for i := 0; i < 6; i++ {
		y := h/2 + float32(math.Sin(float64(f/20+float32(i))))*h/4
		bars = append(bars, render.FRect{X: float32(i) * w / 6, Y: y, W: w/6 - 4, H: 12})
	}
	if err := r.QueueFillRects(bars, render.BlendNone); err != nil {
		return err
	}

	// Spinning textured quad.
	cx, cy := w/2, h/2
	side := min(w, h) / 3
	a := float64(f) / 60
	xy := make([]float32, 0, 8)
	for k := 0; k < 4; k++ {
		ang := a + float64(k)*math.Pi/2 + math.Pi/4
		xy = append(xy, cx+side*float32(math.Cos(ang)), cy+side*float32(math.Sin(ang)))
	}
	white := color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	if err := r.QueueGeometry(s.checker, render.BlendNone, render.Mesh{
		XY:          xy,
		Colors:      []color.RGBA{white, white, white, white},
		UV:          []float32{0, 0, 1, 0, 1, 1, 0, 1},
		NumVertices: 4,
		Indices:     []byte{0, 1, 2, 0, 2, 3},
		IndexSize:   1,
	}); err != nil {
		return err
	}

	// A disc orbiting the quad, modulated by a changing colour.
	ox := cx + float32(math.Cos(a*2))*side*1.3 - 16
	oy := cy + float32(math.Sin(a*2))*side*1.3 - 16
	tint := color.RGBA{0xFF, uint8(s.frame * 3), 0x80, 0xFF}
	if err := r.QueueGeometry(s.glyph, render.BlendBlend, render.Mesh{
		XY:          []float32{ox, oy, ox + 32, oy, ox + 32, oy + 32, ox, oy + 32},
		Colors:      []color.RGBA{tint, tint, tint, tint},
		UV:          []float32{0, 0, 1, 0, 1, 1, 0, 1},
		NumVertices: 4,
		Indices:     []byte{0, 1, 2, 0, 2, 3},
		IndexSize:   1,
	}); err != nil {
		return err
	}

	// Frame outline, clipped to a border inset.
	r.QueueSetClipRect(surface.Rect{X: 4, Y: 4, W: s.w - 8, H: s.h - 8}, true)
	r.QueueSetDrawColor(color.RGBA{0xE0, 0xE0, 0xE0, 0xFF})
	outline := []render.Point{{X: 8, Y: 8}, {X: w - 9, Y: 8}, {X: w - 9, Y: h - 9}, {X: 8, Y: h - 9}, {X: 8, Y: 8}}
	if err := r.QueueDrawLines(outline, render.BlendNone); err != nil {
		return err
	}
	stars := make([]render.Point, 0, 16)
	for i := 0; i < 16; i++ {
		stars = append(stars, render.Point{X: float32((i*97 + s.frame) % s.w), Y: float32((i * 53) % s.h)})
	}
	if err := r.QueueDrawPoints(stars, render.BlendNone); err != nil {
		return err
	}
	r.QueueSetClipRect(surface.Rect{}, false)

	if err := r.RunCommandQueue(); err != nil {
		return err
	}
	if err := r.Present(); err != nil {
		return err
	}
	s.frame++
	return nil
}

// FillAudio renders the next slot of sound into the engine and hands it to
// the DSP.
func (s *Scene) FillAudio() error {
	e := s.eng
	if e == nil {
		return nil
	}
	spec := e.Spec()
	buf := e.DeviceBuf()
	if buf == nil {
		return audio.ErrClosed
	}
	bps := spec.Format.BitSize() / 8
	for i := 0; i < spec.Samples; i++ {
		for c := 0; c < spec.Channels; c++ {
			v := s.sampleAt(s.sample+i, c, spec)
			o := (i*spec.Channels + c) * bps
			if bps == 1 {
				buf[o] = byte(int8(v >> 8))
				continue
			}
			binary.BigEndian.PutUint16(buf[o:], uint16(v))
		}
	}
	s.sample += spec.Samples
	return e.PlayDevice()
}

func (s *Scene) sampleAt(n, ch int, spec audio.Spec) int16 {
	if c := s.cfg.Clip; c != nil && c.Frames() > 0 {
		i := n % c.Frames()
		return c.Samples[i*c.Channels+min(ch, c.Channels-1)]
	}
	phase := 2 * math.Pi * s.cfg.ToneHz * float64(n) / float64(spec.Freq)
	if ch == 1 {
		phase *= 1.5 // a fifth above on the right
	}
	return int16(math.Sin(phase) * s.cfg.Volume * math.MaxInt16)
}

// Close releases the audio stream and the textures.
func (s *Scene) Close() {
	s.sys.CloseAudio()
	s.eng = nil
	if s.checker != nil {
		s.r.DestroyTexture(s.checker)
		s.checker = nil
	}
	if s.glyph != nil {
		s.r.DestroyTexture(s.glyph)
		s.glyph = nil
	}
}
