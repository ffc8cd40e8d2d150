// Package system ties the hardware models and the backend drivers into one
// console. Every device is a field of System; nothing is global.
package system

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/audio"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/dsp"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/osk"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/render"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/vi"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/video"
)

// VideoDriver is the display side of the backend.
type VideoDriver interface {
	Modes() []vi.Mode
	Mode() vi.Mode
	SetMode(m vi.Mode) error
	SetViewport(x, y, w, h int, honourPan bool)
	Pan() int
	Flip(vsync bool) error
	Close()
}

// RenderDriver is the accelerated 2D renderer of a window.
type RenderDriver interface {
	Info() render.Info
	CreateTexture(w, h int, pf texconv.PixelFormat) (*surface.Texture, error)
	UpdateTexture(t *surface.Texture, r surface.Rect, pixels []byte, pitch int, pf texconv.PixelFormat) error
	DestroyTexture(t *surface.Texture)
	RunCommandQueue() error
	Present() error
}

// AudioDriver is an open audio stream.
type AudioDriver interface {
	Spec() audio.Spec
	DeviceBuf() []byte
	PlayDevice() error
	WaitDevice()
	Close()
}

var (
	_ VideoDriver  = (*video.Presenter)(nil)
	_ RenderDriver = (*render.Renderer)(nil)
	_ AudioDriver  = (*audio.Engine)(nil)
)

// Controllers reports the state of the attached controllers each poll.
type Controllers interface {
	Pads() []input.PadState
	Wiimotes() []input.WiimoteState
}

// MaxControllers is the number of controller ports of each kind.
const MaxControllers = 4

// Config describes the console and carries every component's tunables.
type Config struct {
	TV       vi.TVFormat
	Wii      bool
	MemBase  uint32
	MemBytes int

	GX      gx.Config
	Surface surface.Config
	Video   video.Config
	Render  render.Config
	DSP     dsp.Config
	Audio   audio.Config
	Logger  *log.Logger
}

// Defaults fills missing fields and hands the logger to every component
// that has none.
func (c *Config) Defaults() {
	if c.MemBase == 0 {
		c.MemBase = 0x80000000
	}
	if c.MemBytes <= 0 {
		c.MemBytes = 24 << 20
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	for _, l := range []**log.Logger{&c.GX.Logger, &c.Surface.Logger, &c.Video.Logger, &c.Audio.Logger} {
		if *l == nil {
			*l = c.Logger
		}
	}
}

// ModeError reports a screen size or depth SetVideoMode cannot provide.
type ModeError struct {
	W, H, BPP int
	depth     bool
}

func (e *ModeError) Error() string {
	if e.depth {
		return fmt.Sprintf("Resolution (%d bpp) is unsupported (8/16/24/32 bpp only).", e.BPP)
	}
	return fmt.Sprintf("Display mode (%dx%d) is unsupported.", e.W, e.H)
}

func (e *ModeError) Unwrap() error { return video.ErrUnsupportedMode }

// System is one console: shared memory, the GPU, video and audio hardware
// and the drivers on top of them.
type System struct {
	cfg Config

	Mem   *mem.Arena
	GX    *gx.GX
	VI    *vi.VI
	DSP   *dsp.DSP
	Store *surface.Store
	Video *video.Presenter
	OSK   *osk.Manager

	audio    *audio.Engine
	renderer *render.Renderer

	pads     []*input.Pad
	wiimotes []*input.Wiimote
	pointers []*input.Pointer

	mu     sync.Mutex
	events []input.Event

	reset    atomic.Bool
	powerOff atomic.Bool
}

// New builds the console and sets the preferred video mode of its TV
// format.
func New(cfg Config) (*System, error) {
	cfg.Defaults()
	s := &System{cfg: cfg}
	s.Mem = mem.New(cfg.MemBase, cfg.MemBytes)
	s.GX = gx.New(s.Mem, cfg.GX)
	s.VI = vi.New(s.Mem, vi.Config{TV: cfg.TV})
	s.DSP = dsp.New(s.Mem, cfg.DSP)
	s.Store = surface.New(s.GX, s.Mem, cfg.Surface)
	s.OSK = osk.NewManager(s.push)
	s.Video = video.New(s.GX, s.VI, s.Mem, s.Store, s.OSK, cfg.Video)

	// On the Wii the remotes come first and the GameCube ports follow.
	next := 0
	if cfg.Wii {
		for i := 0; i < MaxControllers; i++ {
			s.wiimotes = append(s.wiimotes, input.NewWiimote(next))
			s.pointers = append(s.pointers, input.NewPointer(i))
			next++
		}
	}
	for i := 0; i < MaxControllers; i++ {
		s.pads = append(s.pads, input.NewPad(next))
		next++
	}

	if err := s.Video.Init(); err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *System) Config() Config { return s.cfg }

// Display returns the video driver.
func (s *System) Display() VideoDriver { return s.Video }

// Joysticks returns the input devices in joystick order.
func (s *System) Joysticks() []input.Device {
	var devs []input.Device
	for _, w := range s.wiimotes {
		devs = append(devs, w)
	}
	for _, p := range s.pads {
		devs = append(devs, p)
	}
	return devs
}

// ScreenSizes returns the sizes SetVideoMode accepts.
func (s *System) ScreenSizes() [][2]int {
	sizes := [][2]int{{320, 240}, {640, 480}}
	if s.cfg.Wii {
		sizes = append(sizes, [2]int{848, 480})
	}
	return sizes
}

// SetVideoMode creates a w×h screen surface of the given depth and picks
// the video mode that shows it. Unsupported requests fail with a
// *ModeError before the hardware is touched.
func (s *System) SetVideoMode(w, h, bpp int) (*surface.Surface, error) {
	supported := false
	for _, sz := range s.ScreenSizes() {
		if sz == [2]int{w, h} {
			supported = true
			break
		}
	}
	if !supported {
		return nil, &ModeError{W: w, H: h, BPP: bpp}
	}
	pf, err := texconv.PixelFormatForDepth(bpp)
	if err != nil {
		return nil, &ModeError{W: w, H: h, BPP: bpp, depth: true}
	}

	m, ok := s.modeFor(w, h)
	if !ok {
		return nil, &ModeError{W: w, H: h, BPP: bpp}
	}
	if m != s.Video.Mode() || s.Video.State() == video.Uninitialized {
		if err := s.Video.SetMode(m); err != nil {
			return nil, fmt.Errorf("system: %w", err)
		}
	}
	scr, err := s.Store.CreateScreen(w, h, pf)
	if err != nil {
		return nil, fmt.Errorf("system: screen %dx%d: %w", w, h, err)
	}
	if w != m.FBWidth || h != m.EFBHeight {
		s.Store.SetScreenView(m.FBWidth, m.EFBHeight)
	} else {
		s.Store.SetScreenView(0, 0)
	}
	s.cfg.Logger.Printf("system: screen %dx%d %v on %v", w, h, pf, m)
	return scr, nil
}

// modeFor picks the mode as wide as the screen, or the widest one, with
// the shortest EFB that holds all of its lines.
func (s *System) modeFor(w, h int) (vi.Mode, bool) {
	fbw := min(w, 640)
	var best vi.Mode
	found := false
	for _, m := range s.Video.Modes() {
		if m.FBWidth != fbw || m.EFBHeight < h {
			continue
		}
		if !found || m.EFBHeight < best.EFBHeight {
			best, found = m, true
		}
	}
	return best, found
}

// Flip draws the screen surface and presents it.
func (s *System) Flip() error {
	if err := s.Store.MaterializeScreen(); err != nil {
		return fmt.Errorf("system: flip: %w", err)
	}
	return s.Video.Flip(true)
}

// CreateRenderer returns the accelerated renderer of a w×h window. It
// replaces any previous one.
func (s *System) CreateRenderer(w, h int) *render.Renderer {
	s.renderer = render.New(s.GX, s.Store, s.Video, w, h, s.cfg.Render)
	return s.renderer
}

// Renderer returns the current renderer, or nil.
func (s *System) Renderer() RenderDriver {
	if s.renderer == nil {
		return nil
	}
	return s.renderer
}

// OpenAudio opens the audio stream. The returned engine's Spec is what is
// actually played.
func (s *System) OpenAudio(spec audio.Spec) (*audio.Engine, error) {
	if s.audio != nil {
		return nil, fmt.Errorf("system: audio already open")
	}
	e, err := audio.Open(s.DSP, s.Mem, spec, s.cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("system: %w", err)
	}
	s.audio = e
	got := e.Spec()
	s.cfg.Logger.Printf("system: audio %d Hz %v x%d, %d samples", got.Freq, got.Format, got.Channels, got.Samples)
	return e, nil
}

// CloseAudio closes the audio stream if one is open.
func (s *System) CloseAudio() {
	if s.audio != nil {
		s.audio.Close()
		s.audio = nil
	}
}

// Audio returns the open audio stream, or nil.
func (s *System) Audio() AudioDriver {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

// RequestReset is what the reset button does: the next pump delivers a
// Quit event.
func (s *System) RequestReset() { s.reset.Store(true) }

// RequestPowerOff is what the power button does.
func (s *System) RequestPowerOff() { s.powerOff.Store(true) }

func (s *System) push(e input.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

// deliver queues e unless the open on-screen keyboard consumes it.
func (s *System) deliver(e input.Event) {
	if s.OSK.ProcessEvent(e) {
		return
	}
	s.push(e)
}

// PumpEvents polls c and queues the resulting events.
func (s *System) PumpEvents(c Controllers) {
	if s.reset.Swap(false) || s.powerOff.Swap(false) {
		s.push(input.Event{Kind: input.Quit})
	}
	if c == nil {
		return
	}
	for i, st := range c.Wiimotes() {
		if i >= len(s.wiimotes) {
			break
		}
		s.wiimotes[i].Update(st, s.deliver)
		s.pointers[i].Update(st, s.deliver)
		if i == 0 {
			s.Video.SetPointer(st.IR)
			if st.IR.Valid {
				s.Video.MoveCursor(st.IR.X, st.IR.Y)
			}
		}
	}
	for i, st := range c.Pads() {
		if i >= len(s.pads) {
			break
		}
		s.pads[i].Update(st, s.deliver)
	}
}

// PollEvent pops the oldest queued event.
func (s *System) PollEvent() (input.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return input.Event{}, false
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e, true
}

// Start runs the retrace and audio clocks in real time until ctx is done.
// Without it both are stepped by the caller.
func (s *System) Start(ctx context.Context) {
	s.VI.Start(ctx)
	s.DSP.Start(ctx)
}

// Close stops the clocks and releases every driver.
func (s *System) Close() {
	s.CloseAudio()
	s.DSP.Stop()
	s.VI.Stop()
	s.Video.Close()
}
