// Package video presents the embedded framebuffer on screen. It owns the
// render mode and the two external framebuffers: each flip copies the EFB
// into the back XFB, queues it for scan-out and swaps.
package video

import (
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/osk"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/vi"
)

var (
	ErrUnsupportedMode = errors.New("video mode not supported")
	ErrNotConfigured   = errors.New("video mode not set")
)

// State is the presenter lifecycle.
type State uint8

const (
	Uninitialized State = iota
	Configured
	Presenting
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Configured:
		return "configured"
	case Presenting:
		return "presenting"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// xfbAlign is the alignment of external framebuffers.
const xfbAlign = 32

// Config holds presenter tunables.
type Config struct {
	// PixelBias shifts all geometry so pixel coordinates land inside the
	// pixel rather than on its corner. Half a pixel loses the last row and
	// column of small textures to rounding.
	PixelBias float32
	Logger    *log.Logger
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.PixelBias == 0 {
		c.PixelBias = 0.4
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

var modeTables = map[vi.TVFormat][]vi.Mode{
	vi.NTSC:    {vi.NTSC240Ds, vi.NTSC480Prog},
	vi.MPAL:    {vi.MPAL240Ds, vi.MPAL480Prog},
	vi.EURGB60: {vi.EURGB60240Ds, vi.EURGB60480Prog, vi.PAL264Ds, vi.PAL528Prog, vi.PAL576ProgScale},
	vi.PAL:     {vi.PAL264Ds, vi.PAL528Prog, vi.PAL576ProgScale},
}

// Modes returns the modes offered for a TV format: a 320 pixel wide copy
// of the first mode followed by the format's table.
func Modes(tv vi.TVFormat) []vi.Mode {
	table := modeTables[tv]
	if len(table) == 0 {
		table = modeTables[vi.NTSC]
	}
	narrow := table[0]
	narrow.Name += " 320"
	narrow.FBWidth = 320
	return append([]vi.Mode{narrow}, table...)
}

// Presenter drives the video interface for one display.
type Presenter struct {
	cfg   Config
	gx    *gx.GX
	vi    *vi.VI
	mem   *mem.Arena
	store *surface.Store
	osk   *osk.Manager

	modes []vi.Mode
	mode  vi.Mode
	state State
	xfb   [2]mem.Block
	fb    int

	viewport    surface.Rect // last viewport the renderer asked for
	hasViewport bool

	pointer pointer
}

// New returns a presenter. kb may be nil when no on-screen keyboard is
// wanted.
func New(g *gx.GX, v *vi.VI, m *mem.Arena, st *surface.Store, kb *osk.Manager, cfg Config) *Presenter {
	cfg.Defaults()
	return &Presenter{
		cfg:   cfg,
		gx:    g,
		vi:    v,
		mem:   m,
		store: st,
		osk:   kb,
		modes: Modes(v.TVFormat()),
	}
}

// Modes returns the modes SetMode accepts.
func (p *Presenter) Modes() []vi.Mode { return slices.Clone(p.modes) }

// Mode returns the current mode.
func (p *Presenter) Mode() vi.Mode { return p.mode }

// State returns the lifecycle state.
func (p *Presenter) State() State { return p.state }

// Init sets the preferred mode of the TV format and the default pipeline
// state: opaque black clears, no blending, depth test less-or-equal.
func (p *Presenter) Init() error {
	if err := p.SetMode(p.vi.PreferredMode()); err != nil {
		return err
	}
	g := p.gx
	g.SetCopyClear(gx.Color{A: 0xFF}, 1)
	g.SetBlendMode(gx.BlendNone, gx.BLSrcAlpha, gx.BLInvSrcAlpha)
	g.SetZMode(true, gx.LEqual, true)
	g.Flush()
	return nil
}

// SetMode switches to m. Unsupported modes fail before any hardware is
// touched.
func (p *Presenter) SetMode(m vi.Mode) error {
	if !slices.Contains(p.modes, m) {
		return fmt.Errorf("video: %v on %v: %w", m, p.vi.TVFormat(), ErrUnsupportedMode)
	}
	if w, h := p.gx.EFBSize(); m.FBWidth > w || m.EFBHeight > h {
		return fmt.Errorf("video: %v exceeds the %dx%d EFB: %w", m, w, h, ErrUnsupportedMode)
	}

	p.gx.DrawDone()
	p.vi.SetBlack(true)
	p.vi.Flush()
	p.vi.WaitVSync()
	p.vi.Configure(m)

	p.freeXFB()
	for i := range p.xfb {
		b, err := p.mem.Alloc(m.XFBSize(), xfbAlign)
		if err != nil {
			p.freeXFB()
			p.state = Uninitialized
			return fmt.Errorf("video: framebuffer %d for %v: %w", i, m, err)
		}
		p.xfb[i] = b
	}
	p.fb = 0

	v := p.vi
	v.ClearFramebuffer(m, p.xfb[0].Addr, 0, 0, 0)
	v.SetNextFramebuffer(p.xfb[0].Addr)
	v.SetBlack(false)
	v.Flush()
	v.WaitVSync()
	if m.Scan != vi.Interlace {
		v.WaitVSync()
	}

	g := p.gx
	g.SetDispCopySrc(0, 0, m.FBWidth, m.EFBHeight)
	g.SetDispCopyDst(m.FBWidth, m.XFBHeight)
	g.SetDispCopyYScale(float32(m.XFBHeight) / float32(m.EFBHeight))
	g.SetCopyFilter(m.VFilter)
	p.drawInit(m.FBWidth, m.EFBHeight)

	p.mode = m
	p.hasViewport = false
	p.state = Configured
	p.cfg.Logger.Printf("video: mode %v", m)
	return nil
}

func (p *Presenter) freeXFB() {
	for i, b := range p.xfb {
		if b.Data != nil {
			p.mem.Free(b)
			p.xfb[i] = mem.Block{}
		}
	}
}

// texPos are the corners of a full texture, indexed by TexCoord1x8.
var texPos = []float32{0, 0, 1, 0, 1, 1, 0, 1}

// drawInit loads the biased model matrix and the textured quad vertex
// format used by surface drawing.
func (p *Presenter) drawInit(w, h int) {
	g := p.gx
	b := p.cfg.PixelBias
	g.LoadPosMtxImm(gx.Identity().Translate(b, b, 0), gx.PNMTX0)
	g.SetCurrentMtx(gx.PNMTX0)

	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxDesc(gx.VATex0, gx.DescIndex8)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXYZ, gx.S16)
	g.SetVtxAttrFmt(gx.VATex0, gx.TexST, gx.F32)
	g.SetArray(gx.VATex0, texPos, 2)

	g.SetNumTevStages(1)
	g.SetTevOp(0, gx.Replace)
	g.SetTevOrder(0, 0, 0, gx.Color0A0)
	p.SetViewport(0, 0, w, h, false)
}

// SetViewport maps a w×h window area at (x, y) onto the EFB with an
// orthographic projection. With honourPan the area is shifted by the
// on-screen keyboard pan and remembered as the renderer's viewport.
func (p *Presenter) SetViewport(x, y, w, h int, honourPan bool) {
	if honourPan {
		p.viewport = surface.Rect{X: x, Y: y, W: w, H: h}
		p.hasViewport = true
		y += p.Pan()
	}
	g := p.gx
	g.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
	g.SetScissor(x, y, w, h)
	g.LoadProjectionMtx(gx.Ortho(0, float32(h), 0, float32(w), 0, 1))
}

// Pan returns the vertical shift the on-screen keyboard asks for.
func (p *Presenter) Pan() int {
	if p.osk == nil {
		return 0
	}
	return p.osk.PanY()
}

// XFB returns the framebuffer the next flip copies into.
func (p *Presenter) XFB() mem.Block { return p.xfb[p.fb] }

// Flip draws the overlays, copies the EFB into the back framebuffer,
// clearing the EFB, and queues it for scan-out. With vsync it waits for the
// retrace that shows it.
func (p *Presenter) Flip(vsync bool) error {
	if p.state == Uninitialized {
		return fmt.Errorf("video: flip: %w", ErrNotConfigured)
	}
	if p.osk != nil {
		p.osk.Render()
	}
	if err := p.drawCursor(); err != nil {
		return fmt.Errorf("video: cursor: %w", err)
	}

	xfb := p.xfb[p.fb].Addr
	g := p.gx
	g.CopyDisp(xfb, true)
	g.DrawDone()
	g.Flush()

	p.vi.SetNextFramebuffer(xfb)
	p.vi.Flush()
	if vsync {
		p.vi.WaitVSync()
	}
	p.fb ^= 1
	p.state = Presenting
	return nil
}

// Close blanks the display and releases the framebuffers, the cursor and
// the screen surface.
func (p *Presenter) Close() {
	p.gx.DrawDone()
	p.vi.SetBlack(true)
	p.vi.Flush()
	p.pointer.free(p.store)
	p.store.Close()
	p.freeXFB()
	p.state = Uninitialized
}
