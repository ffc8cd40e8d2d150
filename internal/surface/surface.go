// Package surface owns GPU textures and the software surfaces paired with
// them. A surface keeps a linear pixel buffer for the CPU and a tiled copy
// for the GPU; the two may diverge while the surface is dirty and are
// reconciled before the GPU reads the texture or the CPU reads the pixels.
package surface

import (
	"errors"
	"fmt"
	"image/color"
	"log"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// ErrUnsupported is returned for operations the hardware path cannot do.
var ErrUnsupported = errors.New("operation not supported")

// MinSurfaceSize is the smallest width and height of a hardware surface.
const MinSurfaceSize = 8

// TextureAlign is the alignment the GPU needs for texture memory.
const TextureAlign = 32

// Texture is GPU resident tiled image data.
type Texture struct {
	Block  mem.Block
	W, H   int
	Format texconv.Format
	Filter gx.Filter
}

// Stages returns the TEV stages needed to sample the texture.
func (t *Texture) Stages() int { return t.Format.Stages() }

// LookupStages returns the stages consumed before color combining can
// start: none for direct color, two for palette lookups.
func (t *Texture) LookupStages() int {
	if t.Format == texconv.CI8 {
		return 2
	}
	return 0
}

// SetScaleMode selects nearest or linear sampling.
func (t *Texture) SetScaleMode(f gx.Filter) { t.Filter = f }

// Surface is a CPU pixel buffer paired with a texture.
type Surface struct {
	W, H   int
	Format texconv.PixelFormat
	Pitch  int
	Pixels []byte
	Tex    *Texture

	dirty  bool
	ops    int
	screen bool
	locked bool
}

// Dirty reports whether the pixels changed since the texture was built.
func (s *Surface) Dirty() bool { return s.dirty }

// Ops returns the hardware operations drawn onto the surface this frame.
func (s *Surface) Ops() int { return s.ops }

// Locked reports whether the CPU holds the pixels.
func (s *Surface) Locked() bool { return s.locked }

// IsScreen reports whether s is the display surface.
func (s *Surface) IsScreen() bool { return s.screen }

// Config holds store tunables.
type Config struct {
	// DepthRange is the far plane of surface operations; each hardware op
	// draws one unit nearer than the previous one.
	DepthRange float32
	Logger     *log.Logger
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.DepthRange <= 0 {
		c.DepthRange = 65536
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Store creates, converts and binds textures and surfaces.
type Store struct {
	cfg Config
	gx  *gx.GX
	mem *mem.Arena

	screen       *Surface
	viewW, viewH int
	palette      mem.Block // two 256 entry IA8 tables
	colors       [256]color.RGBA

	conversions int
}

// texPos are the corners of a full texture, indexed by TexCoord1x8.
var texPos = []float32{0, 0, 1, 0, 1, 1, 0, 1}

// New returns a store drawing through g and allocating from m.
func New(g *gx.GX, m *mem.Arena, cfg Config) *Store {
	cfg.Defaults()
	return &Store{cfg: cfg, gx: g, mem: m}
}

// Conversions returns how many times a surface was converted to its texture.
func (st *Store) Conversions() int { return st.conversions }

// CreateTexture allocates GPU memory for a w×h texture.
func (st *Store) CreateTexture(w, h int, f texconv.Format) (*Texture, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("surface: texture %dx%d: %w", w, h, ErrUnsupported)
	}
	n := texconv.BufferSize(w, h, f)
	if n == 0 {
		return nil, fmt.Errorf("surface: texture format %v: %w", f, texconv.ErrUnsupportedFormat)
	}
	b, err := st.mem.Alloc(n, TextureAlign)
	if err != nil {
		return nil, fmt.Errorf("surface: texture %dx%d %v: %w", w, h, f, err)
	}
	return &Texture{Block: b, W: w, H: h, Format: f, Filter: gx.Near}, nil
}

// DestroyTexture frees a texture's memory. Textures are not reference
// counted; the caller must not use t afterwards.
func (st *Store) DestroyTexture(t *Texture) {
	if t == nil {
		return
	}
	st.mem.Free(t.Block)
	t.Block = mem.Block{}
}

// UpdateTexture replaces the whole texture with linear pixels. Partial
// updates are not supported.
func (st *Store) UpdateTexture(t *Texture, r Rect, pixels []byte, pitch int, pf texconv.PixelFormat) error {
	if !r.Empty() && r != (Rect{0, 0, t.W, t.H}) {
		return fmt.Errorf("surface: update %v of %dx%d texture: %w", r, t.W, t.H, ErrUnsupported)
	}
	f, err := pf.TextureFormat()
	if err != nil {
		return err
	}
	if f != t.Format {
		return fmt.Errorf("surface: %v pixels into %v texture: %w", pf, t.Format, ErrUnsupported)
	}
	if _, err := texconv.Convert(t.Block.Data, pixels, t.W, t.H, pitch, pf); err != nil {
		return err
	}
	st.mem.StoreRange(t.Block.Addr, t.Block.Size())
	st.gx.InvalidateTexAll()
	return nil
}

// LockTexture is accepted and does nothing; streaming textures are
// written with UpdateTexture.
func (st *Store) LockTexture(t *Texture) error { return nil }

// UnlockTexture is accepted and does nothing.
func (st *Store) UnlockTexture(t *Texture) {}

// CreateSurface allocates the pixel buffer and texture of a surface.
func (st *Store) CreateSurface(w, h int, pf texconv.PixelFormat) (*Surface, error) {
	if w < MinSurfaceSize || h < MinSurfaceSize {
		return nil, fmt.Errorf("surface: %dx%d is below %dx%d: %w", w, h, MinSurfaceSize, MinSurfaceSize, ErrUnsupported)
	}
	f, err := pf.TextureFormat()
	if err != nil {
		return nil, err
	}
	t, err := st.CreateTexture(w, h, f)
	if err != nil {
		return nil, err
	}
	pitch := w * pf.BytesPerPixel()
	return &Surface{
		W: w, H: h, Format: pf, Pitch: pitch,
		Pixels: make([]byte, pitch*h),
		Tex:    t,
	}, nil
}

// FreeSurface releases a surface. Freeing the screen detaches it.
func (st *Store) FreeSurface(s *Surface) {
	if s == nil {
		return
	}
	st.DestroyTexture(s.Tex)
	s.Tex = nil
	s.Pixels = nil
	if s == st.screen {
		st.screen = nil
	}
}

// CreateScreen replaces the display surface. The new screen starts clean
// and black.
func (st *Store) CreateScreen(w, h int, pf texconv.PixelFormat) (*Surface, error) {
	if st.screen != nil {
		st.FreeSurface(st.screen)
	}
	s, err := st.CreateSurface(w, h, pf)
	if err != nil {
		return nil, err
	}
	clear(s.Tex.Block.Data)
	st.mem.StoreRange(s.Tex.Block.Addr, s.Tex.Block.Size())
	s.screen = true
	st.screen = s
	if pf == texconv.Index8 {
		if err := st.initPalette(); err != nil {
			st.FreeSurface(s)
			return nil, err
		}
	}
	return s, nil
}

// Screen returns the display surface, or nil before a video mode was set.
func (st *Store) Screen() *Surface { return st.screen }

// Close frees the screen and the palette tables. Surfaces and textures
// created by callers are theirs to free.
func (st *Store) Close() {
	st.FreeSurface(st.screen)
	if st.palette.Data != nil {
		st.mem.Free(st.palette)
		st.palette = mem.Block{}
	}
	st.viewW, st.viewH = 0, 0
}

// EnsureCurrent rebuilds a dirty surface's texture from its pixels. It
// reports whether a conversion happened; a clean surface is left alone.
func (st *Store) EnsureCurrent(s *Surface) (bool, error) {
	if !s.dirty {
		return false, nil
	}
	if _, err := texconv.Convert(s.Tex.Block.Data, s.Pixels, s.W, s.H, s.Pitch, s.Format); err != nil {
		return false, fmt.Errorf("surface: convert %dx%d %v: %w", s.W, s.H, s.Format, err)
	}
	st.mem.StoreRange(s.Tex.Block.Addr, s.Tex.Block.Size())
	st.gx.InvalidateTexAll()
	s.dirty = false
	st.conversions++
	return true, nil
}

// BindTexture loads t into texture map 0 and sets up the TEV stages that
// sample it. Palette textures use two maps and two stages: the first looks
// up red and green from TLUT0, the second adds blue from TLUT1. It returns
// the number of stages in use.
func (st *Store) BindTexture(t *Texture) int {
	g := st.gx
	g.SetTevOp(0, gx.Replace)
	g.SetTevOrder(0, 0, 0, gx.Color0A0)
	g.SetTevSwapMode(0, 0, 0)
	if t.Format != texconv.CI8 {
		o := gx.InitTexObj(t.Block.Addr, t.W, t.H, t.Format, gx.Clamp, gx.Clamp)
		o.SetFilter(t.Filter, t.Filter)
		g.LoadTexObj(o, 0)
		g.SetNumTevStages(1)
		return 1
	}

	a := gx.InitTexObjCI(t.Block.Addr, t.W, t.H, texconv.CI8, gx.Clamp, gx.Clamp, 0)
	b := gx.InitTexObjCI(t.Block.Addr, t.W, t.H, texconv.CI8, gx.Clamp, gx.Clamp, 1)
	a.SetFilter(t.Filter, t.Filter)
	b.SetFilter(t.Filter, t.Filter)
	g.LoadTexObj(a, 0)
	g.LoadTexObj(b, 1)

	g.SetTevColor(gx.Reg0, gx.Color{R: 255, G: 255, B: 0, A: 0})
	g.SetTevSwapModeTable(1, gx.ChRed, gx.ChAlpha, gx.ChBlue, gx.ChAlpha)
	g.SetTevSwapModeTable(2, gx.ChAlpha, gx.ChAlpha, gx.ChBlue, gx.ChAlpha)
	// red and green
	g.SetTevSwapMode(0, 0, 1)
	g.SetTevColorIn(0, gx.CCZero, gx.CCTex, gx.CC0, gx.CCZero)
	// add blue, opaque alpha
	g.SetTevOp(1, gx.Blend)
	g.SetTevOrder(1, 0, 1, gx.ColorNull)
	g.SetTevSwapMode(1, 0, 2)
	g.SetTevColorIn(1, gx.CCTex, gx.CCZero, gx.CCZero, gx.CCPrev)
	g.SetTevAlphaIn(1, gx.CAAZero, gx.CAAZero, gx.CAAZero, gx.CAAKonst)
	g.SetTevKAlphaSel(1, gx.KOne)
	g.SetNumTevStages(2)
	return 2
}
