package surface

import (
	"encoding/binary"
	"fmt"
	"image/color"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// Rect is a pixel rectangle.
type Rect struct {
	X, Y, W, H int
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool { return r.W <= 0 || r.H <= 0 }

func (r Rect) clip(w, h int) Rect {
	x0, y0, x1, y1 := max(r.X, 0), max(r.Y, 0), min(r.X+r.W, w), min(r.Y+r.H, h)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

// Lock makes a surface's pixels readable and writable by the CPU. If the
// GPU drew onto the surface this frame, the EFB is copied back into the
// pixels first; only the screen can be read back this way.
func (st *Store) Lock(s *Surface) error {
	if s.ops > 0 {
		if !s.screen {
			return fmt.Errorf("surface: read back of an off-screen surface: %w", ErrUnsupported)
		}
		if s.Tex.Format == texconv.CI8 {
			return fmt.Errorf("surface: read back of a palette screen: %w", ErrUnsupported)
		}
		g := st.gx
		g.DrawDone()
		w, h := st.view(s)
		g.SetTexCopySrc(0, 0, w, h)
		g.SetTexCopyDst(s.W, s.H, s.Tex.Format)
		g.SetCopyFilter(false)
		g.CopyTex(s.Tex.Block.Addr, true)
		g.DrawDone()
		st.mem.InvalidateRange(s.Tex.Block.Addr, s.Tex.Block.Size())
		if err := texconv.Revert(s.Pixels, s.Tex.Block.Data, s.W, s.H, s.Pitch, s.Format); err != nil {
			return fmt.Errorf("surface: read back: %w", err)
		}
		s.ops = 0
	}
	s.locked = true
	return nil
}

// Unlock ends CPU access; the texture is rebuilt before the next GPU use.
func (st *Store) Unlock(s *Surface) {
	s.locked = false
	s.dirty = true
}

// MapRGBA packs a color into a pixel value of the surface's format.
func (st *Store) MapRGBA(s *Surface, c color.RGBA) uint32 {
	switch s.Format {
	case texconv.Index8:
		best, bestD := 0, -1
		for i, p := range st.colors {
			dr, dg, db := int(p.R)-int(c.R), int(p.G)-int(c.G), int(p.B)-int(c.B)
			if d := dr*dr + dg*dg + db*db; bestD < 0 || d < bestD {
				best, bestD = i, d
			}
		}
		return uint32(best)
	case texconv.RGB565Px:
		return uint32(texconv.Pack565(c.R, c.G, c.B))
	case texconv.RGB888:
		return uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	case texconv.RGBA8888:
		return uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
	}
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// RGBA decomposes a pixel value of the surface's format.
func (st *Store) RGBA(s *Surface, px uint32) color.RGBA {
	switch s.Format {
	case texconv.Index8:
		return st.colors[px&0xFF]
	case texconv.RGB565Px:
		r, g, b := texconv.Unpack565(uint16(px))
		return color.RGBA{r, g, b, 0xFF}
	case texconv.RGB888:
		return color.RGBA{uint8(px >> 16), uint8(px >> 8), uint8(px), 0xFF}
	case texconv.RGBA8888:
		return color.RGBA{uint8(px >> 24), uint8(px >> 16), uint8(px >> 8), uint8(px)}
	}
	return color.RGBA{uint8(px >> 16), uint8(px >> 8), uint8(px), uint8(px >> 24)}
}

func putPixel(p []byte, bpp int, px uint32) {
	switch bpp {
	case 1:
		p[0] = uint8(px)
	case 2:
		binary.BigEndian.PutUint16(p, uint16(px))
	case 3:
		p[0], p[1], p[2] = uint8(px>>16), uint8(px>>8), uint8(px)
	case 4:
		binary.BigEndian.PutUint32(p, px)
	}
}

// FillRect fills r with a pixel value. The screen is filled by the GPU;
// other surfaces are filled in software.
func (st *Store) FillRect(dst *Surface, r Rect, px uint32) error {
	r = r.clip(dst.W, dst.H)
	if r.Empty() {
		return nil
	}
	if !dst.screen {
		bpp := dst.Format.BytesPerPixel()
		for y := r.Y; y < r.Y+r.H; y++ {
			row := dst.Pixels[y*dst.Pitch:]
			for x := r.X; x < r.X+r.W; x++ {
				putPixel(row[x*bpp:], bpp, px)
			}
		}
		dst.dirty = true
		return nil
	}

	if err := st.screenReady(); err != nil {
		return err
	}
	c := st.RGBA(dst, px)
	g := st.gx
	st.surfaceView(dst)
	g.SetNumTevStages(1)
	g.SetTevOp(0, gx.PassClr)
	g.SetTevOrder(0, 0, gx.TexMapNull, gx.Color0A0)
	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxDesc(gx.VAClr0, gx.DescDirect)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXYZ, gx.S16)
	g.SetVtxAttrFmt(gx.VAClr0, gx.ClrRGBA, gx.RGBA8)

	dst.ops++
	z := float32(dst.ops)
	x0, y0, x1, y1 := float32(r.X), float32(r.Y), float32(r.X+r.W), float32(r.Y+r.H)
	g.Begin(gx.Quads, 4)
	for _, p := range [4][2]float32{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}} {
		g.Position3f32(p[0], p[1], z)
		g.Color4u8(c.R, c.G, c.B, 0xFF)
	}
	return g.End()
}

// Blit draws src onto the screen. Only blits to the screen are accelerated;
// other destinations return ErrUnsupported so the caller can fall back to
// a software blit. An empty srcRect selects the whole source.
func (st *Store) Blit(src *Surface, srcRect Rect, dst *Surface, dstRect Rect) error {
	if !dst.screen {
		return fmt.Errorf("surface: blit to an off-screen surface: %w", ErrUnsupported)
	}
	if err := st.screenReady(); err != nil {
		return err
	}
	if _, err := st.EnsureCurrent(src); err != nil {
		return err
	}
	if srcRect.Empty() {
		srcRect = Rect{0, 0, src.W, src.H}
	}
	if dstRect.Empty() {
		dstRect = Rect{dstRect.X, dstRect.Y, srcRect.W, srcRect.H}
	}
	st.surfaceView(dst)
	st.BindTexture(src.Tex)

	s0 := float32(srcRect.X) / float32(src.W)
	t0 := float32(srcRect.Y) / float32(src.H)
	s1 := float32(srcRect.X+srcRect.W) / float32(src.W)
	t1 := float32(srcRect.Y+srcRect.H) / float32(src.H)

	dst.ops++
	if err := st.texQuad(dstRect, float32(dst.ops), [4]float32{s0, t0, s1, t1}); err != nil {
		return err
	}
	st.gx.DrawDone()
	return nil
}

// MaterializeScreen draws a dirty screen texture behind every hardware op
// of the frame and starts a new frame of ops.
func (st *Store) MaterializeScreen() error {
	s := st.screen
	if s == nil {
		return nil
	}
	if s.dirty {
		if _, err := st.EnsureCurrent(s); err != nil {
			return err
		}
		st.surfaceView(s)
		st.BindTexture(s.Tex)
		if err := st.texQuad(Rect{0, 0, s.W, s.H}, 0, [4]float32{0, 0, 1, 1}); err != nil {
			return err
		}
	}
	s.ops = 0
	return nil
}

// screenReady materializes a dirty screen before a hardware op draws over it.
func (st *Store) screenReady() error {
	if st.screen != nil && st.screen.dirty {
		return st.MaterializeScreen()
	}
	return nil
}

// SetScreenView sets the EFB area the screen is scaled onto. A zero size
// draws the screen unscaled.
func (st *Store) SetScreenView(w, h int) { st.viewW, st.viewH = w, h }

// view returns the EFB area surface ops on s cover.
func (st *Store) view(s *Surface) (int, int) {
	if s.screen && st.viewW > 0 && st.viewH > 0 {
		return st.viewW, st.viewH
	}
	return s.W, s.H
}

// surfaceView sets up viewport and projection for ops on s. Ops stack
// toward the viewer, one depth unit each.
func (st *Store) surfaceView(s *Surface) {
	g := st.gx
	w, h := st.view(s)
	g.SetViewport(0, 0, float32(w), float32(h), 0, 1)
	g.SetScissor(0, 0, w, h)
	g.LoadProjectionMtx(gx.Ortho(0, float32(s.H), 0, float32(s.W), 0, st.cfg.DepthRange))
	g.SetCurrentMtx(gx.PNMTX0)
}

func (st *Store) texQuad(r Rect, z float32, uv [4]float32) error {
	g := st.gx
	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	full := uv == [4]float32{0, 0, 1, 1}
	if full {
		g.SetVtxDesc(gx.VATex0, gx.DescIndex8)
		g.SetArray(gx.VATex0, texPos, 2)
	} else {
		g.SetVtxDesc(gx.VATex0, gx.DescDirect)
	}
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXYZ, gx.S16)
	g.SetVtxAttrFmt(gx.VATex0, gx.TexST, gx.F32)

	x0, y0, x1, y1 := float32(r.X), float32(r.Y), float32(r.X+r.W), float32(r.Y+r.H)
	corners := [4][4]float32{
		{x0, y0, uv[0], uv[1]},
		{x1, y0, uv[2], uv[1]},
		{x1, y1, uv[2], uv[3]},
		{x0, y1, uv[0], uv[3]},
	}
	g.Begin(gx.Quads, 4)
	for i, c := range corners {
		g.Position3f32(c[0], c[1], z)
		if full {
			g.TexCoord1x8(uint8(i))
		} else {
			g.TexCoord2f32(c[2], c[3])
		}
	}
	return g.End()
}

func (st *Store) initPalette() error {
	if st.palette.Data != nil {
		return nil
	}
	b, err := st.mem.Alloc(512*2, TextureAlign)
	if err != nil {
		return fmt.Errorf("surface: palette: %w", err)
	}
	st.palette = b
	st.mem.StoreRange(b.Addr, b.Size())
	st.loadTluts()
	return nil
}

func (st *Store) loadTluts() {
	st.gx.LoadTlut(gx.InitTlutObj(st.palette.Addr, gx.TlutIA8, 256), 0)
	st.gx.LoadTlut(gx.InitTlutObj(st.palette.Addr+512, gx.TlutIA8, 256), 1)
}

// SetColors sets palette entries starting at first. The palette is split
// across two IA8 tables: green and red in the first, blue in the second.
func (st *Store) SetColors(first int, colors []color.RGBA) error {
	if first < 0 || first+len(colors) > 256 {
		return fmt.Errorf("surface: palette entries %d..%d: %w", first, first+len(colors), ErrUnsupported)
	}
	if err := st.initPalette(); err != nil {
		return err
	}
	p := st.palette.Data
	for i, c := range colors {
		n := first + i
		c.A = 0xFF
		st.colors[n] = c
		binary.BigEndian.PutUint16(p[n*2:], uint16(c.G)<<8|uint16(c.R))
		binary.BigEndian.PutUint16(p[512+n*2:], uint16(c.B))
	}
	st.mem.StoreRange(st.palette.Addr+uint32(first*2), len(colors)*2)
	st.mem.StoreRange(st.palette.Addr+512+uint32(first*2), len(colors)*2)
	st.loadTluts()
	return nil
}

// Colors returns the current palette.
func (st *Store) Colors() [256]color.RGBA { return st.colors }
