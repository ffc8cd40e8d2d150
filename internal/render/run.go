package render

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
)

// ModeStages returns the TEV stages a blend mode adds after the texture
// lookup.
func ModeStages(mode BlendMode) int {
	if mode == BlendNone {
		return 2
	}
	return 1
}

// StagesFor returns the TEV stages a draw of tex with mode needs. Untextured
// draws use one pass-through stage.
func StagesFor(tex *surface.Texture, mode BlendMode) int {
	if tex == nil {
		return 1
	}
	return tex.LookupStages() + ModeStages(mode)
}

// RunCommandQueue executes the queued commands in order and empties the
// queue. A failing command is skipped and the rest still run; the errors
// are joined.
func (r *Renderer) RunCommandQueue() error {
	defer r.reset()
	var errs []error
	for i, c := range r.cmds {
		if err := r.run(c); err != nil {
			errs = append(errs, fmt.Errorf("render: command %d (%T): %w", i, c, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Renderer) run(c Command) error {
	switch c := c.(type) {
	case SetViewport:
		r.viewport = c.Rect
		r.disp.SetViewport(c.Rect.X, c.Rect.Y, c.Rect.W, c.Rect.H, true)
	case SetClipRect:
		vp := r.viewport
		pan := r.disp.Pan()
		if !c.Enabled {
			r.gx.SetScissor(vp.X, vp.Y+pan, vp.W, vp.H)
			break
		}
		r.gx.SetScissor(vp.X+c.Rect.X, vp.Y+c.Rect.Y+pan, c.Rect.W, c.Rect.H)
	case SetDrawColor:
		r.gx.SetTevColor(gx.Reg0, gxColor(c.Color))
	case Clear:
		return r.clear(c.Color)
	case DrawPoints:
		return r.primitive(gx.Points, c.draw)
	case DrawLines:
		return r.primitive(gx.LineStrip, c.draw)
	case FillRects:
		return r.primitive(gx.Quads, c.draw)
	case Geometry:
		return r.geometry(c)
	default:
		return fmt.Errorf("render: unknown command %T: %w", c, surface.ErrUnsupported)
	}
	return nil
}

func gxColor(c color.RGBA) gx.Color { return gx.Color{R: c.R, G: c.G, B: c.B, A: c.A} }

// setBlend programs the framebuffer blend for a draw.
func (r *Renderer) setBlend(mode BlendMode) {
	switch mode {
	case BlendBlend:
		r.gx.SetBlendMode(gx.BlendBlend, gx.BLSrcAlpha, gx.BLInvSrcAlpha)
	case BlendMod:
		r.gx.SetBlendMode(gx.BlendBlend, gx.BLZero, gx.BLSrcClr)
	default:
		r.gx.SetBlendMode(gx.BlendNone, gx.BLOne, gx.BLZero)
	}
}

// constStage makes stage 0 output register C0.
func (r *Renderer) constStage(c gx.Color) {
	g := r.gx
	g.SetNumTevStages(1)
	g.SetTevOrder(0, 0, gx.TexMapNull, gx.Color0A0)
	g.SetTevSwapMode(0, 0, 0)
	g.SetTevColor(gx.Reg0, c)
	g.SetTevColorIn(0, gx.CC0, gx.CCZero, gx.CCZero, gx.CCZero)
	g.SetTevAlphaIn(0, gx.CAA0, gx.CAAZero, gx.CAAZero, gx.CAAZero)
	g.SetTevColorOp(0, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
	g.SetTevAlphaOp(0, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
}

func (r *Renderer) clear(c color.RGBA) error {
	g := r.gx
	r.setBlend(BlendNone)
	r.constStage(gxColor(c))
	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXY, gx.S16)
	w, h := int16(r.w), int16(r.h)
	g.Begin(gx.Quads, 4)
	g.Position2s16(0, 0)
	g.Position2s16(w, 0)
	g.Position2s16(w, h)
	g.Position2s16(0, h)
	return g.End()
}

func (r *Renderer) primitive(p gx.Primitive, d draw) error {
	n := d.Count
	if p == gx.Quads {
		n *= 4
	}
	if n == 0 {
		return nil
	}
	g := r.gx
	r.setBlend(d.Blend)
	r.constStage(gxColor(d.Color))
	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXY, gx.F32)

	v := r.arena[d.First:]
	g.Begin(p, n)
	for i := 0; i < n; i++ {
		g.Position2f32(getPoint(v[i*pointSize:]))
	}
	return g.End()
}

// textureStages binds tex and appends the blend mode stages after its
// lookup stages. Direct textures combine in the lookup stage itself;
// palette textures feed the mode stages from the previous stage output.
func (r *Renderer) textureStages(tex *surface.Texture, mode BlendMode) int {
	g := r.gx
	r.store.BindTexture(tex)
	stage := tex.LookupStages()
	texmap, tc, ta, taa := 0, gx.CCTex, gx.CATex, gx.CAATex
	if stage > 0 {
		texmap, tc, ta, taa = gx.TexMapNull, gx.CCPrev, gx.CAPrev, gx.CAAPrev
	}
	g.SetTevOrder(stage, 0, texmap, gx.Color0A0)
	g.SetTevSwapMode(stage, 0, 0)
	switch mode {
	case BlendBlend:
		g.SetTevColorIn(stage, gx.CCZero, tc, gx.CCRas, gx.CCZero)
		g.SetTevAlphaIn(stage, gx.CAAZero, taa, gx.CAARas, gx.CAAZero)
	case BlendMod:
		g.SetTevColorIn(stage, gx.CCZero, gx.CCRas, tc, gx.CCZero)
		g.SetTevAlphaIn(stage, gx.CAARas, gx.CAAZero, gx.CAAZero, gx.CAAZero)
	default:
		// transparent texels become black, alpha comes from the vertex
		g.SetTevColorIn(stage, gx.CCZero, tc, ta, gx.CCZero)
		g.SetTevAlphaIn(stage, gx.CAARas, gx.CAAZero, gx.CAAZero, gx.CAAZero)
		g.SetTevColorOp(stage, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
		g.SetTevAlphaOp(stage, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
		stage++
		g.SetTevOrder(stage, 0, gx.TexMapNull, gx.Color0A0)
		g.SetTevSwapMode(stage, 0, 0)
		g.SetTevColorIn(stage, gx.CCZero, gx.CCRas, gx.CCPrev, gx.CCZero)
		g.SetTevAlphaIn(stage, gx.CAAZero, gx.CAAZero, gx.CAAZero, gx.CAAPrev)
	}
	g.SetTevColorOp(stage, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
	g.SetTevAlphaOp(stage, gx.OpAdd, gx.BiasZero, gx.Scale1, true, gx.RegPrev)
	g.SetNumTevStages(stage + 1)
	return stage + 1
}

func (r *Renderer) geometry(c Geometry) error {
	if c.Count == 0 {
		return nil
	}
	g := r.gx
	r.setBlend(c.Blend)
	if c.Texture != nil {
		if n := r.textureStages(c.Texture, c.Blend); n > gx.MaxTevStages {
			return fmt.Errorf("render: %d TEV stages needed", n)
		}
	} else {
		g.SetNumTevStages(1)
		g.SetTevOrder(0, 0, gx.TexMapNull, gx.Color0A0)
		g.SetTevSwapMode(0, 0, 0)
		g.SetTevOp(0, gx.PassClr)
	}

	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxDesc(gx.VAClr0, gx.DescDirect)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXY, gx.F32)
	g.SetVtxAttrFmt(gx.VAClr0, gx.ClrRGBA, gx.RGBA8)
	elem := pointSize + colorSize
	if c.Texture != nil {
		g.SetVtxDesc(gx.VATex0, gx.DescDirect)
		g.SetVtxAttrFmt(gx.VATex0, gx.TexST, gx.F32)
		elem += pointSize
	}

	v := r.arena[c.First:]
	g.Begin(gx.Triangles, c.Count)
	for i := 0; i < c.Count; i++ {
		e := v[i*elem:]
		g.Position2f32(getPoint(e))
		g.Color4u8(e[8], e[9], e[10], e[11])
		if c.Texture != nil {
			g.TexCoord2f32(getPoint(e[12:]))
		}
	}
	return g.End()
}
