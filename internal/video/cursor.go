package video

import (
	"fmt"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/input"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// Cursor is a mouse pointer image with its hot spot.
type Cursor struct {
	Tex        *surface.Texture
	HotX, HotY int
}

type pointer struct {
	cur, def *Cursor
	hidden   bool
	x, y     int
	ir       input.IR
}

func (pt *pointer) free(st *surface.Store) {
	if pt.def != nil {
		st.DestroyTexture(pt.def.Tex)
	}
	pt.cur, pt.def = nil, nil
}

// CreateCursor builds a cursor from w×h RGBA pixels.
func (p *Presenter) CreateCursor(pixels []byte, w, h, hotX, hotY int) (*Cursor, error) {
	tex, err := p.store.CreateTexture(w, h, texconv.RGBA8)
	if err != nil {
		return nil, fmt.Errorf("video: cursor: %w", err)
	}
	if err := p.store.UpdateTexture(tex, surface.Rect{}, pixels, w*4, texconv.RGBA8888); err != nil {
		p.store.DestroyTexture(tex)
		return nil, fmt.Errorf("video: cursor: %w", err)
	}
	return &Cursor{Tex: tex, HotX: hotX, HotY: hotY}, nil
}

// FreeCursor releases c. The default cursor is restored if c was active.
func (p *Presenter) FreeCursor(c *Cursor) {
	if c == nil || c == p.pointer.def {
		return
	}
	if p.pointer.cur == c {
		p.pointer.cur = p.pointer.def
	}
	p.store.DestroyTexture(c.Tex)
}

// arrow is the system cursor: X is the outline, o the fill.
var arrow = []string{
	"X           ",
	"XX          ",
	"XoX         ",
	"XooX        ",
	"XoooX       ",
	"XooooX      ",
	"XoooooX     ",
	"XooooooX    ",
	"XoooooooX   ",
	"XooooooooX  ",
	"XoooooXXXXX ",
	"XooXooX     ",
	"XoX XooX    ",
	"XX  XooX    ",
	"X    XooX   ",
	"     XXXX   ",
}

// CreateSystemCursor builds the arrow pointer. It becomes the default
// cursor, which turns with the Wii remote and hides while the remote points
// off screen.
func (p *Presenter) CreateSystemCursor() (*Cursor, error) {
	w, h := len(arrow[0]), len(arrow)
	pix := make([]byte, w*h*4)
	for y, row := range arrow {
		for x, ch := range row {
			o := (y*w + x) * 4
			switch ch {
			case 'X':
				pix[o+3] = 0xFF
			case 'o':
				pix[o], pix[o+1], pix[o+2], pix[o+3] = 0xFF, 0xFF, 0xFF, 0xFF
			}
		}
	}
	c, err := p.CreateCursor(pix, w, h, 0, 0)
	if err != nil {
		return nil, err
	}
	if p.pointer.def != nil {
		p.store.DestroyTexture(p.pointer.def.Tex)
	}
	if p.pointer.cur == nil || p.pointer.cur == p.pointer.def {
		p.pointer.cur = c
	}
	p.pointer.def = c
	return c, nil
}

// SetCursor selects the drawn cursor; nil selects the default one.
func (p *Presenter) SetCursor(c *Cursor) {
	if c == nil {
		c = p.pointer.def
	}
	p.pointer.cur = c
}

// ShowCursor shows or hides the cursor.
func (p *Presenter) ShowCursor(on bool) { p.pointer.hidden = !on }

// MoveCursor places the cursor hot spot at (x, y).
func (p *Presenter) MoveCursor(x, y int) { p.pointer.x, p.pointer.y = x, y }

// SetPointer records the Wii remote pointer that orients the default
// cursor.
func (p *Presenter) SetPointer(ir input.IR) { p.pointer.ir = ir }

// drawCursor draws the cursor on top of the frame through its own model
// matrix, then restores the state the renderer relies on.
func (p *Presenter) drawCursor() error {
	pt := &p.pointer
	c := pt.cur
	if c == nil || pt.hidden {
		return nil
	}
	var angle float32
	if c == pt.def {
		if !pt.ir.Valid {
			return nil
		}
		angle = pt.ir.Angle
	}

	g := p.gx
	w, h := p.mode.FBWidth, p.mode.EFBHeight
	c.Tex.SetScaleMode(gx.Near)
	p.store.BindTexture(c.Tex)

	mv := gx.Scale(float32(w)/640, float32(h)/480, 1)
	if angle != 0 {
		mv = gx.Concat(mv, gx.RotateZ(angle))
	}
	mv = mv.Translate(float32(pt.x), float32(pt.y), 0)
	g.LoadPosMtxImm(mv, gx.PNMTX1)

	p.SetViewport(0, 0, w, h, false)
	g.ClearVtxDesc()
	g.SetVtxDesc(gx.VAPos, gx.DescDirect)
	g.SetVtxDesc(gx.VATex0, gx.DescDirect)
	g.SetVtxAttrFmt(gx.VAPos, gx.PosXY, gx.S16)
	g.SetVtxAttrFmt(gx.VATex0, gx.TexST, gx.F32)
	g.SetTevOp(0, gx.Replace)
	g.SetTevOrder(0, 0, 0, gx.Color0A0)
	g.SetNumTevStages(1)
	g.SetBlendMode(gx.BlendBlend, gx.BLSrcAlpha, gx.BLInvSrcAlpha)
	g.SetZMode(false, gx.Always, false)

	g.SetCurrentMtx(gx.PNMTX1)
	x0, y0 := int16(-c.HotX), int16(-c.HotY)
	x1, y1 := int16(c.Tex.W-c.HotX), int16(c.Tex.H-c.HotY)
	g.Begin(gx.Quads, 4)
	g.Position2s16(x0, y0)
	g.TexCoord2f32(0, 0)
	g.Position2s16(x1, y0)
	g.TexCoord2f32(1, 0)
	g.Position2s16(x1, y1)
	g.TexCoord2f32(1, 1)
	g.Position2s16(x0, y1)
	g.TexCoord2f32(0, 1)
	err := g.End()
	g.SetCurrentMtx(gx.PNMTX0)
	g.DrawDone()

	g.SetZMode(true, gx.LEqual, true)
	if p.hasViewport {
		vp := p.viewport
		p.SetViewport(vp.X, vp.Y, vp.W, vp.H, true)
	} else {
		p.SetViewport(0, 0, w, h, false)
	}
	return err
}
