package gx

import (
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// Wrap is the texture coordinate wrap mode.
type Wrap uint8

const (
	Clamp Wrap = iota
	Repeat
)

// Filter is the texture sampling filter.
type Filter uint8

const (
	Near Filter = iota
	Linear
)

// TlutFmt is the entry format of a palette.
type TlutFmt uint8

const (
	TlutIA8 TlutFmt = iota
	TlutRGB565
)

// TexObj describes a texture in main memory.
type TexObj struct {
	Addr   uint32
	W, H   int
	Format texconv.Format
	WrapS  Wrap
	WrapT  Wrap
	MinF   Filter
	MagF   Filter
	Tlut   int // palette slot for CI8
}

// InitTexObj describes a direct color texture.
func InitTexObj(addr uint32, w, h int, f texconv.Format, ws, wt Wrap) TexObj {
	return TexObj{Addr: addr, W: w, H: h, Format: f, WrapS: ws, WrapT: wt, MinF: Linear, MagF: Linear}
}

// InitTexObjCI describes a color indexed texture bound to a palette slot.
func InitTexObjCI(addr uint32, w, h int, f texconv.Format, ws, wt Wrap, tlut int) TexObj {
	o := InitTexObj(addr, w, h, f, ws, wt)
	o.Tlut = tlut
	return o
}

// SetFilter sets the minification and magnification filters (InitTexObjLOD).
func (o *TexObj) SetFilter(min, mag Filter) {
	o.MinF, o.MagF = min, mag
}

// TlutObj describes a palette in main memory.
type TlutObj struct {
	Addr    uint32
	Format  TlutFmt
	Entries int
}

// InitTlutObj describes a palette of n 16-bit entries.
func InitTlutObj(addr uint32, f TlutFmt, n int) TlutObj {
	return TlutObj{Addr: addr, Format: f, Entries: n}
}

// tmemTlut is a palette after LoadTlut copied it into texture memory.
type tmemTlut struct {
	format  TlutFmt
	entries []uint16
	gen     uint32
}

type texKey struct {
	addr    uint32
	w, h    int
	format  texconv.Format
	tlut    int
	tlutGen uint32
}

// texture is a decoded texture held by the texture cache.
type texture struct {
	w, h int
	pix  []Color
}

func (g *GX) lookupTexture(o *TexObj) *texture {
	key := texKey{addr: o.Addr, w: o.W, h: o.H, format: o.Format}
	if o.Format == texconv.CI8 {
		key.tlut = o.Tlut
		key.tlutGen = g.tluts[o.Tlut].gen
	}
	if t, ok := g.texCache[key]; ok {
		return t
	}
	raw := make([]byte, texconv.BufferSize(o.W, o.H, o.Format))
	g.mem.ReadDevice(o.Addr, raw)
	t := &texture{w: o.W, h: o.H, pix: make([]Color, o.W*o.H)}
	for y := 0; y < o.H; y++ {
		for x := 0; x < o.W; x++ {
			var c Color
			switch o.Format {
			case texconv.RGBA8:
				c.R, c.G, c.B, c.A = texconv.RGBA8At(raw, x, y, o.W)
			case texconv.RGB565:
				c.R, c.G, c.B = texconv.Unpack565(texconv.RGB565At(raw, x, y, o.W))
				c.A = 0xFF
			case texconv.CI8:
				c = g.tluts[o.Tlut].color(texconv.CI8At(raw, x, y, o.W))
			}
			t.pix[y*o.W+x] = c
		}
	}
	g.texCache[key] = t
	g.stats.TexLoads++
	return t
}

func (p *tmemTlut) color(i uint8) Color {
	if int(i) >= len(p.entries) {
		return Color{}
	}
	e := p.entries[i]
	if p.format == TlutRGB565 {
		r, g, b := texconv.Unpack565(e)
		return Color{r, g, b, 0xFF}
	}
	// IA8: alpha in the high byte, intensity in the low byte
	in := uint8(e)
	return Color{in, in, in, uint8(e >> 8)}
}

func wrapCoord(v, n int, w Wrap) int {
	if w == Repeat {
		v %= n
		if v < 0 {
			v += n
		}
		return v
	}
	if v < 0 {
		return 0
	}
	if v >= n {
		return n - 1
	}
	return v
}

func (t *texture) at(x, y int, o *TexObj) Color {
	return t.pix[wrapCoord(y, t.h, o.WrapT)*t.w+wrapCoord(x, t.w, o.WrapS)]
}

// sample reads the texture at normalized coordinates.
func (t *texture) sample(s, tc float32, o *TexObj) Color {
	u := s * float32(t.w)
	v := tc * float32(t.h)
	if o.MagF == Near {
		return t.at(floor(u), floor(v), o)
	}
	u -= 0.5
	v -= 0.5
	x0, y0 := floor(u), floor(v)
	fx, fy := u-float32(x0), v-float32(y0)
	c00 := t.at(x0, y0, o)
	c10 := t.at(x0+1, y0, o)
	c01 := t.at(x0, y0+1, o)
	c11 := t.at(x0+1, y0+1, o)
	mix := func(a, b, c, d uint8) uint8 {
		top := float32(a)*(1-fx) + float32(b)*fx
		bot := float32(c)*(1-fx) + float32(d)*fx
		return uint8(top*(1-fy) + bot*fy + 0.5)
	}
	return Color{
		mix(c00.R, c10.R, c01.R, c11.R),
		mix(c00.G, c10.G, c01.G, c11.G),
		mix(c00.B, c10.B, c01.B, c11.B),
		mix(c00.A, c10.A, c01.A, c11.A),
	}
}

func floor(v float32) int {
	i := int(v)
	if float32(i) > v {
		i--
	}
	return i
}
