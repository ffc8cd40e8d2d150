package gx

import (
	"image"
	"math"
)

type drawCmd struct {
	prim  Primitive
	verts []vertex
	st    *state
}

// screenVertex is a vertex after transform and viewport mapping.
type screenVertex struct {
	x, y, z float64
	c       [4]float64
	s, t    float64
}

// drawCtx carries what every fragment of a draw needs.
type drawCtx struct {
	g    *GX
	st   *state
	clip image.Rectangle
	texs [8]*texture
	hasC bool
	hasT bool
}

func (c *drawCmd) exec(g *GX) {
	st := c.st
	ctx := &drawCtx{
		g:    g,
		st:   st,
		clip: st.scissor.Intersect(g.efb.Rect),
		hasC: st.desc[VAClr0] != DescNone,
		hasT: st.desc[VATex0] != DescNone,
	}
	for i := 0; i < st.numStages; i++ {
		m := st.stages[i].TexMap
		if m == TexMapNull || m < 0 || m >= len(st.texmaps) || !st.texLoaded[m] || ctx.texs[m] != nil {
			continue
		}
		ctx.texs[m] = g.lookupTexture(&st.texmaps[m])
	}

	sv := make([]screenVertex, len(c.verts))
	mtx := st.pos[st.curMtx]
	for i, v := range c.verts {
		x, y, z := mtx.Apply(v.x, v.y, v.z)
		nx, ny, nz := st.proj.project(x, y, z)
		sv[i] = screenVertex{
			x: snap(float64(st.vp.x) + float64(nx+1)*float64(st.vp.w)/2),
			y: snap(float64(st.vp.y) + float64(1-ny)*float64(st.vp.h)/2),
			z: float64(st.vp.near) + float64(nz)*float64(st.vp.far-st.vp.near),
			c: [4]float64{float64(v.c.R), float64(v.c.G), float64(v.c.B), float64(v.c.A)},
			s: float64(v.s),
			t: float64(v.t),
		}
	}

	g.stats.Draws++
	g.stats.Vertices += len(sv)
	g.stats.LastPrim = c.prim
	g.stats.LastVertices = len(sv)
	g.stats.LastStages = st.numStages
	g.stats.LastAttrs = 0
	for _, d := range st.desc {
		if d != DescNone {
			g.stats.LastAttrs++
		}
	}

	switch c.prim {
	case Triangles:
		for i := 0; i+2 < len(sv); i += 3 {
			ctx.triangle(&sv[i], &sv[i+1], &sv[i+2])
		}
	case TriangleStrip:
		for i := 0; i+2 < len(sv); i++ {
			ctx.triangle(&sv[i], &sv[i+1], &sv[i+2])
		}
	case TriangleFan:
		for i := 1; i+1 < len(sv); i++ {
			ctx.triangle(&sv[0], &sv[i], &sv[i+1])
		}
	case Quads:
		for i := 0; i+3 < len(sv); i += 4 {
			ctx.triangle(&sv[i], &sv[i+1], &sv[i+2])
			ctx.triangle(&sv[i], &sv[i+2], &sv[i+3])
		}
	case Lines:
		for i := 0; i+1 < len(sv); i += 2 {
			ctx.line(&sv[i], &sv[i+1])
		}
	case LineStrip:
		for i := 0; i+1 < len(sv); i++ {
			ctx.line(&sv[i], &sv[i+1])
		}
	case Points:
		for i := range sv {
			ctx.fragment(int(math.Floor(sv[i].x)), int(math.Floor(sv[i].y)), &sv[i], nil, nil, 1, 0, 0)
		}
	}
}

// snap rounds a screen coordinate to the 1/16 pixel grid of the setup unit.
func snap(v float64) float64 {
	return math.Round(v*16) / 16
}

func edge(a, b *screenVertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether edge a→b is a top or left edge of a triangle
// with positive area, so shared edges are rasterized exactly once.
func topLeft(a, b *screenVertex) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return (dy == 0 && dx > 0) || dy < 0
}

func (ctx *drawCtx) triangle(a, b, c *screenVertex) {
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}
	if area < 0 {
		b, c = c, b
		area = -area
	}
	ctx.g.stats.Triangles++
	minX := int(math.Floor(math.Min(a.x, math.Min(b.x, c.x))))
	maxX := int(math.Ceil(math.Max(a.x, math.Max(b.x, c.x))))
	minY := int(math.Floor(math.Min(a.y, math.Min(b.y, c.y))))
	maxY := int(math.Ceil(math.Max(a.y, math.Max(b.y, c.y))))
	r := image.Rect(minX, minY, maxX+1, maxY+1).Intersect(ctx.clip)
	tlA, tlB, tlC := topLeft(b, c), topLeft(c, a), topLeft(a, b)
	for py := r.Min.Y; py < r.Max.Y; py++ {
		fy := float64(py) + 0.5
		for px := r.Min.X; px < r.Max.X; px++ {
			fx := float64(px) + 0.5
			w0 := edge(b, c, fx, fy)
			w1 := edge(c, a, fx, fy)
			w2 := edge(a, b, fx, fy)
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			if (w0 == 0 && !tlA) || (w1 == 0 && !tlB) || (w2 == 0 && !tlC) {
				continue
			}
			ctx.fragment(px, py, a, b, c, w0/area, w1/area, w2/area)
		}
	}
}

func (ctx *drawCtx) line(a, b *screenVertex) {
	dx, dy := b.x-a.x, b.y-a.y
	n := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
	if n == 0 {
		ctx.fragment(int(math.Floor(a.x)), int(math.Floor(a.y)), a, nil, nil, 1, 0, 0)
		return
	}
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n)
		x := a.x + dx*f
		y := a.y + dy*f
		ctx.fragment(int(math.Floor(x)), int(math.Floor(y)), a, b, nil, 1-f, f, 0)
	}
}

func interp(wa, wb, wc, a, b, c float64) float64 {
	return wa*a + wb*b + wc*c
}

// fragment shades and writes one pixel. b and c may be nil when their
// weights are zero.
func (ctx *drawCtx) fragment(px, py int, a, b, c *screenVertex, wa, wb, wc float64) {
	if !(image.Point{px, py}).In(ctx.clip) {
		return
	}
	if b == nil {
		b = a
	}
	if c == nil {
		c = a
	}
	st := ctx.st
	g := ctx.g
	z := float32(interp(wa, wb, wc, a.z, b.z, c.z))
	di := py*g.cfg.EFBWidth + px
	if st.z.enable && !compare(st.z.fn, z, g.depth[di]) {
		return
	}

	in := tevInputs{regs: st.regs, konst: st.konst}
	ras := Color{255, 255, 255, 255}
	if ctx.hasC {
		var v [4]uint8
		for i := 0; i < 4; i++ {
			f := interp(wa, wb, wc, a.c[i], b.c[i], c.c[i])
			v[i] = uint8(math.Max(0, math.Min(255, math.Round(f))))
		}
		ras = Color{v[0], v[1], v[2], v[3]}
	}
	s := float32(interp(wa, wb, wc, a.s, b.s, c.s))
	t := float32(interp(wa, wb, wc, a.t, b.t, c.t))
	for i := 0; i < st.numStages; i++ {
		stage := &st.stages[i]
		in.ras = Color{}
		if stage.Chan == Color0A0 {
			in.ras = st.swaps[stage.RasSwap].apply(ras)
		}
		in.tex = Color{}
		if m := stage.TexMap; m != TexMapNull && m >= 0 && m < len(ctx.texs) && ctx.texs[m] != nil {
			in.tex = st.swaps[stage.TexSwap].apply(ctx.texs[m].sample(s, t, &st.texmaps[m]))
		}
		stage.run(&in)
	}
	src := in.regs[RegPrev]

	off := g.efb.PixOffset(px, py)
	pix := g.efb.Pix[off : off+4 : off+4]
	dst := Color{pix[0], pix[1], pix[2], pix[3]}
	out := blend(st.blend, src, dst)
	pix[0], pix[1], pix[2], pix[3] = out.R, out.G, out.B, out.A
	if st.z.enable && st.z.update {
		g.depth[di] = z
	}
}

func compare(fn CompareFunc, z, stored float32) bool {
	switch fn {
	case Never:
		return false
	case Less:
		return z < stored
	case Equal:
		return z == stored
	case LEqual:
		return z <= stored
	case Greater:
		return z > stored
	case NEqual:
		return z != stored
	case GEqual:
		return z >= stored
	}
	return true
}

func factor(f BlendFactor, src, dst Color) [4]int {
	switch f {
	case BLOne:
		return [4]int{255, 255, 255, 255}
	case BLSrcClr:
		return [4]int{int(src.R), int(src.G), int(src.B), int(src.A)}
	case BLInvSrcClr:
		return [4]int{255 - int(src.R), 255 - int(src.G), 255 - int(src.B), 255 - int(src.A)}
	case BLDstClr:
		return [4]int{int(dst.R), int(dst.G), int(dst.B), int(dst.A)}
	case BLInvDstClr:
		return [4]int{255 - int(dst.R), 255 - int(dst.G), 255 - int(dst.B), 255 - int(dst.A)}
	case BLSrcAlpha:
		a := int(src.A)
		return [4]int{a, a, a, a}
	case BLInvSrcAlpha:
		a := 255 - int(src.A)
		return [4]int{a, a, a, a}
	case BLDstAlpha:
		a := int(dst.A)
		return [4]int{a, a, a, a}
	case BLInvDstAlpha:
		a := 255 - int(dst.A)
		return [4]int{a, a, a, a}
	}
	return [4]int{}
}

func blend(b blendState, src, dst Color) Color {
	switch b.typ {
	case BlendBlend:
		sf := factor(b.src, src, dst)
		df := factor(b.dst, src, dst)
		s := [4]int{int(src.R), int(src.G), int(src.B), int(src.A)}
		d := [4]int{int(dst.R), int(dst.G), int(dst.B), int(dst.A)}
		var o [4]uint8
		for i := range o {
			v := (s[i]*sf[i] + d[i]*df[i] + 127) / 255
			if v > 255 {
				v = 255
			}
			o[i] = uint8(v)
		}
		return Color{o[0], o[1], o[2], o[3]}
	case BlendSubtract:
		sub := func(d, s uint8) uint8 {
			if s > d {
				return 0
			}
			return d - s
		}
		return Color{sub(dst.R, src.R), sub(dst.G, src.G), sub(dst.B, src.B), sub(dst.A, src.A)}
	}
	return src
}
