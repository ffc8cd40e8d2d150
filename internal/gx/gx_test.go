package gx

import (
	"errors"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

func newTestGX(t *testing.T) (*GX, *mem.Arena) {
	t.Helper()
	m := mem.New(0x80000000, 4<<20)
	g := New(m, Config{})
	g.SetViewport(0, 0, 640, 480, 0, 1)
	g.LoadProjectionMtx(Ortho(0, 480, 0, 640, 0, 1))
	return g, m
}

func colorQuad(t *testing.T, g *GX, x0, y0, x1, y1, z float32, c Color) {
	t.Helper()
	g.ClearVtxDesc()
	g.SetVtxDesc(VAPos, DescDirect)
	g.SetVtxDesc(VAClr0, DescDirect)
	g.SetNumTevStages(1)
	g.SetTevOp(0, PassClr)
	g.SetTevOrder(0, 0, TexMapNull, Color0A0)
	g.Begin(Quads, 4)
	for _, p := range [][2]float32{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}} {
		g.Position3f32(p[0], p[1], z)
		g.Color4u8(c.R, c.G, c.B, c.A)
	}
	if err := g.End(); err != nil {
		t.Fatal(err)
	}
}

func TestQuadCoverage(t *testing.T) {
	g, _ := newTestGX(t)
	red := Color{255, 0, 0, 255}
	colorQuad(t, g, 10, 10, 20, 20, 0, red)
	if g.Pending() != 1 {
		t.Fatalf("pending got %d want 1", g.Pending())
	}
	if got := g.EFBPixel(10, 10); got != (Color{}) {
		t.Fatalf("draw executed before DrawDone: %v", got)
	}
	g.DrawDone()
	cases := []struct {
		x, y int
		want Color
	}{
		{10, 10, red},
		{19, 19, red},
		{15, 12, red},
		{9, 10, Color{}},
		{20, 20, Color{}},
		{15, 20, Color{}},
	}
	for _, c := range cases {
		if got := g.EFBPixel(c.x, c.y); got != c.want {
			t.Fatalf("pixel (%d,%d) got %v want %v", c.x, c.y, got, c.want)
		}
	}
	st := g.Stats()
	if st.Triangles != 2 || st.LastVertices != 4 || st.LastAttrs != 2 || st.Drains != 1 {
		t.Fatalf("stats got %+v", st)
	}
}

func TestSharedEdgeDrawnOnce(t *testing.T) {
	g, _ := newTestGX(t)
	g.SetBlendMode(BlendBlend, BLSrcAlpha, BLOne)
	colorQuad(t, g, 0, 0, 4, 4, 0, Color{200, 0, 0, 128})
	g.DrawDone()
	want := g.EFBPixel(1, 0)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if got := g.EFBPixel(x, y); got != want {
				t.Fatalf("pixel (%d,%d) got %v want %v", x, y, got, want)
			}
		}
	}
}

func TestDepthOrdering(t *testing.T) {
	g, _ := newTestGX(t)
	red := Color{255, 0, 0, 255}
	colorQuad(t, g, 0, 0, 8, 8, 0.5, red)
	colorQuad(t, g, 0, 0, 16, 16, 0, Color{0, 0, 255, 255})
	g.DrawDone()
	if got := g.EFBPixel(4, 4); got != red {
		t.Fatalf("far quad overwrote near one: %v", got)
	}
	if got := g.EFBPixel(12, 12); got.B != 255 {
		t.Fatalf("far quad missing where nothing was drawn: %v", got)
	}
}

func TestEndValidatesDescriptor(t *testing.T) {
	g, _ := newTestGX(t)
	g.ClearVtxDesc()
	g.SetVtxDesc(VAPos, DescDirect)
	g.SetVtxDesc(VAClr0, DescDirect)
	g.Begin(Triangles, 3)
	g.Position2f32(0, 0)
	g.Color4u8(1, 2, 3, 4)
	g.Position2f32(1, 0)
	g.Position2f32(1, 1)
	g.Color4u8(1, 2, 3, 4)
	if err := g.End(); !errors.Is(err, ErrVertexFormat) {
		t.Fatalf("got %v want ErrVertexFormat", err)
	}
	g.Begin(Triangles, 3)
	g.Position2f32(0, 0)
	g.Color4u8(1, 2, 3, 4)
	if err := g.End(); !errors.Is(err, ErrVertexCount) {
		t.Fatalf("got %v want ErrVertexCount", err)
	}
	if g.Pending() != 0 {
		t.Fatalf("invalid draws were queued: %d", g.Pending())
	}
}

func TestTextureCacheNeedsInvalidate(t *testing.T) {
	g, m := newTestGX(t)
	const w, h = 8, 8
	blk, err := m.Alloc(texconv.BufferSize(w, h, texconv.RGB565), 32)
	if err != nil {
		t.Fatal(err)
	}
	fill := func(v uint16) {
		lin := make([]byte, w*h*2)
		for i := 0; i < len(lin); i += 2 {
			lin[i], lin[i+1] = byte(v>>8), byte(v)
		}
		if err := texconv.ToRGB565(blk.Data, lin, w, h, w*2); err != nil {
			t.Fatal(err)
		}
		m.StoreRange(blk.Addr, blk.Size())
	}
	draw := func() {
		g.ClearVtxDesc()
		g.SetVtxDesc(VAPos, DescDirect)
		g.SetVtxDesc(VATex0, DescDirect)
		g.SetTevOp(0, Replace)
		g.SetTevOrder(0, 0, 0, Color0A0)
		o := InitTexObj(blk.Addr, w, h, texconv.RGB565, Clamp, Clamp)
		o.SetFilter(Near, Near)
		g.LoadTexObj(o, 0)
		g.Begin(Quads, 4)
		for _, p := range [][4]float32{{0, 0, 0, 0}, {8, 0, 1, 0}, {8, 8, 1, 1}, {0, 8, 0, 1}} {
			g.Position2f32(p[0], p[1])
			g.TexCoord2f32(p[2], p[3])
		}
		if err := g.End(); err != nil {
			t.Fatal(err)
		}
		g.DrawDone()
	}

	fill(0xF800)
	draw()
	if got := g.EFBPixel(3, 3); got != (Color{255, 0, 0, 255}) {
		t.Fatalf("texel got %v want red", got)
	}
	fill(0x001F)
	draw()
	if got := g.EFBPixel(3, 3); got.R != 255 {
		t.Fatalf("cached texture was re-read without invalidation: %v", got)
	}
	g.InvalidateTexAll()
	draw()
	if got := g.EFBPixel(3, 3); got != (Color{0, 0, 255, 255}) {
		t.Fatalf("texel after invalidate got %v want blue", got)
	}
}

func TestPaletteSwapCombine(t *testing.T) {
	g, m := newTestGX(t)
	const w, h = 8, 4
	tex, _ := m.Alloc(texconv.BufferSize(w, h, texconv.CI8), 32)
	for i := range tex.Data {
		tex.Data[i] = 1
	}
	m.StoreRange(tex.Addr, tex.Size())
	pa, _ := m.Alloc(512, 32)
	pb, _ := m.Alloc(512, 32)
	// entry 1 = rgb(10, 20, 30)
	pa.Data[2], pa.Data[3] = 20, 10
	pb.Data[3] = 30
	m.StoreRange(pa.Addr, 512)
	m.StoreRange(pb.Addr, 512)
	g.LoadTlut(InitTlutObj(pa.Addr, TlutIA8, 256), 0)
	g.LoadTlut(InitTlutObj(pb.Addr, TlutIA8, 256), 1)

	a := InitTexObjCI(tex.Addr, w, h, texconv.CI8, Clamp, Clamp, 0)
	b := InitTexObjCI(tex.Addr, w, h, texconv.CI8, Clamp, Clamp, 1)
	a.SetFilter(Near, Near)
	b.SetFilter(Near, Near)
	g.LoadTexObj(a, 0)
	g.LoadTexObj(b, 1)
	g.SetTevColor(Reg0, Color{255, 255, 0, 0})
	g.SetTevSwapModeTable(1, ChRed, ChAlpha, ChBlue, ChAlpha)
	g.SetTevSwapModeTable(2, ChAlpha, ChAlpha, ChBlue, ChAlpha)
	g.SetTevOp(0, Replace)
	g.SetTevOrder(0, 0, 0, Color0A0)
	g.SetTevSwapMode(0, 0, 1)
	g.SetTevColorIn(0, CCZero, CCTex, CC0, CCZero)
	g.SetTevOp(1, Blend)
	g.SetTevOrder(1, 0, 1, ColorNull)
	g.SetTevSwapMode(1, 0, 2)
	g.SetTevColorIn(1, CCTex, CCZero, CCZero, CCPrev)
	g.SetTevAlphaIn(1, CAAZero, CAAZero, CAAZero, CAAKonst)
	g.SetNumTevStages(2)

	g.ClearVtxDesc()
	g.SetVtxDesc(VAPos, DescDirect)
	g.SetVtxDesc(VATex0, DescDirect)
	g.Begin(Quads, 4)
	for _, p := range [][4]float32{{0, 0, 0, 0}, {8, 0, 1, 0}, {8, 4, 1, 1}, {0, 4, 0, 1}} {
		g.Position2f32(p[0], p[1])
		g.TexCoord2f32(p[2], p[3])
	}
	if err := g.End(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()
	if got := g.EFBPixel(2, 2); got != (Color{10, 20, 30, 255}) {
		t.Fatalf("palette pixel got %v want {10 20 30 255}", got)
	}
}

func TestCopyDispScalesAndClears(t *testing.T) {
	g, m := newTestGX(t)
	colorQuad(t, g, 0, 0, 640, 480, 0, Color{0, 255, 0, 255})
	g.SetDispCopySrc(0, 0, 640, 480)
	g.SetDispCopyDst(320, 240)
	g.SetCopyClear(Color{0, 0, 0, 255}, 1)
	xfb, err := m.Alloc(320*240*XFBBytesPerPixel, 32)
	if err != nil {
		t.Fatal(err)
	}
	g.CopyDisp(xfb.Addr, true)
	g.DrawDone()

	out := make([]byte, xfb.Size())
	m.ReadDevice(xfb.Addr, out)
	for _, off := range []int{0, (120*320 + 160) * 4, len(out) - 4} {
		if out[off] != 0 || out[off+1] != 255 || out[off+2] != 0 {
			t.Fatalf("xfb at %d got % x want green", off, out[off:off+4])
		}
	}
	if got := g.EFBPixel(100, 100); got != (Color{0, 0, 0, 255}) {
		t.Fatalf("efb not cleared: %v", got)
	}
	if got := g.EFBDepth(100, 100); got != 1 {
		t.Fatalf("depth not cleared: %v", got)
	}
}
