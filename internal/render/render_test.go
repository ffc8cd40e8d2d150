package render

import (
	"errors"
	"image/color"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// fakeDisplay sets up the viewport like the presenter without any VI.
type fakeDisplay struct {
	g     *gx.GX
	pan   int
	flips int
	vsync bool
}

func (d *fakeDisplay) SetViewport(x, y, w, h int, honourPan bool) {
	if honourPan {
		y += d.pan
	}
	d.g.SetViewport(float32(x), float32(y), float32(w), float32(h), 0, 1)
	d.g.SetScissor(x, y, w, h)
	d.g.LoadProjectionMtx(gx.Ortho(0, float32(h), 0, float32(w), 0, 1))
}

func (d *fakeDisplay) Pan() int { return d.pan }

func (d *fakeDisplay) Flip(vsync bool) error {
	d.flips++
	d.vsync = vsync
	return nil
}

func newRenderer(t *testing.T, cfg Config) (*Renderer, *gx.GX, *fakeDisplay) {
	t.Helper()
	m := mem.New(0x80000000, 2<<20)
	g := gx.New(m, gx.Config{EFBWidth: 64, EFBHeight: 64})
	d := &fakeDisplay{g: g}
	r := New(g, surface.New(g, m, surface.Config{}), d, 64, 64, cfg)
	r.QueueSetViewport(surface.Rect{W: 64, H: 64})
	return r, g, d
}

var (
	red   = color.RGBA{0xFF, 0, 0, 0xFF}
	blue  = color.RGBA{0, 0, 0xFF, 0xFF}
	white = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
)

func quadMesh(size float32, c color.RGBA) Mesh {
	return Mesh{
		XY:          []float32{0, 0, size, 0, size, size, 0, size},
		Colors:      []color.RGBA{c, c, c, c},
		UV:          []float32{0, 0, 1, 0, 1, 1, 0, 1},
		NumVertices: 4,
		Indices:     []byte{0, 1, 2, 0, 2, 3},
		IndexSize:   1,
	}
}

func solidTexture(t *testing.T, r *Renderer, c color.RGBA) *surface.Texture {
	t.Helper()
	tex, err := r.CreateTexture(8, 8, texconv.RGBA8888)
	if err != nil {
		t.Fatal(err)
	}
	pix := make([]byte, 8*8*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = c.R, c.G, c.B, c.A
	}
	if err := r.UpdateTexture(tex, surface.Rect{}, pix, 32, texconv.RGBA8888); err != nil {
		t.Fatal(err)
	}
	return tex
}

func TestClearThenFillRects(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	r.QueueClear(red)
	r.QueueSetDrawColor(blue)
	rects := []FRect{{8, 8, 8, 8}, {40, 40, 8, 8}}
	if err := r.QueueFillRects(rects, BlendNone); err != nil {
		t.Fatal(err)
	}
	if err := r.RunCommandQueue(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()

	for _, tc := range []struct {
		x, y int
		want gx.Color
	}{
		{2, 2, gx.Color{R: 255, G: 0, B: 0, A: 255}},
		{10, 10, gx.Color{R: 0, G: 0, B: 255, A: 255}},
		{44, 44, gx.Color{R: 0, G: 0, B: 255, A: 255}},
		{30, 30, gx.Color{R: 255, G: 0, B: 0, A: 255}},
	} {
		if got := g.EFBPixel(tc.x, tc.y); got != tc.want {
			t.Fatalf("(%d,%d) got %v want %v", tc.x, tc.y, got, tc.want)
		}
	}
	if len(r.Pending()) != 0 || r.ArenaUsed() != 0 {
		t.Fatalf("queue not reset: %d commands, %d bytes", len(r.Pending()), r.ArenaUsed())
	}
}

type unknownCommand struct{}

func (unknownCommand) command() {}

func TestFailingCommandDoesNotStopQueue(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	r.QueueClear(red)
	r.cmds = append(r.cmds, unknownCommand{})
	r.QueueSetDrawColor(blue)
	if err := r.QueueFillRects([]FRect{{8, 8, 8, 8}}, BlendNone); err != nil {
		t.Fatal(err)
	}
	err := r.RunCommandQueue()
	if !errors.Is(err, surface.ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
	g.DrawDone()
	if got := g.EFBPixel(10, 10); got != (gx.Color{R: 0, G: 0, B: 255, A: 255}) {
		t.Fatalf("rect after the failing command got %v", got)
	}
	if len(r.Pending()) != 0 {
		t.Fatal("queue not reset after a failed run")
	}
}

func TestGeometryDirectTextureBlend(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	tex := solidTexture(t, r, white)
	if err := r.QueueGeometry(tex, BlendBlend, quadMesh(16, color.RGBA{0, 0xFF, 0, 0xFF})); err != nil {
		t.Fatal(err)
	}
	if err := r.RunCommandQueue(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()
	s := g.Stats()
	if s.LastStages != 1 || s.LastAttrs != 3 || s.LastVertices != 6 || s.LastPrim != gx.Triangles {
		t.Fatalf("draw got stages=%d attrs=%d vertices=%d prim=%v", s.LastStages, s.LastAttrs, s.LastVertices, s.LastPrim)
	}
	if got := g.EFBPixel(4, 4); got != (gx.Color{R: 0, G: 255, B: 0, A: 255}) {
		t.Fatalf("modulated texel got %v", got)
	}
}

func TestBlendNoneBlackensTransparentTexels(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	r.QueueClear(blue)
	tex := solidTexture(t, r, color.RGBA{0xFF, 0, 0, 0})
	if err := r.QueueGeometry(tex, BlendNone, quadMesh(16, white)); err != nil {
		t.Fatal(err)
	}
	if err := r.RunCommandQueue(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()
	if got := g.EFBPixel(4, 4); got != (gx.Color{R: 0, G: 0, B: 0, A: 255}) {
		t.Fatalf("transparent texel got %v want opaque black", got)
	}
	if got := g.Stats().LastStages; got != 2 {
		t.Fatalf("stages got %d want 2", got)
	}
}

func TestStageTotals(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	direct := solidTexture(t, r, white)
	pal, err := r.store.CreateTexture(8, 8, texconv.CI8)
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		tex  *surface.Texture
		mode BlendMode
		want int
	}{
		{direct, BlendBlend, 1},
		{direct, BlendMod, 1},
		{direct, BlendNone, 2},
		{pal, BlendBlend, 3},
		{pal, BlendMod, 3},
		{pal, BlendNone, 4},
	} {
		if got := StagesFor(tc.tex, tc.mode); got != tc.want {
			t.Fatalf("%v/%v planned %d stages want %d", tc.tex.Format, tc.mode, got, tc.want)
		}
		if err := r.QueueGeometry(tc.tex, tc.mode, quadMesh(8, white)); err != nil {
			t.Fatal(err)
		}
		if err := r.RunCommandQueue(); err != nil {
			t.Fatal(err)
		}
		g.DrawDone()
		if got := g.Stats().LastStages; got != tc.want || got > gx.MaxTevStages {
			t.Fatalf("%v/%v drew with %d stages want %d", tc.tex.Format, tc.mode, got, tc.want)
		}
	}
	if StagesFor(nil, BlendNone) != 1 {
		t.Fatal("untextured draws use one stage")
	}
}

func TestArenaExhaustionDropsCommand(t *testing.T) {
	r, _, _ := newRenderer(t, Config{ArenaBytes: 64})
	if err := r.QueueDrawPoints(make([]Point, 4), BlendNone); err != nil {
		t.Fatal(err)
	}
	if err := r.QueueFillRects([]FRect{{0, 0, 4, 4}}, BlendNone); err != nil {
		t.Fatal(err)
	}
	if err := r.QueueDrawLines(make([]Point, 2), BlendNone); !errors.Is(err, mem.ErrOutOfMemory) {
		t.Fatalf("got %v want ErrOutOfMemory", err)
	}
	if n := len(r.Pending()); n != 3 {
		t.Fatalf("pending got %d want 3", n)
	}
	if err := r.RunCommandQueue(); err != nil {
		t.Fatal(err)
	}
	if err := r.QueueDrawLines(make([]Point, 2), BlendNone); err != nil {
		t.Fatalf("arena not reset after run: %v", err)
	}
}

func TestGeometryRejectsBadIndices(t *testing.T) {
	r, _, _ := newRenderer(t, Config{})
	m := quadMesh(8, white)
	m.Indices = []byte{0, 1, 9}
	if err := r.QueueGeometry(nil, BlendNone, m); err == nil {
		t.Fatal("index outside the vertex arrays accepted")
	}
	m = quadMesh(8, white)
	m.Indices = []byte{0, 0, 1, 0, 2, 0}
	m.IndexSize = 2
	if err := r.QueueGeometry(nil, BlendNone, m); err != nil {
		t.Fatal(err)
	}
	if got := r.Pending()[len(r.Pending())-1].(Geometry).Count; got != 3 {
		t.Fatalf("16-bit indices got %d vertices want 3", got)
	}
}

func TestClipRect(t *testing.T) {
	r, g, _ := newRenderer(t, Config{})
	r.QueueSetClipRect(surface.Rect{X: 0, Y: 0, W: 8, H: 8}, true)
	r.QueueClear(blue)
	r.QueueSetClipRect(surface.Rect{}, false)
	r.QueueSetDrawColor(red)
	if err := r.QueueDrawPoints([]Point{{30.5, 30.5}}, BlendNone); err != nil {
		t.Fatal(err)
	}
	if err := r.RunCommandQueue(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()
	if got := g.EFBPixel(4, 4); got != (gx.Color{R: 0, G: 0, B: 255, A: 255}) {
		t.Fatalf("inside clip got %v", got)
	}
	if got := g.EFBPixel(20, 20); got != (gx.Color{}) {
		t.Fatalf("outside clip got %v", got)
	}
	if got := g.EFBPixel(30, 30); got != (gx.Color{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("point after clip reset got %v", got)
	}
}

func TestRendererSurface(t *testing.T) {
	r, _, d := newRenderer(t, Config{})
	if info := r.Info(); info.Name != "ogc" || len(info.Formats) != 2 || info.MaxTextureWidth != 1024 {
		t.Fatalf("info got %+v", info)
	}
	if _, err := r.CreateTexture(8, 8, texconv.Index8); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("got %v want ErrUnsupportedFormat", err)
	}
	if _, err := r.CreateTexture(2048, 8, texconv.RGB565Px); !errors.Is(err, surface.ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
	if err := r.ReadPixels(surface.Rect{W: 1, H: 1}, texconv.RGBA8888, make([]byte, 4), 4); !errors.Is(err, surface.ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
	tex := solidTexture(t, r, white)
	if err := r.SetRenderTarget(tex); err == nil {
		t.Fatal("texture render target accepted")
	}
	r.SetTextureScaleMode(tex, gx.Linear)
	if tex.Filter != gx.Linear {
		t.Fatal("scale mode not stored")
	}
	r.DestroyTexture(tex)

	if err := r.Present(); err != nil || d.flips != 1 || !d.vsync {
		t.Fatalf("present got err=%v flips=%d vsync=%v", err, d.flips, d.vsync)
	}
	r.SetVSync(false)
	r.Present()
	if d.vsync {
		t.Fatal("vsync off not passed to the display")
	}
}
