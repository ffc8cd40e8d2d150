package surface

import (
	"encoding/binary"
	"errors"
	"image/color"
	"testing"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

func newTestStore(t *testing.T) (*Store, *gx.GX, *mem.Arena) {
	t.Helper()
	m := mem.New(0x80000000, 4<<20)
	g := gx.New(m, gx.Config{EFBWidth: 640, EFBHeight: 480})
	return New(g, m, Config{}), g, m
}

func fill16(s *Surface, v uint16) {
	for i := 0; i < len(s.Pixels); i += 2 {
		binary.BigEndian.PutUint16(s.Pixels[i:], v)
	}
}

func px16(s *Surface, x, y int) uint16 {
	return binary.BigEndian.Uint16(s.Pixels[y*s.Pitch+x*2:])
}

func TestEnsureCurrentIsIdempotent(t *testing.T) {
	st, g, _ := newTestStore(t)
	s, err := st.CreateSurface(16, 16, texconv.RGB565Px)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Lock(s); err != nil {
		t.Fatal(err)
	}
	fill16(s, 0xF800)
	st.Unlock(s)

	did, err := st.EnsureCurrent(s)
	if err != nil || !did {
		t.Fatalf("first EnsureCurrent got %v, %v", did, err)
	}
	did, err = st.EnsureCurrent(s)
	if err != nil || did {
		t.Fatalf("second EnsureCurrent got %v, %v", did, err)
	}
	if st.Conversions() != 1 || s.Dirty() {
		t.Fatalf("conversions=%d dirty=%v", st.Conversions(), s.Dirty())
	}
	if got := texconv.RGB565At(s.Tex.Block.Data, 3, 3, 16); got != 0xF800 {
		t.Fatalf("texel got %#04x", got)
	}
	g.DrawDone()
	if g.Stats().Invalidates != 1 {
		t.Fatalf("texture cache invalidations got %d want 1", g.Stats().Invalidates)
	}
}

func TestCreateRejectsTinyAndExhaustion(t *testing.T) {
	st, _, _ := newTestStore(t)
	if _, err := st.CreateSurface(4, 16, texconv.RGB565Px); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
	sm := mem.New(0, 1024)
	small := New(gx.New(sm, gx.Config{}), sm, Config{})
	if _, err := small.CreateTexture(64, 64, texconv.RGBA8); !errors.Is(err, mem.ErrOutOfMemory) {
		t.Fatalf("got %v want ErrOutOfMemory", err)
	}
	tex, err := st.CreateTexture(8, 8, texconv.CI8)
	if err != nil {
		t.Fatal(err)
	}
	if tex.Stages() != 2 || tex.Block.Addr%TextureAlign != 0 || tex.Block.Size() != 64 {
		t.Fatalf("texture got stages=%d addr=%#x size=%d", tex.Stages(), tex.Block.Addr, tex.Block.Size())
	}
	st.DestroyTexture(tex)
}

func TestUpdateTextureWholeOnly(t *testing.T) {
	st, _, m := newTestStore(t)
	tex, _ := st.CreateTexture(8, 8, texconv.RGB565)
	pix := make([]byte, 8*8*2)
	if err := st.UpdateTexture(tex, Rect{0, 0, 4, 4}, pix, 16, texconv.RGB565Px); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("partial update got %v want ErrUnsupported", err)
	}
	for i := 0; i < len(pix); i += 2 {
		pix[i] = 0x07
		pix[i+1] = 0xE0
	}
	if err := st.UpdateTexture(tex, Rect{}, pix, 16, texconv.RGB565Px); err != nil {
		t.Fatal(err)
	}
	dev := make([]byte, tex.Block.Size())
	m.ReadDevice(tex.Block.Addr, dev)
	if got := texconv.RGB565At(dev, 7, 7, 8); got != 0x07E0 {
		t.Fatalf("device texel got %#04x, texture not flushed", got)
	}
	if err := st.LockTexture(tex); err != nil {
		t.Fatal(err)
	}
	st.UnlockTexture(tex)
}

func TestScreenDrawnBehindFrameOps(t *testing.T) {
	st, g, _ := newTestStore(t)
	scr, err := st.CreateScreen(64, 64, texconv.RGB565Px)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.FillRect(scr, Rect{8, 8, 8, 8}, 0x001F); err != nil {
		t.Fatal(err)
	}
	if scr.Ops() != 1 {
		t.Fatalf("ops got %d want 1", scr.Ops())
	}
	fill16(scr, 0xF800)
	st.Unlock(scr)
	if err := st.MaterializeScreen(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()

	if got := g.EFBPixel(10, 10); got != (gx.Color{R: 0, G: 0, B: 255, A: 255}) {
		t.Fatalf("fill got %v want blue on top of the screen", got)
	}
	if got := g.EFBPixel(30, 30); got != (gx.Color{R: 255, G: 0, B: 0, A: 255}) {
		t.Fatalf("screen got %v want red", got)
	}
	if scr.Ops() != 0 || scr.Dirty() {
		t.Fatalf("ops=%d dirty=%v after materialize", scr.Ops(), scr.Dirty())
	}
}

func TestLockReadsBackScreen(t *testing.T) {
	st, g, _ := newTestStore(t)
	scr, _ := st.CreateScreen(64, 64, texconv.RGB565Px)
	if err := st.FillRect(scr, Rect{0, 0, 16, 16}, 0x07E0); err != nil {
		t.Fatal(err)
	}
	if err := st.Lock(scr); err != nil {
		t.Fatal(err)
	}
	if !scr.Locked() {
		t.Fatal("lock not recorded")
	}
	if got := px16(scr, 4, 4); got != 0x07E0 {
		t.Fatalf("read back (4,4) got %#04x want green", got)
	}
	if got := px16(scr, 40, 40); got != 0 {
		t.Fatalf("read back (40,40) got %#04x want black", got)
	}
	if scr.Ops() != 0 {
		t.Fatalf("ops not reset: %d", scr.Ops())
	}
	if g.Stats().TexCopies != 1 {
		t.Fatalf("tex copies got %d", g.Stats().TexCopies)
	}
	st.Unlock(scr)
	if !scr.Dirty() {
		t.Fatal("unlock did not mark the screen dirty")
	}
}

func TestPaletteScreen(t *testing.T) {
	st, g, _ := newTestStore(t)
	scr, err := st.CreateScreen(64, 64, texconv.Index8)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SetColors(1, []color.RGBA{{10, 20, 30, 255}}); err != nil {
		t.Fatal(err)
	}
	for i := range scr.Pixels {
		scr.Pixels[i] = 1
	}
	st.Unlock(scr)
	if err := st.MaterializeScreen(); err != nil {
		t.Fatal(err)
	}
	g.DrawDone()
	if got := g.EFBPixel(5, 5); got != (gx.Color{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("palette pixel got %v", got)
	}
	if n := g.Stats().LastStages; n != 2 {
		t.Fatalf("stages got %d want 2", n)
	}
	if got := st.MapRGBA(scr, color.RGBA{10, 20, 30, 255}); got != 1 {
		t.Fatalf("MapRGBA got %d want 1", got)
	}
	if err := st.SetColors(250, make([]color.RGBA, 10)); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("got %v want ErrUnsupported", err)
	}
}

func TestOffscreenOps(t *testing.T) {
	st, g, _ := newTestStore(t)
	scr, _ := st.CreateScreen(64, 64, texconv.RGB565Px)
	src, _ := st.CreateSurface(16, 16, texconv.RGBA8888)
	if err := st.FillRect(src, Rect{-4, -4, 100, 100}, 0x00FF00FF); err != nil {
		t.Fatal(err)
	}
	if !src.Dirty() || src.Pixels[len(src.Pixels)-3] != 0xFF {
		t.Fatal("software fill did not reach the pixels")
	}
	other, _ := st.CreateSurface(16, 16, texconv.RGBA8888)
	if err := st.Blit(src, Rect{}, other, Rect{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("off-screen blit got %v want ErrUnsupported", err)
	}

	if err := st.Blit(src, Rect{}, scr, Rect{X: 4, Y: 4}); err != nil {
		t.Fatal(err)
	}
	if got := g.EFBPixel(10, 10); got != (gx.Color{R: 0, G: 255, B: 0, A: 255}) {
		t.Fatalf("blit got %v want green", got)
	}
	if got := g.EFBPixel(2, 2); got != (gx.Color{}) {
		t.Fatalf("outside blit got %v", got)
	}
	if src.Dirty() || scr.Ops() != 1 {
		t.Fatalf("dirty=%v ops=%d", src.Dirty(), scr.Ops())
	}
	st.FreeSurface(scr)
	if st.Screen() != nil {
		t.Fatal("freed screen still attached")
	}
}
