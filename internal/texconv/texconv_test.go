package texconv

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"
)

func randomPixels(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	p := make([]byte, n)
	r.Read(p)
	return p
}

func TestTileOffset(t *testing.T) {
	cases := []struct {
		x, y, w int
		f       Format
		want    int
	}{
		{0, 0, 8, RGBA8, 0},
		{1, 0, 8, RGBA8, 2},
		{0, 1, 8, RGBA8, 8},
		{4, 0, 8, RGBA8, 64},
		{0, 4, 8, RGBA8, 128},
		{3, 3, 8, RGBA8, 30},
		{1, 0, 8, RGB565, 2},
		{4, 0, 8, RGB565, 32},
		{0, 4, 8, RGB565, 64},
		{0, 4, 6, RGB565, 64}, // width padded to 8
		{7, 0, 16, CI8, 7},
		{8, 0, 16, CI8, 32},
		{0, 1, 16, CI8, 8},
		{0, 4, 16, CI8, 64},
	}
	for _, c := range cases {
		if got := TileOffset(c.x, c.y, c.w, c.f); got != c.want {
			t.Fatalf("TileOffset(%d,%d,w=%d,%v) got %d want %d", c.x, c.y, c.w, c.f, got, c.want)
		}
	}
}

func TestBufferSize(t *testing.T) {
	cases := []struct {
		w, h int
		f    Format
		want int
	}{
		{640, 480, RGB565, 640 * 480 * 2},
		{640, 480, RGBA8, 640 * 480 * 4},
		{640, 480, CI8, 640 * 480},
		{5, 5, RGB565, 8 * 8 * 2},
		{9, 3, CI8, 16 * 4},
		{1, 1, RGBA8, 64},
	}
	for _, c := range cases {
		if got := BufferSize(c.w, c.h, c.f); got != c.want {
			t.Fatalf("BufferSize(%d,%d,%v) got %d want %d", c.w, c.h, c.f, got, c.want)
		}
	}
}

func TestRGB565RoundTrip(t *testing.T) {
	for _, sz := range [][2]int{{16, 8}, {8, 8}, {6, 5}} {
		w, h := sz[0], sz[1]
		pitch := w * 2
		src := randomPixels(pitch*h, int64(w*h))
		tex := make([]byte, BufferSize(w, h, RGB565))
		if err := ToRGB565(tex, src, w, h, pitch); err != nil {
			t.Fatal(err)
		}
		back := make([]byte, len(src))
		if err := FromRGB565(back, tex, w, h, pitch); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(src, back) {
			t.Fatalf("%dx%d: 16-bit round trip mismatch", w, h)
		}
	}
}

func TestRGB565BulkMatchesAddressing(t *testing.T) {
	w, h := 8, 8
	src := randomPixels(w*h*2, 7)
	tex := make([]byte, BufferSize(w, h, RGB565))
	if err := ToRGB565(tex, src, w, h, w*2); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := y*w*2 + x*2
			want := uint16(src[s])<<8 | uint16(src[s+1])
			if got := RGB565At(tex, x, y, w); got != want {
				t.Fatalf("texel (%d,%d) got %04x want %04x", x, y, got, want)
			}
		}
	}
}

func TestRGBA8RoundTrip(t *testing.T) {
	for _, pf := range []PixelFormat{RGBA8888, ARGB8888} {
		w, h := 12, 7
		pitch := w * 4
		src := randomPixels(pitch*h, 3)
		tex := make([]byte, BufferSize(w, h, RGBA8))
		if err := ToRGBA8(tex, src, w, h, pitch, pf); err != nil {
			t.Fatal(err)
		}
		back := make([]byte, len(src))
		if err := FromRGBA8(back, tex, w, h, pitch, pf); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(src, back) {
			t.Fatalf("%v: 32-bit round trip mismatch", pf)
		}
	}
}

func TestRGB888IsOpaque(t *testing.T) {
	src := []byte{10, 20, 30, 40, 50, 60}
	tex := make([]byte, BufferSize(2, 1, RGBA8))
	if err := ToRGBA8(tex, src, 2, 1, 6, RGB888); err != nil {
		t.Fatal(err)
	}
	r, g, b, a := RGBA8At(tex, 1, 0, 2)
	if r != 40 || g != 50 || b != 60 || a != 0xFF {
		t.Fatalf("got %d,%d,%d,%d want 40,50,60,255", r, g, b, a)
	}
}

func TestCI8RoundTrip(t *testing.T) {
	w, h := 20, 9
	pitch := 24
	src := randomPixels(pitch*h, 11)
	tex := make([]byte, BufferSize(w, h, CI8))
	if err := ToCI8(tex, src, w, h, pitch); err != nil {
		t.Fatal(err)
	}
	back := make([]byte, len(src))
	if err := FromCI8(back, tex, w, h, pitch); err != nil {
		t.Fatal(err)
	}
	for y := 0; y < h; y++ {
		if !bytes.Equal(src[y*pitch:y*pitch+w], back[y*pitch:y*pitch+w]) {
			t.Fatalf("row %d mismatch", y)
		}
	}
}

func TestConvertDispatch(t *testing.T) {
	cases := []struct {
		pf   PixelFormat
		want Format
	}{
		{Index8, CI8},
		{RGB565Px, RGB565},
		{RGB888, RGBA8},
		{ARGB8888, RGBA8},
		{RGBA8888, RGBA8},
	}
	for _, c := range cases {
		w, h := 8, 4
		pitch := w * c.pf.BytesPerPixel()
		src := randomPixels(pitch*h, 1)
		dst := make([]byte, BufferSize(w, h, c.want))
		got, err := Convert(dst, src, w, h, pitch, c.pf)
		if err != nil {
			t.Fatalf("%v: %v", c.pf, err)
		}
		if got != c.want {
			t.Fatalf("%v: got %v want %v", c.pf, got, c.want)
		}
		back := make([]byte, len(src))
		if err := Revert(back, dst, w, h, pitch, c.pf); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(src, back) {
			t.Fatalf("%v: round trip mismatch", c.pf)
		}
	}
}

func TestConvertErrors(t *testing.T) {
	dst := make([]byte, 64)
	if _, err := Convert(dst, make([]byte, 64), 8, 4, 4, RGB565Px); !errors.Is(err, ErrBadPitch) {
		t.Fatalf("got %v want ErrBadPitch", err)
	}
	if _, err := Convert(dst[:8], make([]byte, 64), 8, 4, 16, RGB565Px); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("got %v want ErrShortBuffer", err)
	}
	if _, err := Convert(dst, dst, 1, 1, 1, PixelFormat(99)); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("got %v want ErrUnsupportedFormat", err)
	}
}

func TestUnpack565(t *testing.T) {
	r, g, b := Unpack565(0xFFFF)
	if r != 0xFF || g != 0xFF || b != 0xFF {
		t.Fatalf("white got %d,%d,%d", r, g, b)
	}
	if got := Pack565(0xFF, 0, 0); got != 0xF800 {
		t.Fatalf("red got %04x want f800", got)
	}
}
