package texconv

import "fmt"

func check(dst, src []byte, w, h, pitch, bpp int, f Format) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("convert %dx%d: empty image", w, h)
	}
	if pitch < w*bpp {
		return fmt.Errorf("pitch %d for %d pixels of %d bytes: %w", pitch, w, bpp, ErrBadPitch)
	}
	if len(src) < (h-1)*pitch+w*bpp {
		return fmt.Errorf("source holds %d bytes: %w", len(src), ErrShortBuffer)
	}
	if n := BufferSize(w, h, f); len(dst) < n {
		return fmt.Errorf("%v texture needs %d bytes, have %d: %w", f, n, len(dst), ErrShortBuffer)
	}
	return nil
}

// pixelRGBA reads one pixel of a 24 or 32-bit linear buffer.
func pixelRGBA(p []byte, pf PixelFormat) (r, g, b, a uint8) {
	switch pf {
	case ARGB8888:
		return p[1], p[2], p[3], p[0]
	case RGB888:
		return p[0], p[1], p[2], 0xFF
	default:
		return p[0], p[1], p[2], p[3]
	}
}

func putRGBA(p []byte, pf PixelFormat, r, g, b, a uint8) {
	switch pf {
	case ARGB8888:
		p[0], p[1], p[2], p[3] = a, r, g, b
	case RGB888:
		p[0], p[1], p[2] = r, g, b
	default:
		p[0], p[1], p[2], p[3] = r, g, b, a
	}
}

// ToRGBA8 unpacks a 24 or 32-bit linear buffer into the RGBA8 block layout.
func ToRGBA8(dst, src []byte, w, h, pitch int, pf PixelFormat) error {
	bpp := pf.BytesPerPixel()
	if bpp != 3 && bpp != 4 {
		return fmt.Errorf("RGBA8 from %v: %w", pf, ErrUnsupportedFormat)
	}
	if err := check(dst, src, w, h, pitch, bpp, RGBA8); err != nil {
		return err
	}
	for y := 0; y < h; y++ {
		row := src[y*pitch:]
		for x := 0; x < w; x++ {
			r, g, b, a := pixelRGBA(row[x*bpp:], pf)
			off := TileOffset(x, y, w, RGBA8)
			dst[off] = a
			dst[off+1] = r
			dst[off+32] = g
			dst[off+33] = b
		}
	}
	return nil
}

// FromRGBA8 is the inverse of ToRGBA8. RGB888 targets drop alpha.
func FromRGBA8(dst, tex []byte, w, h, pitch int, pf PixelFormat) error {
	bpp := pf.BytesPerPixel()
	if bpp != 3 && bpp != 4 {
		return fmt.Errorf("RGBA8 to %v: %w", pf, ErrUnsupportedFormat)
	}
	if err := check(tex, dst, w, h, pitch, bpp, RGBA8); err != nil {
		return err
	}
	for y := 0; y < h; y++ {
		row := dst[y*pitch:]
		for x := 0; x < w; x++ {
			r, g, b, a := RGBA8At(tex, x, y, w)
			putRGBA(row[x*bpp:], pf, r, g, b, a)
		}
	}
	return nil
}

// ToRGB565 copies a big-endian RGB565 buffer into 4×4 blocks. When the image
// is made of whole blocks every block row is a transpose of 8-byte groups;
// ragged edges fall back to per-texel addressing.
func ToRGB565(dst, src []byte, w, h, pitch int) error {
	if err := check(dst, src, w, h, pitch, 2, RGB565); err != nil {
		return err
	}
	if w%4 == 0 && h%4 == 0 {
		off := 0
		for y := 0; y < h; y += 4 {
			for x := 0; x < w; x += 4 {
				for r := 0; r < 4; r++ {
					s := (y+r)*pitch + x*2
					copy(dst[off:off+8], src[s:s+8])
					off += 8
				}
			}
		}
		return nil
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := y*pitch + x*2
			off := TileOffset(x, y, w, RGB565)
			dst[off], dst[off+1] = src[s], src[s+1]
		}
	}
	return nil
}

// FromRGB565 is the inverse of ToRGB565.
func FromRGB565(dst, tex []byte, w, h, pitch int) error {
	if err := check(tex, dst, w, h, pitch, 2, RGB565); err != nil {
		return err
	}
	if w%4 == 0 && h%4 == 0 {
		off := 0
		for y := 0; y < h; y += 4 {
			for x := 0; x < w; x += 4 {
				for r := 0; r < 4; r++ {
					d := (y+r)*pitch + x*2
					copy(dst[d:d+8], tex[off:off+8])
					off += 8
				}
			}
		}
		return nil
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := y*pitch + x*2
			off := TileOffset(x, y, w, RGB565)
			dst[d], dst[d+1] = tex[off], tex[off+1]
		}
	}
	return nil
}

// ToCI8 packs palette indices into 8×4 blocks.
func ToCI8(dst, src []byte, w, h, pitch int) error {
	if err := check(dst, src, w, h, pitch, 1, CI8); err != nil {
		return err
	}
	for y := 0; y < h; y++ {
		row := src[y*pitch:]
		for x := 0; x < w; x++ {
			dst[TileOffset(x, y, w, CI8)] = row[x]
		}
	}
	return nil
}

// FromCI8 is the inverse of ToCI8.
func FromCI8(dst, tex []byte, w, h, pitch int) error {
	if err := check(tex, dst, w, h, pitch, 1, CI8); err != nil {
		return err
	}
	for y := 0; y < h; y++ {
		row := dst[y*pitch:]
		for x := 0; x < w; x++ {
			row[x] = CI8At(tex, x, y, w)
		}
	}
	return nil
}

// Convert repacks a linear buffer into dst and reports the texture format
// it produced. The caller owns dst and must flush it from the CPU cache
// before the GPU samples it.
func Convert(dst, src []byte, w, h, pitch int, pf PixelFormat) (Format, error) {
	f, err := pf.TextureFormat()
	if err != nil {
		return 0, err
	}
	switch f {
	case CI8:
		err = ToCI8(dst, src, w, h, pitch)
	case RGB565:
		err = ToRGB565(dst, src, w, h, pitch)
	default:
		err = ToRGBA8(dst, src, w, h, pitch, pf)
	}
	return f, err
}

// Revert reads a texture produced by Convert back into a linear buffer.
func Revert(dst, tex []byte, w, h, pitch int, pf PixelFormat) error {
	f, err := pf.TextureFormat()
	if err != nil {
		return err
	}
	switch f {
	case CI8:
		return FromCI8(dst, tex, w, h, pitch)
	case RGB565:
		return FromRGB565(dst, tex, w, h, pitch)
	default:
		return FromRGBA8(dst, tex, w, h, pitch, pf)
	}
}
