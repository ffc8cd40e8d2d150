package texconv

// Padded returns width and height rounded up to whole blocks of f.
func Padded(w, h int, f Format) (int, int) {
	tw, th, _ := f.tile()
	return (w + tw - 1) / tw * tw, (h + th - 1) / th * th
}

// BufferSize returns the number of bytes a w×h texture of format f occupies
// in GPU memory.
func BufferSize(w, h int, f Format) int {
	if w <= 0 || h <= 0 {
		return 0
	}
	tw, th, size := f.tile()
	pw, ph := Padded(w, h, f)
	return (pw / tw) * (ph / th) * size
}

// TileOffset returns the byte offset of texel (x, y) in a texture of the
// given width. For RGBA8 the offset addresses the alpha/red pair; the
// green/blue pair lives 32 bytes further in the same block.
func TileOffset(x, y, width int, f Format) int {
	pw, _ := Padded(width, 1, f)
	switch f {
	case RGBA8:
		return ((y>>2)<<4)*pw + ((x >> 2) << 6) + ((((y & 3) << 2) + (x & 3)) << 1)
	case CI8:
		return (y&^3)*pw + ((x &^ 7) << 2) + ((y & 3) << 3) + (x & 7)
	default:
		return ((y>>2)<<3)*pw + ((x >> 2) << 5) + ((((y & 3) << 2) + (x & 3)) << 1)
	}
}

// RGBA8At reads texel (x, y) of an RGBA8 texture.
func RGBA8At(tex []byte, x, y, width int) (r, g, b, a uint8) {
	off := TileOffset(x, y, width, RGBA8)
	return tex[off+1], tex[off+32], tex[off+33], tex[off]
}

// RGB565At reads texel (x, y) of an RGB565 texture.
func RGB565At(tex []byte, x, y, width int) uint16 {
	off := TileOffset(x, y, width, RGB565)
	return uint16(tex[off])<<8 | uint16(tex[off+1])
}

// CI8At reads the palette index of texel (x, y) of a CI8 texture.
func CI8At(tex []byte, x, y, width int) uint8 {
	return tex[TileOffset(x, y, width, CI8)]
}
