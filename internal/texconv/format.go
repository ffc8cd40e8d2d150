package texconv

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned for pixel formats without a texture mapping.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	// ErrBadPitch is returned when a source row is shorter than its pixels.
	ErrBadPitch = errors.New("pitch too small for width")
	// ErrShortBuffer is returned when the destination cannot hold the texture.
	ErrShortBuffer = errors.New("destination buffer too small")
)

// Format is a GPU texture format. Values match the hardware encoding.
type Format uint8

const (
	RGB565 Format = 0x4
	RGBA8  Format = 0x6
	CI8    Format = 0x9
)

func (f Format) String() string {
	switch f {
	case RGB565:
		return "RGB565"
	case RGBA8:
		return "RGBA8"
	case CI8:
		return "CI8"
	}
	return fmt.Sprintf("Format(%#x)", uint8(f))
}

// Stages is the number of TEV stages a texture of this format occupies.
// Indexed textures combine two palette lookups.
func (f Format) Stages() int {
	if f == CI8 {
		return 2
	}
	return 1
}

// tile returns the block width, block height and bytes per block.
func (f Format) tile() (w, h, size int) {
	switch f {
	case RGBA8:
		return 4, 4, 64
	case CI8:
		return 8, 4, 32
	default:
		return 4, 4, 32
	}
}

// PixelFormat is a linear pixel layout of a software buffer. Multi-byte
// pixels are stored big-endian, matching the console CPU.
type PixelFormat uint8

const (
	Index8   PixelFormat = iota + 1 // palette index
	RGB565Px                        // rrrrrggg gggbbbbb
	RGB888                          // R, G, B
	RGBA8888                        // R, G, B, A
	ARGB8888                        // A, R, G, B
)

func (p PixelFormat) String() string {
	switch p {
	case Index8:
		return "INDEX8"
	case RGB565Px:
		return "RGB565"
	case RGB888:
		return "RGB888"
	case RGBA8888:
		return "RGBA8888"
	case ARGB8888:
		return "ARGB8888"
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(p))
}

// BytesPerPixel returns the storage size of one pixel.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case Index8:
		return 1
	case RGB565Px:
		return 2
	case RGB888:
		return 3
	case RGBA8888, ARGB8888:
		return 4
	}
	return 0
}

// BitsPerPixel returns the depth used to pick a texture format.
func (p PixelFormat) BitsPerPixel() int {
	switch p {
	case RGB888:
		return 24
	case ARGB8888, RGBA8888:
		return 32
	}
	return p.BytesPerPixel() * 8
}

// TextureFormat returns the texture format that holds pixels of this layout.
func (p PixelFormat) TextureFormat() (Format, error) {
	switch p.BitsPerPixel() {
	case 8:
		return CI8, nil
	case 16:
		return RGB565, nil
	case 24, 32:
		return RGBA8, nil
	}
	return 0, fmt.Errorf("texture format for %v: %w", p, ErrUnsupportedFormat)
}

// PixelFormatForDepth maps a bits-per-pixel request to the default linear
// layout used for screen surfaces of that depth.
func PixelFormatForDepth(bpp int) (PixelFormat, error) {
	switch bpp {
	case 8:
		return Index8, nil
	case 16:
		return RGB565Px, nil
	case 24:
		return RGB888, nil
	case 32:
		return ARGB8888, nil
	}
	return 0, fmt.Errorf("%d bpp: %w", bpp, ErrUnsupportedFormat)
}

// Pack565 packs 8-bit channels into an RGB565 value.
func Pack565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// Unpack565 expands an RGB565 value to 8-bit channels, replicating the top
// bits into the low bits so full white stays 0xFF.
func Unpack565(v uint16) (r, g, b uint8) {
	r5 := uint8(v >> 11 & 0x1F)
	g6 := uint8(v >> 5 & 0x3F)
	b5 := uint8(v & 0x1F)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}
