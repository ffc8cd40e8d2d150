// Command texconv converts images to and from the tiled texture layout the
// GPU samples.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

type CLIFlags struct {
	In     string
	Out    string
	Format string
	Revert bool
	Width  int
	Height int
	Fit    int // longest side after scaling, 0 keeps the size
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.In, "in", "", "input image (PNG or BMP), or raw texture with -revert")
	flag.StringVar(&f.Out, "out", "", "output path")
	flag.StringVar(&f.Format, "format", "rgb565", "texture format: rgb565 or rgba8")
	flag.BoolVar(&f.Revert, "revert", false, "read a raw texture and write a PNG")
	flag.IntVar(&f.Width, "w", 0, "texture width (with -revert)")
	flag.IntVar(&f.Height, "h", 0, "texture height (with -revert)")
	flag.IntVar(&f.Fit, "fit", 0, "scale so the longest side is at most this many pixels")
	flag.Parse()
	return f
}

func pixelFormat(s string) (texconv.PixelFormat, error) {
	switch strings.ToLower(s) {
	case "rgb565":
		return texconv.RGB565Px, nil
	case "rgba8":
		return texconv.RGBA8888, nil
	}
	return 0, fmt.Errorf("unknown texture format %q", s)
}

// linear lays img out as big-endian pixels of pf in a pw×ph buffer. The
// padding stays transparent black.
func linear(img image.Image, pf texconv.PixelFormat, pw, ph int) []byte {
	b := img.Bounds()
	bpp := pf.BytesPerPixel()
	buf := make([]byte, pw*ph*bpp)
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			p := buf[(y*pw+x)*bpp:]
			if pf == texconv.RGB565Px {
				v := texconv.Pack565(c.R, c.G, c.B)
				p[0], p[1] = byte(v>>8), byte(v)
				continue
			}
			p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
		}
	}
	return buf
}

func fit(img image.Image, n int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if n <= 0 || (w <= n && h <= n) {
		return img
	}
	if w >= h {
		w, h = n, max(h*n/w, 1)
	} else {
		w, h = max(w*n/h, 1), n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func encode(f CLIFlags, pf texconv.PixelFormat) error {
	in, err := os.Open(f.In)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", f.In, err)
	}
	img = fit(img, f.Fit)
	tf, err := pf.TextureFormat()
	if err != nil {
		return err
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	pw, ph := texconv.Padded(w, h, tf)
	src := linear(img, pf, pw, ph)
	tex := make([]byte, texconv.BufferSize(pw, ph, tf))
	if _, err := texconv.Convert(tex, src, pw, ph, pw*pf.BytesPerPixel(), pf); err != nil {
		return err
	}
	if err := os.WriteFile(f.Out, tex, 0o644); err != nil {
		return err
	}
	log.Printf("wrote %s: %v %dx%d (padded %dx%d, %d bytes)", f.Out, tf, w, h, pw, ph, len(tex))
	return nil
}

func decode(f CLIFlags, pf texconv.PixelFormat) error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("-revert needs -w and -h")
	}
	tex, err := os.ReadFile(f.In)
	if err != nil {
		return err
	}
	tf, err := pf.TextureFormat()
	if err != nil {
		return err
	}
	w, h := f.Width, f.Height
	pw, ph := texconv.Padded(w, h, tf)
	bpp := pf.BytesPerPixel()
	buf := make([]byte, pw*ph*bpp)
	if err := texconv.Revert(buf, tex, pw, ph, pw*bpp, pf); err != nil {
		return err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		p := buf[((i/w)*pw+i%w)*bpp:]
		c := color.NRGBA{p[0], p[1], p[2], 0xFF}
		if pf == texconv.RGB565Px {
			c.R, c.G, c.B = texconv.Unpack565(uint16(p[0])<<8 | uint16(p[1]))
		} else {
			c.A = p[3]
		}
		img.SetNRGBA(i%w, i/w, c)
	}
	out, err := os.Create(f.Out)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := png.Encode(out, img); err != nil {
		return err
	}
	log.Printf("wrote %s", f.Out)
	return nil
}

func main() {
	f := parseFlags()
	if f.In == "" || f.Out == "" {
		flag.Usage()
		os.Exit(2)
	}
	pf, err := pixelFormat(f.Format)
	if err != nil {
		log.Fatal(err)
	}
	if f.Revert {
		err = decode(f, pf)
	} else {
		err = encode(f, pf)
	}
	if err != nil {
		log.Fatal(err)
	}
}
