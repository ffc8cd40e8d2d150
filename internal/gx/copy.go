package gx

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// XFBBytesPerPixel is the storage size of one scan-out pixel.
const XFBBytesPerPixel = 4

// SetDispCopySrc selects the EFB rectangle display copies read.
func (g *GX) SetDispCopySrc(x, y, w, h int) {
	g.st().disp.src = image.Rect(x, y, x+w, y+h).Intersect(g.efb.Rect)
}

// SetDispCopyDst sets the width of the external framebuffer in pixels.
func (g *GX) SetDispCopyDst(w, h int) {
	s := g.st()
	s.disp.dstW = w
	if src := s.disp.src.Dy(); src > 0 && h > 0 {
		s.disp.yscale = float32(h) / float32(src)
	}
}

// SetDispCopyYScale sets the vertical scale of display copies and returns
// the number of lines a copy produces.
func (g *GX) SetDispCopyYScale(scale float32) int {
	s := g.st()
	if scale <= 0 {
		scale = 1
	}
	s.disp.yscale = scale
	return s.disp.lines()
}

// SetCopyFilter toggles the vertical smoothing filter of display copies.
func (g *GX) SetCopyFilter(on bool) { g.st().disp.filter = on }

func (d dispCopy) lines() int {
	return int(float32(d.src.Dy())*d.yscale + 0.5)
}

// CopyDisp copies the EFB into an external framebuffer in main memory,
// optionally clearing the EFB afterwards.
func (g *GX) CopyDisp(addr uint32, clear bool) {
	g.fifo = append(g.fifo, &dispCopyCmd{addr: addr, clear: clear, st: g.snapshot()})
}

// SetTexCopySrc selects the EFB rectangle texture copies read.
func (g *GX) SetTexCopySrc(x, y, w, h int) {
	g.st().tcopy.src = image.Rect(x, y, x+w, y+h).Intersect(g.efb.Rect)
}

// SetTexCopyDst sets the size and format of texture copies.
func (g *GX) SetTexCopyDst(w, h int, f texconv.Format) {
	s := g.st()
	s.tcopy.dstW, s.tcopy.dstH, s.tcopy.format = w, h, uint8(f)
}

// CopyTex copies the EFB into a texture in main memory.
func (g *GX) CopyTex(addr uint32, clear bool) {
	g.fifo = append(g.fifo, &texCopyCmd{addr: addr, clear: clear, st: g.snapshot()})
}

type dispCopyCmd struct {
	addr  uint32
	clear bool
	st    *state
}

func (c *dispCopyCmd) exec(g *GX) {
	d := c.st.disp
	w, h := d.dstW, d.lines()
	if w <= 0 || h <= 0 || d.src.Empty() {
		return
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	var scaler draw.Scaler = draw.NearestNeighbor
	if d.filter {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(dst, dst.Bounds(), g.efb, d.src, draw.Src, nil)
	g.mem.WriteDevice(c.addr, dst.Pix)
	g.stats.DispCopies++
	if c.clear {
		g.clearRect(d.src, c.st)
	}
}

type texCopyCmd struct {
	addr  uint32
	clear bool
	st    *state
}

func (c *texCopyCmd) exec(g *GX) {
	tc := c.st.tcopy
	f := texconv.Format(tc.format)
	w, h := tc.dstW, tc.dstH
	if w <= 0 || h <= 0 || tc.src.Empty() {
		return
	}
	src := g.efb.SubImage(tc.src)
	if tc.src.Dx() != w || tc.src.Dy() != h {
		scaled := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), g.efb, tc.src, draw.Src, nil)
		src = scaled
	}
	img := src.(*image.RGBA)
	tex := make([]byte, texconv.BufferSize(w, h, f))
	var err error
	switch f {
	case texconv.RGB565:
		lin := make([]byte, w*h*2)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p := img.RGBAAt(img.Rect.Min.X+x, img.Rect.Min.Y+y)
				v := texconv.Pack565(p.R, p.G, p.B)
				lin[(y*w+x)*2] = byte(v >> 8)
				lin[(y*w+x)*2+1] = byte(v)
			}
		}
		err = texconv.ToRGB565(tex, lin, w, h, w*2)
	case texconv.RGBA8:
		lin := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			row := img.Pix[img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y):]
			copy(lin[y*w*4:(y+1)*w*4], row[:w*4])
		}
		err = texconv.ToRGBA8(tex, lin, w, h, w*4, texconv.RGBA8888)
	default:
		g.cfg.Logger.Printf("gx: texture copy to %v not supported", f)
		return
	}
	if err != nil {
		g.cfg.Logger.Printf("gx: texture copy: %v", err)
		return
	}
	g.mem.WriteDevice(c.addr, tex)
	g.stats.TexCopies++
	if c.clear {
		g.clearRect(tc.src, c.st)
	}
}

func (g *GX) clearRect(r image.Rectangle, st *state) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			off := g.efb.PixOffset(x, y)
			g.efb.Pix[off] = st.clear.R
			g.efb.Pix[off+1] = st.clear.G
			g.efb.Pix[off+2] = st.clear.B
			g.efb.Pix[off+3] = st.clear.A
			g.depth[y*g.cfg.EFBWidth+x] = st.clearZ
		}
	}
}
