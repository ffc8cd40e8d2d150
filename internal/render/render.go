// Package render translates a queue of 2D draw commands into GX state
// changes and vertex submissions. Commands are queued during a frame with
// their vertices copied into a byte arena, executed in order by
// RunCommandQueue, and shown by Present.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"slices"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/gx"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/texconv"
)

// ErrUnsupportedFormat is returned for textures in formats the renderer
// does not advertise.
var ErrUnsupportedFormat = errors.New("texture format not supported by renderer")

// Flags describe renderer capabilities.
type Flags uint8

const (
	Accelerated Flags = 1 << iota
	PresentVSync
	TargetTexture
)

// Info describes the renderer.
type Info struct {
	Name             string
	Flags            Flags
	Formats          []texconv.PixelFormat
	MaxTextureWidth  int
	MaxTextureHeight int
}

// DriverInfo is what the renderer advertises.
var DriverInfo = Info{
	Name:             "ogc",
	Flags:            Accelerated | PresentVSync | TargetTexture,
	Formats:          []texconv.PixelFormat{texconv.RGB565Px, texconv.RGBA8888},
	MaxTextureWidth:  1024,
	MaxTextureHeight: 1024,
}

// Display is the scan-out side the renderer draws for.
type Display interface {
	// SetViewport maps window coordinates onto the EFB, optionally shifted
	// by the on-screen keyboard pan.
	SetViewport(x, y, w, h int, honourPan bool)
	Pan() int
	Flip(vsync bool) error
}

// Config holds renderer tunables.
type Config struct {
	ArenaBytes int // vertex arena capacity per frame
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.ArenaBytes <= 0 {
		c.ArenaBytes = 256 << 10
	}
}

// Renderer is the command queue translator for one window.
type Renderer struct {
	cfg   Config
	gx    *gx.GX
	store *surface.Store
	disp  Display
	w, h  int

	arena     []byte
	used      int
	cmds      []Command
	drawColor color.RGBA

	viewport surface.Rect
	vsync    bool
}

// New returns a renderer for a w×h window.
func New(g *gx.GX, st *surface.Store, d Display, w, h int, cfg Config) *Renderer {
	cfg.Defaults()
	return &Renderer{
		cfg:       cfg,
		gx:        g,
		store:     st,
		disp:      d,
		w:         w,
		h:         h,
		arena:     make([]byte, cfg.ArenaBytes),
		drawColor: color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
		viewport:  surface.Rect{W: w, H: h},
		vsync:     true,
	}
}

// Info returns the renderer description.
func (r *Renderer) Info() Info { return DriverInfo }

// CreateTexture allocates a texture for pixels of format pf.
func (r *Renderer) CreateTexture(w, h int, pf texconv.PixelFormat) (*surface.Texture, error) {
	if !slices.Contains(DriverInfo.Formats, pf) {
		return nil, fmt.Errorf("render: %v: %w", pf, ErrUnsupportedFormat)
	}
	if w > DriverInfo.MaxTextureWidth || h > DriverInfo.MaxTextureHeight {
		return nil, fmt.Errorf("render: texture %dx%d exceeds %dx%d: %w", w, h,
			DriverInfo.MaxTextureWidth, DriverInfo.MaxTextureHeight, surface.ErrUnsupported)
	}
	f, err := pf.TextureFormat()
	if err != nil {
		return nil, err
	}
	return r.store.CreateTexture(w, h, f)
}

// UpdateTexture replaces the contents of t.
func (r *Renderer) UpdateTexture(t *surface.Texture, rect surface.Rect, pixels []byte, pitch int, pf texconv.PixelFormat) error {
	return r.store.UpdateTexture(t, rect, pixels, pitch, pf)
}

// DestroyTexture frees t.
func (r *Renderer) DestroyTexture(t *surface.Texture) { r.store.DestroyTexture(t) }

// SetTextureScaleMode selects the sampling filter of t.
func (r *Renderer) SetTextureScaleMode(t *surface.Texture, f gx.Filter) { t.SetScaleMode(f) }

// SetRenderTarget accepts only the window itself.
func (r *Renderer) SetRenderTarget(t *surface.Texture) error {
	if t != nil {
		return fmt.Errorf("render: texture targets: %w", surface.ErrUnsupported)
	}
	return nil
}

// SetVSync selects whether Present waits for the vertical retrace.
func (r *Renderer) SetVSync(on bool) { r.vsync = on }

// ReadPixels is not supported.
func (r *Renderer) ReadPixels(rect surface.Rect, pf texconv.PixelFormat, pixels []byte, pitch int) error {
	return fmt.Errorf("render: read pixels: %w", surface.ErrUnsupported)
}

// Present waits for the GPU and flips the display.
func (r *Renderer) Present() error {
	r.gx.DrawDone()
	return r.disp.Flip(r.vsync)
}

// Viewport returns the viewport the last SetViewport command installed.
func (r *Renderer) Viewport() surface.Rect { return r.viewport }
