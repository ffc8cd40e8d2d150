package render

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"math"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/surface"
)

// BlendMode is the per-draw blend mode.
type BlendMode uint8

const (
	BlendNone BlendMode = iota
	BlendBlend
	BlendMod
)

func (b BlendMode) String() string {
	switch b {
	case BlendNone:
		return "none"
	case BlendBlend:
		return "blend"
	case BlendMod:
		return "mod"
	}
	return fmt.Sprintf("BlendMode(%d)", uint8(b))
}

// Point is a vertex position in window coordinates.
type Point struct{ X, Y float32 }

// FRect is a rectangle in window coordinates.
type FRect struct{ X, Y, W, H float32 }

// Command is one entry of the render queue.
type Command interface {
	command()
}

type (
	SetViewport struct{ Rect surface.Rect }
	SetClipRect struct {
		Rect    surface.Rect
		Enabled bool
	}
	SetDrawColor struct{ Color color.RGBA }
	Clear        struct{ Color color.RGBA }
	DrawPoints   struct{ draw }
	DrawLines    struct{ draw }
	FillRects    struct{ draw }
	Geometry     struct {
		draw
		Texture *surface.Texture
	}
)

// draw locates a command's vertices in the arena.
type draw struct {
	First int // byte offset
	Count int // rects for FillRects, vertices otherwise
	Color color.RGBA
	Blend BlendMode
}

func (SetViewport) command()  {}
func (SetClipRect) command()  {}
func (SetDrawColor) command() {}
func (Clear) command()        {}
func (DrawPoints) command()   {}
func (DrawLines) command()    {}
func (FillRects) command()    {}
func (Geometry) command()     {}

const (
	pointSize  = 8
	colorSize  = 4
	arenaAlign = 4
)

// alloc reserves n bytes of the vertex arena.
func (r *Renderer) alloc(n int) ([]byte, int, error) {
	first := (r.used + arenaAlign - 1) &^ (arenaAlign - 1)
	if first+n > len(r.arena) {
		return nil, 0, fmt.Errorf("render: %d vertex bytes, %d of %d used: %w", n, r.used, len(r.arena), mem.ErrOutOfMemory)
	}
	r.used = first + n
	return r.arena[first : first+n], first, nil
}

func putPoint(b []byte, x, y float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(y))
}

func getPoint(b []byte) (float32, float32) {
	return math.Float32frombits(binary.LittleEndian.Uint32(b)),
		math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
}

// QueueSetViewport queues a viewport change.
func (r *Renderer) QueueSetViewport(rect surface.Rect) {
	r.cmds = append(r.cmds, SetViewport{rect})
}

// QueueSetClipRect queues a clip rectangle relative to the viewport.
func (r *Renderer) QueueSetClipRect(rect surface.Rect, enabled bool) {
	r.cmds = append(r.cmds, SetClipRect{rect, enabled})
}

// QueueSetDrawColor queues a draw color change. Primitives queued afterwards
// are drawn with it.
func (r *Renderer) QueueSetDrawColor(c color.RGBA) {
	r.drawColor = c
	r.cmds = append(r.cmds, SetDrawColor{c})
}

// QueueClear queues a clear of the whole window.
func (r *Renderer) QueueClear(c color.RGBA) {
	r.cmds = append(r.cmds, Clear{c})
}

func (r *Renderer) queuePoints(pts []Point) (draw, error) {
	b, first, err := r.alloc(len(pts) * pointSize)
	if err != nil {
		return draw{}, err
	}
	for i, p := range pts {
		putPoint(b[i*pointSize:], p.X, p.Y)
	}
	return draw{First: first, Count: len(pts), Color: r.drawColor}, nil
}

// QueueDrawPoints queues single pixel points in the current draw color.
func (r *Renderer) QueueDrawPoints(pts []Point, mode BlendMode) error {
	d, err := r.queuePoints(pts)
	if err != nil {
		return err
	}
	d.Blend = mode
	r.cmds = append(r.cmds, DrawPoints{d})
	return nil
}

// QueueDrawLines queues a connected line strip through pts.
func (r *Renderer) QueueDrawLines(pts []Point, mode BlendMode) error {
	d, err := r.queuePoints(pts)
	if err != nil {
		return err
	}
	d.Blend = mode
	r.cmds = append(r.cmds, DrawLines{d})
	return nil
}

// QueueFillRects queues filled rectangles, four corners each.
func (r *Renderer) QueueFillRects(rects []FRect, mode BlendMode) error {
	b, first, err := r.alloc(len(rects) * 4 * pointSize)
	if err != nil {
		return err
	}
	for i, rc := range rects {
		v := b[i*4*pointSize:]
		putPoint(v, rc.X, rc.Y)
		putPoint(v[pointSize:], rc.X+rc.W, rc.Y)
		putPoint(v[2*pointSize:], rc.X+rc.W, rc.Y+rc.H)
		putPoint(v[3*pointSize:], rc.X, rc.Y+rc.H)
	}
	r.cmds = append(r.cmds, FillRects{draw{First: first, Count: len(rects), Color: r.drawColor, Blend: mode}})
	return nil
}

// Mesh is caller-owned vertex data for QueueGeometry. Strides are in
// float32s for XY and UV and in elements for Colors; zero means packed.
// Indices, when present, are little-endian integers of IndexSize bytes.
type Mesh struct {
	XY          []float32
	XYStride    int
	Colors      []color.RGBA
	ColorStride int
	UV          []float32
	UVStride    int
	NumVertices int
	Indices     []byte
	IndexSize   int
}

func (m *Mesh) index(i int) (int, error) {
	switch m.IndexSize {
	case 1:
		return int(m.Indices[i]), nil
	case 2:
		return int(binary.LittleEndian.Uint16(m.Indices[i*2:])), nil
	case 4:
		return int(binary.LittleEndian.Uint32(m.Indices[i*4:])), nil
	}
	return 0, fmt.Errorf("render: index size %d", m.IndexSize)
}

// Count returns the number of vertices the mesh submits.
func (m *Mesh) Count() int {
	if len(m.Indices) > 0 && m.IndexSize > 0 {
		return len(m.Indices) / m.IndexSize
	}
	return m.NumVertices
}

// QueueGeometry copies a triangle list into the arena, resolving indices.
// tex may be nil for untextured geometry.
func (r *Renderer) QueueGeometry(tex *surface.Texture, mode BlendMode, m Mesh) error {
	xys, uvs, cs := max(m.XYStride, 2), max(m.UVStride, 2), max(m.ColorStride, 1)
	elem := pointSize + colorSize
	if tex != nil {
		elem += pointSize
	}
	count := m.Count()
	indexed := len(m.Indices) > 0 && m.IndexSize > 0
	for i := 0; i < count; i++ {
		j := i
		if indexed {
			var err error
			if j, err = m.index(i); err != nil {
				return err
			}
		}
		if j*xys+1 >= len(m.XY) || j*cs >= len(m.Colors) || (tex != nil && j*uvs+1 >= len(m.UV)) {
			return fmt.Errorf("render: vertex index %d outside %d vertices", j, m.NumVertices)
		}
	}

	b, first, err := r.alloc(count * elem)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		j := i
		if indexed {
			j, _ = m.index(i)
		}
		v := b[i*elem:]
		putPoint(v, m.XY[j*xys], m.XY[j*xys+1])
		c := m.Colors[j*cs]
		v[8], v[9], v[10], v[11] = c.R, c.G, c.B, c.A
		if tex != nil {
			putPoint(v[12:], m.UV[j*uvs], m.UV[j*uvs+1])
		}
	}
	r.cmds = append(r.cmds, Geometry{draw: draw{First: first, Count: count, Blend: mode}, Texture: tex})
	return nil
}

// Pending returns the queued commands.
func (r *Renderer) Pending() []Command { return r.cmds }

// ArenaUsed returns the bytes of vertex data queued.
func (r *Renderer) ArenaUsed() int { return r.used }

func (r *Renderer) reset() {
	clear(r.cmds)
	r.cmds = r.cmds[:0]
	r.used = 0
}
