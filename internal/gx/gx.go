// Package gx models the console GPU: a command processor that buffers draw
// and copy commands in a FIFO, a fixed-function TEV combiner, an embedded
// framebuffer (EFB) with depth, and copy engines that move EFB contents into
// main memory as display (XFB) or texture data.
package gx

import (
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/FabianRolfMatthiasNoll/gxbackend/internal/mem"
)

var (
	// ErrVertexCount is returned by End when fewer or more vertices than
	// announced by Begin were sent.
	ErrVertexCount = errors.New("vertex count mismatch")
	// ErrVertexFormat is returned by End when a vertex misses an attribute
	// enabled in the vertex descriptor.
	ErrVertexFormat = errors.New("vertex does not match descriptor")
)

// Color is an 8-bit RGBA color (GXColor).
type Color struct{ R, G, B, A uint8 }

// Primitive is a primitive type for Begin. Values match the command encoding.
type Primitive uint8

const (
	Quads         Primitive = 0x80
	Triangles     Primitive = 0x90
	TriangleStrip Primitive = 0x98
	TriangleFan   Primitive = 0xA0
	Lines         Primitive = 0xA8
	LineStrip     Primitive = 0xB0
	Points        Primitive = 0xB8
)

func (p Primitive) String() string {
	switch p {
	case Quads:
		return "quads"
	case Triangles:
		return "triangles"
	case TriangleStrip:
		return "trianglestrip"
	case TriangleFan:
		return "trianglefan"
	case Lines:
		return "lines"
	case LineStrip:
		return "linestrip"
	case Points:
		return "points"
	}
	return fmt.Sprintf("Primitive(%#x)", uint8(p))
}

// Attr is a vertex attribute.
type Attr uint8

const (
	VAPos Attr = iota
	VAClr0
	VATex0
	numAttrs
)

// VtxDesc says how an attribute is sent.
type VtxDesc uint8

const (
	DescNone VtxDesc = iota
	DescDirect
	DescIndex8
)

// CompCnt is the number of components of an attribute.
type CompCnt uint8

const (
	PosXY CompCnt = iota
	PosXYZ
	ClrRGBA
	TexST
)

// CompType is the storage type of an attribute.
type CompType uint8

const (
	F32 CompType = iota
	S16
	RGBA8
)

// AttrFmt is a vertex attribute format (SetVtxAttrFmt).
type AttrFmt struct {
	Comps CompCnt
	Type  CompType
}

// PosMtx names a position matrix slot.
type PosMtx uint8

const (
	PNMTX0 PosMtx = iota
	PNMTX1
	numPosMtx
)

// BlendType is the framebuffer blend equation.
type BlendType uint8

const (
	BlendNone BlendType = iota
	BlendBlend
	BlendSubtract
)

// BlendFactor is a blend equation weight.
type BlendFactor uint8

const (
	BLZero BlendFactor = iota
	BLOne
	BLSrcClr
	BLInvSrcClr
	BLDstClr
	BLInvDstClr
	BLSrcAlpha
	BLInvSrcAlpha
	BLDstAlpha
	BLInvDstAlpha
)

// CompareFunc is a depth comparison.
type CompareFunc uint8

const (
	Never CompareFunc = iota
	Less
	Equal
	LEqual
	Greater
	NEqual
	GEqual
	Always
)

type viewport struct {
	x, y, w, h, near, far float32
}

type blendState struct {
	typ      BlendType
	src, dst BlendFactor
}

type zMode struct {
	enable bool
	fn     CompareFunc
	update bool
}

type dispCopy struct {
	src    image.Rectangle
	dstW   int
	yscale float32
	filter bool
}

type texCopy struct {
	src    image.Rectangle
	dstW   int
	dstH   int
	format uint8
}

// state is the register state a draw depends on. It is snapshotted into
// every queued command so later register writes do not affect it.
type state struct {
	vp        viewport
	scissor   image.Rectangle
	proj      Mtx44
	pos       [numPosMtx]Mtx
	curMtx    PosMtx
	desc      [numAttrs]VtxDesc
	fmts      [numAttrs]AttrFmt
	arrays    [numAttrs][]float32
	strides   [numAttrs]int
	numStages int
	stages    [MaxTevStages]TevStage
	regs      [4]Color
	konst     [4]Color
	swaps     [4]SwapTable
	texmaps   [8]TexObj
	texLoaded [8]bool
	blend     blendState
	z         zMode
	clear     Color
	clearZ    float32
	disp      dispCopy
	tcopy     texCopy
}

// Config holds the model parameters.
type Config struct {
	EFBWidth  int
	EFBHeight int
	Logger    *log.Logger
}

// Defaults fills missing fields.
func (c *Config) Defaults() {
	if c.EFBWidth <= 0 {
		c.EFBWidth = 640
	}
	if c.EFBHeight <= 0 {
		c.EFBHeight = 528
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
}

// Stats counts work done by the command processor.
type Stats struct {
	Draws       int
	Vertices    int
	Triangles   int
	Drains      int
	DispCopies  int
	TexCopies   int
	TexLoads    int
	Invalidates int
	// Last* describe the most recent draw executed.
	LastPrim     Primitive
	LastVertices int
	LastStages   int
	LastAttrs    int
}

type vertex struct {
	x, y, z float32
	c       Color
	s, t    float32
	has     [numAttrs]bool
}

// GX is the GPU model. It is not safe for concurrent use: like the real
// command processor it has a single submitting thread.
type GX struct {
	cfg Config
	mem *mem.Arena

	cur  state
	snap *state

	fifo []command

	// immediate-mode vertex assembly
	inBegin bool
	prim    Primitive
	want    int
	verts   []vertex
	badIdx  bool

	efb   *image.RGBA
	depth []float32

	tluts    [16]tmemTlut
	tlutGen  uint32
	texCache map[texKey]*texture

	stats Stats
}

// New returns a GPU model reading textures from and copying into m.
func New(m *mem.Arena, cfg Config) *GX {
	cfg.Defaults()
	g := &GX{
		cfg:      cfg,
		mem:      m,
		efb:      image.NewRGBA(image.Rect(0, 0, cfg.EFBWidth, cfg.EFBHeight)),
		depth:    make([]float32, cfg.EFBWidth*cfg.EFBHeight),
		texCache: make(map[texKey]*texture),
	}
	g.Init()
	for i := range g.depth {
		g.depth[i] = 1
	}
	return g
}

// Init resets the register state to power-on defaults.
func (g *GX) Init() {
	w, h := float32(g.cfg.EFBWidth), float32(g.cfg.EFBHeight)
	g.cur = state{
		vp:        viewport{0, 0, w, h, 0, 1},
		scissor:   g.efb.Rect,
		proj:      Ortho(0, h, 0, w, 0, 1),
		numStages: 1,
		swaps:     identitySwaps(),
		blend:     blendState{BlendNone, BLOne, BLZero},
		z:         zMode{enable: true, fn: LEqual, update: true},
		clearZ:    1,
		disp: dispCopy{
			src:    g.efb.Rect,
			dstW:   g.cfg.EFBWidth,
			yscale: 1,
		},
	}
	for i := range g.cur.pos {
		g.cur.pos[i] = Identity()
	}
	for i := range g.cur.stages {
		g.cur.stages[i] = defaultStage(i)
	}
	g.cur.desc[VAPos] = DescDirect
	g.snap = nil
}

// EFBSize returns the embedded framebuffer dimensions.
func (g *GX) EFBSize() (int, int) { return g.cfg.EFBWidth, g.cfg.EFBHeight }

// st returns the register state for modification, dropping the snapshot
// shared with already queued commands.
func (g *GX) st() *state {
	g.snap = nil
	return &g.cur
}

func (g *GX) snapshot() *state {
	if g.snap == nil {
		s := g.cur
		g.snap = &s
	}
	return g.snap
}

// Stats returns the counters.
func (g *GX) Stats() Stats { return g.stats }

// ResetStats zeroes the counters.
func (g *GX) ResetStats() { g.stats = Stats{} }

// Pending returns the number of commands waiting in the FIFO.
func (g *GX) Pending() int { return len(g.fifo) }

// SetViewport sets the viewport transform.
func (g *GX) SetViewport(x, y, w, h, near, far float32) {
	g.st().vp = viewport{x, y, w, h, near, far}
}

// SetScissor limits rasterization to a rectangle of the EFB.
func (g *GX) SetScissor(x, y, w, h int) {
	g.st().scissor = image.Rect(x, y, x+w, y+h).Intersect(g.efb.Rect)
}

// LoadProjectionMtx loads the projection matrix.
func (g *GX) LoadProjectionMtx(m Mtx44) { g.st().proj = m }

// LoadPosMtxImm loads a position matrix slot.
func (g *GX) LoadPosMtxImm(m Mtx, id PosMtx) { g.st().pos[id] = m }

// SetCurrentMtx selects the position matrix applied to vertices.
func (g *GX) SetCurrentMtx(id PosMtx) { g.st().curMtx = id }

// ClearVtxDesc disables every vertex attribute.
func (g *GX) ClearVtxDesc() {
	s := g.st()
	for i := range s.desc {
		s.desc[i] = DescNone
	}
}

// SetVtxDesc enables an attribute.
func (g *GX) SetVtxDesc(a Attr, d VtxDesc) { g.st().desc[a] = d }

// SetVtxAttrFmt sets an attribute's format.
func (g *GX) SetVtxAttrFmt(a Attr, c CompCnt, t CompType) {
	g.st().fmts[a] = AttrFmt{Comps: c, Type: t}
}

// SetArray sets the array indexed attributes read from. stride counts
// float32 elements.
func (g *GX) SetArray(a Attr, data []float32, stride int) {
	s := g.st()
	s.arrays[a] = data
	s.strides[a] = stride
}

// SetNumTevStages sets how many TEV stages are active.
func (g *GX) SetNumTevStages(n int) {
	if n < 1 {
		n = 1
	}
	if n > MaxTevStages {
		n = MaxTevStages
	}
	g.st().numStages = n
}

// SetTevOrder routes texture coordinates, texture map and raster channel
// into a stage.
func (g *GX) SetTevOrder(stage, texcoord, texmap int, ch Channel) {
	s := &g.st().stages[stage]
	s.TexCoord, s.TexMap, s.Chan = texcoord, texmap, ch
}

// SetTevColorIn sets the four color inputs of a stage.
func (g *GX) SetTevColorIn(stage int, a, b, c, d ColorArg) {
	g.st().stages[stage].ColorIn = [4]ColorArg{a, b, c, d}
}

// SetTevAlphaIn sets the four alpha inputs of a stage.
func (g *GX) SetTevAlphaIn(stage int, a, b, c, d AlphaArg) {
	g.st().stages[stage].AlphaIn = [4]AlphaArg{a, b, c, d}
}

// SetTevColorOp sets the color combiner operation of a stage.
func (g *GX) SetTevColorOp(stage int, op TevOp, bias TevBias, scale TevScale, clamp bool, dest TevReg) {
	g.st().stages[stage].color = combiner{op, bias, scale, clamp, dest}
}

// SetTevAlphaOp sets the alpha combiner operation of a stage.
func (g *GX) SetTevAlphaOp(stage int, op TevOp, bias TevBias, scale TevScale, clamp bool, dest TevReg) {
	g.st().stages[stage].alpha = combiner{op, bias, scale, clamp, dest}
}

// SetTevOp loads one of the predefined stage setups. Stage 0 reads the
// raster color where later stages read the previous stage output.
func (g *GX) SetTevOp(stage int, mode TevMode) {
	dc, da := CCPrev, CAAPrev
	if stage == 0 {
		dc, da = CCRas, CAARas
	}
	switch mode {
	case Modulate:
		g.SetTevColorIn(stage, CCZero, CCTex, dc, CCZero)
		g.SetTevAlphaIn(stage, CAAZero, CAATex, da, CAAZero)
	case Decal:
		g.SetTevColorIn(stage, dc, CCTex, CATex, CCZero)
		g.SetTevAlphaIn(stage, CAAZero, CAAZero, CAAZero, da)
	case Blend:
		g.SetTevColorIn(stage, dc, CCOne, CCTex, CCZero)
		g.SetTevAlphaIn(stage, CAAZero, CAATex, da, CAAZero)
	case Replace:
		g.SetTevColorIn(stage, CCZero, CCZero, CCZero, CCTex)
		g.SetTevAlphaIn(stage, CAAZero, CAAZero, CAAZero, CAATex)
	case PassClr:
		g.SetTevColorIn(stage, CCZero, CCZero, CCZero, dc)
		g.SetTevAlphaIn(stage, CAAZero, CAAZero, CAAZero, da)
	}
	g.SetTevColorOp(stage, OpAdd, BiasZero, Scale1, true, RegPrev)
	g.SetTevAlphaOp(stage, OpAdd, BiasZero, Scale1, true, RegPrev)
}

// SetTevColor sets a TEV color register.
func (g *GX) SetTevColor(r TevReg, c Color) { g.st().regs[r] = c }

// SetTevKColor sets a konstant color register.
func (g *GX) SetTevKColor(i int, c Color) { g.st().konst[i&3] = c }

// SetTevKColorSel selects the konstant color a stage reads.
func (g *GX) SetTevKColorSel(stage int, k KSel) { g.st().stages[stage].KColor = k }

// SetTevKAlphaSel selects the konstant alpha a stage reads.
func (g *GX) SetTevKAlphaSel(stage int, k KSel) { g.st().stages[stage].KAlpha = k }

// SetTevSwapMode selects the raster and texture swap tables of a stage.
func (g *GX) SetTevSwapMode(stage, ras, tex int) {
	s := &g.st().stages[stage]
	s.RasSwap, s.TexSwap = ras&3, tex&3
}

// SetTevSwapModeTable programs a swap table.
func (g *GX) SetTevSwapModeTable(id int, r, gr, b, a Chan) {
	g.st().swaps[id&3] = SwapTable{r, gr, b, a}
}

// LoadTexObj binds a texture to a texture map slot.
func (g *GX) LoadTexObj(o TexObj, texmap int) {
	s := g.st()
	s.texmaps[texmap] = o
	s.texLoaded[texmap] = true
}

// SetBlendMode sets the framebuffer blend equation.
func (g *GX) SetBlendMode(t BlendType, src, dst BlendFactor) {
	g.st().blend = blendState{t, src, dst}
}

// SetZMode sets depth test and update.
func (g *GX) SetZMode(enable bool, fn CompareFunc, update bool) {
	g.st().z = zMode{enable, fn, update}
}

// SetCopyClear sets the color and depth EFB copies clear to.
func (g *GX) SetCopyClear(c Color, z float32) {
	s := g.st()
	s.clear, s.clearZ = c, z
}

// Begin starts immediate vertex submission of n vertices.
func (g *GX) Begin(p Primitive, n int) {
	g.inBegin = true
	g.prim = p
	g.want = n
	g.verts = g.verts[:0]
	g.badIdx = false
}

func (g *GX) vtx(a Attr) *vertex {
	if a == VAPos || len(g.verts) == 0 {
		g.verts = append(g.verts, vertex{})
	}
	v := &g.verts[len(g.verts)-1]
	v.has[a] = true
	return v
}

// Position2f32 sends a 2D position; it starts a new vertex.
func (g *GX) Position2f32(x, y float32) {
	v := g.vtx(VAPos)
	v.x, v.y = x, y
}

// Position3f32 sends a 3D position; it starts a new vertex.
func (g *GX) Position3f32(x, y, z float32) {
	v := g.vtx(VAPos)
	v.x, v.y, v.z = x, y, z
}

// Position2s16 sends an integer 2D position.
func (g *GX) Position2s16(x, y int16) { g.Position2f32(float32(x), float32(y)) }

// Position3s16 sends an integer 3D position.
func (g *GX) Position3s16(x, y, z int16) {
	g.Position3f32(float32(x), float32(y), float32(z))
}

// Color4u8 sends the vertex color.
func (g *GX) Color4u8(r, gr, b, a uint8) {
	g.vtx(VAClr0).c = Color{r, gr, b, a}
}

// TexCoord2f32 sends a direct texture coordinate.
func (g *GX) TexCoord2f32(s, t float32) {
	v := g.vtx(VATex0)
	v.s, v.t = s, t
}

// TexCoord1x8 sends an index into the texture coordinate array.
func (g *GX) TexCoord1x8(i uint8) {
	v := g.vtx(VATex0)
	arr, stride := g.cur.arrays[VATex0], g.cur.strides[VATex0]
	if stride < 2 {
		stride = 2
	}
	off := int(i) * stride
	if off+1 >= len(arr) {
		g.badIdx = true
		return
	}
	v.s, v.t = arr[off], arr[off+1]
}

// End finishes a Begin block, validates the vertices against the vertex
// descriptor and queues the draw.
func (g *GX) End() error {
	if !g.inBegin {
		return errors.New("gx: End without Begin")
	}
	g.inBegin = false
	if len(g.verts) != g.want {
		return fmt.Errorf("gx: %v: got %d vertices, want %d: %w", g.prim, len(g.verts), g.want, ErrVertexCount)
	}
	if g.badIdx {
		return fmt.Errorf("gx: %v: index outside array: %w", g.prim, ErrVertexFormat)
	}
	for i := range g.verts {
		for a := Attr(0); a < numAttrs; a++ {
			if g.cur.desc[a] != DescNone && !g.verts[i].has[a] {
				return fmt.Errorf("gx: vertex %d misses attribute %d: %w", i, a, ErrVertexFormat)
			}
		}
	}
	verts := make([]vertex, len(g.verts))
	copy(verts, g.verts)
	g.fifo = append(g.fifo, &drawCmd{prim: g.prim, verts: verts, st: g.snapshot()})
	return nil
}

// InvalidateTexAll drops every cached texture so subsequent draws re-read
// texture memory.
func (g *GX) InvalidateTexAll() {
	g.fifo = append(g.fifo, invalidateCmd{})
}

// LoadTlut copies a palette from main memory into a palette slot.
func (g *GX) LoadTlut(o TlutObj, slot int) {
	g.fifo = append(g.fifo, loadTlutCmd{obj: o, slot: slot & 15})
}

// InvVtxCache is accepted for API parity; vertices are never cached.
func (g *GX) InvVtxCache() {}

// Flush hands queued commands to the GPU.
func (g *GX) Flush() { g.drain() }

// DrawDone blocks until every queued command has executed.
func (g *GX) DrawDone() {
	g.drain()
	g.stats.Drains++
}

func (g *GX) drain() {
	for len(g.fifo) > 0 {
		cmd := g.fifo[0]
		g.fifo[0] = nil
		g.fifo = g.fifo[1:]
		cmd.exec(g)
	}
	g.fifo = g.fifo[:0]
}

// EFBPixel reads a pixel of the embedded framebuffer. Queued commands are
// not executed; call DrawDone first.
func (g *GX) EFBPixel(x, y int) Color {
	c := g.efb.RGBAAt(x, y)
	return Color{c.R, c.G, c.B, c.A}
}

// EFBDepth reads the depth of a pixel of the embedded framebuffer.
func (g *GX) EFBDepth(x, y int) float32 {
	if !(image.Point{x, y}).In(g.efb.Rect) {
		return 0
	}
	return g.depth[y*g.cfg.EFBWidth+x]
}

type command interface {
	exec(g *GX)
}

type invalidateCmd struct{}

func (invalidateCmd) exec(g *GX) {
	for k := range g.texCache {
		delete(g.texCache, k)
	}
	g.stats.Invalidates++
}

type loadTlutCmd struct {
	obj  TlutObj
	slot int
}

func (c loadTlutCmd) exec(g *GX) {
	raw := make([]byte, c.obj.Entries*2)
	g.mem.ReadDevice(c.obj.Addr, raw)
	ents := make([]uint16, c.obj.Entries)
	for i := range ents {
		ents[i] = uint16(raw[2*i])<<8 | uint16(raw[2*i+1])
	}
	g.tlutGen++
	g.tluts[c.slot] = tmemTlut{format: c.obj.Format, entries: ents, gen: g.tlutGen}
}
