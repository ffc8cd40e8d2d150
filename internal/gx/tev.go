package gx

// MaxTevStages is the number of TEV stages the hardware provides.
const MaxTevStages = 16

// ColorArg selects a color input of a TEV stage.
type ColorArg uint8

const (
	CCPrev ColorArg = iota
	CAPrev
	CC0
	CA0
	CC1
	CA1
	CC2
	CA2
	CCTex
	CATex
	CCRas
	CARas
	CCOne
	CCHalf
	CCKonst
	CCZero
)

// AlphaArg selects an alpha input of a TEV stage.
type AlphaArg uint8

const (
	CAAPrev AlphaArg = iota
	CAA0
	CAA1
	CAA2
	CAATex
	CAARas
	CAAKonst
	CAAZero
)

// TevReg names a TEV color register. RegPrev is the stage chain output.
type TevReg uint8

const (
	RegPrev TevReg = iota
	Reg0
	Reg1
	Reg2
)

// TevOp is the combiner operation.
type TevOp uint8

const (
	OpAdd TevOp = iota
	OpSub
)

// TevBias is added after the combine.
type TevBias uint8

const (
	BiasZero TevBias = iota
	BiasAddHalf
	BiasSubHalf
)

// TevScale multiplies the biased result.
type TevScale uint8

const (
	Scale1 TevScale = iota
	Scale2
	Scale4
	ScaleHalf
)

// TevMode is one of the predefined stage setups of SetTevOp.
type TevMode uint8

const (
	Modulate TevMode = iota
	Decal
	Blend
	Replace
	PassClr
)

// Channel is the rasterized color routed into a stage.
type Channel uint8

const (
	Color0A0 Channel = iota
	ColorNull
)

// TexMapNull disables texture lookup for a stage.
const TexMapNull = 0xFF

// Chan selects a component for swap tables.
type Chan uint8

const (
	ChRed Chan = iota
	ChGreen
	ChBlue
	ChAlpha
)

// KSel selects the constant fed into CCKonst/CAAKonst.
type KSel uint8

const (
	KOne KSel = iota
	KHalf
	KReg0
	KReg1
	KReg2
	KReg3
)

// SwapTable reorders the channels of a color before a stage reads it.
type SwapTable [4]Chan

type combiner struct {
	op    TevOp
	bias  TevBias
	scale TevScale
	clamp bool // kept for state readback
	dest  TevReg
}

// TevStage is the configuration of one combiner stage.
type TevStage struct {
	TexCoord int
	TexMap   int
	Chan     Channel
	ColorIn  [4]ColorArg
	AlphaIn  [4]AlphaArg
	color    combiner
	alpha    combiner
	RasSwap  int
	TexSwap  int
	KColor   KSel
	KAlpha   KSel
}

func defaultStage(i int) TevStage {
	return TevStage{
		TexCoord: 0,
		TexMap:   i % 8,
		Chan:     Color0A0,
		ColorIn:  [4]ColorArg{CCZero, CCZero, CCZero, CCRas},
		AlphaIn:  [4]AlphaArg{CAAZero, CAAZero, CAAZero, CAARas},
		color:    combiner{clamp: true},
		alpha:    combiner{clamp: true},
	}
}

func identitySwaps() [4]SwapTable {
	var s [4]SwapTable
	for i := range s {
		s[i] = SwapTable{ChRed, ChGreen, ChBlue, ChAlpha}
	}
	return s
}

func (s SwapTable) apply(c Color) Color {
	v := [4]uint8{c.R, c.G, c.B, c.A}
	return Color{v[s[0]], v[s[1]], v[s[2]], v[s[3]]}
}

// tevInputs holds the per-pixel values a stage reads.
type tevInputs struct {
	regs  [4]Color
	tex   Color
	ras   Color
	konst [4]Color
}

func (in *tevInputs) kcolor(sel KSel) Color {
	switch sel {
	case KHalf:
		return Color{128, 128, 128, 128}
	case KReg0, KReg1, KReg2, KReg3:
		return in.konst[sel-KReg0]
	}
	return Color{255, 255, 255, 255}
}

func (in *tevInputs) colorArg(a ColorArg, st *TevStage) [3]int {
	var c Color
	switch a {
	case CCPrev, CC0, CC1, CC2:
		c = in.regs[a/2]
	case CAPrev, CA0, CA1, CA2:
		v := in.regs[a/2].A
		return [3]int{int(v), int(v), int(v)}
	case CCTex:
		c = in.tex
	case CATex:
		return [3]int{int(in.tex.A), int(in.tex.A), int(in.tex.A)}
	case CCRas:
		c = in.ras
	case CARas:
		return [3]int{int(in.ras.A), int(in.ras.A), int(in.ras.A)}
	case CCOne:
		return [3]int{255, 255, 255}
	case CCHalf:
		return [3]int{128, 128, 128}
	case CCKonst:
		c = in.kcolor(st.KColor)
	default:
		return [3]int{}
	}
	return [3]int{int(c.R), int(c.G), int(c.B)}
}

func (in *tevInputs) alphaArg(a AlphaArg, st *TevStage) int {
	switch a {
	case CAAPrev, CAA0, CAA1, CAA2:
		return int(in.regs[a].A)
	case CAATex:
		return int(in.tex.A)
	case CAARas:
		return int(in.ras.A)
	case CAAKonst:
		return int(in.kcolor(st.KAlpha).A)
	}
	return 0
}

// combine evaluates d ± ((1-c)·a + c·b) with bias, scale and clamp on
// 8-bit fixed point values.
func (cb combiner) combine(a, b, c, d int) int {
	c += c >> 7 // 255 -> 256
	lerp := (a*(256-c) + b*c) >> 8
	v := d + lerp
	if cb.op == OpSub {
		v = d - lerp
	}
	switch cb.bias {
	case BiasAddHalf:
		v += 128
	case BiasSubHalf:
		v -= 128
	}
	switch cb.scale {
	case Scale2:
		v <<= 1
	case Scale4:
		v <<= 2
	case ScaleHalf:
		v >>= 1
	}
	// registers are 8 bits wide here, so unclamped results saturate as well
	if v < 0 {
		v = 0
	} else if v > 255 {
		v = 255
	}
	return v
}

// run evaluates one stage and writes its destination register.
func (st *TevStage) run(in *tevInputs) {
	var ca [4][3]int
	for i, arg := range st.ColorIn {
		ca[i] = in.colorArg(arg, st)
	}
	var out Color
	rgb := [3]*uint8{&out.R, &out.G, &out.B}
	for ch := 0; ch < 3; ch++ {
		*rgb[ch] = uint8(st.color.combine(ca[0][ch], ca[1][ch], ca[2][ch], ca[3][ch]))
	}
	out.A = uint8(st.alpha.combine(
		in.alphaArg(st.AlphaIn[0], st),
		in.alphaArg(st.AlphaIn[1], st),
		in.alphaArg(st.AlphaIn[2], st),
		in.alphaArg(st.AlphaIn[3], st),
	))
	cd := &in.regs[st.color.dest]
	cd.R, cd.G, cd.B = out.R, out.G, out.B
	in.regs[st.alpha.dest].A = out.A
}
