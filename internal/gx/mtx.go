package gx

import "math"

// Mtx is a 3×4 affine position matrix (row major).
type Mtx [3][4]float32

// Mtx44 is a 4×4 projection matrix.
type Mtx44 [4][4]float32

// Identity returns the identity position matrix.
func Identity() Mtx {
	return Mtx{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
}

// Translate returns m followed by a translation.
func (m Mtx) Translate(x, y, z float32) Mtx {
	m[0][3] += x
	m[1][3] += y
	m[2][3] += z
	return m
}

// Scale returns a scaling matrix.
func Scale(x, y, z float32) Mtx {
	return Mtx{
		{x, 0, 0, 0},
		{0, y, 0, 0},
		{0, 0, z, 0},
	}
}

// RotateZ returns a rotation of deg degrees around the z axis.
func RotateZ(deg float32) Mtx {
	rad := float64(deg) * math.Pi / 180
	s, c := float32(math.Sin(rad)), float32(math.Cos(rad))
	return Mtx{
		{c, -s, 0, 0},
		{s, c, 0, 0},
		{0, 0, 1, 0},
	}
}

// Concat returns a×b: b is applied first.
func Concat(a, b Mtx) Mtx {
	var r Mtx
	for i := 0; i < 3; i++ {
		for j := 0; j < 4; j++ {
			v := a[i][0]*b[0][j] + a[i][1]*b[1][j] + a[i][2]*b[2][j]
			if j == 3 {
				v += a[i][3]
			}
			r[i][j] = v
		}
	}
	return r
}

// Apply transforms a point.
func (m Mtx) Apply(x, y, z float32) (float32, float32, float32) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z + m[0][3],
		m[1][0]*x + m[1][1]*y + m[1][2]*z + m[1][3],
		m[2][0]*x + m[2][1]*y + m[2][2]*z + m[2][3]
}

// Ortho builds an orthographic projection for the box spanned by top,
// bottom, left and right. Depth counts toward the viewer: z == near lands on
// the far end of the depth range and z == far on the near end, so later
// layers can be stacked with increasing z.
func Ortho(t, b, l, r, near, far float32) Mtx44 {
	var m Mtx44
	m[0][0] = 2 / (r - l)
	m[0][3] = -(r + l) / (r - l)
	m[1][1] = 2 / (t - b)
	m[1][3] = -(t + b) / (t - b)
	m[2][2] = -1 / (far - near)
	m[2][3] = far / (far - near)
	m[3][3] = 1
	return m
}

// project maps a view-space point to normalized device coordinates. x and
// y land in [-1, 1], depth in [0, 1] with 0 nearest.
func (m Mtx44) project(x, y, z float32) (float32, float32, float32) {
	nx := m[0][0]*x + m[0][1]*y + m[0][2]*z + m[0][3]
	ny := m[1][0]*x + m[1][1]*y + m[1][2]*z + m[1][3]
	nz := m[2][0]*x + m[2][1]*y + m[2][2]*z + m[2][3]
	return nx, ny, nz
}
