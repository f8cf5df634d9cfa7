// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	glm "github.com/go-gl/mathgl/mgl32"
)

// typ is a shading language type.
type typ int

const (
	tInvalid typ = iota
	tVoid
	tFloat
	tVec2
	tVec3
	tVec4
	tMat4
	tSampler2D
)

var typeNames = map[string]typ{
	"void":      tVoid,
	"float":     tFloat,
	"vec2":      tVec2,
	"vec3":      tVec3,
	"vec4":      tVec4,
	"mat4":      tMat4,
	"sampler2D": tSampler2D,
}

func (t typ) String() string {
	for name, v := range typeNames {
		if v == t {
			return name
		}
	}
	return "invalid"
}

// components is the number of floats a value of t occupies.
func (t typ) components() int {
	switch t {
	case tFloat, tSampler2D:
		return 1
	case tVec2:
		return 2
	case tVec3:
		return 3
	case tVec4:
		return 4
	case tMat4:
		return 16
	}
	return 0
}

func (t typ) isVector() bool {
	return t == tVec2 || t == tVec3 || t == tVec4
}

// isGen reports whether t is accepted by the component-wise builtins.
func (t typ) isGen() bool {
	return t == tFloat || t.isVector()
}

func vecType(n int) typ {
	switch n {
	case 1:
		return tFloat
	case 2:
		return tVec2
	case 3:
		return tVec3
	case 4:
		return tVec4
	}
	return tInvalid
}

// value holds any shading language value. Floats and vectors use
// the leading components, mat4 is stored column-major.
type value [16]float32

func scalar(f float32) value {
	var v value
	v[0] = f
	return v
}

// broadcast2 applies fn component-wise over the first n components.
// Scalar operands are repeated across all components.
func broadcast2(a value, at typ, b value, bt typ, n int, fn func(x, y float32) float32) value {
	var out value
	for i := 0; i < n; i++ {
		x, y := a[0], b[0]
		if at != tFloat {
			x = a[i]
		}
		if bt != tFloat {
			y = b[i]
		}
		out[i] = fn(x, y)
	}
	return out
}

func mat4Of(v value) glm.Mat4 {
	var m glm.Mat4
	copy(m[:], v[:])
	return m
}

func fromMat4(m glm.Mat4) value {
	var v value
	copy(v[:], m[:])
	return v
}

func mulMatVec(m, v value) value {
	r := mat4Of(m).Mul4x1(glm.Vec4{v[0], v[1], v[2], v[3]})
	return value{r[0], r[1], r[2], r[3]}
}

// mulVecMat treats v as a row vector.
func mulVecMat(v, m value) value {
	r := mat4Of(m).Transpose().Mul4x1(glm.Vec4{v[0], v[1], v[2], v[3]})
	return value{r[0], r[1], r[2], r[3]}
}

func mulMatMat(a, b value) value {
	return fromMat4(mat4Of(a).Mul4(mat4Of(b)))
}

func dot(a, b value, n int) float32 {
	var s float32
	for i := 0; i < n; i++ {
		s += a[i] * b[i]
	}
	return s
}

func clamp01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
