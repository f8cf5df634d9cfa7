// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"math"
)

// binary type-checks and builds an arithmetic operator.
func (p *parser) binary(op token, l, r expr) expr {
	le, re := l.eval, r.eval
	switch {
	case op.text == "*" && l.t == tMat4 && r.t == tVec4:
		return expr{t: tVec4, eval: func(f *frame) value { return mulMatVec(le(f), re(f)) }}
	case op.text == "*" && l.t == tVec4 && r.t == tMat4:
		return expr{t: tVec4, eval: func(f *frame) value { return mulVecMat(le(f), re(f)) }}
	case op.text == "*" && l.t == tMat4 && r.t == tMat4:
		return expr{t: tMat4, eval: func(f *frame) value { return mulMatMat(le(f), re(f)) }}
	}

	var result typ
	switch {
	case l.t == r.t && (l.t.isGen() || l.t == tMat4):
		result = l.t
	case l.t == tFloat && (r.t.isVector() || r.t == tMat4):
		result = r.t
	case r.t == tFloat && (l.t.isVector() || l.t == tMat4):
		result = l.t
	default:
		panic(errorAt(op, "wrong operand types - no operation '%s' exists that takes a left-hand operand of type '%s' and a right operand of type '%s'", op.text, l.t, r.t))
	}

	var fn func(x, y float32) float32
	switch op.text {
	case "+":
		fn = func(x, y float32) float32 { return x + y }
	case "-":
		fn = func(x, y float32) float32 { return x - y }
	case "*":
		fn = func(x, y float32) float32 { return x * y }
	case "/":
		fn = func(x, y float32) float32 { return x / y }
	}
	lt, rt, n := l.t, r.t, result.components()
	return expr{t: result, eval: func(f *frame) value {
		return broadcast2(le(f), lt, re(f), rt, n, fn)
	}}
}

// constructor builds vecN, float and mat4 constructors.
func constructor(name token, ty typ, args []expr) expr {
	if len(args) == 0 {
		panic(errorAt(name, "constructor does not have any arguments"))
	}
	for _, a := range args {
		if !a.t.isGen() && !(ty == tMat4 && a.t == tMat4) {
			panic(errorAt(name, "cannot construct '%s' from '%s'", ty, a.t))
		}
	}
	n := ty.components()

	if ty == tVoid || ty == tSampler2D {
		panic(errorAt(name, "cannot construct this type"))
	}

	// a single scalar fills vectors and the diagonal of matrices
	if len(args) == 1 && args[0].t == tFloat {
		eval := args[0].eval
		if ty == tMat4 {
			return expr{t: ty, eval: func(f *frame) value {
				s := eval(f)[0]
				var v value
				v[0], v[5], v[10], v[15] = s, s, s, s
				return v
			}}
		}
		return expr{t: ty, eval: func(f *frame) value {
			s := eval(f)[0]
			var v value
			for i := 0; i < n; i++ {
				v[i] = s
			}
			return v
		}}
	}
	if len(args) == 1 && (args[0].t == ty || args[0].t.components() >= n) {
		eval := args[0].eval
		return expr{t: ty, eval: func(f *frame) value {
			v := eval(f)
			for i := n; i < len(v); i++ {
				v[i] = 0
			}
			return v
		}}
	}

	total := 0
	for _, a := range args {
		if total >= n {
			panic(errorAt(name, "too many arguments"))
		}
		total += a.t.components()
	}
	if total < n {
		panic(errorAt(name, "not enough data provided for construction"))
	}

	evals := make([]evalFunc, len(args))
	sizes := make([]int, len(args))
	for i, a := range args {
		evals[i], sizes[i] = a.eval, a.t.components()
	}
	return expr{t: ty, eval: func(f *frame) value {
		var v value
		k := 0
		for i, eval := range evals {
			a := eval(f)
			for j := 0; j < sizes[i] && k < n; j++ {
				v[k] = a[j]
				k++
			}
		}
		return v
	}}
}

var unaryMath = map[string]func(float64) float64{
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"log":   math.Log,
	"fract": func(x float64) float64 { return x - math.Floor(x) },
	"sign": func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	},
}

var binaryMath = map[string]func(x, y float32) float32{
	"min": func(x, y float32) float32 {
		if y < x {
			return y
		}
		return x
	},
	"max": func(x, y float32) float32 {
		if y > x {
			return y
		}
		return x
	},
	"pow": func(x, y float32) float32 { return float32(math.Pow(float64(x), float64(y))) },
	"mod": func(x, y float32) float32 { return x - y*float32(math.Floor(float64(x/y))) },
}

func step(edge, x float32) float32 {
	if x < edge {
		return 0
	}
	return 1
}

func builtinCall(name token, args []expr) expr {
	arity := func(n int) {
		if len(args) != n {
			panic(errorAt(name, "no matching overloaded function found"))
		}
	}
	genArg := func(i int) typ {
		if !args[i].t.isGen() {
			panic(errorAt(name, "no matching overloaded function found"))
		}
		return args[i].t
	}
	// sameOrFloat checks that args[i] matches ty or is a scalar.
	sameOrFloat := func(i int, ty typ) {
		if args[i].t != ty && args[i].t != tFloat {
			panic(errorAt(name, "no matching overloaded function found"))
		}
	}

	if fn, ok := unaryMath[name.text]; ok {
		arity(1)
		ty := genArg(0)
		n, eval := ty.components(), args[0].eval
		return expr{t: ty, eval: func(f *frame) value {
			v := eval(f)
			for i := 0; i < n; i++ {
				v[i] = float32(fn(float64(v[i])))
			}
			return v
		}}
	}
	if fn, ok := binaryMath[name.text]; ok {
		arity(2)
		ty := genArg(0)
		sameOrFloat(1, ty)
		a, b, bt, n := args[0].eval, args[1].eval, args[1].t, ty.components()
		return expr{t: ty, eval: func(f *frame) value { return broadcast2(a(f), ty, b(f), bt, n, fn) }}
	}

	switch name.text {
	case "step":
		// step(edge, x) takes its shape from x
		arity(2)
		ty := genArg(1)
		sameOrFloat(0, ty)
		edge, x, et, n := args[0].eval, args[1].eval, args[0].t, ty.components()
		return expr{t: ty, eval: func(f *frame) value { return broadcast2(edge(f), et, x(f), ty, n, step) }}
	case "texture2D":
		arity(2)
		if args[0].t != tSampler2D || args[1].t != tVec2 {
			panic(errorAt(name, "no matching overloaded function found"))
		}
		s, uv := args[0].eval, args[1].eval
		return expr{t: tVec4, eval: func(f *frame) value {
			st := uv(f)
			c := f.sample(int(s(f)[0]), st[0], st[1])
			return value{c[0], c[1], c[2], c[3]}
		}}
	case "clamp":
		arity(3)
		ty := genArg(0)
		sameOrFloat(1, ty)
		sameOrFloat(2, ty)
		x, lo, hi := args[0].eval, args[1].eval, args[2].eval
		lt, ht, n := args[1].t, args[2].t, ty.components()
		return expr{t: ty, eval: func(f *frame) value {
			v := broadcast2(x(f), ty, lo(f), lt, n, binaryMath["max"])
			return broadcast2(v, ty, hi(f), ht, n, binaryMath["min"])
		}}
	case "mix":
		arity(3)
		ty := genArg(0)
		if args[1].t != ty {
			panic(errorAt(name, "no matching overloaded function found"))
		}
		sameOrFloat(2, ty)
		x, y, a := args[0].eval, args[1].eval, args[2].eval
		at, n := args[2].t, ty.components()
		return expr{t: ty, eval: func(f *frame) value {
			xv, yv, av := x(f), y(f), a(f)
			var out value
			for i := 0; i < n; i++ {
				t := av[0]
				if at != tFloat {
					t = av[i]
				}
				out[i] = xv[i]*(1-t) + yv[i]*t
			}
			return out
		}}
	case "dot":
		arity(2)
		ty := genArg(0)
		if args[1].t != ty {
			panic(errorAt(name, "no matching overloaded function found"))
		}
		a, b, n := args[0].eval, args[1].eval, ty.components()
		return expr{t: tFloat, eval: func(f *frame) value { return scalar(dot(a(f), b(f), n)) }}
	case "length":
		arity(1)
		ty := genArg(0)
		a, n := args[0].eval, ty.components()
		return expr{t: tFloat, eval: func(f *frame) value {
			v := a(f)
			return scalar(float32(math.Sqrt(float64(dot(v, v, n)))))
		}}
	case "normalize":
		arity(1)
		ty := genArg(0)
		a, n := args[0].eval, ty.components()
		return expr{t: ty, eval: func(f *frame) value {
			v := a(f)
			l := float32(math.Sqrt(float64(dot(v, v, n))))
			if l == 0 {
				return v
			}
			for i := 0; i < n; i++ {
				v[i] /= l
			}
			return v
		}}
	case "cross":
		arity(2)
		if args[0].t != tVec3 || args[1].t != tVec3 {
			panic(errorAt(name, "no matching overloaded function found"))
		}
		a, b := args[0].eval, args[1].eval
		return expr{t: tVec3, eval: func(f *frame) value {
			x, y := a(f), b(f)
			return value{
				x[1]*y[2] - x[2]*y[1],
				x[2]*y[0] - x[0]*y[2],
				x[0]*y[1] - x[1]*y[0],
			}
		}}
	}
	panic(errorAt(name, "no matching overloaded function found"))
}
