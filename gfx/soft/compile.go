// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"strconv"

	"github.com/devblok/tetra/gfx"
)

// storage is where a variable lives and who may write it.
type storage int

const (
	sAttribute storage = iota
	sUniform
	sVarying
	sLocal
	sOutput // gl_Position, gl_FragColor
	sInput  // gl_FragCoord
)

type symbol struct {
	name    string
	typ     typ
	storage storage
	slot    int
	line    int
}

// unit is a compiled shader stage: declarations plus a body of
// statements that run against a frame of value slots.
type unit struct {
	stage gfx.ShaderStage

	globals    map[string]*symbol
	attributes []*symbol
	uniforms   []*symbol
	varyings   []*symbol
	slots      int

	body []stmt

	position  int
	fragColor int
	fragCoord int
}

// frame is the execution state of one shader invocation.
type frame struct {
	slots     []value
	sample    func(unit int, s, t float32) [4]float32
	discarded bool
}

type evalFunc func(f *frame) value

// stmt executes one statement, returning true when main must stop.
type stmt func(f *frame) bool

type expr struct {
	t    typ
	eval evalFunc
}

type parser struct {
	toks   []token
	pos    int
	u      *unit
	locals map[string]*symbol
}

// compile translates a shader source into an executable unit.
// Failures are reported as *compileError.
func compile(stage gfx.ShaderStage, src string) (u *unit, err error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{
		toks: toks,
		u: &unit{
			stage:     stage,
			globals:   make(map[string]*symbol),
			position:  -1,
			fragColor: -1,
			fragCoord: -1,
		},
	}
	switch stage {
	case gfx.VertexStage:
		p.u.position = p.declareGlobal("gl_Position", tVec4, sOutput, 0).slot
	case gfx.FragmentStage:
		p.u.fragColor = p.declareGlobal("gl_FragColor", tVec4, sOutput, 0).slot
		p.u.fragCoord = p.declareGlobal("gl_FragCoord", tVec4, sInput, 0).slot
	}

	defer func() {
		if r := recover(); r != nil {
			ce, ok := r.(*compileError)
			if !ok {
				panic(r)
			}
			u, err = nil, ce
		}
	}()
	p.translationUnit()
	return p.u, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind != tokEOF && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) token {
	t := p.next()
	if t.text != text || t.kind == tokEOF {
		panic(errorAt(t, "syntax error, expected '%s'", text))
	}
	return t
}

func (p *parser) ident() token {
	t := p.next()
	if t.kind != tokIdent {
		panic(errorAt(t, "syntax error, expected identifier"))
	}
	return t
}

// unsupported holds GLSL ES keywords outside the subset, reported as
// such instead of as unknown identifiers.
var unsupported = map[string]bool{
	"for": true, "while": true, "do": true, "if": true, "else": true,
	"break": true, "continue": true, "struct": true,
	"int": true, "bool": true, "mat2": true, "mat3": true, "samplerCube": true,
	"ivec2": true, "ivec3": true, "ivec4": true,
	"bvec2": true, "bvec3": true, "bvec4": true,
}

func (p *parser) typeName() (typ, token) {
	t := p.next()
	ty, ok := typeNames[t.text]
	if !ok && unsupported[t.text] {
		panic(errorAt(t, "not supported"))
	}
	if !ok || t.kind != tokIdent {
		panic(errorAt(t, "syntax error, expected type"))
	}
	return ty, t
}

func isPrecision(s string) bool {
	return s == "lowp" || s == "mediump" || s == "highp"
}

func (p *parser) declareGlobal(name string, t typ, st storage, line int) *symbol {
	sym := &symbol{name: name, typ: t, storage: st, slot: p.u.slots, line: line}
	p.u.slots++
	p.u.globals[name] = sym
	return sym
}

func (p *parser) lookup(t token) *symbol {
	if sym, ok := p.locals[t.text]; ok {
		return sym
	}
	if sym, ok := p.u.globals[t.text]; ok {
		return sym
	}
	if unsupported[t.text] {
		panic(errorAt(t, "not supported"))
	}
	panic(errorAt(t, "undeclared identifier"))
}

func (p *parser) translationUnit() {
	hasMain := false
	for p.peek().kind != tokEOF {
		t := p.peek()
		switch t.text {
		case "precision":
			p.next()
			if q := p.next(); !isPrecision(q.text) {
				panic(errorAt(q, "syntax error, expected precision qualifier"))
			}
			if ty := p.next(); ty.text != "float" && ty.text != "int" {
				panic(errorAt(ty, "illegal type for precision qualifier"))
			}
			p.expect(";")
		case "attribute", "uniform", "varying":
			p.globalDeclaration()
		case "void":
			p.next()
			name := p.ident()
			if name.text != "main" {
				panic(errorAt(name, "only the main function is supported"))
			}
			if hasMain {
				panic(errorAt(name, "function already has a body"))
			}
			p.expect("(")
			p.accept("void")
			p.expect(")")
			p.u.body = p.block()
			hasMain = true
		default:
			panic(errorAt(t, "global variables must be attribute, uniform or varying"))
		}
	}
	if !hasMain {
		panic(errorAt(p.peek(), "Missing main()"))
	}
}

func (p *parser) globalDeclaration() {
	qual := p.next()
	if isPrecision(p.peek().text) {
		p.next()
	}
	ty, tyTok := p.typeName()

	var st storage
	switch qual.text {
	case "attribute":
		if p.u.stage != gfx.VertexStage {
			panic(errorAt(qual, "supported in vertex shaders only"))
		}
		if !ty.isGen() {
			panic(errorAt(tyTok, "cannot be used with a %s attribute", ty))
		}
		st = sAttribute
	case "varying":
		if !ty.isGen() {
			panic(errorAt(tyTok, "cannot be used with a %s varying", ty))
		}
		st = sVarying
	default:
		if ty == tVoid {
			panic(errorAt(tyTok, "illegal use of type 'void'"))
		}
		st = sUniform
	}
	if ty == tSampler2D && st != sUniform {
		panic(errorAt(tyTok, "samplers must be uniform"))
	}

	for {
		name := p.ident()
		if _, ok := p.u.globals[name.text]; ok {
			panic(errorAt(name, "redefinition"))
		}
		sym := p.declareGlobal(name.text, ty, st, name.line)
		switch st {
		case sAttribute:
			p.u.attributes = append(p.u.attributes, sym)
		case sVarying:
			p.u.varyings = append(p.u.varyings, sym)
		case sUniform:
			p.u.uniforms = append(p.u.uniforms, sym)
		}
		if !p.accept(",") {
			break
		}
	}
	p.expect(";")
}

func (p *parser) block() []stmt {
	p.expect("{")
	p.locals = make(map[string]*symbol)
	var body []stmt
	for !p.accept("}") {
		if p.peek().kind == tokEOF {
			panic(errorAt(p.peek(), "syntax error, unexpected end of file"))
		}
		body = append(body, p.statement())
	}
	return body
}

func (p *parser) statement() stmt {
	t := p.peek()
	switch {
	case t.text == "discard":
		p.next()
		if p.u.stage != gfx.FragmentStage {
			panic(errorAt(t, "discard is only allowed in fragment shaders"))
		}
		p.expect(";")
		return func(f *frame) bool {
			f.discarded = true
			return true
		}
	case t.text == "return":
		p.next()
		p.expect(";")
		return func(*frame) bool { return true }
	case t.text == "const" || isPrecision(t.text):
		return p.localDeclaration()
	case unsupported[t.text]:
		panic(errorAt(t, "not supported"))
	case t.kind == tokIdent:
		if _, ok := typeNames[t.text]; ok {
			return p.localDeclaration()
		}
		return p.assignment()
	}
	panic(errorAt(t, "syntax error, unsupported statement"))
}

func (p *parser) localDeclaration() stmt {
	constant := p.accept("const")
	if isPrecision(p.peek().text) {
		p.next()
	}
	ty, tyTok := p.typeName()
	if ty == tVoid || ty == tSampler2D {
		panic(errorAt(tyTok, "illegal local variable type"))
	}
	name := p.ident()
	if _, ok := p.locals[name.text]; ok {
		panic(errorAt(name, "redefinition"))
	}

	var init *expr
	if p.accept("=") {
		e := p.expression()
		if e.t != ty {
			panic(errorAt(name, "cannot convert from '%s' to '%s'", e.t, ty))
		}
		init = &e
	} else if constant {
		panic(errorAt(name, "variables with qualifier 'const' must be initialized"))
	}
	p.expect(";")

	sym := &symbol{name: name.text, typ: ty, storage: sLocal, slot: p.u.slots, line: name.line}
	p.u.slots++
	p.locals[name.text] = sym

	slot := sym.slot
	if init == nil {
		return func(f *frame) bool {
			f.slots[slot] = value{}
			return false
		}
	}
	eval := init.eval
	return func(f *frame) bool {
		f.slots[slot] = eval(f)
		return false
	}
}

func (p *parser) assignment() stmt {
	name := p.next()
	sym := p.lookup(name)
	switch {
	case sym.storage == sAttribute || sym.storage == sUniform || sym.storage == sInput:
		panic(errorAt(name, "l-value required (can't modify a read-only variable)"))
	case sym.storage == sVarying && p.u.stage == gfx.FragmentStage:
		panic(errorAt(name, "l-value required (can't modify a varying)"))
	}
	if p.peek().text == "." {
		panic(errorAt(p.peek(), "assignment to a swizzle is not supported"))
	}

	op := p.next()
	lhs := expr{t: sym.typ, eval: load(sym.slot)}
	rhs := p.expression()
	switch op.text {
	case "=":
	case "+=", "-=", "*=", "/=":
		rhs = p.binary(token{kind: tokPunct, text: op.text[:1], line: op.line}, lhs, rhs)
	default:
		panic(errorAt(op, "syntax error, expected assignment"))
	}
	if rhs.t != sym.typ {
		panic(errorAt(op, "cannot convert from '%s' to '%s'", rhs.t, sym.typ))
	}
	p.expect(";")

	slot, eval := sym.slot, rhs.eval
	return func(f *frame) bool {
		f.slots[slot] = eval(f)
		return false
	}
}

func load(slot int) evalFunc {
	return func(f *frame) value { return f.slots[slot] }
}

func (p *parser) expression() expr {
	l := p.multiplicative()
	for {
		t := p.peek()
		if t.kind != tokPunct || (t.text != "+" && t.text != "-") {
			return l
		}
		p.next()
		l = p.binary(t, l, p.multiplicative())
	}
}

func (p *parser) multiplicative() expr {
	l := p.unary()
	for {
		t := p.peek()
		if t.kind != tokPunct || (t.text != "*" && t.text != "/") {
			return l
		}
		p.next()
		l = p.binary(t, l, p.unary())
	}
}

func (p *parser) unary() expr {
	t := p.peek()
	if t.kind == tokPunct && (t.text == "-" || t.text == "+") {
		p.next()
		e := p.unary()
		if e.t == tSampler2D {
			panic(errorAt(t, "wrong operand type"))
		}
		if t.text == "+" {
			return e
		}
		n, eval := e.t.components(), e.eval
		return expr{t: e.t, eval: func(f *frame) value {
			v := eval(f)
			for i := 0; i < n; i++ {
				v[i] = -v[i]
			}
			return v
		}}
	}
	return p.postfix()
}

func (p *parser) postfix() expr {
	e := p.primary()
	for p.peek().text == "." && p.peek().kind == tokPunct {
		p.next()
		sw := p.ident()
		e = swizzle(sw, e)
	}
	return e
}

var swizzleSets = []string{"xyzw", "rgba", "stpq"}

func swizzle(sw token, e expr) expr {
	if !e.t.isVector() || len(sw.text) > 4 {
		panic(errorAt(sw, "field selection requires structure or vector on left hand side"))
	}
	var idx []int
	for _, set := range swizzleSets {
		idx = idx[:0]
		for i := 0; i < len(sw.text); i++ {
			k := indexByte(set, sw.text[i])
			if k < 0 {
				break
			}
			idx = append(idx, k)
		}
		if len(idx) == len(sw.text) {
			break
		}
	}
	if len(idx) != len(sw.text) {
		panic(errorAt(sw, "illegal vector field selection"))
	}
	for _, k := range idx {
		if k >= e.t.components() {
			panic(errorAt(sw, "vector field selection out of range"))
		}
	}
	eval := e.eval
	return expr{t: vecType(len(idx)), eval: func(f *frame) value {
		v := eval(f)
		var out value
		for i, k := range idx {
			out[i] = v[k]
		}
		return out
	}}
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

func (p *parser) primary() expr {
	t := p.next()
	switch {
	case t.kind == tokNumber:
		f, err := strconv.ParseFloat(t.text, 32)
		if err != nil {
			panic(errorAt(t, "invalid number"))
		}
		v := scalar(float32(f))
		return expr{t: tFloat, eval: func(*frame) value { return v }}
	case t.kind == tokPunct && t.text == "(":
		e := p.expression()
		p.expect(")")
		return e
	case t.kind == tokIdent:
		if p.peek().text == "(" {
			return p.call(t)
		}
		if _, ok := typeNames[t.text]; ok {
			panic(errorAt(t, "syntax error, expected '(' after type"))
		}
		sym := p.lookup(t)
		return expr{t: sym.typ, eval: load(sym.slot)}
	}
	panic(errorAt(t, "syntax error, unexpected token"))
}

func (p *parser) call(name token) expr {
	if unsupported[name.text] {
		panic(errorAt(name, "not supported"))
	}
	p.expect("(")
	var args []expr
	if !p.accept(")") {
		for {
			args = append(args, p.expression())
			if p.accept(")") {
				break
			}
			p.expect(",")
		}
	}
	if ty, ok := typeNames[name.text]; ok {
		return constructor(name, ty, args)
	}
	return builtinCall(name, args)
}
