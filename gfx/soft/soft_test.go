// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/devblok/tetra/gfx"
)

const flatVertex = `
attribute vec3 a_position;
void main() {
	gl_Position = vec4(a_position, 1.0);
}
`

const flatFragment = `
precision mediump float;
uniform vec4 u_color;
void main() {
	gl_FragColor = u_color;
}
`

func floats(v ...float32) []byte {
	b := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func pixel(t *testing.T, c *Context, x, y int) [4]byte {
	t.Helper()
	var px [4]byte
	if err := c.ReadPixels(x, y, 1, 1, px[:]); err != nil {
		t.Fatalf("ReadPixels(%d, %d): %v", x, y, err)
	}
	return px
}

func mustProgram(t *testing.T, c *Context, vs, fs string) gfx.Program {
	t.Helper()
	v, err := c.CompileShader(gfx.VertexStage, vs)
	if err != nil {
		t.Fatalf("vertex shader: %v", err)
	}
	f, err := c.CompileShader(gfx.FragmentStage, fs)
	if err != nil {
		t.Fatalf("fragment shader: %v", err)
	}
	p, err := c.LinkProgram(v, f)
	if err != nil {
		t.Fatalf("link: %v", err)
	}
	c.DeleteShader(v)
	c.DeleteShader(f)
	return p
}

func TestCompileErrors(t *testing.T) {
	cases := []struct {
		name  string
		stage gfx.ShaderStage
		src   string
		log   string
	}{
		{"syntax", gfx.VertexStage, "void main() { gl_Position = vec4(1.0) }", "ERROR: 0:1: '}' : syntax error, expected ';'"},
		{"undeclared", gfx.VertexStage, "void main() {\n\tgl_Position = foo;\n}", "ERROR: 0:2: 'foo' : undeclared identifier"},
		{"missing main", gfx.FragmentStage, "uniform float u_time;", "Missing main()"},
		{"attribute in fragment", gfx.FragmentStage, "attribute vec3 a;\nvoid main() {}", "supported in vertex shaders only"},
		{"type mismatch", gfx.VertexStage, "void main() { gl_Position = vec3(1.0); }", "cannot convert from 'vec3' to 'vec4'"},
		{"discard in vertex", gfx.VertexStage, "void main() { discard; }", "discard is only allowed in fragment shaders"},
		{"write attribute", gfx.VertexStage, "attribute vec4 a;\nvoid main() { a = vec4(1.0); }", "l-value required"},
		{"bad swizzle", gfx.VertexStage, "attribute vec2 a;\nvoid main() { gl_Position = vec4(a.xyz, 1.0); }", "vector field selection out of range"},
		{"for loop", gfx.FragmentStage, "void main() {\n\tfor (float i = 0.0; i < 2.0; i += 1.0) {}\n}", "ERROR: 0:2: 'for' : not supported"},
		{"int local", gfx.VertexStage, "void main() {\n\tint n = 1;\n}", "ERROR: 0:2: 'int' : not supported"},
		{"int uniform", gfx.VertexStage, "uniform int u_count;\nvoid main() {}", "ERROR: 0:1: 'int' : not supported"},
		{"int constructor", gfx.VertexStage, "void main() { gl_Position = vec4(int(1.0)); }", "ERROR: 0:1: 'int' : not supported"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			ctx := NewContext(4, 4)
			_, err := ctx.CompileShader(tc.stage, tc.src)
			var info *gfx.InfoLogError
			c.Assert(errors.As(err, &info), qt.IsTrue)
			c.Assert(info.Log, qt.Contains, tc.log)
			c.Assert(ctx.Stats().Shaders, qt.Equals, 0)
		})
	}
}

func TestCompileAcceptsCommonShaders(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(4, 4)
	vs := `#version 100
// model shader
attribute vec3 a_position;
attribute vec2 a_tex_coord;
attribute vec3 a_normal;
uniform mat4 u_model_view_projection;
uniform mat4 u_normal_matrix;
varying highp vec2 v_tex_coord;
varying vec3 v_lighting;
void main() {
	gl_Position = u_model_view_projection * vec4(a_position, 1.0);
	v_tex_coord = a_tex_coord;
	vec3 ambient = vec3(0.3, 0.3, 0.3);
	vec3 direction = normalize(vec3(0.85, 0.8, 0.75));
	vec4 n = u_normal_matrix * vec4(a_normal, 1.0);
	float d = max(dot(n.xyz, direction), 0.0);
	v_lighting = ambient + vec3(1.0) * d;
}`
	fs := `precision mediump float;
varying highp vec2 v_tex_coord;
varying vec3 v_lighting;
uniform sampler2D u_sampler;
uniform float u_time;
void main() {
	/* modulate texture by light */
	vec4 texel = texture2D(u_sampler, v_tex_coord);
	gl_FragColor = vec4(texel.rgb * v_lighting, texel.a);
	gl_FragColor *= clamp(sin(u_time) + 2.0, 0.0, 1.0);
}`
	p := mustProgram(t, ctx, vs, fs)

	attrs := ctx.ActiveAttributes(p)
	c.Assert(attrs, qt.DeepEquals, []gfx.AttributeInfo{
		{Name: "a_position", Location: 0, Components: 3},
		{Name: "a_tex_coord", Location: 1, Components: 2},
		{Name: "a_normal", Location: 2, Components: 3},
	})
	for _, name := range []string{"u_model_view_projection", "u_normal_matrix", "u_sampler", "u_time"} {
		c.Assert(ctx.UniformLocation(p, name) >= 0, qt.IsTrue, qt.Commentf("uniform %s", name))
	}
	c.Assert(ctx.UniformLocation(p, "u_missing"), qt.Equals, -1)
	c.Assert(ctx.Stats().Shaders, qt.Equals, 0)
	c.Assert(ctx.Stats().Programs, qt.Equals, 1)
}

func TestLinkErrors(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(4, 4)

	vs, err := ctx.CompileShader(gfx.VertexStage, flatVertex)
	c.Assert(err, qt.IsNil)
	fs, err := ctx.CompileShader(gfx.FragmentStage, "varying vec2 v_uv;\nvoid main() { gl_FragColor = vec4(v_uv, 0.0, 1.0); }")
	c.Assert(err, qt.IsNil)

	_, err = ctx.LinkProgram(vs, fs)
	var info *gfx.InfoLogError
	c.Assert(errors.As(err, &info), qt.IsTrue)
	c.Assert(info.Log, qt.Contains, "v_uv not written by vertex shader")

	_, err = ctx.LinkProgram(fs, vs)
	c.Assert(errors.As(err, &info), qt.IsTrue)

	_, err = ctx.LinkProgram(vs, 999)
	c.Assert(err, qt.Equals, ErrInvalidHandle)

	uvs, err := ctx.CompileShader(gfx.VertexStage, "uniform float u_x;\nvoid main() { gl_Position = vec4(u_x); }")
	c.Assert(err, qt.IsNil)
	ufs, err := ctx.CompileShader(gfx.FragmentStage, "uniform vec4 u_x;\nvoid main() { gl_FragColor = u_x; }")
	c.Assert(err, qt.IsNil)
	_, err = ctx.LinkProgram(uvs, ufs)
	c.Assert(errors.As(err, &info), qt.IsTrue)
	c.Assert(info.Log, qt.Contains, "uniform u_x declared as float")
}

func TestDrawFlatTriangle(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(8, 8)
	p := mustProgram(t, ctx, flatVertex, flatFragment)

	// counter-clockwise, covering the lower left half
	vb, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(
		-1, -1, 0,
		1, -1, 0,
		-1, 1, 0,
	))
	c.Assert(err, qt.IsNil)

	ctx.Clear([4]float32{0, 0, 0, 1})
	err = ctx.Draw(&gfx.DrawCommand{
		Program:    p,
		Vertices:   vb,
		Attributes: []gfx.VertexAttribute{{Location: 0, Components: 3}},
		Count:      3,
		Uniforms: []gfx.Uniform{{
			Location: ctx.UniformLocation(p, "u_color"),
			Kind:     gfx.UniformFloat,
			Value:    [16]float32{1, 0, 0, 1},
		}},
		DepthTest:     true,
		CullBackFaces: true,
	})
	c.Assert(err, qt.IsNil)

	c.Assert(pixel(t, ctx, 0, 0), qt.Equals, [4]byte{255, 0, 0, 255})
	c.Assert(pixel(t, ctx, 7, 7), qt.Equals, [4]byte{0, 0, 0, 255})
	c.Assert(ctx.Stats().Draws, qt.Equals, 1)
	c.Assert(ctx.Stats().Clears, qt.Equals, 1)
}

func TestDrawCullsBackFaces(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(8, 8)
	p := mustProgram(t, ctx, flatVertex, flatFragment)

	// clockwise
	vb, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(
		-1, -1, 0,
		-1, 1, 0,
		1, -1, 0,
	))
	c.Assert(err, qt.IsNil)

	cmd := &gfx.DrawCommand{
		Program:    p,
		Vertices:   vb,
		Attributes: []gfx.VertexAttribute{{Location: 0, Components: 3}},
		Count:      3,
		Uniforms: []gfx.Uniform{{
			Location: ctx.UniformLocation(p, "u_color"),
			Value:    [16]float32{0, 1, 0, 1},
		}},
		CullBackFaces: true,
	}
	ctx.Clear([4]float32{0, 0, 0, 1})
	c.Assert(ctx.Draw(cmd), qt.IsNil)
	c.Assert(pixel(t, ctx, 0, 0), qt.Equals, [4]byte{0, 0, 0, 255})

	cmd.CullBackFaces = false
	c.Assert(ctx.Draw(cmd), qt.IsNil)
	c.Assert(pixel(t, ctx, 0, 0), qt.Equals, [4]byte{0, 255, 0, 255})
}

func TestDrawIndexedDepth(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(4, 4)
	p := mustProgram(t, ctx, flatVertex, flatFragment)
	loc := ctx.UniformLocation(p, "u_color")

	// full screen quad at depth 0.5
	vb, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(
		-1, -1, 0,
		1, -1, 0,
		1, 1, 0,
		-1, 1, 0,
	))
	c.Assert(err, qt.IsNil)
	idx := make([]byte, 12)
	for i, v := range []uint16{0, 1, 2, 0, 2, 3} {
		binary.LittleEndian.PutUint16(idx[i*2:], v)
	}
	ib, err := ctx.CreateBuffer(gfx.ElementArrayBuffer, idx)
	c.Assert(err, qt.IsNil)
	far, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(
		-1, -1, 0.5,
		1, -1, 0.5,
		1, 1, 0.5,
		-1, 1, 0.5,
	))
	c.Assert(err, qt.IsNil)

	draw := func(buf gfx.Buffer, color [16]float32) {
		err := ctx.Draw(&gfx.DrawCommand{
			Program:    p,
			Vertices:   buf,
			Attributes: []gfx.VertexAttribute{{Location: 0, Components: 3}},
			Indices:    ib,
			IndexType:  gfx.Uint16,
			Count:      6,
			Uniforms:   []gfx.Uniform{{Location: loc, Value: color}},
			DepthTest:  true,
		})
		c.Assert(err, qt.IsNil)
	}

	ctx.Clear([4]float32{0, 0, 0, 0})
	draw(vb, [16]float32{0, 0, 1, 1})
	draw(far, [16]float32{1, 1, 0, 1})
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c.Assert(pixel(t, ctx, x, y), qt.Equals, [4]byte{0, 0, 255, 255})
		}
	}
}

func TestDrawOutOfRange(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(4, 4)
	p := mustProgram(t, ctx, flatVertex, flatFragment)
	vb, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(0, 0, 0, 1, 0, 0))
	c.Assert(err, qt.IsNil)

	err = ctx.Draw(&gfx.DrawCommand{
		Program:    p,
		Vertices:   vb,
		Attributes: []gfx.VertexAttribute{{Location: 0, Components: 3}},
		Count:      3,
	})
	c.Assert(err, qt.ErrorMatches, "draw: vertex 2 attribute a_position reads past .*")

	err = ctx.Draw(&gfx.DrawCommand{Program: p, Vertices: 77, Count: 3})
	c.Assert(errors.Is(err, ErrInvalidHandle), qt.IsTrue)
}

func TestTextureSampling(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(2, 2)
	vs := `attribute vec2 a_position;
varying vec2 v_uv;
void main() {
	v_uv = a_position * 0.5 + 0.5;
	gl_Position = vec4(a_position, 0.0, 1.0);
}`
	fs := `precision mediump float;
uniform sampler2D u_sampler;
varying vec2 v_uv;
void main() {
	gl_FragColor = texture2D(u_sampler, v_uv);
}`
	p := mustProgram(t, ctx, vs, fs)

	// first row red, second row green
	tex, err := ctx.CreateTexture(1, 2, []byte{255, 0, 0, 255, 0, 255, 0, 255})
	c.Assert(err, qt.IsNil)
	vb, err := ctx.CreateBuffer(gfx.ArrayBuffer, floats(-1, -1, 1, -1, 1, 1, -1, -1, 1, 1, -1, 1))
	c.Assert(err, qt.IsNil)

	err = ctx.Draw(&gfx.DrawCommand{
		Program:    p,
		Vertices:   vb,
		Attributes: []gfx.VertexAttribute{{Location: 0, Components: 2, Stride: 8}},
		Count:      6,
		Texture:    tex,
		Uniforms:   []gfx.Uniform{{Location: ctx.UniformLocation(p, "u_sampler"), Kind: gfx.UniformSampler}},
	})
	c.Assert(err, qt.IsNil)

	// framebuffer row 0 is the bottom, where v is small
	c.Assert(pixel(t, ctx, 0, 0), qt.Equals, [4]byte{255, 0, 0, 255})
	c.Assert(pixel(t, ctx, 1, 1), qt.Equals, [4]byte{0, 255, 0, 255})

	ctx.DeleteTexture(tex)
	c.Assert(ctx.Stats().Textures, qt.Equals, 0)
}

func TestCreateTextureRejectsShortData(t *testing.T) {
	c := qt.New(t)
	ctx := NewContext(1, 1)
	_, err := ctx.CreateTexture(2, 2, make([]byte, 15))
	c.Assert(err, qt.ErrorMatches, "soft: texture 2x2 needs 16 bytes, got 15")
}

func TestSurface(t *testing.T) {
	c := qt.New(t)

	_, err := NewSurface(0, 10).Context()
	c.Assert(errors.Is(err, ErrSurface), qt.IsTrue)

	s := NewSurface(3, 2)
	gc, err := s.Context()
	c.Assert(err, qt.IsNil)
	c.Assert(gc, qt.Equals, gfx.Context(s.Bound()))

	s.Resize(5, 4)
	w, h := s.Size()
	c.Assert(w*h, qt.Equals, 20)
	c.Assert(s.Bound().ReadPixels(0, 0, 5, 4, make([]byte, 80)), qt.IsNil)

	s.Bound().Destroy()
	c.Assert(s.Bound().Destroyed(), qt.IsTrue)
	err = s.Bound().ReadPixels(0, 0, 1, 1, make([]byte, 4))
	c.Assert(err, qt.Equals, ErrDestroyed)
	_, err = gc.CompileShader(gfx.VertexStage, flatVertex)
	c.Assert(err, qt.Equals, ErrDestroyed)
}

func TestCompileLogFormat(t *testing.T) {
	ctx := NewContext(1, 1)
	_, err := ctx.CompileShader(gfx.FragmentStage, "void main() {\n\n\tgl_FragColor = vec4(1.0) +;\n}")
	if err == nil {
		t.Fatalf("expected a compile error")
	}
	if !strings.HasPrefix(err.Error(), "ERROR: 0:3: ") {
		t.Fatalf("log %q does not report line 3", err.Error())
	}
}
