// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package opengl implements gfx.Context on OpenGL 2.1 and binds it to
// an SDL window. All calls must come from the thread that created the
// context.
package opengl

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-gl/gl/v2.1/gl"

	"github.com/devblok/tetra/gfx"
)

// ErrDestroyed is returned by calls on a destroyed context.
var ErrDestroyed = errors.New("opengl: context destroyed")

// Context is a gfx.Context on the current OpenGL context.
type Context struct {
	shaders  map[gfx.Shader]bool
	programs map[gfx.Program]*program
	buffers  map[gfx.Buffer]gfx.BufferTarget
	textures map[gfx.Texture]bool

	destroyed bool
	onDestroy func()
}

type program struct {
	attributes []gfx.AttributeInfo

	// uniform types by location
	uniforms map[int]uint32
}

// NewContext wraps the OpenGL context current on this thread.
// onDestroy runs after every object is deleted, and may be nil.
func NewContext(onDestroy func()) (*Context, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("opengl: init: %w", err)
	}
	return &Context{
		shaders:   make(map[gfx.Shader]bool),
		programs:  make(map[gfx.Program]*program),
		buffers:   make(map[gfx.Buffer]gfx.BufferTarget),
		textures:  make(map[gfx.Texture]bool),
		onDestroy: onDestroy,
	}, nil
}

// Version returns the GL_VERSION string of the driver.
func (c *Context) Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

// CompileShader implements gfx.Context.
func (c *Context) CompileShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	kind := uint32(gl.VERTEX_SHADER)
	if stage == gfx.FragmentStage {
		kind = gl.FRAGMENT_SHADER
	}
	shader := gl.CreateShader(kind)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, &gfx.InfoLogError{Log: strings.TrimRight(log, "\x00")}
	}
	c.shaders[gfx.Shader(shader)] = true
	return gfx.Shader(shader), nil
}

// DeleteShader implements gfx.Context.
func (c *Context) DeleteShader(s gfx.Shader) {
	if !c.shaders[s] {
		return
	}
	gl.DeleteShader(uint32(s))
	delete(c.shaders, s)
}

// LinkProgram implements gfx.Context.
func (c *Context) LinkProgram(vertex, fragment gfx.Shader) (gfx.Program, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	if !c.shaders[vertex] || !c.shaders[fragment] {
		return 0, fmt.Errorf("opengl: link: unknown shader %d or %d", vertex, fragment)
	}
	p := gl.CreateProgram()
	gl.AttachShader(p, uint32(vertex))
	gl.AttachShader(p, uint32(fragment))
	gl.LinkProgram(p)

	var status int32
	gl.GetProgramiv(p, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(p, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(p, logLength, nil, gl.Str(log))
		gl.DeleteProgram(p)
		return 0, &gfx.InfoLogError{Log: strings.TrimRight(log, "\x00")}
	}
	gl.DetachShader(p, uint32(vertex))
	gl.DetachShader(p, uint32(fragment))

	c.programs[gfx.Program(p)] = &program{
		attributes: activeAttributes(p),
		uniforms:   activeUniforms(p),
	}
	return gfx.Program(p), nil
}

func activeAttributes(p uint32) []gfx.AttributeInfo {
	var count, maxLength int32
	gl.GetProgramiv(p, gl.ACTIVE_ATTRIBUTES, &count)
	gl.GetProgramiv(p, gl.ACTIVE_ATTRIBUTE_MAX_LENGTH, &maxLength)

	var attrs []gfx.AttributeInfo
	for i := uint32(0); i < uint32(count); i++ {
		name := make([]byte, maxLength+1)
		var length, size int32
		var xtype uint32
		gl.GetActiveAttrib(p, i, maxLength+1, &length, &size, &xtype, &name[0])
		n := string(name[:length])
		if strings.HasPrefix(n, "gl_") {
			continue
		}
		attrs = append(attrs, gfx.AttributeInfo{
			Name:       n,
			Location:   int(gl.GetAttribLocation(p, gl.Str(n+"\x00"))),
			Components: components(xtype),
		})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].Location < attrs[j].Location })
	return attrs
}

func activeUniforms(p uint32) map[int]uint32 {
	var count, maxLength int32
	gl.GetProgramiv(p, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(p, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLength)

	uniforms := make(map[int]uint32, count)
	for i := uint32(0); i < uint32(count); i++ {
		name := make([]byte, maxLength+1)
		var length, size int32
		var xtype uint32
		gl.GetActiveUniform(p, i, maxLength+1, &length, &size, &xtype, &name[0])
		loc := gl.GetUniformLocation(p, gl.Str(string(name[:length])+"\x00"))
		uniforms[int(loc)] = xtype
	}
	return uniforms
}

func components(xtype uint32) int {
	switch xtype {
	case gl.FLOAT_VEC2:
		return 2
	case gl.FLOAT_VEC3:
		return 3
	case gl.FLOAT_VEC4:
		return 4
	}
	return 1
}

// DeleteProgram implements gfx.Context.
func (c *Context) DeleteProgram(p gfx.Program) {
	if _, ok := c.programs[p]; !ok {
		return
	}
	gl.DeleteProgram(uint32(p))
	delete(c.programs, p)
}

// ActiveAttributes implements gfx.Context.
func (c *Context) ActiveAttributes(p gfx.Program) []gfx.AttributeInfo {
	prog, ok := c.programs[p]
	if !ok {
		return nil
	}
	return append([]gfx.AttributeInfo(nil), prog.attributes...)
}

// UniformLocation implements gfx.Context.
func (c *Context) UniformLocation(p gfx.Program, name string) int {
	if _, ok := c.programs[p]; !ok {
		return -1
	}
	return int(gl.GetUniformLocation(uint32(p), gl.Str(name+"\x00")))
}

func bufferTarget(t gfx.BufferTarget) uint32 {
	if t == gfx.ElementArrayBuffer {
		return gl.ELEMENT_ARRAY_BUFFER
	}
	return gl.ARRAY_BUFFER
}

// CreateBuffer implements gfx.Context.
func (c *Context) CreateBuffer(target gfx.BufferTarget, data []byte) (gfx.Buffer, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	if len(data) == 0 {
		return 0, errors.New("opengl: empty buffer")
	}
	var b uint32
	gl.GenBuffers(1, &b)
	gl.BindBuffer(bufferTarget(target), b)
	gl.BufferData(bufferTarget(target), len(data), gl.Ptr(data), gl.STATIC_DRAW)
	gl.BindBuffer(bufferTarget(target), 0)
	if err := glError("create buffer"); err != nil {
		gl.DeleteBuffers(1, &b)
		return 0, err
	}
	c.buffers[gfx.Buffer(b)] = target
	return gfx.Buffer(b), nil
}

// DeleteBuffer implements gfx.Context.
func (c *Context) DeleteBuffer(b gfx.Buffer) {
	if _, ok := c.buffers[b]; !ok {
		return
	}
	name := uint32(b)
	gl.DeleteBuffers(1, &name)
	delete(c.buffers, b)
}

// CreateTexture implements gfx.Context.
func (c *Context) CreateTexture(width, height int, pixels []byte) (gfx.Texture, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	if width <= 0 || height <= 0 || len(pixels) < width*height*4 {
		return 0, fmt.Errorf("opengl: texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}
	var t uint32
	gl.GenTextures(1, &t)
	gl.BindTexture(gl.TEXTURE_2D, t)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("create texture"); err != nil {
		gl.DeleteTextures(1, &t)
		return 0, err
	}
	c.textures[gfx.Texture(t)] = true
	return gfx.Texture(t), nil
}

// DeleteTexture implements gfx.Context.
func (c *Context) DeleteTexture(t gfx.Texture) {
	if !c.textures[t] {
		return
	}
	name := uint32(t)
	gl.DeleteTextures(1, &name)
	delete(c.textures, t)
}

// Viewport implements gfx.Context.
func (c *Context) Viewport(x, y, width, height int) {
	if c.destroyed {
		return
	}
	gl.Viewport(int32(x), int32(y), int32(width), int32(height))
}

// Clear implements gfx.Context.
func (c *Context) Clear(color [4]float32) {
	if c.destroyed {
		return
	}
	gl.ClearColor(color[0], color[1], color[2], color[3])
	gl.ClearDepth(1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
}

// Draw implements gfx.Context.
func (c *Context) Draw(cmd *gfx.DrawCommand) error {
	if c.destroyed {
		return ErrDestroyed
	}
	prog, ok := c.programs[cmd.Program]
	if !ok {
		return fmt.Errorf("draw: unknown program %d", cmd.Program)
	}
	if _, ok := c.buffers[cmd.Vertices]; !ok {
		return fmt.Errorf("draw: unknown vertex buffer %d", cmd.Vertices)
	}

	gl.UseProgram(uint32(cmd.Program))
	defer gl.UseProgram(0)

	if cmd.DepthTest {
		gl.Enable(gl.DEPTH_TEST)
		gl.DepthFunc(gl.LEQUAL)
	} else {
		gl.Disable(gl.DEPTH_TEST)
	}
	if cmd.CullBackFaces {
		gl.Enable(gl.CULL_FACE)
		gl.FrontFace(gl.CCW)
		gl.CullFace(gl.BACK)
	} else {
		gl.Disable(gl.CULL_FACE)
	}

	for _, u := range cmd.Uniforms {
		setUniform(prog, u)
	}
	if cmd.Texture != 0 {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, uint32(cmd.Texture))
		defer gl.BindTexture(gl.TEXTURE_2D, 0)
	}

	gl.BindBuffer(gl.ARRAY_BUFFER, uint32(cmd.Vertices))
	for _, a := range cmd.Attributes {
		gl.EnableVertexAttribArray(uint32(a.Location))
		gl.VertexAttribPointer(uint32(a.Location), int32(a.Components), gl.FLOAT, false, int32(a.Stride), gl.PtrOffset(a.Offset))
	}
	defer func() {
		for _, a := range cmd.Attributes {
			gl.DisableVertexAttribArray(uint32(a.Location))
		}
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	}()

	if cmd.Indices != 0 {
		if _, ok := c.buffers[cmd.Indices]; !ok {
			return fmt.Errorf("draw: unknown index buffer %d", cmd.Indices)
		}
		indexType := uint32(gl.UNSIGNED_SHORT)
		if cmd.IndexType == gfx.Uint32 {
			indexType = gl.UNSIGNED_INT
		}
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(cmd.Indices))
		gl.DrawElements(gl.TRIANGLES, int32(cmd.Count), indexType, gl.PtrOffset(0))
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, int32(cmd.Count))
	}
	return glError("draw")
}

func setUniform(prog *program, u gfx.Uniform) {
	loc := int32(u.Location)
	switch u.Kind {
	case gfx.UniformMat4:
		gl.UniformMatrix4fv(loc, 1, false, &u.Value[0])
	case gfx.UniformSampler:
		gl.Uniform1i(loc, int32(u.Unit))
	default:
		switch prog.uniforms[u.Location] {
		case gl.FLOAT_VEC2:
			gl.Uniform2fv(loc, 1, &u.Value[0])
		case gl.FLOAT_VEC3:
			gl.Uniform3fv(loc, 1, &u.Value[0])
		case gl.FLOAT_VEC4:
			gl.Uniform4fv(loc, 1, &u.Value[0])
		default:
			gl.Uniform1f(loc, u.Value[0])
		}
	}
}

// ReadPixels implements gfx.Context.
func (c *Context) ReadPixels(x, y, width, height int, dst []byte) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("opengl: destination holds %d bytes, need %d", len(dst), width*height*4)
	}
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(dst))
	return glError("read pixels")
}

// Destroy implements gfx.Context.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	for s := range c.shaders {
		c.DeleteShader(s)
	}
	for p := range c.programs {
		c.DeleteProgram(p)
	}
	for b := range c.buffers {
		c.DeleteBuffer(b)
	}
	for t := range c.textures {
		c.DeleteTexture(t)
	}
	c.destroyed = true
	if c.onDestroy != nil {
		c.onDestroy()
	}
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("opengl: %s: error 0x%04x", op, code)
	}
	return nil
}
