// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package soft implements a deterministic software rendering backend.
//
// Shaders are written in a subset of GLSL ES 1.00: attribute, uniform
// and varying declarations of float, vec2-4, mat4 and sampler2D, and a
// main function made of declarations, assignments, discard and return.
// The usual arithmetic, constructors, swizzles, texture2D and the common
// math builtins are available. Triangles are rasterized with a depth
// buffer into an RGBA8 framebuffer stored bottom row first, the same
// way OpenGL reports it through ReadPixels.
package soft

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/devblok/tetra/gfx"
)

// package errors
var (
	ErrDestroyed     = errors.New("soft: context destroyed")
	ErrInvalidHandle = errors.New("soft: invalid object handle")
	ErrSurface       = errors.New("soft: surface has no drawable area")
)

// Stats reports live objects and call counters of a Context.
type Stats struct {
	Shaders  int
	Programs int
	Buffers  int
	Textures int

	ViewportCalls int
	Clears        int
	Draws         int
}

type buffer struct {
	target gfx.BufferTarget
	data   []byte
}

type texture struct {
	width, height int
	pix           []byte
}

// Context is a software gfx.Context.
type Context struct {
	width, height int
	color         []byte
	depth         []float32

	viewport [4]int

	next      uint32
	shaders   map[gfx.Shader]*unit
	programs  map[gfx.Program]*program
	buffers   map[gfx.Buffer]*buffer
	textures  map[gfx.Texture]*texture
	destroyed bool

	stats Stats
}

// NewContext creates a context with a width*height framebuffer.
func NewContext(width, height int) *Context {
	c := &Context{
		shaders:  make(map[gfx.Shader]*unit),
		programs: make(map[gfx.Program]*program),
		buffers:  make(map[gfx.Buffer]*buffer),
		textures: make(map[gfx.Texture]*texture),
		viewport: [4]int{0, 0, width, height},
	}
	c.resize(width, height)
	return c
}

func (c *Context) resize(width, height int) {
	c.width, c.height = width, height
	c.color = make([]byte, width*height*4)
	c.depth = make([]float32, width*height)
	for i := range c.depth {
		c.depth[i] = 1
	}
}

func (c *Context) handle() uint32 {
	c.next++
	return c.next
}

// Stats returns live object counts and call counters.
func (c *Context) Stats() Stats {
	s := c.stats
	s.Shaders = len(c.shaders)
	s.Programs = len(c.programs)
	s.Buffers = len(c.buffers)
	s.Textures = len(c.textures)
	return s
}

// CompileShader implements gfx.Context.
func (c *Context) CompileShader(stage gfx.ShaderStage, source string) (gfx.Shader, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	u, err := compile(stage, source)
	if err != nil {
		return 0, &gfx.InfoLogError{Log: err.Error() + "\nERROR: 1 compilation errors.  No code generated.\n"}
	}
	h := gfx.Shader(c.handle())
	c.shaders[h] = u
	return h, nil
}

// DeleteShader implements gfx.Context.
func (c *Context) DeleteShader(s gfx.Shader) {
	delete(c.shaders, s)
}

// LinkProgram implements gfx.Context.
func (c *Context) LinkProgram(vertex, fragment gfx.Shader) (gfx.Program, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	vs, ok := c.shaders[vertex]
	if !ok {
		return 0, ErrInvalidHandle
	}
	fs, ok := c.shaders[fragment]
	if !ok {
		return 0, ErrInvalidHandle
	}
	if vs.stage != gfx.VertexStage || fs.stage != gfx.FragmentStage {
		return 0, &gfx.InfoLogError{Log: "error: program needs one vertex and one fragment shader\n"}
	}
	prog, err := link(vs, fs)
	if err != nil {
		return 0, err
	}
	h := gfx.Program(c.handle())
	c.programs[h] = prog
	return h, nil
}

// DeleteProgram implements gfx.Context.
func (c *Context) DeleteProgram(p gfx.Program) {
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
	prog, ok := c.programs[p]
	if !ok {
		return -1
	}
	return prog.uniformLocation(name)
}

// CreateBuffer implements gfx.Context.
func (c *Context) CreateBuffer(target gfx.BufferTarget, data []byte) (gfx.Buffer, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	h := gfx.Buffer(c.handle())
	c.buffers[h] = &buffer{target: target, data: append([]byte(nil), data...)}
	return h, nil
}

// DeleteBuffer implements gfx.Context.
func (c *Context) DeleteBuffer(b gfx.Buffer) {
	delete(c.buffers, b)
}

// CreateTexture implements gfx.Context.
func (c *Context) CreateTexture(width, height int, pixels []byte) (gfx.Texture, error) {
	if c.destroyed {
		return 0, ErrDestroyed
	}
	if width <= 0 || height <= 0 || len(pixels) < width*height*4 {
		return 0, fmt.Errorf("soft: texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(pixels))
	}
	h := gfx.Texture(c.handle())
	c.textures[h] = &texture{
		width:  width,
		height: height,
		pix:    append([]byte(nil), pixels[:width*height*4]...),
	}
	return h, nil
}

// DeleteTexture implements gfx.Context.
func (c *Context) DeleteTexture(t gfx.Texture) {
	delete(c.textures, t)
}

// Viewport implements gfx.Context.
func (c *Context) Viewport(x, y, width, height int) {
	if c.destroyed {
		return
	}
	c.stats.ViewportCalls++
	c.viewport = [4]int{x, y, width, height}
}

// Clear implements gfx.Context.
func (c *Context) Clear(color [4]float32) {
	if c.destroyed {
		return
	}
	c.stats.Clears++
	px := [4]byte{toByte(color[0]), toByte(color[1]), toByte(color[2]), toByte(color[3])}
	for i := 0; i < len(c.color); i += 4 {
		copy(c.color[i:i+4], px[:])
	}
	for i := range c.depth {
		c.depth[i] = 1
	}
}

// ReadPixels implements gfx.Context.
func (c *Context) ReadPixels(x, y, width, height int, dst []byte) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if x < 0 || y < 0 || width < 0 || height < 0 || x+width > c.width || y+height > c.height {
		return fmt.Errorf("soft: read rectangle %d,%d %dx%d outside %dx%d framebuffer", x, y, width, height, c.width, c.height)
	}
	if len(dst) < width*height*4 {
		return fmt.Errorf("soft: destination holds %d bytes, need %d", len(dst), width*height*4)
	}
	for row := 0; row < height; row++ {
		src := ((y+row)*c.width + x) * 4
		copy(dst[row*width*4:(row+1)*width*4], c.color[src:src+width*4])
	}
	return nil
}

// Destroy implements gfx.Context.
func (c *Context) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.shaders = make(map[gfx.Shader]*unit)
	c.programs = make(map[gfx.Program]*program)
	c.buffers = make(map[gfx.Buffer]*buffer)
	c.textures = make(map[gfx.Texture]*texture)
	c.color, c.depth = nil, nil
}

// Destroyed reports whether Destroy has been called.
func (c *Context) Destroyed() bool {
	return c.destroyed
}

func toByte(f float32) byte {
	return byte(clamp01(f)*255 + 0.5)
}

func readFloat(data []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

// Surface is an offscreen drawing surface for the software backend.
type Surface struct {
	width, height int
	ctx           *Context
}

// NewSurface creates an offscreen surface of the given size.
func NewSurface(width, height int) *Surface {
	return &Surface{width: width, height: height}
}

// Context implements gfx.Surface.
func (s *Surface) Context() (gfx.Context, error) {
	if s.width <= 0 || s.height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrSurface, s.width, s.height)
	}
	s.ctx = NewContext(s.width, s.height)
	return s.ctx, nil
}

// Size implements gfx.Surface.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// Resize changes the surface size, reallocating the framebuffer of
// the context it produced, like a canvas resizing its drawing buffer.
func (s *Surface) Resize(width, height int) {
	s.width, s.height = width, height
	if s.ctx != nil && !s.ctx.destroyed && width > 0 && height > 0 {
		s.ctx.resize(width, height)
	}
}

// Bound returns the context most recently produced by the surface.
func (s *Surface) Bound() *Context {
	return s.ctx
}
