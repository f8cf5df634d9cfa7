// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gfx defines the rendering backend contract the engine drives.
// A backend hands out opaque handles for shaders, programs, buffers and
// textures, and executes fully described draw commands against them.
package gfx

import "fmt"

// Releasable defines any memory-occupying item that can be freed.
type Releasable interface {

	// Release releases memory occupied by the implementing structure.
	Release()
}

// Handles are backend object names. Zero is never a valid object.
type (
	Shader  uint32
	Program uint32
	Buffer  uint32
	Texture uint32
)

// ShaderStage identifies the pipeline stage a shader is compiled for.
type ShaderStage int

// Shader stages known to the backends.
const (
	VertexStage ShaderStage = iota
	FragmentStage
)

func (s ShaderStage) String() string {
	switch s {
	case VertexStage:
		return "vertex"
	case FragmentStage:
		return "fragment"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// BufferTarget is the binding point a buffer is created for.
type BufferTarget int

// Buffer targets.
const (
	ArrayBuffer BufferTarget = iota
	ElementArrayBuffer
)

// IndexType is the element type of an index buffer.
type IndexType int

// Index element types.
const (
	Uint16 IndexType = iota
	Uint32
)

// Size returns the byte size of one index.
func (t IndexType) Size() int {
	if t == Uint32 {
		return 4
	}
	return 2
}

// AttributeInfo describes an active vertex input of a linked program.
type AttributeInfo struct {
	Name       string
	Location   int
	Components int
}

// VertexAttribute points a program input at float32 data inside the vertex buffer.
// Offset and Stride are in bytes.
type VertexAttribute struct {
	Location   int
	Components int
	Offset     int
	Stride     int
}

// UniformKind is the value shape carried by a Uniform.
type UniformKind int

// Uniform kinds.
const (
	UniformFloat UniformKind = iota
	UniformMat4
	UniformSampler
)

// Uniform is one uniform value set for a draw. Mat4 values are column-major.
type Uniform struct {
	Location int
	Kind     UniformKind
	Value    [16]float32
	Unit     int
}

// DrawCommand is everything a backend needs for one draw call.
// Indices == 0 draws Count vertices as a triangle list, otherwise Count
// indices of IndexType are read from Indices.
type DrawCommand struct {
	Program    Program
	Vertices   Buffer
	Attributes []VertexAttribute
	Indices    Buffer
	IndexType  IndexType
	Count      int
	Texture    Texture
	Uniforms   []Uniform

	DepthTest     bool
	CullBackFaces bool
}

// Context is a rendering context bound to a drawing surface.
type Context interface {

	// CompileShader compiles source for stage. A rejected source
	// returns an *InfoLogError holding the compiler log.
	CompileShader(stage ShaderStage, source string) (Shader, error)

	// DeleteShader frees a shader object.
	DeleteShader(Shader)

	// LinkProgram links a vertex and fragment shader. A failed link
	// returns an *InfoLogError holding the linker log.
	LinkProgram(vertex, fragment Shader) (Program, error)

	// DeleteProgram frees a program object.
	DeleteProgram(Program)

	// ActiveAttributes lists the vertex inputs a program consumes.
	ActiveAttributes(Program) []AttributeInfo

	// UniformLocation returns the location of a uniform or -1 when
	// the program has no such active uniform.
	UniformLocation(p Program, name string) int

	// CreateBuffer creates a buffer object initialised with data.
	CreateBuffer(target BufferTarget, data []byte) (Buffer, error)

	// DeleteBuffer frees a buffer object.
	DeleteBuffer(Buffer)

	// CreateTexture uploads a width*height RGBA8 image, first row first.
	// Sampling is linear with clamp-to-edge wrapping.
	CreateTexture(width, height int, pixels []byte) (Texture, error)

	// DeleteTexture frees a texture object.
	DeleteTexture(Texture)

	// Viewport sets the framebuffer rectangle draws map to.
	Viewport(x, y, width, height int)

	// Clear clears color and depth.
	Clear(color [4]float32)

	// Draw executes a draw command.
	Draw(cmd *DrawCommand) error

	// ReadPixels copies a framebuffer rectangle as RGBA8 into dst,
	// bottom row first.
	ReadPixels(x, y, width, height int, dst []byte) error

	// Destroy releases the context. Handles are invalid afterwards.
	Destroy()
}

// Surface is a drawing surface able to produce a rendering context.
// The engine borrows it and never destroys it.
type Surface interface {

	// Context creates a rendering context for the surface.
	Context() (Context, error)

	// Size returns the drawable size in physical pixels.
	Size() (width, height int)
}

// InfoLogError carries a compiler or linker log from a backend.
type InfoLogError struct {
	Log string
}

func (e *InfoLogError) Error() string {
	return e.Log
}
