// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"image"

	"github.com/devblok/tetra/model"
)

// Builder chains engine setup calls. The first error sticks and every
// later call is skipped, so a chain is checked once at the end:
//
//	eng, err := engine.Build().
//		VertexShader(vs).
//		FragmentShader(fs).
//		Link().
//		Model(glb).
//		Texture(img).
//		Engine()
type Builder struct {
	engine *Engine
	err    error
}

// Build starts a setup chain on e.
func (e *Engine) Build() *Builder {
	return &Builder{engine: e}
}

func (b *Builder) do(f func() error) *Builder {
	if b.err == nil {
		b.err = f()
	}
	return b
}

// VertexShader attaches the vertex stage.
func (b *Builder) VertexShader(source string) *Builder {
	return b.do(func() error { return b.engine.AttachVertexShader(source) })
}

// FragmentShader attaches the fragment stage.
func (b *Builder) FragmentShader(source string) *Builder {
	return b.do(func() error { return b.engine.AttachFragmentShader(source) })
}

// Link links the program.
func (b *Builder) Link() *Builder {
	return b.do(b.engine.LinkProgram)
}

// Texture uploads the texture.
func (b *Builder) Texture(img *image.RGBA) *Builder {
	return b.do(func() error { return b.engine.SetTexture(img) })
}

// Vertices uploads vertex data.
func (b *Builder) Vertices(floats []float32, layout model.Layout) *Builder {
	return b.do(func() error { return b.engine.SetVertices(floats, layout) })
}

// Indices uploads index data.
func (b *Builder) Indices(indices []uint32) *Builder {
	return b.do(func() error { return b.engine.SetIndices(indices) })
}

// Model loads a GLB model.
func (b *Builder) Model(glb []byte) *Builder {
	return b.do(func() error { return b.engine.LoadModel(glb) })
}

// Geometry binds a decoded mesh.
func (b *Builder) Geometry(geom *model.Geometry) *Builder {
	return b.do(func() error { return b.engine.SetGeometry(geom) })
}

// Viewport resizes the viewport.
func (b *Builder) Viewport(width, height int) *Builder {
	return b.do(func() error { return b.engine.RefreshViewport(width, height) })
}

// Err returns the first error of the chain.
func (b *Builder) Err() error {
	return b.err
}

// Engine ends the chain, returning the engine and the first error.
func (b *Builder) Engine() (*Engine, error) {
	return b.engine, b.err
}
