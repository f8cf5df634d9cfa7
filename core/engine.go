// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core implements the engine: a single mesh renderer with
// one shader program, one texture and an explicit release.
package core

import (
	"errors"
	"fmt"
	"image"
	"math"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/sirupsen/logrus"

	"github.com/devblok/tetra/gfx"
	"github.com/devblok/tetra/model"
)

// State is a point in the engine lifecycle.
type State int

// Engine lifecycle, in order.
const (
	Created State = iota
	ShadersAttached
	Linked
	GeometryBound
	Drawable
	Released
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case ShadersAttached:
		return "shaders attached"
	case Linked:
		return "linked"
	case GeometryBound:
		return "geometry bound"
	case Drawable:
		return "drawable"
	case Released:
		return "released"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Projection and camera used for every draw.
const (
	fieldOfView = math.Pi / 4
	nearPlane   = 0.1
	farPlane    = 100
	cameraDist  = 5

	// radians of rotation around Y per millisecond
	rotationRate = 0.001
)

// Engine owns a rendering context and everything allocated on it.
// It is not safe for concurrent use.
type Engine struct {
	cfg Configuration
	log logrus.FieldLogger
	ctx gfx.Context

	shaders  *ShaderPipeline
	geometry *GeometryBuffer
	texture  *TextureUnit
	viewport *Viewport

	// bindings are resolved on the first draw after a program or
	// layout change
	bindings []gfx.VertexAttribute
	dirty    bool

	released bool
}

// NewEngine creates an engine drawing to surface. The surface is borrowed
// and never destroyed by the engine.
func NewEngine(surface gfx.Surface, cfg Configuration) (*Engine, error) {
	log := cfg.logger()

	ctx, err := surface.Context()
	if err != nil {
		return nil, &SurfaceError{Err: err}
	}
	if ctx == nil {
		return nil, &SurfaceError{Err: errors.New("no rendering context")}
	}
	w, h := surface.Size()
	if w <= 0 || h <= 0 {
		ctx.Destroy()
		return nil, &SurfaceError{Err: fmt.Errorf("drawable size %dx%d", w, h)}
	}

	e := &Engine{
		cfg:      cfg,
		log:      log,
		ctx:      ctx,
		shaders:  newShaderPipeline(ctx, log),
		geometry: newGeometryBuffer(ctx, log),
		texture:  newTextureUnit(ctx, log),
		viewport: &Viewport{ctx: ctx},
	}
	if err := e.viewport.refresh(w, h); err != nil {
		ctx.Destroy()
		return nil, &SurfaceError{Err: err}
	}
	log.WithFields(logrus.Fields{"width": w, "height": h}).Debug("engine created")
	return e, nil
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	switch {
	case e.released:
		return Released
	case !e.shaders.Linked():
		if v, f := e.shaders.Attached(); v || f {
			return ShadersAttached
		}
		return Created
	case !e.geometry.Bound():
		return Linked
	case e.shaders.UsesSampler() && !e.texture.Bound():
		return GeometryBound
	}
	return Drawable
}

// AttachVertexShader compiles the vertex stage.
func (e *Engine) AttachVertexShader(source string) error {
	return e.attach(gfx.VertexStage, source)
}

// AttachFragmentShader compiles the fragment stage.
func (e *Engine) AttachFragmentShader(source string) error {
	return e.attach(gfx.FragmentStage, source)
}

func (e *Engine) attach(stage gfx.ShaderStage, source string) error {
	if s := e.State(); s >= Linked {
		return invalidState("attach "+stage.String()+" shader", s)
	}
	return e.shaders.attach(stage, source)
}

// LinkProgram links the attached stages. Both must be attached.
func (e *Engine) LinkProgram() error {
	s := e.State()
	if s != ShadersAttached {
		return invalidState("link program", s)
	}
	if v, f := e.shaders.Attached(); !v || !f {
		return fmt.Errorf("link program: %w: both shader stages must be attached", ErrInvalidState)
	}
	if err := e.shaders.link(); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// requireProgram guards the data mutators, which need a linked program.
func (e *Engine) requireProgram(call string) error {
	if s := e.State(); s < Linked || s == Released {
		return invalidState(call, s)
	}
	return nil
}

// SetTexture uploads img as the texture sampled through u_sampler.
func (e *Engine) SetTexture(img *image.RGBA) error {
	if err := e.requireProgram("set texture"); err != nil {
		return err
	}
	return e.texture.set(img)
}

// SetVertices uploads interleaved vertex data described by layout.
// Indices are dropped when they came from a model or would be out of
// range for the new vertices.
func (e *Engine) SetVertices(floats []float32, layout model.Layout) error {
	if err := e.requireProgram("set vertices"); err != nil {
		return err
	}
	if err := e.geometry.setVertices(floats, layout, ManualGeometry); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// SetIndices uploads triangle list indices. An empty slice returns to
// non-indexed drawing.
func (e *Engine) SetIndices(indices []uint32) error {
	if err := e.requireProgram("set indices"); err != nil {
		return err
	}
	return e.geometry.setIndices(indices)
}

// SetGeometry binds a complete mesh, replacing the current one.
func (e *Engine) SetGeometry(geom *model.Geometry) error {
	if err := e.requireProgram("set geometry"); err != nil {
		return err
	}
	if err := e.geometry.setGeometry(geom, ManualGeometry); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// LoadModel decodes a GLB file and binds its first primitive, replacing
// the current geometry.
func (e *Engine) LoadModel(glb []byte) error {
	if err := e.requireProgram("load model"); err != nil {
		return err
	}
	geom, err := model.DecodeGLB(glb)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if err := e.geometry.setGeometry(geom, ModelGeometry); err != nil {
		return err
	}
	e.dirty = true
	e.log.WithFields(logrus.Fields{
		"vertices": geom.VertexCount(),
		"indices":  len(geom.Indices),
	}).Info("loaded model")
	return nil
}

// RefreshViewport resizes the viewport. Unchanged sizes are a no-op.
func (e *Engine) RefreshViewport(width, height int) error {
	if e.released {
		return invalidState("refresh viewport", Released)
	}
	return e.viewport.refresh(width, height)
}

// Draw clears the frame and draws the mesh. timestamp is in
// milliseconds and drives the rotation and u_time, so equal timestamps
// produce equal frames.
func (e *Engine) Draw(timestamp float64) error {
	if s := e.State(); s != Drawable {
		return invalidState("draw", s)
	}
	if e.dirty {
		bindings, err := e.bindAttributes()
		if err != nil {
			return err
		}
		e.bindings, e.dirty = bindings, false
	}

	e.ctx.Clear(e.cfg.Renderer.ClearColor)
	cmd := &gfx.DrawCommand{
		Program:       e.shaders.program,
		Vertices:      e.geometry.vertices,
		Attributes:    e.bindings,
		Indices:       e.geometry.indices,
		IndexType:     e.geometry.indexType,
		Count:         e.geometry.drawCount(),
		Texture:       e.texture.texture,
		Uniforms:      e.uniforms(timestamp),
		DepthTest:     e.cfg.Renderer.DepthTest,
		CullBackFaces: e.cfg.Renderer.CullBackFaces,
	}
	if err := e.ctx.Draw(cmd); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	return nil
}

// bindAttributes matches the program inputs against the vertex layout.
func (e *Engine) bindAttributes() ([]gfx.VertexAttribute, error) {
	layout := e.geometry.layout
	bindings := make([]gfx.VertexAttribute, 0, len(e.shaders.attributes))
	for _, attr := range e.shaders.attributes {
		var (
			src   model.Attribute
			found bool
		)
		for _, a := range layout {
			if a.Semantic.AttributeName() == attr.Name {
				src, found = a, true
				break
			}
		}
		if !found {
			return nil, invalidArgument("draw", "attribute %s has no source in the vertex layout", attr.Name)
		}
		if src.Components > attr.Components {
			return nil, invalidArgument("draw", "attribute %s takes %d components, layout supplies %d", attr.Name, attr.Components, src.Components)
		}
		bindings = append(bindings, gfx.VertexAttribute{
			Location:   attr.Location,
			Components: src.Components,
			Offset:     src.Offset,
			Stride:     src.Stride,
		})
	}
	return bindings, nil
}

// Transforms returns the model-view-projection and normal matrices
// used for a frame at timestamp milliseconds.
func Transforms(timestamp float64, aspect float32) (mvp, normal glm.Mat4) {
	projection := glm.Perspective(fieldOfView, aspect, nearPlane, farPlane)
	modelView := glm.Translate3D(0, 0, -cameraDist).Mul4(glm.HomogRotate3DY(float32(timestamp * rotationRate)))
	return projection.Mul4(modelView), modelView.Inv().Transpose()
}

func (e *Engine) uniforms(timestamp float64) []gfx.Uniform {
	loc := e.shaders.uniforms
	mvp, normal := Transforms(timestamp, e.viewport.Aspect())

	var uniforms []gfx.Uniform
	if loc.modelViewProjection >= 0 {
		uniforms = append(uniforms, gfx.Uniform{Location: loc.modelViewProjection, Kind: gfx.UniformMat4, Value: mvp})
	}
	if loc.normalMatrix >= 0 {
		uniforms = append(uniforms, gfx.Uniform{Location: loc.normalMatrix, Kind: gfx.UniformMat4, Value: normal})
	}
	if loc.sampler >= 0 {
		uniforms = append(uniforms, gfx.Uniform{Location: loc.sampler, Kind: gfx.UniformSampler, Unit: 0})
	}
	if loc.time >= 0 {
		u := gfx.Uniform{Location: loc.time, Kind: gfx.UniformFloat}
		u.Value[0] = float32(timestamp)
		uniforms = append(uniforms, u)
	}
	return uniforms
}

// Snapshot reads the framebuffer back as an image with row 0 at the top.
func (e *Engine) Snapshot() (*image.RGBA, error) {
	if e.released {
		return nil, invalidState("snapshot", Released)
	}
	w, h := e.viewport.Size()
	raw := make([]byte, w*h*4)
	if err := e.ctx.ReadPixels(0, 0, w, h, raw); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+w*4], raw[(h-1-y)*w*4:(h-y)*w*4])
	}
	return img, nil
}

// Shaders returns the shader pipeline for inspection.
func (e *Engine) Shaders() *ShaderPipeline { return e.shaders }

// Geometry returns the geometry buffer for inspection.
func (e *Engine) Geometry() *GeometryBuffer { return e.geometry }

// Texture returns the texture unit for inspection.
func (e *Engine) Texture() *TextureUnit { return e.texture }

// Viewport returns the viewport for inspection.
func (e *Engine) Viewport() *Viewport { return e.viewport }

var _ gfx.Releasable = (*Engine)(nil)

// Release frees every GPU object and destroys the rendering context.
// It is safe in any state and a second call does nothing.
func (e *Engine) Release() {
	if e.released {
		return
	}
	e.shaders.release()
	e.geometry.release()
	e.texture.release()
	e.ctx.Destroy()
	e.bindings = nil
	e.released = true
	e.log.Debug("engine released")
}

// Close releases the engine, for use with defer and io.Closer.
func (e *Engine) Close() error {
	e.Release()
	return nil
}
