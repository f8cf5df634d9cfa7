// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"golang.org/x/mobile/exp/f32"

	"github.com/devblok/tetra/gfx"
	"github.com/devblok/tetra/model"
)

// GeometrySource tells where the bound geometry came from.
type GeometrySource int

// Geometry sources.
const (
	NoGeometry GeometrySource = iota
	ManualGeometry
	ModelGeometry
)

func (s GeometrySource) String() string {
	switch s {
	case ManualGeometry:
		return "manual"
	case ModelGeometry:
		return "model"
	}
	return "none"
}

// GeometryBuffer owns the vertex and index buffers of the single mesh.
type GeometryBuffer struct {
	ctx gfx.Context
	log logrus.FieldLogger

	vertices    gfx.Buffer
	layout      model.Layout
	vertexCount int
	source      GeometrySource

	indices   gfx.Buffer
	indexType gfx.IndexType
	indexData []uint32
}

func newGeometryBuffer(ctx gfx.Context, log logrus.FieldLogger) *GeometryBuffer {
	return &GeometryBuffer{ctx: ctx, log: log}
}

func (g *GeometryBuffer) setVertices(floats []float32, layout model.Layout, source GeometrySource) error {
	if err := layout.Validate(); err != nil {
		return invalidArgument("set vertices", "%v", err)
	}
	perVertex := layout.Stride() / 4
	if len(floats) == 0 || len(floats)%perVertex != 0 {
		return invalidArgument("set vertices", "%d floats is not a non-zero multiple of %d per vertex", len(floats), perVertex)
	}

	buf, err := g.ctx.CreateBuffer(gfx.ArrayBuffer, f32.Bytes(binary.LittleEndian, floats...))
	if err != nil {
		return fmt.Errorf("set vertices: create buffer: %w", err)
	}
	if g.vertices != 0 {
		g.ctx.DeleteBuffer(g.vertices)
	}
	count := len(floats) / perVertex

	if g.indices != 0 {
		switch {
		case g.source != source:
			g.log.WithFields(logrus.Fields{"from": g.source, "to": source}).Warn("geometry source replaced, dropping indices")
			g.clearIndices()
		case model.CheckIndices(g.indexData, count) != nil:
			g.log.WithField("vertices", count).Warn("indices out of range for new vertices, dropping them")
			g.clearIndices()
		}
	}

	g.vertices, g.layout, g.vertexCount, g.source = buf, append(model.Layout(nil), layout...), count, source
	g.log.WithFields(logrus.Fields{"vertices": count, "source": source}).Debug("uploaded vertex buffer")
	return nil
}

func (g *GeometryBuffer) setIndices(indices []uint32) error {
	if g.vertices == 0 {
		return fmt.Errorf("set indices: %w: no vertices bound", ErrInvalidState)
	}
	if err := model.CheckIndices(indices, g.vertexCount); err != nil {
		return invalidArgument("set indices", "%v", err)
	}
	if len(indices) == 0 {
		g.clearIndices()
		return nil
	}

	indexType, data := encodeIndices(indices)
	buf, err := g.ctx.CreateBuffer(gfx.ElementArrayBuffer, data)
	if err != nil {
		return fmt.Errorf("set indices: create buffer: %w", err)
	}
	g.clearIndices()
	g.indices, g.indexType = buf, indexType
	g.indexData = append([]uint32(nil), indices...)
	g.log.WithFields(logrus.Fields{"indices": len(indices), "size": indexType.Size()}).Debug("uploaded index buffer")
	return nil
}

// setGeometry binds a whole mesh. Both buffers are created before the
// current ones are replaced, so a failed upload leaves the mesh unchanged.
func (g *GeometryBuffer) setGeometry(geom *model.Geometry, source GeometrySource) error {
	if geom == nil {
		return invalidArgument("set geometry", "nil geometry")
	}
	if err := geom.Validate(); err != nil {
		return invalidArgument("set geometry", "%v", err)
	}

	vertices, err := g.ctx.CreateBuffer(gfx.ArrayBuffer, f32.Bytes(binary.LittleEndian, geom.Vertices...))
	if err != nil {
		return fmt.Errorf("set geometry: create vertex buffer: %w", err)
	}
	var (
		indices   gfx.Buffer
		indexType gfx.IndexType
	)
	if len(geom.Indices) > 0 {
		var data []byte
		indexType, data = encodeIndices(geom.Indices)
		if indices, err = g.ctx.CreateBuffer(gfx.ElementArrayBuffer, data); err != nil {
			g.ctx.DeleteBuffer(vertices)
			return fmt.Errorf("set geometry: create index buffer: %w", err)
		}
	}

	if g.indices != 0 && g.source != source {
		g.log.WithFields(logrus.Fields{"from": g.source, "to": source}).Warn("geometry source replaced, dropping indices")
	}
	g.clearIndices()
	if g.vertices != 0 {
		g.ctx.DeleteBuffer(g.vertices)
	}
	g.vertices, g.layout, g.vertexCount, g.source = vertices, append(model.Layout(nil), geom.Layout...), geom.VertexCount(), source
	if indices != 0 {
		g.indices, g.indexType = indices, indexType
		g.indexData = append([]uint32(nil), geom.Indices...)
	}
	g.log.WithFields(logrus.Fields{"vertices": g.vertexCount, "indices": len(geom.Indices), "source": source}).Debug("uploaded geometry")
	return nil
}

// encodeIndices packs indices as 16 bit when all of them fit.
func encodeIndices(indices []uint32) (gfx.IndexType, []byte) {
	wide := false
	for _, i := range indices {
		if i > math.MaxUint16 {
			wide = true
			break
		}
	}
	if wide {
		data := make([]byte, len(indices)*4)
		for n, i := range indices {
			binary.LittleEndian.PutUint32(data[n*4:], i)
		}
		return gfx.Uint32, data
	}
	data := make([]byte, len(indices)*2)
	for n, i := range indices {
		binary.LittleEndian.PutUint16(data[n*2:], uint16(i))
	}
	return gfx.Uint16, data
}

func (g *GeometryBuffer) clearIndices() {
	if g.indices != 0 {
		g.ctx.DeleteBuffer(g.indices)
	}
	g.indices, g.indexData = 0, nil
}

// drawCount is the number of vertices or indices one draw consumes.
func (g *GeometryBuffer) drawCount() int {
	if g.indices != 0 {
		return len(g.indexData)
	}
	return g.vertexCount - g.vertexCount%3
}

// Bound reports whether vertices have been uploaded.
func (g *GeometryBuffer) Bound() bool {
	return g.vertices != 0
}

// VertexCount returns the number of uploaded vertices.
func (g *GeometryBuffer) VertexCount() int {
	return g.vertexCount
}

// Layout returns the layout of the uploaded vertices.
func (g *GeometryBuffer) Layout() model.Layout {
	return append(model.Layout(nil), g.layout...)
}

// Indices returns a copy of the uploaded indices, nil when drawing
// without an index buffer.
func (g *GeometryBuffer) Indices() []uint32 {
	if g.indices == 0 {
		return nil
	}
	return append([]uint32(nil), g.indexData...)
}

// IndexType returns the element type of the index buffer.
func (g *GeometryBuffer) IndexType() gfx.IndexType {
	return g.indexType
}

// Source tells whether the geometry was set by hand or loaded from a model.
func (g *GeometryBuffer) Source() GeometrySource {
	return g.source
}

func (g *GeometryBuffer) release() {
	g.clearIndices()
	if g.vertices != 0 {
		g.ctx.DeleteBuffer(g.vertices)
	}
	g.vertices, g.layout, g.vertexCount, g.source = 0, nil, 0, NoGeometry
}
