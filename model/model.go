// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package model holds CPU-side mesh data and the importers that produce it.
package model

import (
	"errors"
	"fmt"
)

// ErrLayout is returned for vertex layouts or data that cannot be bound.
var ErrLayout = errors.New("model: invalid vertex layout")

// Semantic names the meaning of a vertex attribute.
type Semantic int

// Vertex attribute semantics.
const (
	Position Semantic = iota
	TexCoord
	Normal
)

func (s Semantic) String() string {
	switch s {
	case Position:
		return "POSITION"
	case TexCoord:
		return "TEXCOORD_0"
	case Normal:
		return "NORMAL"
	}
	return fmt.Sprintf("Semantic(%d)", int(s))
}

// AttributeName is the shader input a semantic is bound to.
func (s Semantic) AttributeName() string {
	switch s {
	case Position:
		return "a_position"
	case TexCoord:
		return "a_tex_coord"
	case Normal:
		return "a_normal"
	}
	return ""
}

// Attribute places one semantic inside interleaved float32 vertex data.
// Offset and Stride are in bytes.
type Attribute struct {
	Semantic   Semantic
	Components int
	Offset     int
	Stride     int
}

// Layout is the ordered set of attributes of a vertex buffer.
type Layout []Attribute

// PackedLayout lays the given attributes out one after another in a
// single interleaved vertex, filling in offsets and the shared stride.
func PackedLayout(attrs ...Attribute) Layout {
	stride := 0
	for _, a := range attrs {
		stride += a.Components * 4
	}
	layout := make(Layout, len(attrs))
	offset := 0
	for i, a := range attrs {
		a.Offset, a.Stride = offset, stride
		offset += a.Components * 4
		layout[i] = a
	}
	return layout
}

// Find returns the attribute with the given semantic.
func (l Layout) Find(s Semantic) (Attribute, bool) {
	for _, a := range l {
		if a.Semantic == s {
			return a, true
		}
	}
	return Attribute{}, false
}

// Stride returns the byte size of one vertex.
func (l Layout) Stride() int {
	if len(l) == 0 {
		return 0
	}
	return l[0].Stride
}

// Validate checks that the layout describes one interleaved vertex
// with a position.
func (l Layout) Validate() error {
	if _, ok := l.Find(Position); !ok {
		return fmt.Errorf("%w: no %s attribute", ErrLayout, Position)
	}
	stride := l.Stride()
	if stride <= 0 || stride%4 != 0 {
		return fmt.Errorf("%w: stride %d is not a positive multiple of 4", ErrLayout, stride)
	}
	seen := make(map[Semantic]bool, len(l))
	for _, a := range l {
		switch {
		case seen[a.Semantic]:
			return fmt.Errorf("%w: %s appears twice", ErrLayout, a.Semantic)
		case a.Components < 1 || a.Components > 4:
			return fmt.Errorf("%w: %s has %d components", ErrLayout, a.Semantic, a.Components)
		case a.Stride != stride:
			return fmt.Errorf("%w: %s stride %d differs from %d", ErrLayout, a.Semantic, a.Stride, stride)
		case a.Offset < 0 || a.Offset%4 != 0 || a.Offset+a.Components*4 > stride:
			return fmt.Errorf("%w: %s at offset %d does not fit a %d byte vertex", ErrLayout, a.Semantic, a.Offset, stride)
		}
		seen[a.Semantic] = true
	}
	return nil
}

// Geometry is a triangle mesh ready for upload.
type Geometry struct {
	Vertices []float32
	Layout   Layout

	// Indices is nil for non-indexed geometry.
	Indices []uint32
}

// VertexCount returns the number of whole vertices in Vertices.
func (g *Geometry) VertexCount() int {
	stride := g.Layout.Stride() / 4
	if stride == 0 {
		return 0
	}
	return len(g.Vertices) / stride
}

// Validate checks the layout, the vertex data size and every index.
func (g *Geometry) Validate() error {
	if err := g.Layout.Validate(); err != nil {
		return err
	}
	floats := g.Layout.Stride() / 4
	if len(g.Vertices) == 0 || len(g.Vertices)%floats != 0 {
		return fmt.Errorf("%w: %d floats is not a non-zero multiple of %d per vertex", ErrLayout, len(g.Vertices), floats)
	}
	return CheckIndices(g.Indices, g.VertexCount())
}

// CheckIndices verifies that indices form whole triangles over count vertices.
func CheckIndices(indices []uint32, count int) error {
	if len(indices)%3 != 0 {
		return fmt.Errorf("%w: %d indices do not form whole triangles", ErrLayout, len(indices))
	}
	for i, idx := range indices {
		if int64(idx) >= int64(count) {
			return fmt.Errorf("%w: index %d at %d is out of range for %d vertices", ErrLayout, idx, i, count)
		}
	}
	return nil
}
