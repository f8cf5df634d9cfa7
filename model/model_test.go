// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/devblok/tetra/model"
)

func TestPackedLayout(t *testing.T) {
	c := qt.New(t)
	l := model.PackedLayout(
		model.Attribute{Semantic: model.Position, Components: 3},
		model.Attribute{Semantic: model.TexCoord, Components: 2},
	)
	c.Assert(l, qt.DeepEquals, model.Layout{
		{Semantic: model.Position, Components: 3, Offset: 0, Stride: 20},
		{Semantic: model.TexCoord, Components: 2, Offset: 12, Stride: 20},
	})
	c.Assert(l.Validate(), qt.IsNil)

	a, ok := l.Find(model.TexCoord)
	c.Assert(ok, qt.IsTrue)
	c.Assert(a.Offset, qt.Equals, 12)
	_, ok = l.Find(model.Normal)
	c.Assert(ok, qt.IsFalse)
}

func TestLayoutValidate(t *testing.T) {
	cases := []struct {
		name   string
		layout model.Layout
	}{
		{"empty", nil},
		{"no position", model.Layout{{Semantic: model.TexCoord, Components: 2, Stride: 8}}},
		{"zero components", model.Layout{{Semantic: model.Position, Components: 0, Stride: 12}}},
		{"five components", model.Layout{{Semantic: model.Position, Components: 5, Stride: 20}}},
		{"unaligned stride", model.Layout{{Semantic: model.Position, Components: 3, Stride: 14}}},
		{"mixed strides", model.Layout{
			{Semantic: model.Position, Components: 3, Stride: 20},
			{Semantic: model.TexCoord, Components: 2, Offset: 12, Stride: 24},
		}},
		{"outside vertex", model.Layout{
			{Semantic: model.Position, Components: 3, Stride: 20},
			{Semantic: model.TexCoord, Components: 2, Offset: 16, Stride: 20},
		}},
		{"duplicate", model.Layout{
			{Semantic: model.Position, Components: 3, Stride: 24},
			{Semantic: model.Position, Components: 3, Offset: 12, Stride: 24},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			c.Assert(errors.Is(tc.layout.Validate(), model.ErrLayout), qt.IsTrue)
		})
	}
}

func TestGeometryValidate(t *testing.T) {
	c := qt.New(t)
	g := &model.Geometry{
		Vertices: []float32{0, 0, 0, 1, 0, 0, 0, 1, 0},
		Layout:   model.PackedLayout(model.Attribute{Semantic: model.Position, Components: 3}),
		Indices:  []uint32{0, 1, 2},
	}
	c.Assert(g.Validate(), qt.IsNil)
	c.Assert(g.VertexCount(), qt.Equals, 3)

	g.Indices = []uint32{0, 1, 3}
	c.Assert(g.Validate(), qt.ErrorMatches, ".*index 3 at 2 is out of range for 3 vertices")
	g.Indices = []uint32{0, 1}
	c.Assert(g.Validate(), qt.ErrorMatches, ".*2 indices do not form whole triangles")
	g.Indices = nil
	g.Vertices = g.Vertices[:8]
	c.Assert(errors.Is(g.Validate(), model.ErrLayout), qt.IsTrue)
}

// writeIndices16 appends an unsigned short index accessor to the last
// buffer, keeping the component type the decoder is meant to read.
func writeIndices16(doc *gltf.Document, indices []uint16) uint32 {
	buf := doc.Buffers[len(doc.Buffers)-1]
	offset := uint32(len(buf.Data))
	for _, i := range indices {
		buf.Data = binary.LittleEndian.AppendUint16(buf.Data, i)
	}
	buf.ByteLength = uint32(len(buf.Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     uint32(len(doc.Buffers) - 1),
		ByteOffset: offset,
		ByteLength: uint32(len(indices) * 2),
		Target:     gltf.TargetElementArrayBuffer,
	})
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(uint32(len(doc.BufferViews) - 1)),
		ComponentType: gltf.ComponentUshort,
		Count:         uint32(len(indices)),
		Type:          gltf.AccessorScalar,
	})
	return uint32(len(doc.Accessors) - 1)
}

// TestDecodeMatchesReference writes a model with qmuntal/gltf and checks
// the decoder against the library's own reader.
func TestDecodeMatchesReference(t *testing.T) {
	c := qt.New(t)

	doc := gltf.NewDocument()
	positions := [][3]float32{{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1}, {0, 0, -1}}
	normals := [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, -1}}
	uvs := [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}, {0.5, 0.5}}
	indices := []uint16{0, 1, 2, 0, 2, 3, 0, 4, 1, 1, 4, 2, 2, 4, 3, 3, 4, 0}

	pos := modeler.WritePosition(doc, positions)
	nrm := modeler.WriteNormal(doc, normals)
	tex := modeler.WriteTextureCoord(doc, uvs)
	idx := writeIndices16(doc, indices)
	doc.Meshes = []*gltf.Mesh{{
		Name: "pyramid",
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(idx),
			Attributes: gltf.Attribute{
				gltf.POSITION:   pos,
				gltf.NORMAL:     nrm,
				gltf.TEXCOORD_0: tex,
			},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: "root", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	path := filepath.Join(t.TempDir(), "pyramid.glb")
	c.Assert(gltf.SaveBinary(doc, path), qt.IsNil)
	data, err := os.ReadFile(path)
	c.Assert(err, qt.IsNil)

	geom, err := model.DecodeGLB(data)
	c.Assert(err, qt.IsNil)

	ref, err := gltf.Open(path)
	c.Assert(err, qt.IsNil)
	prim := ref.Meshes[0].Primitives[0]
	refPos, err := modeler.ReadPosition(ref, ref.Accessors[prim.Attributes[gltf.POSITION]], nil)
	c.Assert(err, qt.IsNil)
	refNrm, err := modeler.ReadNormal(ref, ref.Accessors[prim.Attributes[gltf.NORMAL]], nil)
	c.Assert(err, qt.IsNil)
	refTex, err := modeler.ReadTextureCoord(ref, ref.Accessors[prim.Attributes[gltf.TEXCOORD_0]], nil)
	c.Assert(err, qt.IsNil)
	refIdx, err := modeler.ReadIndices(ref, ref.Accessors[*prim.Indices], nil)
	c.Assert(err, qt.IsNil)

	c.Assert(geom.VertexCount(), qt.Equals, len(refPos))
	c.Assert(geom.Indices, qt.DeepEquals, refIdx)
	for v := 0; v < geom.VertexCount(); v++ {
		vert := geom.Vertices[v*8 : v*8+8]
		c.Assert(vert[0:3], qt.DeepEquals, refPos[v][:])
		c.Assert(vert[3:6], qt.DeepEquals, refNrm[v][:])
		c.Assert(vert[6:8], qt.DeepEquals, refTex[v][:])
	}
}

const plane = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <library_geometries>
    <geometry id="Plane-mesh" name="Plane">
      <mesh>
        <source id="Plane-mesh-positions">
          <float_array id="Plane-mesh-positions-array" count="12">-1 -1 0 1 -1 0 -1 1 0 1 1 0</float_array>
          <technique_common>
            <accessor source="#Plane-mesh-positions-array" count="4" stride="3"/>
          </technique_common>
        </source>
        <source id="Plane-mesh-normals">
          <float_array id="Plane-mesh-normals-array" count="3">0 0 1</float_array>
          <technique_common>
            <accessor source="#Plane-mesh-normals-array" count="1" stride="3"/>
          </technique_common>
        </source>
        <source id="Plane-mesh-map-0">
          <float_array id="Plane-mesh-map-0-array" count="12">1 0 0 1 0 0 1 0 1 1 0 1</float_array>
          <technique_common>
            <accessor source="#Plane-mesh-map-0-array" count="6" stride="2"/>
          </technique_common>
        </source>
        <vertices id="Plane-mesh-vertices">
          <input semantic="POSITION" source="#Plane-mesh-positions"/>
        </vertices>
        <triangles material="Material-material" count="2">
          <input semantic="VERTEX" source="#Plane-mesh-vertices" offset="0"/>
          <input semantic="NORMAL" source="#Plane-mesh-normals" offset="1"/>
          <input semantic="TEXCOORD" source="#Plane-mesh-map-0" offset="2" set="0"/>
          <p>1 0 0 2 0 1 0 0 2 1 0 0 3 0 4 2 0 5</p>
        </triangles>
      </mesh>
    </geometry>
  </library_geometries>
</COLLADA>`

func TestImportCollada(t *testing.T) {
	c := qt.New(t)
	geom, err := model.ImportCollada([]byte(plane))
	c.Assert(err, qt.IsNil)
	c.Assert(geom.Validate(), qt.IsNil)

	c.Assert(geom.Layout, qt.DeepEquals, model.PackedLayout(
		model.Attribute{Semantic: model.Position, Components: 3},
		model.Attribute{Semantic: model.Normal, Components: 3},
		model.Attribute{Semantic: model.TexCoord, Components: 2},
	))
	// corner (1, 0, 0) is shared by both triangles
	c.Assert(geom.Indices, qt.DeepEquals, []uint32{0, 1, 2, 0, 3, 4})
	c.Assert(geom.VertexCount(), qt.Equals, 5)
	// first vertex: position 1, normal 0, texture coordinate (1, 0) flipped
	c.Assert(geom.Vertices[:8], qt.DeepEquals, []float32{1, -1, 0, 0, 0, 1, 1, 1})
}

func TestImportColladaErrors(t *testing.T) {
	c := qt.New(t)

	_, err := model.ImportCollada([]byte("<COLLADA"))
	c.Assert(errors.Is(err, model.ErrFormat), qt.IsTrue)

	_, err = model.ImportCollada([]byte(`<COLLADA><library_geometries/></COLLADA>`))
	c.Assert(err, qt.ErrorMatches, "model: collada: document has no geometries")

	_, err = model.ImportCollada([]byte(`<COLLADA><library_geometries><geometry><mesh/></geometry></library_geometries></COLLADA>`))
	c.Assert(errors.Is(err, model.ErrUnsupported), qt.IsTrue)
}
