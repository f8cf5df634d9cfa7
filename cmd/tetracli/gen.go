// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	log "github.com/sirupsen/logrus"
)

// mesh is an indexed triangle list with one normal and texture
// coordinate per vertex.
type mesh struct {
	positions [][3]float32
	normals   [][3]float32
	texCoords [][2]float32
	indices   []uint16
}

// face appends a unit square facing n, with u pointing right in texture space.
func (m *mesh) face(n, u mgl32.Vec3) {
	v := n.Cross(u)
	base := uint16(len(m.positions))
	corners := []struct {
		pos mgl32.Vec3
		uv  [2]float32
	}{
		{n.Sub(u).Sub(v), [2]float32{0, 1}},
		{n.Add(u).Sub(v), [2]float32{1, 1}},
		{n.Add(u).Add(v), [2]float32{1, 0}},
		{n.Sub(u).Add(v), [2]float32{0, 0}},
	}
	for _, c := range corners {
		m.positions = append(m.positions, [3]float32(c.pos))
		m.normals = append(m.normals, [3]float32(n))
		m.texCoords = append(m.texCoords, c.uv)
	}
	m.indices = append(m.indices, base, base+1, base+2, base, base+2, base+3)
}

func quadMesh() *mesh {
	m := &mesh{}
	m.face(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0})
	// the face sits one unit out along its normal, pull it back to z=0
	for i := range m.positions {
		m.positions[i][2] = 0
	}
	return m
}

func cubeMesh() *mesh {
	m := &mesh{}
	for _, f := range [][2]mgl32.Vec3{
		{{0, 0, 1}, {1, 0, 0}},
		{{0, 0, -1}, {-1, 0, 0}},
		{{1, 0, 0}, {0, 0, -1}},
		{{-1, 0, 0}, {0, 0, 1}},
		{{0, 1, 0}, {1, 0, 0}},
		{{0, -1, 0}, {1, 0, 0}},
	} {
		m.face(f[0], f[1])
	}
	return m
}

// document writes the mesh into a single-node glTF document.
// Indices are always stored as unsigned shorts.
func (m *mesh) document(name string) *gltf.Document {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, m.positions)
	nrm := modeler.WriteNormal(doc, m.normals)
	tex := modeler.WriteTextureCoord(doc, m.texCoords)

	buf := doc.Buffers[len(doc.Buffers)-1]
	offset := uint32(len(buf.Data))
	for _, i := range m.indices {
		buf.Data = binary.LittleEndian.AppendUint16(buf.Data, i)
	}
	buf.ByteLength = uint32(len(buf.Data))
	doc.BufferViews = append(doc.BufferViews, &gltf.BufferView{
		Buffer:     uint32(len(doc.Buffers) - 1),
		ByteOffset: offset,
		ByteLength: uint32(2 * len(m.indices)),
		Target:     gltf.TargetElementArrayBuffer,
	})
	doc.Accessors = append(doc.Accessors, &gltf.Accessor{
		BufferView:    gltf.Index(uint32(len(doc.BufferViews) - 1)),
		ComponentType: gltf.ComponentUshort,
		Count:         uint32(len(m.indices)),
		Type:          gltf.AccessorScalar,
	})

	doc.Meshes = []*gltf.Mesh{{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(uint32(len(doc.Accessors) - 1)),
			Attributes: gltf.Attribute{
				gltf.POSITION:   pos,
				gltf.NORMAL:     nrm,
				gltf.TEXCOORD_0: tex,
			},
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: name, Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func gen(e *env, args []string) error {
	fs := e.flags("gen")
	shape := fs.String("shape", "quad", "`shape` to generate: quad or cube")
	out := fs.String("o", "", "output `file`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() != 0 {
		fs.Usage()
		return errors.New("gen needs an output file and no arguments")
	}

	var m *mesh
	switch *shape {
	case "quad":
		m = quadMesh()
	case "cube":
		m = cubeMesh()
	default:
		return fmt.Errorf("unknown shape %q", *shape)
	}

	if err := gltf.SaveBinary(m.document(*shape), *out); err != nil {
		return err
	}
	e.log.WithFields(log.Fields{
		"file":     *out,
		"vertices": len(m.positions),
		"indices":  len(m.indices),
	}).Info("generated model")
	return nil
}
