// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/xml"
	"fmt"

	"github.com/devblok/tetra/util/collada"
)

// corner identifies one unique vertex of a COLLADA triangle list by
// the source indices of its inputs.
type corner struct {
	position, normal, texCoord int
}

// ImportCollada reads the first triangle list of the first geometry in
// a COLLADA document. Positions are required, normals and the first
// texture coordinate set are used when present. Texture coordinates
// are flipped to a top-left origin.
func ImportCollada(fileContents []byte) (*Geometry, error) {
	var doc collada.Collada
	if err := xml.Unmarshal(fileContents, &doc); err != nil {
		return nil, &FormatError{Reason: "collada: " + err.Error()}
	}
	if len(doc.Geometries) == 0 {
		return nil, &FormatError{Reason: "collada: document has no geometries"}
	}
	mesh := &doc.Geometries[0].Mesh
	if len(mesh.Triangles) == 0 {
		return nil, &UnsupportedFormatError{Feature: "collada geometry without <triangles>"}
	}
	tris := mesh.Triangles[0]

	var (
		position, normal, texCoord *collada.Source
		posOffset                  = -1
		normalOffset, texOffset    = -1, -1
	)
	for _, in := range tris.Inputs {
		switch in.Semantic {
		case "VERTEX":
			posOffset = int(in.Offset)
			for _, vin := range mesh.Vertices.Inputs {
				switch vin.Semantic {
				case "POSITION":
					position = findSource(mesh, vin.Source)
				case "NORMAL":
					normal, normalOffset = findSource(mesh, vin.Source), int(in.Offset)
				}
			}
		case "NORMAL":
			normal, normalOffset = findSource(mesh, in.Source), int(in.Offset)
		case "TEXCOORD":
			if in.Set == 0 || texCoord == nil {
				texCoord, texOffset = findSource(mesh, in.Source), int(in.Offset)
			}
		}
	}
	if posOffset < 0 || position == nil {
		return nil, &FormatError{Reason: "collada: triangles have no resolvable POSITION input"}
	}

	attrs := []Attribute{{Semantic: Position, Components: 3}}
	if normal != nil {
		attrs = append(attrs, Attribute{Semantic: Normal, Components: 3})
	} else {
		normalOffset = -1
	}
	if texCoord != nil {
		attrs = append(attrs, Attribute{Semantic: TexCoord, Components: 2})
	} else {
		texOffset = -1
	}
	geom := &Geometry{Layout: PackedLayout(attrs...)}

	stride := tris.Stride()
	if stride == 0 || len(tris.Index)%stride != 0 || (len(tris.Index)/stride)%3 != 0 {
		return nil, &FormatError{Reason: fmt.Sprintf("collada: %d indices do not form whole triangles of %d inputs", len(tris.Index), stride)}
	}

	pick := func(base, offset int) int {
		if offset < 0 {
			return -1
		}
		return tris.Index[base+offset]
	}
	seen := make(map[corner]uint32)
	for base := 0; base < len(tris.Index); base += stride {
		c := corner{
			position: pick(base, posOffset),
			normal:   pick(base, normalOffset),
			texCoord: pick(base, texOffset),
		}
		if idx, ok := seen[c]; ok {
			geom.Indices = append(geom.Indices, idx)
			continue
		}

		p, ok := position.Element(c.position, 3)
		if !ok {
			return nil, &FormatError{Reason: fmt.Sprintf("collada: position %d out of range", c.position)}
		}
		geom.Vertices = append(geom.Vertices, p...)
		if normal != nil {
			n, ok := normal.Element(c.normal, 3)
			if !ok {
				return nil, &FormatError{Reason: fmt.Sprintf("collada: normal %d out of range", c.normal)}
			}
			geom.Vertices = append(geom.Vertices, n...)
		}
		if texCoord != nil {
			uv, ok := texCoord.Element(c.texCoord, 2)
			if !ok {
				return nil, &FormatError{Reason: fmt.Sprintf("collada: texture coordinate %d out of range", c.texCoord)}
			}
			geom.Vertices = append(geom.Vertices, uv[0], 1-uv[1])
		}

		idx := uint32(len(seen))
		seen[c] = idx
		geom.Indices = append(geom.Indices, idx)
	}
	return geom, nil
}

func findSource(mesh *collada.Mesh, ref string) *collada.Source {
	src, ok := mesh.Source(ref)
	if !ok {
		return nil
	}
	return src
}
