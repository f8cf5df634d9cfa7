// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// glTF component types
const (
	componentByte          = 5120
	componentUnsignedByte  = 5121
	componentShort         = 5122
	componentUnsignedShort = 5123
	componentUnsignedInt   = 5125
	componentFloat         = 5126
)

const modeTriangles = 4

// maxZeroFilledBytes bounds accessors without a buffer view, which carry no
// bytes to check a count against.
const maxZeroFilledBytes = 64 << 20

var componentSizes = map[int]int{
	componentByte:          1,
	componentUnsignedByte:  1,
	componentShort:         2,
	componentUnsignedShort: 2,
	componentUnsignedInt:   4,
	componentFloat:         4,
}

var typeComponents = map[string]int{
	"SCALAR": 1,
	"VEC2":   2,
	"VEC3":   3,
	"VEC4":   4,
	"MAT2":   4,
	"MAT3":   9,
	"MAT4":   16,
}

type document struct {
	Meshes      []mesh       `json:"meshes"`
	Accessors   []accessor   `json:"accessors"`
	BufferViews []bufferView `json:"bufferViews"`
	Buffers     []buffer     `json:"buffers"`
}

type mesh struct {
	Primitives []primitive `json:"primitives"`
}

type primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Mode       *int           `json:"mode"`
}

type accessor struct {
	BufferView    *int            `json:"bufferView"`
	ByteOffset    int             `json:"byteOffset"`
	ComponentType int             `json:"componentType"`
	Count         int             `json:"count"`
	Type          string          `json:"type"`
	Normalized    bool            `json:"normalized"`
	Sparse        json.RawMessage `json:"sparse"`
}

type bufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

type buffer struct {
	ByteLength int    `json:"byteLength"`
	URI        string `json:"uri"`
}

type decodeState struct {
	doc     *document
	bin     []byte
	resolve func(uri string) ([]byte, error)
	buffers map[int][]byte
}

type stream struct {
	attr Attribute
	data []float32
}

// elements is a strided view over the bytes of an accessor.
type elements struct {
	data   []byte
	stride int
	count  int
}

func (e elements) at(i int) []byte {
	return e.data[i*e.stride:]
}

func (st *decodeState) geometry() (*Geometry, error) {
	if len(st.doc.Meshes) == 0 {
		return nil, &FormatError{Reason: "gltf: document has no meshes"}
	}
	if len(st.doc.Meshes[0].Primitives) == 0 {
		return nil, &FormatError{Reason: "gltf: mesh 0 has no primitives"}
	}
	prim := st.doc.Meshes[0].Primitives[0]

	if prim.Mode != nil && *prim.Mode != modeTriangles {
		if *prim.Mode < 0 || *prim.Mode > 6 {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: invalid primitive mode %d", *prim.Mode)}
		}
		return nil, &UnsupportedFormatError{Feature: fmt.Sprintf("primitive mode %d", *prim.Mode)}
	}

	posIndex, ok := prim.Attributes[Position.String()]
	if !ok {
		return nil, &FormatError{Reason: "gltf: primitive has no POSITION attribute"}
	}
	positions, err := st.floats(posIndex, Position, "VEC3")
	if err != nil {
		return nil, err
	}
	streams := []stream{{Attribute{Semantic: Position, Components: 3}, positions}}
	count := len(positions) / 3

	for _, s := range []struct {
		semantic Semantic
		typ      string
		n        int
	}{{Normal, "VEC3", 3}, {TexCoord, "VEC2", 2}} {
		index, ok := prim.Attributes[s.semantic.String()]
		if !ok {
			continue
		}
		data, err := st.floats(index, s.semantic, s.typ)
		if err != nil {
			return nil, err
		}
		if len(data)/s.n != count {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: %s has %d elements, POSITION has %d", s.semantic, len(data)/s.n, count)}
		}
		streams = append(streams, stream{Attribute{Semantic: s.semantic, Components: s.n}, data})
	}

	attrs := make([]Attribute, len(streams))
	for i, s := range streams {
		attrs[i] = s.attr
	}
	geom := &Geometry{Layout: PackedLayout(attrs...)}
	floats := geom.Layout.Stride() / 4
	geom.Vertices = make([]float32, 0, count*floats)
	for v := 0; v < count; v++ {
		for _, s := range streams {
			n := s.attr.Components
			geom.Vertices = append(geom.Vertices, s.data[v*n:(v+1)*n]...)
		}
	}

	if prim.Indices != nil {
		indices, err := st.indices(*prim.Indices)
		if err != nil {
			return nil, err
		}
		if len(indices)%3 != 0 {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: %d indices do not form whole triangles", len(indices))}
		}
		for i, idx := range indices {
			if int64(idx) >= int64(count) {
				return nil, &FormatError{Reason: fmt.Sprintf("gltf: index %d at %d is out of range for %d vertices", idx, i, count)}
			}
		}
		geom.Indices = indices
	}
	return geom, nil
}

func (st *decodeState) floats(index int, semantic Semantic, typ string) ([]float32, error) {
	acc, el, err := st.accessor(index, semantic.String())
	if err != nil {
		return nil, err
	}
	if acc.ComponentType != componentFloat {
		return nil, &UnsupportedFormatError{Feature: fmt.Sprintf("%s component type %d", semantic, acc.ComponentType)}
	}
	if acc.Type != typ {
		return nil, &UnsupportedFormatError{Feature: fmt.Sprintf("%s accessor type %s", semantic, acc.Type)}
	}
	n := typeComponents[typ]
	out := make([]float32, 0, acc.Count*n)
	for i := 0; i < el.count; i++ {
		e := el.at(i)
		for k := 0; k < n; k++ {
			out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(e[k*4:])))
		}
	}
	return out, nil
}

func (st *decodeState) indices(index int) ([]uint32, error) {
	acc, el, err := st.accessor(index, "indices")
	if err != nil {
		return nil, err
	}
	if acc.Type != "SCALAR" {
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: indices accessor has type %s", acc.Type)}
	}
	out := make([]uint32, el.count)
	switch acc.ComponentType {
	case componentUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(el.at(i)))
		}
	case componentUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(el.at(i))
		}
	case componentUnsignedByte:
		return nil, &UnsupportedFormatError{Feature: "unsigned byte indices"}
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: invalid index component type %d", acc.ComponentType)}
	}
	return out, nil
}

// accessor validates accessor index and returns a view of its elements.
func (st *decodeState) accessor(index int, use string) (*accessor, elements, error) {
	if index < 0 || index >= len(st.doc.Accessors) {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: %s references accessor %d of %d", use, index, len(st.doc.Accessors))}
	}
	acc := &st.doc.Accessors[index]
	size, ok := componentSizes[acc.ComponentType]
	if !ok {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d has invalid component type %d", index, acc.ComponentType)}
	}
	n, ok := typeComponents[acc.Type]
	if !ok {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d has invalid type %q", index, acc.Type)}
	}
	switch {
	case len(acc.Sparse) > 0 && string(acc.Sparse) != "null":
		return nil, elements{}, &UnsupportedFormatError{Feature: fmt.Sprintf("sparse accessor %d", index)}
	case acc.Normalized:
		return nil, elements{}, &UnsupportedFormatError{Feature: fmt.Sprintf("normalized accessor %d", index)}
	case acc.Count < 1:
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d has count %d", index, acc.Count)}
	case acc.ByteOffset < 0:
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d has negative byteOffset", index)}
	}
	elemSize := size * n

	// an accessor without a buffer view reads as zeros
	if acc.BufferView == nil {
		if acc.Count > maxZeroFilledBytes/elemSize {
			return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d count %d without a bufferView exceeds %d bytes", index, acc.Count, maxZeroFilledBytes)}
		}
		return acc, elements{data: make([]byte, acc.Count*elemSize), stride: elemSize, count: acc.Count}, nil
	}

	vi := *acc.BufferView
	if vi < 0 || vi >= len(st.doc.BufferViews) {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d references bufferView %d of %d", index, vi, len(st.doc.BufferViews))}
	}
	view := st.doc.BufferViews[vi]
	buf, err := st.buffer(view.Buffer)
	if err != nil {
		return nil, elements{}, err
	}
	if view.ByteOffset < 0 || view.ByteLength < 0 || view.ByteLength > len(buf) || view.ByteOffset > len(buf)-view.ByteLength {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: bufferView %d range %d+%d exceeds buffer %d of %d bytes", vi, view.ByteOffset, view.ByteLength, view.Buffer, len(buf))}
	}
	stride := elemSize
	if view.ByteStride != 0 {
		if view.ByteStride < elemSize {
			return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: bufferView %d stride %d is smaller than a %d byte element", vi, view.ByteStride, elemSize)}
		}
		stride = view.ByteStride
	}
	// compare counts, not byte totals, so a huge count cannot wrap
	if acc.ByteOffset > view.ByteLength-elemSize || acc.Count-1 > (view.ByteLength-elemSize-acc.ByteOffset)/stride {
		return nil, elements{}, &FormatError{Reason: fmt.Sprintf("gltf: accessor %d of %d elements at offset %d does not fit bufferView %d of %d bytes", index, acc.Count, acc.ByteOffset, vi, view.ByteLength)}
	}
	start := view.ByteOffset + acc.ByteOffset
	return acc, elements{data: buf[start : view.ByteOffset+view.ByteLength], stride: stride, count: acc.Count}, nil
}

// buffer returns the bytes of buffer i, loading them once.
func (st *decodeState) buffer(i int) ([]byte, error) {
	if data, ok := st.buffers[i]; ok {
		return data, nil
	}
	if i < 0 || i >= len(st.doc.Buffers) {
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: reference to buffer %d of %d", i, len(st.doc.Buffers))}
	}
	desc := st.doc.Buffers[i]

	var data []byte
	switch {
	case desc.URI == "" && i == 0 && st.bin != nil:
		data = st.bin
	case desc.URI == "":
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d has no uri and no BIN chunk", i)}
	case strings.HasPrefix(desc.URI, "data:"):
		comma := strings.IndexByte(desc.URI, ',')
		if comma < 0 || !strings.HasSuffix(desc.URI[:comma], ";base64") {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d data uri is not base64", i)}
		}
		decoded, err := base64.StdEncoding.DecodeString(desc.URI[comma+1:])
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d: %v", i, err)}
		}
		data = decoded
	case st.resolve == nil:
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d references external uri %q", i, desc.URI)}
	default:
		resolved, err := st.resolve(desc.URI)
		if err != nil {
			return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d: resolving %q: %v", i, desc.URI, err)}
		}
		data = resolved
	}

	if desc.ByteLength < 0 || desc.ByteLength > len(data) {
		return nil, &FormatError{Reason: fmt.Sprintf("gltf: buffer %d declares %d bytes, has %d", i, desc.ByteLength, len(data))}
	}
	data = data[:desc.ByteLength]
	st.buffers[i] = data
	return data, nil
}
