// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
)

const (
	glbMagic   = 0x46546C67 // "glTF"
	glbVersion = 2
	headerSize = 12

	chunkHeaderSize = 8
	chunkJSON       = 0x4E4F534A
	chunkBIN        = 0x004E4942
)

// Decoder reads binary glTF containers. The zero value is ready to use.
type Decoder struct {

	// ResolveBuffer loads buffers referenced by an external URI.
	// Without it such buffers are a format error.
	ResolveBuffer func(uri string) ([]byte, error)

	// Log receives debug messages, nil disables them.
	Log logrus.FieldLogger
}

// DecodeGLB decodes the first primitive of the first mesh of a GLB file.
func DecodeGLB(data []byte) (*Geometry, error) {
	var d Decoder
	return d.Decode(data)
}

// Decode parses a GLB container and extracts the triangle geometry of
// the first primitive of the first mesh. It touches no GPU state.
func (d *Decoder) Decode(data []byte) (*Geometry, error) {
	doc, bin, err := d.container(data)
	if err != nil {
		return nil, err
	}
	st := &decodeState{doc: doc, bin: bin, resolve: d.ResolveBuffer, buffers: make(map[int][]byte)}
	geom, err := st.geometry()
	if err != nil {
		return nil, err
	}
	if d.Log != nil {
		d.Log.WithFields(logrus.Fields{
			"vertices": geom.VertexCount(),
			"indices":  len(geom.Indices),
		}).Debug("decoded glb primitive")
	}
	return geom, nil
}

// container splits the GLB chunks and parses the JSON document.
func (d *Decoder) container(data []byte) (*document, []byte, error) {
	if len(data) < headerSize {
		return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: %d bytes is shorter than the header", len(data))}
	}
	if magic := binary.LittleEndian.Uint32(data); magic != glbMagic {
		return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: bad magic 0x%08x", magic)}
	}
	if version := binary.LittleEndian.Uint32(data[4:]); version != glbVersion {
		return nil, nil, &UnsupportedFormatError{Feature: fmt.Sprintf("glTF container version %d", version)}
	}
	length := binary.LittleEndian.Uint32(data[8:])
	if length < headerSize || uint64(length) > uint64(len(data)) {
		return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: declared length %d, have %d bytes", length, len(data))}
	}
	data = data[:length]

	var (
		jsonChunk, bin []byte
		offset         = headerSize
	)
	for n := 0; offset < len(data); n++ {
		if len(data)-offset < chunkHeaderSize {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: truncated header of chunk %d", n)}
		}
		size := binary.LittleEndian.Uint32(data[offset:])
		kind := binary.LittleEndian.Uint32(data[offset+4:])
		offset += chunkHeaderSize
		if uint64(size) > uint64(len(data)-offset) {
			return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: chunk %d declares %d bytes, %d remain", n, size, len(data)-offset)}
		}
		body := data[offset : offset+int(size)]
		offset += int(size)

		switch {
		case n == 0 && kind != chunkJSON:
			return nil, nil, &FormatError{Reason: fmt.Sprintf("glb: first chunk has type 0x%08x, want JSON", kind)}
		case n == 0:
			jsonChunk = body
		case kind == chunkBIN && bin == nil:
			bin = body
		default:
			if d.Log != nil {
				d.Log.WithField("type", fmt.Sprintf("0x%08x", kind)).Debug("skipping glb chunk")
			}
		}
	}
	if jsonChunk == nil {
		return nil, nil, &FormatError{Reason: "glb: missing JSON chunk"}
	}

	var doc document
	if err := json.Unmarshal(jsonChunk, &doc); err != nil {
		return nil, nil, &FormatError{Reason: "gltf: " + err.Error()}
	}
	return &doc, bin, nil
}
