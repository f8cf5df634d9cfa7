// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

// quadBIN holds four positions, four texture coordinates and six
// unsigned short indices.
func quadBIN() []byte {
	var buf bytes.Buffer
	for _, f := range []float32{
		-1, -1, 0, 1, -1, 0, 1, 1, 0, -1, 1, 0,
		0, 1, 1, 1, 1, 0, 0, 0,
	} {
		binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2, 0, 2, 3} {
		binary.Write(&buf, binary.LittleEndian, i)
	}
	return buf.Bytes()
}

func quadDocument() map[string]interface{} {
	return map[string]interface{}{
		"asset": map[string]interface{}{"version": "2.0"},
		"meshes": []interface{}{map[string]interface{}{
			"primitives": []interface{}{map[string]interface{}{
				"attributes": map[string]interface{}{"POSITION": 0, "TEXCOORD_0": 1},
				"indices":    2,
			}},
		}},
		"accessors": []interface{}{
			map[string]interface{}{"bufferView": 0, "componentType": 5126, "count": 4, "type": "VEC3"},
			map[string]interface{}{"bufferView": 1, "componentType": 5126, "count": 4, "type": "VEC2"},
			map[string]interface{}{"bufferView": 2, "componentType": 5123, "count": 6, "type": "SCALAR"},
		},
		"bufferViews": []interface{}{
			map[string]interface{}{"buffer": 0, "byteOffset": 0, "byteLength": 48},
			map[string]interface{}{"buffer": 0, "byteOffset": 48, "byteLength": 32},
			map[string]interface{}{"buffer": 0, "byteOffset": 80, "byteLength": 12},
		},
		"buffers": []interface{}{map[string]interface{}{"byteLength": 92}},
	}
}

func pad(b []byte, with byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, with)
	}
	return b
}

func chunk(kind uint32, body []byte) []byte {
	out := make([]byte, 8, 8+len(body))
	binary.LittleEndian.PutUint32(out, uint32(len(body)))
	binary.LittleEndian.PutUint32(out[4:], kind)
	return append(out, body...)
}

func glb(t *testing.T, doc map[string]interface{}, chunks ...[]byte) []byte {
	t.Helper()
	js, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	body := chunk(chunkJSON, pad(js, ' '))
	for _, c := range chunks {
		body = append(body, c...)
	}
	out := make([]byte, headerSize, headerSize+len(body))
	binary.LittleEndian.PutUint32(out, glbMagic)
	binary.LittleEndian.PutUint32(out[4:], glbVersion)
	binary.LittleEndian.PutUint32(out[8:], uint32(headerSize+len(body)))
	return append(out, body...)
}

func TestDecodeQuad(t *testing.T) {
	c := qt.New(t)
	geom, err := DecodeGLB(glb(t, quadDocument(), chunk(chunkBIN, pad(quadBIN(), 0))))
	c.Assert(err, qt.IsNil)

	c.Assert(geom.Layout, qt.DeepEquals, Layout{
		{Semantic: Position, Components: 3, Offset: 0, Stride: 20},
		{Semantic: TexCoord, Components: 2, Offset: 12, Stride: 20},
	})
	c.Assert(geom.VertexCount(), qt.Equals, 4)
	c.Assert(geom.Indices, qt.DeepEquals, []uint32{0, 1, 2, 0, 2, 3})
	c.Assert(geom.Vertices[:10], qt.DeepEquals, []float32{-1, -1, 0, 0, 1, 1, -1, 0, 1, 1})
	c.Assert(geom.Validate(), qt.IsNil)
}

func TestDecodeSkipsUnknownChunks(t *testing.T) {
	c := qt.New(t)
	data := glb(t, quadDocument(), chunk(chunkBIN, pad(quadBIN(), 0)), chunk(0x12345678, []byte{1, 2, 3, 4}))
	geom, err := DecodeGLB(data)
	c.Assert(err, qt.IsNil)
	c.Assert(len(geom.Indices), qt.Equals, 6)
}

func TestDecodeDataURI(t *testing.T) {
	c := qt.New(t)
	doc := quadDocument()
	doc["buffers"] = []interface{}{map[string]interface{}{
		"byteLength": 92,
		"uri":        "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(quadBIN()),
	}}
	geom, err := DecodeGLB(glb(t, doc))
	c.Assert(err, qt.IsNil)
	c.Assert(geom.VertexCount(), qt.Equals, 4)
}

func TestDecodeExternalBuffer(t *testing.T) {
	c := qt.New(t)
	doc := quadDocument()
	doc["buffers"] = []interface{}{map[string]interface{}{"byteLength": 92, "uri": "quad.bin"}}
	data := glb(t, doc)

	_, err := DecodeGLB(data)
	c.Assert(errors.Is(err, ErrFormat), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `.*external uri "quad.bin"`)

	d := Decoder{ResolveBuffer: func(uri string) ([]byte, error) {
		c.Check(uri, qt.Equals, "quad.bin")
		return quadBIN(), nil
	}}
	geom, err := d.Decode(data)
	c.Assert(err, qt.IsNil)
	c.Assert(geom.VertexCount(), qt.Equals, 4)

	d.ResolveBuffer = func(string) ([]byte, error) { return nil, errors.New("not found") }
	_, err = d.Decode(data)
	c.Assert(err, qt.ErrorMatches, `.*resolving "quad.bin": not found`)
}

func TestDecodeStridedView(t *testing.T) {
	c := qt.New(t)
	// positions and texture coordinates interleaved in one view
	var buf bytes.Buffer
	for v := 0; v < 3; v++ {
		for _, f := range []float32{float32(v), 0, 0, 0.5, float32(v)} {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(f))
		}
	}
	doc := map[string]interface{}{
		"meshes": []interface{}{map[string]interface{}{
			"primitives": []interface{}{map[string]interface{}{
				"attributes": map[string]interface{}{"POSITION": 0, "TEXCOORD_0": 1},
				"mode":       4,
			}},
		}},
		"accessors": []interface{}{
			map[string]interface{}{"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
			map[string]interface{}{"bufferView": 0, "byteOffset": 12, "componentType": 5126, "count": 3, "type": "VEC2"},
		},
		"bufferViews": []interface{}{
			map[string]interface{}{"buffer": 0, "byteLength": 60, "byteStride": 20},
		},
		"buffers": []interface{}{map[string]interface{}{"byteLength": 60}},
	}
	geom, err := DecodeGLB(glb(t, doc, chunk(chunkBIN, buf.Bytes())))
	c.Assert(err, qt.IsNil)
	c.Assert(geom.Indices, qt.IsNil)
	c.Assert(geom.Vertices, qt.DeepEquals, []float32{
		0, 0, 0, 0.5, 0,
		1, 0, 0, 0.5, 1,
		2, 0, 0, 0.5, 2,
	})
}

func TestDecodeErrors(t *testing.T) {
	bin := chunk(chunkBIN, pad(quadBIN(), 0))
	valid := glb(t, quadDocument(), bin)

	edit := func(f func(doc map[string]interface{})) []byte {
		doc := quadDocument()
		f(doc)
		return glb(t, doc, bin)
	}
	accessor := func(doc map[string]interface{}, i int) map[string]interface{} {
		return doc["accessors"].([]interface{})[i].(map[string]interface{})
	}
	prim := func(doc map[string]interface{}) map[string]interface{} {
		return doc["meshes"].([]interface{})[0].(map[string]interface{})["primitives"].([]interface{})[0].(map[string]interface{})
	}

	cases := []struct {
		name        string
		data        []byte
		unsupported bool
		match       string
	}{
		{name: "empty", data: nil, match: "shorter than the header"},
		{name: "bad magic", data: append([]byte("gltf"), valid[4:]...), match: "bad magic"},
		{name: "version 1", data: func() []byte {
			d := append([]byte(nil), valid...)
			binary.LittleEndian.PutUint32(d[4:], 1)
			return d
		}(), unsupported: true, match: "container version 1"},
		{name: "length past end", data: func() []byte {
			d := append([]byte(nil), valid...)
			binary.LittleEndian.PutUint32(d[8:], uint32(len(d)+4))
			return d
		}(), match: "declared length"},
		{name: "truncated", data: func() []byte {
			d := append([]byte(nil), valid[:len(valid)-10]...)
			binary.LittleEndian.PutUint32(d[8:], uint32(len(d)))
			return d
		}(), match: "chunk 1 declares"},
		{name: "bin first", data: func() []byte {
			d := append([]byte(nil), valid...)
			binary.LittleEndian.PutUint32(d[16:], chunkBIN)
			return d
		}(), match: "want JSON"},
		{name: "no json", data: func() []byte {
			d := append([]byte(nil), valid[:headerSize]...)
			binary.LittleEndian.PutUint32(d[8:], headerSize)
			return d
		}(), match: "missing JSON chunk"},
		{name: "broken json", data: func() []byte {
			d := append([]byte(nil), valid...)
			d[20] = '['
			return d
		}(), match: "gltf: .*"},
		{name: "no meshes", data: edit(func(doc map[string]interface{}) { delete(doc, "meshes") }), match: "no meshes"},
		{name: "no position", data: edit(func(doc map[string]interface{}) {
			delete(prim(doc)["attributes"].(map[string]interface{}), "POSITION")
		}), match: "no POSITION"},
		{name: "accessor index", data: edit(func(doc map[string]interface{}) { prim(doc)["indices"] = 9 }), match: "references accessor 9 of 3"},
		{name: "view index", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["bufferView"] = 5 }), match: "references bufferView 5"},
		{name: "accessor overflow", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["count"] = 5 }), match: "accessor 0 of 5 elements at offset 0 does not fit bufferView 0 of 48 bytes"},
		{name: "huge count", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["count"] = 1 << 62 }), match: "accessor 0 of 4611686018427387904 elements"},
		{name: "huge offset", data: edit(func(doc map[string]interface{}) { accessor(doc, 2)["byteOffset"] = 1 << 62 }), match: "accessor 2 of 6 elements at offset 4611686018427387904"},
		{name: "huge count without view", data: edit(func(doc map[string]interface{}) {
			delete(accessor(doc, 0), "bufferView")
			accessor(doc, 0)["count"] = 1 << 61
		}), match: "accessor 0 count 2305843009213693952 without a bufferView exceeds"},
		{name: "huge view", data: edit(func(doc map[string]interface{}) {
			view := doc["bufferViews"].([]interface{})[0].(map[string]interface{})
			view["byteOffset"] = 1 << 62
			view["byteLength"] = 1 << 62
		}), match: "bufferView 0 range"},
		{name: "view overflow", data: edit(func(doc map[string]interface{}) {
			doc["bufferViews"].([]interface{})[2].(map[string]interface{})["byteLength"] = 40
		}), match: "bufferView 2 range"},
		{name: "count mismatch", data: edit(func(doc map[string]interface{}) { accessor(doc, 1)["count"] = 3 }), match: "TEXCOORD_0 has 3 elements"},
		{name: "index count", data: edit(func(doc map[string]interface{}) { accessor(doc, 2)["count"] = 5 }), match: "5 indices"},
		{name: "index range", data: func() []byte {
			raw := quadBIN()
			binary.LittleEndian.PutUint16(raw[80+2*5:], 4)
			return glb(t, quadDocument(), chunk(chunkBIN, pad(raw, 0)))
		}(), match: "index 4 at 5 is out of range"},
		{name: "invalid component", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["componentType"] = 1234 }), match: "invalid component type 1234"},
		{name: "short positions", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["componentType"] = 5122 }), unsupported: true, match: "POSITION component type 5122"},
		{name: "vec4 positions", data: edit(func(doc map[string]interface{}) { accessor(doc, 0)["type"] = "VEC4"; accessor(doc, 0)["count"] = 3 }), unsupported: true, match: "POSITION accessor type VEC4"},
		{name: "byte indices", data: edit(func(doc map[string]interface{}) { accessor(doc, 2)["componentType"] = 5121 }), unsupported: true, match: "unsigned byte indices"},
		{name: "normalized", data: edit(func(doc map[string]interface{}) { accessor(doc, 1)["normalized"] = true }), unsupported: true, match: "normalized accessor 1"},
		{name: "sparse", data: edit(func(doc map[string]interface{}) {
			accessor(doc, 0)["sparse"] = map[string]interface{}{"count": 1}
		}), unsupported: true, match: "sparse accessor 0"},
		{name: "lines", data: edit(func(doc map[string]interface{}) { prim(doc)["mode"] = 1 }), unsupported: true, match: "primitive mode 1"},
		{name: "bad mode", data: edit(func(doc map[string]interface{}) { prim(doc)["mode"] = 9 }), match: "invalid primitive mode 9"},
		{name: "missing bin", data: glb(t, quadDocument()), match: "no uri and no BIN chunk"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := qt.New(t)
			_, err := DecodeGLB(tc.data)
			c.Assert(err, qt.Not(qt.IsNil))
			c.Assert(errors.Is(err, ErrFormat), qt.IsTrue)
			c.Assert(errors.Is(err, ErrUnsupported), qt.Equals, tc.unsupported)
			c.Assert(err, qt.ErrorMatches, "model: .*"+tc.match+".*")
			if tc.unsupported {
				var ue *UnsupportedFormatError
				c.Assert(errors.As(err, &ue), qt.IsTrue)
			} else {
				var fe *FormatError
				c.Assert(errors.As(err, &fe), qt.IsTrue)
			}
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	valid := glb(t, quadDocument(), chunk(chunkBIN, pad(quadBIN(), 0)))
	for n := 0; n < len(valid); n++ {
		d := append([]byte(nil), valid[:n]...)
		if n >= headerSize {
			binary.LittleEndian.PutUint32(d[8:], uint32(n))
		}
		if _, err := DecodeGLB(d); err == nil {
			t.Fatalf("prefix of %d bytes decoded without error", n)
		}
	}
	for i := range valid {
		d := append([]byte(nil), valid...)
		d[i] ^= 0xff
		DecodeGLB(d)
	}
}

func TestFormatErrorText(t *testing.T) {
	err := error(&UnsupportedFormatError{Feature: "primitive mode 0"})
	if !strings.HasPrefix(err.Error(), "model: unsupported") {
		t.Fatalf("unexpected message %q", err)
	}
}
