// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/devblok/tetra/gfx"
)

// clip-space w at or below this is behind the eye
const minW = 1e-6

type shaded struct {
	// window coordinates, depth in [0,1] and 1/w
	x, y, z, invW float32
	varyings      []float32
	culled        bool
}

// Draw implements gfx.Context.
func (c *Context) Draw(cmd *gfx.DrawCommand) error {
	if c.destroyed {
		return ErrDestroyed
	}
	prog, ok := c.programs[cmd.Program]
	if !ok {
		return fmt.Errorf("draw: program %d: %w", cmd.Program, ErrInvalidHandle)
	}
	vb, ok := c.buffers[cmd.Vertices]
	if !ok {
		return fmt.Errorf("draw: vertex buffer %d: %w", cmd.Vertices, ErrInvalidHandle)
	}
	var ib *buffer
	if cmd.Indices != 0 {
		if ib, ok = c.buffers[cmd.Indices]; !ok {
			return fmt.Errorf("draw: index buffer %d: %w", cmd.Indices, ErrInvalidHandle)
		}
		if need := cmd.Count * cmd.IndexType.Size(); need > len(ib.data) {
			return fmt.Errorf("draw: %d indices need %d bytes, index buffer has %d", cmd.Count, need, len(ib.data))
		}
	}
	c.stats.Draws++

	sample := c.sampler(cmd.Texture)
	vs := &frame{slots: make([]value, prog.vertex.slots), sample: sample}
	fs := &frame{slots: make([]value, prog.fragment.slots), sample: sample}
	for _, u := range cmd.Uniforms {
		if u.Location < 0 || u.Location >= len(prog.uniforms) {
			continue
		}
		v := value(u.Value)
		if u.Kind == gfx.UniformSampler {
			v = scalar(float32(u.Unit))
		}
		b := prog.uniforms[u.Location]
		if b.vsSlot >= 0 {
			vs.slots[b.vsSlot] = v
		}
		if b.fsSlot >= 0 {
			fs.slots[b.fsSlot] = v
		}
	}

	bindings := make([]*gfx.VertexAttribute, len(prog.attributes))
	for i := range cmd.Attributes {
		a := &cmd.Attributes[i]
		if a.Location >= 0 && a.Location < len(bindings) {
			bindings[a.Location] = a
		}
	}

	cache := make(map[uint32]*shaded)
	vertex := func(i int) (*shaded, error) {
		index := uint32(i)
		if ib != nil {
			if cmd.IndexType == gfx.Uint32 {
				index = binary.LittleEndian.Uint32(ib.data[i*4:])
			} else {
				index = uint32(binary.LittleEndian.Uint16(ib.data[i*2:]))
			}
		}
		if v, ok := cache[index]; ok {
			return v, nil
		}
		v, err := c.shadeVertex(prog, vs, vb.data, bindings, int(index))
		if err != nil {
			return nil, err
		}
		cache[index] = v
		return v, nil
	}

	for i := 0; i+2 < cmd.Count; i += 3 {
		var tri [3]*shaded
		for k := range tri {
			v, err := vertex(i + k)
			if err != nil {
				return err
			}
			tri[k] = v
		}
		c.triangle(prog, fs, tri, cmd.DepthTest, cmd.CullBackFaces)
	}
	return nil
}

func run(u *unit, f *frame) {
	for _, s := range u.body {
		if s(f) {
			return
		}
	}
}

func (c *Context) shadeVertex(prog *program, f *frame, data []byte, bindings []*gfx.VertexAttribute, index int) (*shaded, error) {
	for loc, slot := range prog.attrSlots {
		v := value{0, 0, 0, 1}
		if b := bindings[loc]; b != nil {
			stride := b.Stride
			if stride == 0 {
				stride = b.Components * 4
			}
			off := b.Offset + index*stride
			if off < 0 || off+b.Components*4 > len(data) {
				return nil, fmt.Errorf("draw: vertex %d attribute %s reads past the %d byte vertex buffer", index, prog.attributes[loc].Name, len(data))
			}
			for k := 0; k < b.Components && k < 4; k++ {
				v[k] = readFloat(data, off+k*4)
			}
		}
		f.slots[slot] = v
	}
	f.slots[prog.vertex.position] = value{}
	for _, l := range prog.varyings {
		f.slots[l.vsSlot] = value{}
	}
	run(prog.vertex, f)

	pos := f.slots[prog.vertex.position]
	out := &shaded{}
	if pos[3] <= minW {
		out.culled = true
		return out, nil
	}
	vx, vy, vw, vh := c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3]
	out.invW = 1 / pos[3]
	out.x = float32(vx) + (pos[0]*out.invW+1)*float32(vw)/2
	out.y = float32(vy) + (pos[1]*out.invW+1)*float32(vh)/2
	out.z = (pos[2]*out.invW + 1) / 2
	for _, l := range prog.varyings {
		v := f.slots[l.vsSlot]
		out.varyings = append(out.varyings, v[:l.n]...)
	}
	return out, nil
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft reports whether edge a->b of a counter-clockwise triangle
// owns the pixels lying exactly on it.
func topLeft(a, b *shaded) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return dy < 0 || (dy == 0 && dx < 0)
}

func (c *Context) triangle(prog *program, f *frame, tri [3]*shaded, depthTest, cull bool) {
	v0, v1, v2 := tri[0], tri[1], tri[2]
	if v0.culled || v1.culled || v2.culled {
		return
	}
	area := edge(v0.x, v0.y, v1.x, v1.y, v2.x, v2.y)
	if area == 0 || (cull && area < 0) {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	minX := int(math.Floor(float64(min3(v0.x, v1.x, v2.x))))
	maxX := int(math.Ceil(float64(max3(v0.x, v1.x, v2.x))))
	minY := int(math.Floor(float64(min3(v0.y, v1.y, v2.y))))
	maxY := int(math.Ceil(float64(max3(v0.y, v1.y, v2.y))))
	vx, vy, vw, vh := c.viewport[0], c.viewport[1], c.viewport[2], c.viewport[3]
	minX, minY = maxInt(minX, maxInt(vx, 0)), maxInt(minY, maxInt(vy, 0))
	maxX, maxY = minInt(maxX, minInt(vx+vw, c.width)-1), minInt(maxY, minInt(vy+vh, c.height)-1)

	tl0, tl1, tl2 := topLeft(v1, v2), topLeft(v2, v0), topLeft(v0, v1)
	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			cx, cy := float32(px)+0.5, float32(py)+0.5
			w0 := edge(v1.x, v1.y, v2.x, v2.y, cx, cy)
			w1 := edge(v2.x, v2.y, v0.x, v0.y, cx, cy)
			w2 := edge(v0.x, v0.y, v1.x, v1.y, cx, cy)
			if w0 < 0 || w1 < 0 || w2 < 0 ||
				(w0 == 0 && !tl0) || (w1 == 0 && !tl1) || (w2 == 0 && !tl2) {
				continue
			}
			b0, b1, b2 := w0/area, w1/area, w2/area
			z := b0*v0.z + b1*v1.z + b2*v2.z
			if z < 0 || z > 1 {
				continue
			}
			i := py*c.width + px
			if depthTest && z > c.depth[i] {
				continue
			}

			p0, p1, p2 := b0*v0.invW, b1*v1.invW, b2*v2.invW
			invW := p0 + p1 + p2
			k := 0
			for _, l := range prog.varyings {
				var v value
				for j := 0; j < l.n; j++ {
					v[j] = (p0*v0.varyings[k] + p1*v1.varyings[k] + p2*v2.varyings[k]) / invW
					k++
				}
				f.slots[l.fsSlot] = v
			}
			f.slots[prog.fragment.fragCoord] = value{cx, cy, z, invW}
			f.slots[prog.fragment.fragColor] = value{}
			f.discarded = false
			run(prog.fragment, f)
			if f.discarded {
				continue
			}

			out := f.slots[prog.fragment.fragColor]
			copy(c.color[i*4:i*4+4], []byte{toByte(out[0]), toByte(out[1]), toByte(out[2]), toByte(out[3])})
			if depthTest {
				c.depth[i] = z
			}
		}
	}
}

// sampler returns the texture lookup for a draw. Only unit 0 has a
// texture bound; other units and draws without one read opaque black.
func (c *Context) sampler(h gfx.Texture) func(unit int, s, t float32) [4]float32 {
	tex := c.textures[h]
	return func(unit int, s, t float32) [4]float32 {
		if tex == nil || unit != 0 {
			return [4]float32{0, 0, 0, 1}
		}
		return tex.bilinear(s, t)
	}
}

func (t *texture) texel(x, y int) [4]float32 {
	x, y = clampInt(x, 0, t.width-1), clampInt(y, 0, t.height-1)
	p := t.pix[(y*t.width+x)*4:]
	return [4]float32{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
}

// bilinear samples with clamp-to-edge wrapping. Row 0 of the image is t=0.
func (t *texture) bilinear(s, tc float32) [4]float32 {
	x := s*float32(t.width) - 0.5
	y := tc*float32(t.height) - 0.5
	fx, fy := float32(math.Floor(float64(x))), float32(math.Floor(float64(y)))
	ax, ay := x-fx, y-fy
	x0, y0 := int(fx), int(fy)

	c00, c10 := t.texel(x0, y0), t.texel(x0+1, y0)
	c01, c11 := t.texel(x0, y0+1), t.texel(x0+1, y0+1)
	var out [4]float32
	for i := range out {
		top := c00[i]*(1-ax) + c10[i]*ax
		bottom := c01[i]*(1-ax) + c11[i]*ax
		out[i] = top*(1-ay) + bottom*ay
	}
	return out
}

func min3(a, b, c float32) float32 {
	return float32(math.Min(float64(a), math.Min(float64(b), float64(c))))
}

func max3(a, b, c float32) float32 {
	return float32(math.Max(float64(a), math.Max(float64(b), float64(c))))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(x, lo, hi int) int {
	return maxInt(lo, minInt(x, hi))
}
