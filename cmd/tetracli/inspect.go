// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/tetra/model"
)

func inspect(e *env, args []string) error {
	fs := e.flags("inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("inspect takes exactly one file")
	}
	name := fs.Arg(0)

	data, err := readFile(name)
	if err != nil {
		return err
	}
	geom, format, err := decodeModel(files{}, name, data, e.log)
	if err != nil {
		return err
	}

	fmt.Fprintf(e.stdout, "format: %s\n", format)
	fmt.Fprintf(e.stdout, "vertices: %d\n", geom.VertexCount())
	if geom.Indices != nil {
		fmt.Fprintf(e.stdout, "indices: %d\n", len(geom.Indices))
		fmt.Fprintf(e.stdout, "triangles: %d\n", len(geom.Indices)/3)
	} else {
		fmt.Fprintf(e.stdout, "triangles: %d\n", geom.VertexCount()/3)
	}
	fmt.Fprintf(e.stdout, "layout: %s stride=%d\n", describeLayout(geom.Layout), geom.Layout.Stride())
	lo, hi := bounds(geom)
	fmt.Fprintf(e.stdout, "bounds: %s %s\n", formatVec(lo), formatVec(hi))
	return nil
}

func describeLayout(l model.Layout) string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = fmt.Sprintf("%s:%d@%d", a.Semantic, a.Components, a.Offset)
	}
	return strings.Join(parts, " ")
}

// bounds returns the axis aligned box around the vertex positions.
func bounds(g *model.Geometry) (lo, hi mgl32.Vec3) {
	pos, ok := g.Layout.Find(model.Position)
	if !ok {
		return
	}
	inf := float32(math.Inf(1))
	lo = mgl32.Vec3{inf, inf, inf}
	hi = mgl32.Vec3{-inf, -inf, -inf}

	stride, offset := g.Layout.Stride()/4, pos.Offset/4
	for v := 0; v < g.VertexCount(); v++ {
		for k := 0; k < pos.Components && k < 3; k++ {
			f := g.Vertices[v*stride+offset+k]
			lo[k] = float32(math.Min(float64(lo[k]), float64(f)))
			hi[k] = float32(math.Max(float64(hi[k]), float64(f)))
		}
	}
	for k := pos.Components; k < 3; k++ {
		lo[k], hi[k] = 0, 0
	}
	return lo, hi
}

func formatVec(v mgl32.Vec3) string {
	return fmt.Sprintf("(%g,%g,%g)", v[0], v[1], v[2])
}
