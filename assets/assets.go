// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package assets bundles the shaders shipped with the tetra commands.
package assets

import (
	"fmt"
	"image"
	"image/color"

	"github.com/gobuffalo/packd"
	"github.com/gobuffalo/packr"
)

// Shaders holds the GLSL sources under assets/shaders. The sources are
// read from disk during development and embedded by the packr tool.
var Shaders = packr.NewBox("./shaders")

// Program is a vertex and fragment shader source pair.
type Program struct {
	Vertex   string
	Fragment string
}

// LoadProgram reads name.vert and name.frag from f.
func LoadProgram(f packd.Finder, name string) (Program, error) {
	vertex, err := f.FindString(name + ".vert")
	if err != nil {
		return Program{}, fmt.Errorf("assets: %s.vert: %w", name, err)
	}
	fragment, err := f.FindString(name + ".frag")
	if err != nil {
		return Program{}, fmt.Errorf("assets: %s.frag: %w", name, err)
	}
	return Program{Vertex: vertex, Fragment: fragment}, nil
}

// Checker draws a size by size checkerboard with cells squares per side.
func Checker(size, cells int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := size / cells
	if cell == 0 {
		cell = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, a)
			} else {
				img.SetRGBA(x, y, b)
			}
		}
	}
	return img
}
