// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/tetra/gfx"
)

// Viewport tracks the framebuffer size draws are mapped to.
type Viewport struct {
	ctx           gfx.Context
	width, height int
}

// refresh records a new size. An unchanged size issues no GPU call.
func (v *Viewport) refresh(width, height int) error {
	if width <= 0 || height <= 0 {
		return invalidArgument("refresh viewport", "size %dx%d", width, height)
	}
	if width == v.width && height == v.height {
		return nil
	}
	v.ctx.Viewport(0, 0, width, height)
	v.width, v.height = width, height
	return nil
}

// Size returns the current viewport size in physical pixels.
func (v *Viewport) Size() (width, height int) {
	return v.width, v.height
}

// Aspect returns width divided by height.
func (v *Viewport) Aspect() float32 {
	if v.height == 0 {
		return 1
	}
	return float32(v.width) / float32(v.height)
}
