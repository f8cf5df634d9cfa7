// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package opengl

import (
	"fmt"

	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/tetra/gfx"
)

// SetAttributes requests a double buffered OpenGL 2.1 context with a
// depth buffer. Call it before creating the window.
func SetAttributes() error {
	for attr, value := range map[sdl.GLattr]int{
		sdl.GL_CONTEXT_MAJOR_VERSION: 2,
		sdl.GL_CONTEXT_MINOR_VERSION: 1,
		sdl.GL_DOUBLEBUFFER:          1,
		sdl.GL_DEPTH_SIZE:            24,
	} {
		if err := sdl.GLSetAttribute(attr, value); err != nil {
			return fmt.Errorf("opengl: set attribute %d: %w", attr, err)
		}
	}
	return nil
}

// NewWindow creates a resizable window able to carry an OpenGL context.
func NewWindow(title string, width, height int) (*sdl.Window, error) {
	return sdl.CreateWindow(title,
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(width),
		int32(height),
		sdl.WINDOW_OPENGL|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
}

// Surface is an SDL window used as a gfx.Surface. The window stays
// owned by the caller.
type Surface struct {
	window *sdl.Window
}

// NewSurface wraps window.
func NewSurface(window *sdl.Window) *Surface {
	return &Surface{window: window}
}

// Context creates an OpenGL context on the window and makes it current.
// Destroying the returned context deletes the SDL context too.
func (s *Surface) Context() (gfx.Context, error) {
	glctx, err := sdl.GLCreateContext(s.window)
	if err != nil {
		return nil, fmt.Errorf("opengl: create context: %w", err)
	}
	if err := s.window.GLMakeCurrent(glctx); err != nil {
		sdl.GLDeleteContext(glctx)
		return nil, fmt.Errorf("opengl: make current: %w", err)
	}
	ctx, err := NewContext(func() { sdl.GLDeleteContext(glctx) })
	if err != nil {
		sdl.GLDeleteContext(glctx)
		return nil, err
	}
	return ctx, nil
}

// Size returns the drawable size in physical pixels.
func (s *Surface) Size() (int, int) {
	w, h := s.window.GLGetDrawableSize()
	return int(w), int(h)
}

// Swap presents the back buffer.
func (s *Surface) Swap() {
	s.window.GLSwap()
}
