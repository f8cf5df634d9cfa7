// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"

	"github.com/devblok/tetra/gfx"
)

// Engine errors matched through errors.Is.
var (
	// ErrInvalidState is returned when a call is made out of lifecycle order,
	// including every call other than Release on a released engine.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidArgument is returned for malformed geometry or texture input.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ShaderCompileError carries the compiler log of a rejected shader stage.
type ShaderCompileError struct {
	Stage gfx.ShaderStage
	Log   string
}

func (e *ShaderCompileError) Error() string {
	return fmt.Sprintf("compile %s shader: %s", e.Stage, e.Log)
}

// LinkError carries the linker log of a rejected program.
type LinkError struct {
	Log string
}

func (e *LinkError) Error() string {
	return "link program: " + e.Log
}

// SurfaceError reports a surface that could not produce a rendering context.
// The engine is unusable after it.
type SurfaceError struct {
	Err error
}

func (e *SurfaceError) Error() string {
	return "surface: " + e.Err.Error()
}

func (e *SurfaceError) Unwrap() error {
	return e.Err
}

// invalidState formats an ErrInvalidState for the named call.
func invalidState(call string, state State) error {
	return fmt.Errorf("%s: %w in state %s", call, ErrInvalidState, state)
}

func invalidArgument(call string, format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w: %s", call, ErrInvalidArgument, fmt.Sprintf(format, args...))
}
