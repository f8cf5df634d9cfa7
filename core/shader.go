// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/devblok/tetra/gfx"
)

// Uniform names the engine feeds on every draw.
const (
	UniformModelViewProjection = "u_model_view_projection"
	UniformNormalMatrix        = "u_normal_matrix"
	UniformSampler             = "u_sampler"
	UniformTime                = "u_time"
)

// uniformLocations holds resolved locations, -1 when the program lacks one.
type uniformLocations struct {
	modelViewProjection int
	normalMatrix        int
	sampler             int
	time                int
}

// ShaderPipeline compiles the two shader stages and links them.
type ShaderPipeline struct {
	ctx gfx.Context
	log logrus.FieldLogger

	vertex   gfx.Shader
	fragment gfx.Shader

	program    gfx.Program
	attributes []gfx.AttributeInfo
	uniforms   uniformLocations
}

func newShaderPipeline(ctx gfx.Context, log logrus.FieldLogger) *ShaderPipeline {
	return &ShaderPipeline{ctx: ctx, log: log}
}

// attach compiles a stage. A successful compile replaces an earlier
// attachment of the same stage, a failed one keeps it.
func (s *ShaderPipeline) attach(stage gfx.ShaderStage, source string) error {
	shader, err := s.ctx.CompileShader(stage, source)
	if err != nil {
		var info *gfx.InfoLogError
		if errors.As(err, &info) {
			return &ShaderCompileError{Stage: stage, Log: info.Log}
		}
		return &ShaderCompileError{Stage: stage, Log: err.Error()}
	}

	slot := &s.vertex
	if stage == gfx.FragmentStage {
		slot = &s.fragment
	}
	if *slot != 0 {
		s.log.WithField("stage", stage).Debug("replacing attached shader")
		s.ctx.DeleteShader(*slot)
	}
	*slot = shader
	return nil
}

func (s *ShaderPipeline) link() error {
	program, err := s.ctx.LinkProgram(s.vertex, s.fragment)
	if err != nil {
		var info *gfx.InfoLogError
		if errors.As(err, &info) {
			return &LinkError{Log: info.Log}
		}
		return &LinkError{Log: err.Error()}
	}

	s.ctx.DeleteShader(s.vertex)
	s.ctx.DeleteShader(s.fragment)
	s.vertex, s.fragment = 0, 0

	s.program = program
	s.attributes = s.ctx.ActiveAttributes(program)
	s.uniforms = uniformLocations{
		modelViewProjection: s.ctx.UniformLocation(program, UniformModelViewProjection),
		normalMatrix:        s.ctx.UniformLocation(program, UniformNormalMatrix),
		sampler:             s.ctx.UniformLocation(program, UniformSampler),
		time:                s.ctx.UniformLocation(program, UniformTime),
	}

	names := make([]string, len(s.attributes))
	for i, a := range s.attributes {
		names[i] = a.Name
	}
	s.log.WithFields(logrus.Fields{
		"attributes": names,
		"sampler":    s.uniforms.sampler >= 0,
	}).Info("linked shader program")
	return nil
}

// Attached reports which stages have a compiled shader waiting for link.
func (s *ShaderPipeline) Attached() (vertex, fragment bool) {
	return s.vertex != 0, s.fragment != 0
}

// Linked reports whether a program has been linked.
func (s *ShaderPipeline) Linked() bool {
	return s.program != 0
}

// Program returns the linked program, zero before link.
func (s *ShaderPipeline) Program() gfx.Program {
	return s.program
}

// Attributes returns the vertex inputs of the linked program.
func (s *ShaderPipeline) Attributes() []gfx.AttributeInfo {
	return append([]gfx.AttributeInfo(nil), s.attributes...)
}

// UsesSampler reports whether the linked program samples a texture.
func (s *ShaderPipeline) UsesSampler() bool {
	return s.program != 0 && s.uniforms.sampler >= 0
}

func (s *ShaderPipeline) release() {
	if s.vertex != 0 {
		s.ctx.DeleteShader(s.vertex)
	}
	if s.fragment != 0 {
		s.ctx.DeleteShader(s.fragment)
	}
	if s.program != 0 {
		s.ctx.DeleteProgram(s.program)
	}
	s.vertex, s.fragment, s.program = 0, 0, 0
	s.attributes = nil
}
