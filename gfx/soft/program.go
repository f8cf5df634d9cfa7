// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package soft

import (
	"fmt"
	"strings"

	"github.com/devblok/tetra/gfx"
)

// uniformBinding routes one program uniform location to the slots
// of both stages. A slot of -1 means the stage does not declare it.
type uniformBinding struct {
	name   string
	typ    typ
	vsSlot int
	fsSlot int
}

type varyingLink struct {
	vsSlot int
	fsSlot int
	n      int
}

type program struct {
	vertex   *unit
	fragment *unit

	attributes []gfx.AttributeInfo
	attrSlots  []int
	uniforms   []uniformBinding
	varyings   []varyingLink
}

// link matches the interfaces of two compiled stages.
func link(vs, fs *unit) (*program, error) {
	var problems []string

	prog := &program{vertex: vs, fragment: fs}
	for i, a := range vs.attributes {
		prog.attributes = append(prog.attributes, gfx.AttributeInfo{
			Name:       a.name,
			Location:   i,
			Components: a.typ.components(),
		})
		prog.attrSlots = append(prog.attrSlots, a.slot)
	}

	for _, v := range fs.varyings {
		out, ok := vs.globals[v.name]
		switch {
		case !ok || out.storage != sVarying:
			problems = append(problems, fmt.Sprintf("error: fragment shader varying %s not written by vertex shader", v.name))
		case out.typ != v.typ:
			problems = append(problems, fmt.Sprintf("error: varying %s type mismatch (vertex %s, fragment %s)", v.name, out.typ, v.typ))
		default:
			prog.varyings = append(prog.varyings, varyingLink{vsSlot: out.slot, fsSlot: v.slot, n: v.typ.components()})
		}
	}

	for _, u := range vs.uniforms {
		prog.uniforms = append(prog.uniforms, uniformBinding{name: u.name, typ: u.typ, vsSlot: u.slot, fsSlot: -1})
	}
	for _, u := range fs.uniforms {
		found := false
		for i := range prog.uniforms {
			b := &prog.uniforms[i]
			if b.name != u.name {
				continue
			}
			found = true
			if b.typ != u.typ {
				problems = append(problems, fmt.Sprintf("error: uniform %s declared as %s in vertex shader and %s in fragment shader", u.name, b.typ, u.typ))
			}
			b.fsSlot = u.slot
		}
		if !found {
			prog.uniforms = append(prog.uniforms, uniformBinding{name: u.name, typ: u.typ, vsSlot: -1, fsSlot: u.slot})
		}
	}

	if len(problems) > 0 {
		return nil, &gfx.InfoLogError{Log: strings.Join(problems, "\n") + "\n"}
	}
	return prog, nil
}

func (p *program) uniformLocation(name string) int {
	for i, u := range p.uniforms {
		if u.name == name {
			return i
		}
	}
	return -1
}
