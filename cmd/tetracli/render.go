// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobuffalo/packd"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/tetra/assets"
	"github.com/devblok/tetra/core"
	"github.com/devblok/tetra/gfx/soft"
)

var (
	checkerLight = color.RGBA{230, 230, 230, 255}
	checkerDark  = color.RGBA{200, 90, 30, 255}
)

func render(e *env, args []string) error {
	fs := e.flags("render")
	modelName := fs.String("model", "", "model `name`, .glb or .dae")
	program := fs.String("program", "model", "bundled shader `program`: model or flat")
	vert := fs.String("vert", "", "vertex shader `name`, replaces the bundled program")
	frag := fs.String("frag", "", "fragment shader `name`, replaces the bundled program")
	texture := fs.String("texture", "", "PNG or JPEG texture `name`, defaults to a checkerboard")
	archive := fs.String("archive", "", "look every name up in this kar `file`")
	width := fs.Int("w", 256, "image `width`")
	height := fs.Int("h", 256, "image `height`")
	at := fs.Float64("t", 0, "frame timestamp in `milliseconds`")
	out := fs.String("o", "", "output PNG `file`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelName == "" || *out == "" || fs.NArg() != 0 {
		fs.Usage()
		return errors.New("render needs -model and -o")
	}
	if (*vert == "") != (*frag == "") {
		return errors.New("-vert and -frag go together")
	}

	var finder packd.Finder = files{}
	if *archive != "" {
		ar, closer, err := openArchive(*archive)
		if err != nil {
			return err
		}
		defer closer.Close()
		finder = ar
	}

	shaders, err := loadShaders(finder, *program, *vert, *frag)
	if err != nil {
		return err
	}
	tex, err := loadTexture(finder, *texture)
	if err != nil {
		return err
	}
	data, err := finder.Find(*modelName)
	if err != nil {
		return err
	}

	eng, err := core.NewEngine(soft.NewSurface(*width, *height), e.cfg)
	if err != nil {
		return err
	}
	defer eng.Release()

	b := eng.Build().
		VertexShader(shaders.Vertex).
		FragmentShader(shaders.Fragment).
		Link().
		Texture(tex)
	if strings.EqualFold(filepath.Ext(*modelName), ".glb") {
		b = b.Model(data)
	} else {
		geom, _, err := decodeModel(finder, *modelName, data, e.log)
		if err != nil {
			return err
		}
		b = b.Geometry(geom)
	}
	if err := b.Err(); err != nil {
		return err
	}

	if err := eng.Draw(*at); err != nil {
		return err
	}
	img, err := eng.Snapshot()
	if err != nil {
		return err
	}

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	e.log.WithFields(log.Fields{
		"file":   *out,
		"width":  *width,
		"height": *height,
	}).Info("rendered frame")
	return nil
}

func loadShaders(finder packd.Finder, program, vert, frag string) (assets.Program, error) {
	if vert == "" {
		return assets.LoadProgram(assets.Shaders, program)
	}
	vs, err := finder.FindString(vert)
	if err != nil {
		return assets.Program{}, err
	}
	fs, err := finder.FindString(frag)
	if err != nil {
		return assets.Program{}, err
	}
	return assets.Program{Vertex: vs, Fragment: fs}, nil
}

func loadTexture(finder packd.Finder, name string) (*image.RGBA, error) {
	if name == "" {
		return assets.Checker(256, 8, checkerLight, checkerDark), nil
	}
	data, err := finder.Find(name)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return core.ImageToRGBA(img), nil
}
