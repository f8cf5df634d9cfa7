// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobuffalo/packd"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/mmap"

	"github.com/devblok/tetra/model"
	"github.com/devblok/tetra/utility/kar"
)

// readFile maps path into memory and copies it out.
func readFile(path string) ([]byte, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data := make([]byte, r.Len())
	if _, err := r.ReadAt(data, 0); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// files finds assets on disk. It satisfies packd.Finder like asset
// boxes and kar archives do.
type files struct{}

func (files) Find(name string) ([]byte, error) {
	return readFile(name)
}

func (files) FindString(name string) (string, error) {
	data, err := readFile(name)
	return string(data), err
}

// openArchive maps a kar archive. Closing the returned closer unmaps it.
func openArchive(path string) (*kar.Archive, io.Closer, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ar, err := kar.Open(r)
	if err != nil {
		r.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return ar, r, nil
}

// decodeModel picks a decoder from the file extension. External glTF
// buffers are looked up next to the model through finder.
func decodeModel(finder packd.Finder, name string, data []byte, logger log.FieldLogger) (*model.Geometry, string, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".glb":
		d := model.Decoder{
			Log: logger,
			ResolveBuffer: func(uri string) ([]byte, error) {
				return finder.Find(path.Join(path.Dir(filepath.ToSlash(name)), uri))
			},
		}
		g, err := d.Decode(data)
		return g, "glb", err
	case ".dae":
		g, err := model.ImportCollada(data)
		return g, "collada", err
	default:
		return nil, "", fmt.Errorf("%s: unknown model format %q", name, ext)
	}
}
