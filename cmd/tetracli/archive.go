// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"text/tabwriter"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/tetra/utility/kar"
)

func currentUserName() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

func pack(e *env, args []string) error {
	fs := e.flags("pack")
	author := fs.String("author", currentUserName(), "archive `author`")
	version := fs.Int64("version", kar.Version, "archive `version` number")
	out := fs.String("o", "", "destination `file`")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" || fs.NArg() == 0 {
		fs.Usage()
		return errors.New("pack needs -o and at least one file")
	}
	if _, err := os.Stat(*out); err == nil {
		return fmt.Errorf("%s exists, will not overwrite", *out)
	}

	var paths []string
	for _, root := range fs.Args() {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	builder, err := kar.NewBuilder(kar.Header{
		Author:      *author,
		DateCreated: time.Now().Unix(),
		Version:     *version,
	})
	if err != nil {
		return err
	}
	defer builder.Close()

	for _, path := range paths {
		if err := builder.AddFile(filepath.ToSlash(path), path); err != nil {
			return err
		}
		e.log.WithField("entry", filepath.ToSlash(path)).Debug("packed")
	}

	dst, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := builder.WriteTo(dst)
	if err != nil {
		dst.Close()
		os.Remove(*out)
		return err
	}
	if err := dst.Close(); err != nil {
		return err
	}
	e.log.WithFields(log.Fields{
		"file":    *out,
		"entries": builder.Len(),
		"bytes":   n,
	}).Info("wrote archive")
	return nil
}

func list(e *env, args []string) error {
	fs := e.flags("ls")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("ls takes exactly one archive")
	}

	ar, closer, err := openArchive(fs.Arg(0))
	if err != nil {
		return err
	}
	defer closer.Close()

	header := ar.Header()
	fmt.Fprintf(e.stdout, "author: %s\n", header.Author)
	fmt.Fprintf(e.stdout, "version: %d\n", header.Version)
	fmt.Fprintf(e.stdout, "created: %s\n", time.Unix(header.DateCreated, 0).UTC().Format(time.RFC3339))

	w := tabwriter.NewWriter(e.stdout, 0, 4, 1, ' ', 0)
	fmt.Fprintln(w, "NAME\tSIZE\tCOMPRESSED")
	for _, name := range ar.Names() {
		entry, _ := header.Find(name)
		fmt.Fprintf(w, "%s\t%d\t%d\n", entry.Name, entry.Size, entry.CompressedSize)
	}
	return w.Flush()
}
