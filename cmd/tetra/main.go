// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command tetra shows a single spinning mesh in an SDL window.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/tetra/assets"
	"github.com/devblok/tetra/core"
	"github.com/devblok/tetra/gfx/opengl"
	"github.com/devblok/tetra/model"
)

func init() {
	runtime.LockOSThread()
}

var (
	envFile     = flag.String("env", "", "load environment variables from `file`")
	modelPath   = flag.String("model", "", "model `file` to show, .glb or .dae")
	programName = flag.String("program", "model", "bundled shader `program`: model or flat")
	texturePath = flag.String("texture", "", "PNG or JPEG texture `file`, defaults to a checkerboard")
)

func main() {
	flag.Parse()
	if *modelPath == "" || flag.NArg() != 0 {
		flag.Usage()
		os.Exit(2)
	}
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return err
		}
		envy.Reload()
	}
	configuration, err := core.ConfigurationFromEnv()
	if err != nil {
		return err
	}

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return err
	}
	defer sdl.Quit()

	if err := opengl.SetAttributes(); err != nil {
		return err
	}
	window, err := opengl.NewWindow("Tetra", configuration.Renderer.ScreenWidth, configuration.Renderer.ScreenHeight)
	if err != nil {
		return err
	}
	defer window.Destroy()

	surface := opengl.NewSurface(window)
	engine, err := core.NewEngine(surface, configuration)
	if err != nil {
		return err
	}
	defer engine.Release()

	if err := setup(engine); err != nil {
		return err
	}

	time := core.NewTime(configuration.Time)
	defer time.Stop()

EventLoop:
	for range time.FpsTicker().C {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch et := event.(type) {
			case *sdl.KeyboardEvent:
				if et.Keysym.Sym == sdl.K_ESCAPE {
					break EventLoop
				}
			case *sdl.QuitEvent:
				break EventLoop
			case *sdl.WindowEvent:
				if et.Event == sdl.WINDOWEVENT_SIZE_CHANGED {
					if err := engine.RefreshViewport(surface.Size()); err != nil {
						return err
					}
				}
			}
		}

		if err := engine.Draw(time.Millis()); err != nil {
			return err
		}
		surface.Swap()
	}
	log.Println("Event loop exited")
	return nil
}

// setup compiles the bundled program and uploads the texture and model.
func setup(engine *core.Engine) error {
	program, err := assets.LoadProgram(assets.Shaders, *programName)
	if err != nil {
		return err
	}
	texture, err := loadTexture(*texturePath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*modelPath)
	if err != nil {
		return err
	}

	b := engine.Build().
		VertexShader(program.Vertex).
		FragmentShader(program.Fragment).
		Link().
		Texture(texture)
	switch ext := strings.ToLower(filepath.Ext(*modelPath)); ext {
	case ".glb":
		b.Model(data)
	case ".dae":
		geom, err := model.ImportCollada(data)
		if err != nil {
			return err
		}
		b.Geometry(geom)
	default:
		return fmt.Errorf("%s: unknown model format %q", *modelPath, ext)
	}
	return b.Err()
}

func loadTexture(path string) (*image.RGBA, error) {
	if path == "" {
		return assets.Checker(256, 8, color.RGBA{230, 230, 230, 255}, color.RGBA{200, 90, 30, 255}), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return core.ImageToRGBA(img), nil
}
