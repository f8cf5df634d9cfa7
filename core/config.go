// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gobuffalo/envy"
	"github.com/sirupsen/logrus"
)

// Configuration defines a global engine configuration setting
type Configuration struct {
	Time     TimeConfiguration
	Renderer RendererConfiguration

	// Log receives engine messages. Nil means the standard logger.
	Log logrus.FieldLogger
}

// TimeConfiguration is used to configure time services
type TimeConfiguration struct {
	// FramesPerSecond caps frames per second that is put out
	// To unlimit, set to 0
	FramesPerSecond int

	// Clock replaces time.Now, mostly for tests.
	Clock func() time.Time
}

// RendererConfiguration is used to configure the renderer
type RendererConfiguration struct {
	ScreenWidth  int
	ScreenHeight int

	ClearColor    [4]float32
	DepthTest     bool
	CullBackFaces bool
}

// DefaultConfiguration returns the settings used when nothing is configured.
func DefaultConfiguration() Configuration {
	return Configuration{
		Time: TimeConfiguration{
			FramesPerSecond: 60,
		},
		Renderer: RendererConfiguration{
			ScreenWidth:  800,
			ScreenHeight: 600,
			ClearColor:   [4]float32{0, 0, 0, 1},
			DepthTest:    true,
		},
	}
}

// ConfigurationFromEnv starts from DefaultConfiguration and applies the
// TETRA_* environment variables. envy also picks up a .env file in
// the working directory.
func ConfigurationFromEnv() (Configuration, error) {
	cfg := DefaultConfiguration()

	var err error
	if cfg.Time.FramesPerSecond, err = envInt("TETRA_FPS", cfg.Time.FramesPerSecond); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenWidth, err = envInt("TETRA_WIDTH", cfg.Renderer.ScreenWidth); err != nil {
		return cfg, err
	}
	if cfg.Renderer.ScreenHeight, err = envInt("TETRA_HEIGHT", cfg.Renderer.ScreenHeight); err != nil {
		return cfg, err
	}
	if cfg.Renderer.DepthTest, err = envBool("TETRA_DEPTH_TEST", cfg.Renderer.DepthTest); err != nil {
		return cfg, err
	}
	if cfg.Renderer.CullBackFaces, err = envBool("TETRA_CULL_BACK_FACES", cfg.Renderer.CullBackFaces); err != nil {
		return cfg, err
	}
	if raw := envy.Get("TETRA_CLEAR_COLOR", ""); raw != "" {
		if cfg.Renderer.ClearColor, err = ParseColor(raw); err != nil {
			return cfg, fmt.Errorf("TETRA_CLEAR_COLOR: %w", err)
		}
	}

	level, err := logrus.ParseLevel(envy.Get("TETRA_LOG_LEVEL", "info"))
	if err != nil {
		return cfg, fmt.Errorf("TETRA_LOG_LEVEL: %w", err)
	}
	logger := logrus.New()
	logger.SetLevel(level)
	cfg.Log = logger.WithField("component", "engine")
	return cfg, nil
}

// ParseColor reads "r,g,b" or "r,g,b,a" with components in [0,1].
func ParseColor(s string) ([4]float32, error) {
	color := [4]float32{0, 0, 0, 1}
	parts := strings.Split(s, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return color, fmt.Errorf("color %q needs 3 or 4 components", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return color, fmt.Errorf("color %q: %w", s, err)
		}
		if v < 0 || v > 1 {
			return color, fmt.Errorf("color %q: component %d outside [0,1]", s, i)
		}
		color[i] = float32(v)
	}
	return color, nil
}

func envInt(key string, def int) (int, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := envy.Get(key, "")
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func (cfg *Configuration) logger() logrus.FieldLogger {
	if cfg.Log != nil {
		return cfg.Log
	}
	return logrus.StandardLogger().WithField("component", "engine")
}
