// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"image"
	"image/color"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/envy"
	"github.com/sirupsen/logrus"

	"github.com/devblok/tetra/core"
)

func TestConfigurationFromEnv(t *testing.T) {
	c := qt.New(t)
	envy.Temp(func() {
		envy.Set("TETRA_FPS", "30")
		envy.Set("TETRA_WIDTH", "320")
		envy.Set("TETRA_HEIGHT", "240")
		envy.Set("TETRA_CULL_BACK_FACES", "true")
		envy.Set("TETRA_CLEAR_COLOR", "0.5, 0, 1")
		envy.Set("TETRA_LOG_LEVEL", "debug")

		cfg, err := core.ConfigurationFromEnv()
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 30)
		c.Assert(cfg.Renderer.ScreenWidth, qt.Equals, 320)
		c.Assert(cfg.Renderer.ScreenHeight, qt.Equals, 240)
		c.Assert(cfg.Renderer.DepthTest, qt.IsTrue)
		c.Assert(cfg.Renderer.CullBackFaces, qt.IsTrue)
		c.Assert(cfg.Renderer.ClearColor, qt.Equals, [4]float32{0.5, 0, 1, 1})

		entry, ok := cfg.Log.(*logrus.Entry)
		c.Assert(ok, qt.IsTrue)
		c.Assert(entry.Logger.GetLevel(), qt.Equals, logrus.DebugLevel)
		c.Assert(entry.Data["component"], qt.Equals, "engine")
	})
}

func TestConfigurationFromEnvErrors(t *testing.T) {
	cases := []struct {
		key, value, match string
	}{
		{"TETRA_FPS", "fast", `TETRA_FPS: strconv.Atoi: parsing "fast": invalid syntax`},
		{"TETRA_DEPTH_TEST", "maybe", `TETRA_DEPTH_TEST: .*`},
		{"TETRA_CLEAR_COLOR", "1,1", `TETRA_CLEAR_COLOR: color "1,1" needs 3 or 4 components`},
		{"TETRA_LOG_LEVEL", "loud", `TETRA_LOG_LEVEL: not a valid logrus Level: "loud"`},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			c := qt.New(t)
			envy.Temp(func() {
				envy.Set(tc.key, tc.value)
				_, err := core.ConfigurationFromEnv()
				c.Assert(err, qt.ErrorMatches, tc.match)
			})
		})
	}
}

func TestDefaultConfiguration(t *testing.T) {
	c := qt.New(t)
	cfg := core.DefaultConfiguration()
	c.Assert(cfg.Time.FramesPerSecond, qt.Equals, 60)
	c.Assert(cfg.Renderer.ClearColor, qt.Equals, [4]float32{0, 0, 0, 1})
	c.Assert(cfg.Renderer.DepthTest, qt.IsTrue)
	c.Assert(cfg.Renderer.CullBackFaces, qt.IsFalse)
	c.Assert(cfg.Log, qt.IsNil)
}

func TestParseColor(t *testing.T) {
	c := qt.New(t)
	got, err := core.ParseColor("0.25,0.5,0.75,0")
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, [4]float32{0.25, 0.5, 0.75, 0})

	_, err = core.ParseColor("0,0,2")
	c.Assert(err, qt.ErrorMatches, `color "0,0,2": component 2 outside \[0,1\]`)
	_, err = core.ParseColor("red,0,0")
	c.Assert(err, qt.ErrorMatches, `color "red,0,0": .*invalid syntax`)
}

func TestTime(t *testing.T) {
	c := qt.New(t)
	start := time.Date(2019, 9, 1, 12, 0, 0, 0, time.UTC)
	now := start
	clock := core.NewTime(core.TimeConfiguration{
		FramesPerSecond: 50,
		Clock:           func() time.Time { return now },
	})
	defer clock.Stop()

	c.Assert(clock.Fps(), qt.Equals, 50)
	c.Assert(clock.Millis(), qt.Equals, 0.0)
	now = start.Add(1500 * time.Millisecond)
	c.Assert(clock.Millis(), qt.Equals, 1500.0)

	select {
	case <-clock.FpsTicker().C:
	case <-time.After(5 * time.Second):
		c.Fatal("fps ticker never fired")
	}
}

func TestImageToRGBA(t *testing.T) {
	c := qt.New(t)

	gray := image.NewGray(image.Rect(2, 3, 4, 5))
	gray.SetGray(2, 3, color.Gray{Y: 200})
	rgba := core.ImageToRGBA(gray)
	c.Assert(rgba.Bounds(), qt.Equals, image.Rect(0, 0, 2, 2))
	c.Assert(rgba.Stride, qt.Equals, 8)
	c.Assert(rgba.RGBAAt(0, 0), qt.Equals, color.RGBA{200, 200, 200, 255})

	packed := image.NewRGBA(image.Rect(0, 0, 3, 1))
	c.Assert(core.ImageToRGBA(packed), qt.Equals, packed)

	sub := image.NewRGBA(image.Rect(0, 0, 4, 4)).SubImage(image.Rect(1, 1, 3, 3)).(*image.RGBA)
	c.Assert(core.ImageToRGBA(sub), qt.Not(qt.Equals), sub)
}

func BenchmarkImageToRGBA(b *testing.B) {
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	for idx := 0; idx < b.N; idx++ {
		core.ImageToRGBA(img)
	}
}
