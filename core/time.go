// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond <= 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / time.Duration(cfg.FramesPerSecond)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Time{
		fps:       cfg.FramesPerSecond,
		fpsTicker: time.NewTicker(interval),
		now:       now,
		start:     now(),
	}
}

// Time paces frames and produces the millisecond timestamps passed to Draw.
type Time struct {
	fps       int
	fpsTicker *time.Ticker

	now   func() time.Time
	start time.Time
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// FpsTicker gets the initialized fps ticker
func (t *Time) FpsTicker() *time.Ticker {
	return t.fpsTicker
}

// Millis returns milliseconds elapsed since the service was created.
func (t *Time) Millis() float64 {
	return float64(t.now().Sub(t.start)) / float64(time.Millisecond)
}

// Stop stops the fps ticker.
func (t *Time) Stop() {
	t.fpsTicker.Stop()
}
