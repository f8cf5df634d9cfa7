// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/devblok/tetra/gfx"
)

// TextureUnit owns the single texture sampled through unit 0.
// Row 0 of the uploaded image maps to texture coordinate v = 0.
type TextureUnit struct {
	ctx gfx.Context
	log logrus.FieldLogger

	texture       gfx.Texture
	width, height int
}

func newTextureUnit(ctx gfx.Context, log logrus.FieldLogger) *TextureUnit {
	return &TextureUnit{ctx: ctx, log: log}
}

// set uploads img. The new texture is created before the old one is
// deleted so a failed upload keeps the current texture.
func (t *TextureUnit) set(img *image.RGBA) error {
	if img == nil {
		return invalidArgument("set texture", "nil image")
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return invalidArgument("set texture", "zero area image %dx%d", w, h)
	}
	pixels, err := packedPixels(img)
	if err != nil {
		return err
	}

	tex, err := t.ctx.CreateTexture(w, h, pixels)
	if err != nil {
		return fmt.Errorf("set texture: create texture: %w", err)
	}
	if t.texture != 0 {
		t.ctx.DeleteTexture(t.texture)
	}
	t.texture, t.width, t.height = tex, w, h
	t.log.WithFields(logrus.Fields{"width": w, "height": h}).Debug("uploaded texture")
	return nil
}

// packedPixels returns the rows of img without stride padding.
func packedPixels(img *image.RGBA) ([]byte, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := w * 4
	if img.Stride < row {
		return nil, invalidArgument("set texture", "stride %d is shorter than a %d byte row", img.Stride, row)
	}
	if need := (h-1)*img.Stride + row; len(img.Pix) < need {
		return nil, invalidArgument("set texture", "pixel buffer holds %d bytes, need %d", len(img.Pix), need)
	}
	if img.Stride == row {
		return img.Pix[:row*h], nil
	}
	pixels := make([]byte, row*h)
	for y := 0; y < h; y++ {
		copy(pixels[y*row:(y+1)*row], img.Pix[y*img.Stride:y*img.Stride+row])
	}
	return pixels, nil
}

// Bound reports whether a texture is uploaded.
func (t *TextureUnit) Bound() bool {
	return t.texture != 0
}

// Size returns the size of the uploaded texture.
func (t *TextureUnit) Size() (width, height int) {
	return t.width, t.height
}

func (t *TextureUnit) release() {
	if t.texture != 0 {
		t.ctx.DeleteTexture(t.texture)
	}
	t.texture, t.width, t.height = 0, 0, 0
}

// ImageToRGBA converts a decoded image to a tightly packed RGBA image
// with its origin at (0, 0), by drawing it onto an RGBA canvas.
func ImageToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
