package render

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const labelPadding = 4

// drawLabel renders text at (x, y) with a translucent background box so it
// stays readable over any frame content.
func drawLabel(img *image.RGBA, text string, x, y int) {
	if text == "" {
		return
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
	}

	textWidth := int(d.MeasureString(text) >> 6)
	box := image.Rect(
		x-labelPadding, y-labelPadding,
		x+textWidth+labelPadding, y+face.Height+labelPadding,
	)
	draw.Draw(img, box.Intersect(img.Bounds()),
		&image.Uniform{color.RGBA{0, 0, 0, 180}}, image.Point{}, draw.Over)

	d.Dot = fixed.Point26_6{
		X: fixed.I(x),
		Y: fixed.I(y + face.Ascent),
	}
	d.DrawString(text)
}
