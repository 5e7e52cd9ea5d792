// Package render composes detection overlays onto images in memory.
// Callers receive the drawn image; encoding and I/O stay with them.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strconv"

	"github.com/MeKo-Tech/detbox/internal/geometry"
	"github.com/MeKo-Tech/detbox/internal/postprocess"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Options control how detections are drawn.
type Options struct {
	// LineWidth is the box outline thickness in pixels.
	LineWidth int
	// DrawLabels toggles the class/score caption per box.
	DrawLabels bool
	// Colors maps labels to box colors; labels wrap around the slice.
	// When empty, a palette sized to the largest label is derived.
	Colors []color.RGBA
}

// DefaultOptions returns the rendering defaults.
func DefaultOptions() Options {
	return Options{LineWidth: 2, DrawLabels: true}
}

// Canvas returns a blank image filled with the given color.
func Canvas(width, height int, fill color.Color) *image.NRGBA {
	return imaging.New(width, height, fill)
}

// Overlay draws the detections onto a copy of img and returns it. Boxes
// are normalized; they are scaled to the image bounds before drawing.
func Overlay(img image.Image, results []postprocess.Result, opts Options) *image.NRGBA {
	if img == nil {
		return nil
	}
	if opts.LineWidth < 1 {
		opts.LineWidth = 1
	}
	dst := imaging.Clone(img)

	colors := opts.Colors
	if len(colors) == 0 {
		maxLabel := 0
		for _, r := range results {
			if r.Label > maxLabel {
				maxLabel = r.Label
			}
		}
		colors = Palette(maxLabel + 1)
	}

	b := dst.Bounds()
	for _, r := range results {
		col := colors[wrapIndex(r.Label, len(colors))]
		rect := geometry.DenormalizeBox(r.Box, b.Dx(), b.Dy())
		drawRect(dst, rect, col, opts.LineWidth)
		if opts.DrawLabels {
			drawLabel(dst, rect, caption(r), col)
		}
	}
	return dst
}

func caption(r postprocess.Result) string {
	name := r.Class
	if name == "" {
		name = strconv.Itoa(r.Label)
	}
	return fmt.Sprintf("%s %.2f", name, r.Score)
}

func wrapIndex(label, n int) int {
	i := label % n
	if i < 0 {
		i += n
	}
	return i
}

// drawRect draws an axis-aligned rectangle outline into dst.
func drawRect(dst *image.NRGBA, rect image.Rectangle, col color.Color, thickness int) {
	rect = rect.Intersect(dst.Bounds())
	if rect.Empty() {
		return
	}
	// Top and bottom edges
	for t := range thickness {
		yTop := rect.Min.Y + t
		yBot := rect.Max.Y - 1 - t
		for x := rect.Min.X; x < rect.Max.X; x++ {
			dst.Set(x, yTop, col)
			dst.Set(x, yBot, col)
		}
	}
	// Left and right edges
	for t := range thickness {
		xLeft := rect.Min.X + t
		xRight := rect.Max.X - 1 - t
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			dst.Set(xLeft, y, col)
			dst.Set(xRight, y, col)
		}
	}
}

// drawLabel writes text just above the box, or inside its top edge when
// the box touches the top of the image.
func drawLabel(dst *image.NRGBA, rect image.Rectangle, text string, col color.Color) {
	face := basicfont.Face7x13
	y := rect.Min.Y - 2
	if y < face.Metrics().Ascent.Ceil() {
		y = rect.Min.Y + face.Metrics().Height.Ceil()
	}
	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(rect.Min.X, y),
	}
	drawer.DrawString(text)
}
