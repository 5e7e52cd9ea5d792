package render

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette returns n visually spaced opaque colors. The ramp walks the
// hue circle at fixed chroma and lightness, so the same n always yields
// the same colors.
func Palette(n int) []color.RGBA {
	if n <= 0 {
		return nil
	}
	colors := make([]color.RGBA, n)
	for i := range colors {
		hue := float64(i) * 360.0 / float64(n)
		c := colorful.Hcl(hue, 0.5, 0.6).Clamped()
		r, g, b := c.RGB255()
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}
