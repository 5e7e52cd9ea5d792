// Package geometry provides box and point primitives shared by the
// matching, encoding and suppression stages.
package geometry

import (
	"image"
)

// Box is an axis-aligned bounding box in corner form.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// CenterBox is an axis-aligned bounding box in center form
// (center coordinates plus width and height).
type CenterBox struct {
	CX float64
	CY float64
	W  float64
	H  float64
}

// NewBox constructs a Box from two corner coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area. Boxes with inverted corners yield a
// negative area; IoU treats those as empty.
func (b Box) Area() float64 { return (b.MaxX - b.MinX) * (b.MaxY - b.MinY) }

// Center converts the box to center form.
func (b Box) Center() CenterBox {
	return CenterBox{
		CX: (b.MinX + b.MaxX) / 2,
		CY: (b.MinY + b.MaxY) / 2,
		W:  b.MaxX - b.MinX,
		H:  b.MaxY - b.MinY,
	}
}

// Corner converts the box to corner form.
func (c CenterBox) Corner() Box {
	return Box{
		MinX: c.CX - c.W/2,
		MinY: c.CY - c.H/2,
		MaxX: c.CX + c.W/2,
		MaxY: c.CY + c.H/2,
	}
}

// ToCenterForm converts a slice of corner-form boxes to center form.
func ToCenterForm(boxes []Box) []CenterBox {
	out := make([]CenterBox, len(boxes))
	for i, b := range boxes {
		out[i] = b.Center()
	}
	return out
}

// ToCornerForm converts a slice of center-form boxes to corner form.
func ToCornerForm(boxes []CenterBox) []Box {
	out := make([]Box, len(boxes))
	for i, c := range boxes {
		out[i] = c.Corner()
	}
	return out
}

// DenormalizeBox maps a normalized box onto a pixel grid of the given
// size. Coordinates are truncated toward zero, not rounded; pixel
// indices derived from boxes depend on this exact rule.
func DenormalizeBox(b Box, width, height int) image.Rectangle {
	w := float64(width)
	h := float64(height)
	return image.Rectangle{
		Min: image.Pt(int(b.MinX*w), int(b.MinY*h)),
		Max: image.Pt(int(b.MaxX*w), int(b.MaxY*h)),
	}
}
