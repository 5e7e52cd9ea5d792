package geometry

// FlipLeftRight mirrors boxes horizontally inside an image of the given
// width. The input slice is left untouched.
func FlipLeftRight(boxes []Box, width float64) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = Box{
			MinX: width - b.MaxX,
			MinY: b.MinY,
			MaxX: width - b.MinX,
			MaxY: b.MaxY,
		}
	}
	return out
}

// ToImageCoordinates scales normalized boxes up to pixel coordinates.
func ToImageCoordinates(boxes []Box, width, height float64) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = Box{
			MinX: b.MinX * width,
			MinY: b.MinY * height,
			MaxX: b.MaxX * width,
			MaxY: b.MaxY * height,
		}
	}
	return out
}

// ToNormalizedCoordinates scales pixel boxes down to the unit square.
func ToNormalizedCoordinates(boxes []Box, width, height float64) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = Box{
			MinX: b.MinX / width,
			MinY: b.MinY / height,
			MaxX: b.MaxX / width,
			MaxY: b.MaxY / height,
		}
	}
	return out
}

// Offset translates boxes by (dx, dy).
func Offset(boxes []Box, dx, dy float64) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = Box{
			MinX: b.MinX + dx,
			MinY: b.MinY + dy,
			MaxX: b.MaxX + dx,
			MaxY: b.MaxY + dy,
		}
	}
	return out
}

// Clip clamps boxes into the [0,width] x [0,height] region.
func Clip(boxes []Box, width, height float64) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = Box{
			MinX: clamp(b.MinX, 0, width),
			MinY: clamp(b.MinY, 0, height),
			MaxX: clamp(b.MaxX, 0, width),
			MaxY: clamp(b.MaxY, 0, height),
		}
	}
	return out
}

// MakeSquare expands the shorter side of a box around its center so
// both sides equal the longer one.
func MakeSquare(b Box) Box {
	c := b.Center()
	side := max(c.W, c.H)
	return CenterBox{CX: c.CX, CY: c.CY, W: side, H: side}.Corner()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
