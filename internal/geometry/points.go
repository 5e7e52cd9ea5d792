package geometry

// Point3 is a point in 3D space.
type Point3 struct {
	X float64
	Y float64
	Z float64
}

// BoundingCorners returns the axis-aligned minimum and maximum corners
// of a point cloud. Empty input yields two zero points.
func BoundingCorners(points []Point3) (Point3, Point3) {
	if len(points) == 0 {
		return Point3{}, Point3{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		if p.X < lo.X {
			lo.X = p.X
		}
		if p.Y < lo.Y {
			lo.Y = p.Y
		}
		if p.Z < lo.Z {
			lo.Z = p.Z
		}
		if p.X > hi.X {
			hi.X = p.X
		}
		if p.Y > hi.Y {
			hi.Y = p.Y
		}
		if p.Z > hi.Z {
			hi.Z = p.Z
		}
	}
	return lo, hi
}
