package state

// Rect is an axis-aligned rectangle anchored at its top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// CenteredRect builds a square of the given size around (cx, cy).
func CenteredRect(cx, cy, size float64) Rect {
	half := size / 2
	return Rect{X: cx - half, Y: cy - half, W: size, H: size}
}

// Overlaps is strict: rectangles that only share an edge do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && r.X+r.W > o.X && r.Y < o.Y+o.H && r.Y+r.H > o.Y
}

// Within reports whether r lies entirely inside a width×height area at the origin.
func (r Rect) Within(width, height float64) bool {
	return r.X >= 0 && r.Y >= 0 && r.X+r.W <= width && r.Y+r.H <= height
}

func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}
