package math

// Vec2 represents a 2D vector
type Vec2 struct {
	X, Y float32
}

// Rect represents an axis-aligned rectangle in pixel space.
type Rect struct {
	Min Vec2
	Max Vec2
}

func (r Rect) Width() float32 {
	return r.Max.X - r.Min.X
}

func (r Rect) Height() float32 {
	return r.Max.Y - r.Min.Y
}
