package arena

import "math"

// ParallelEpsilon is the determinant magnitude below which two lines are
// treated as parallel.
const ParallelEpsilon = 1e-9

// Point represents a 2D coordinate in image space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec2 is a 2D vector used for line normals
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dot returns the dot product of v and o
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Scale returns v multiplied by s
func (v Vec2) Scale(s float64) Vec2 {
	return Vec2{X: v.X * s, Y: v.Y * s}
}

// Add returns v + o
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

// Norm returns the Euclidean length of v
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// Rect is an axis-aligned rectangle in rectified-image coordinates
type Rect struct {
	X      float64 `yaml:"x" json:"x"`
	Y      float64 `yaml:"y" json:"y"`
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// Max returns the exclusive bottom-right corner
func (r Rect) Max() Point {
	return Point{X: r.X + r.Width, Y: r.Y + r.Height}
}

// IsInsideRect reports whether p lies in r. The test is half-open: the
// left and top edges belong to the rectangle, the right and bottom edges
// do not.
func IsInsideRect(p Point, r Rect) bool {
	return p.X >= r.X && p.X < r.X+r.Width &&
		p.Y >= r.Y && p.Y < r.Y+r.Height
}

// LineIntersection solves
//
//	a.cos*x + a.sin*y = a.rho
//	b.cos*x + b.sin*y = b.rho
//
// and returns false when the normals are linearly dependent.
// Swapping a and b yields the identical point.
func LineIntersection(a, b Line) (Point, bool) {
	det := cross(a.Orientation.X, b.Orientation.Y, a.Orientation.Y, b.Orientation.X)
	if math.Abs(det) < ParallelEpsilon {
		return Point{}, false
	}
	x := cross(a.Rho, b.Orientation.Y, b.Rho, a.Orientation.Y) / det
	y := cross(a.Orientation.X, b.Rho, b.Orientation.X, a.Rho) / det
	return Point{X: x, Y: y}, true
}

// cross returns p*q - r*s with each product rounded, so the compiler
// cannot fuse them and the result is exactly antisymmetric.
func cross(p, q, r, s float64) float64 {
	return float64(p*q) - float64(r*s)
}
