package arena

import "math"

// Line is an infinite 2D line in normal form: every point p on it
// satisfies p.X*cos(theta) + p.Y*sin(theta) = Rho, where
// Orientation = (cos(theta), sin(theta)).
//
// A line and its InverseOrientation describe the same set of points.
// Comparisons and averages must first align signs against a reference.
type Line struct {
	Rho         float64 `json:"rho"`
	Orientation Vec2    `json:"orientation"`
}

// NewLine creates a line from rho and a normal vector
func NewLine(rho float64, orientation Vec2) Line {
	return Line{Rho: rho, Orientation: orientation}
}

// LineFromPolar creates a line from a (rho, theta) detection pair
func LineFromPolar(rho, theta float64) Line {
	return Line{Rho: rho, Orientation: Vec2{X: math.Cos(theta), Y: math.Sin(theta)}}
}

// InverseOrientation flips the normal and the sign of rho in place
func (l *Line) InverseOrientation() {
	l.Orientation = l.Orientation.Scale(-1)
	l.Rho = -l.Rho
}

// Theta returns the normal angle in radians
func (l Line) Theta() float64 {
	return math.Atan2(l.Orientation.Y, l.Orientation.X)
}

// Distance returns the signed distance from p to the line, scaled by the
// norm of the orientation vector.
func (l Line) Distance(p Point) float64 {
	return p.X*l.Orientation.X + p.Y*l.Orientation.Y - l.Rho
}

// Segment clips the line to bounds and returns the two end points.
// ok is false when the line misses the rectangle.
func (l Line) Segment(bounds Rect) (Point, Point, bool) {
	n := l.Orientation
	if n.Norm() == 0 {
		return Point{}, Point{}, false
	}
	maxP := bounds.Max()
	var pts []Point
	add := func(p Point) {
		if p.X < bounds.X-1e-9 || p.X > maxP.X+1e-9 || p.Y < bounds.Y-1e-9 || p.Y > maxP.Y+1e-9 {
			return
		}
		for _, q := range pts {
			if math.Abs(q.X-p.X) < 1e-9 && math.Abs(q.Y-p.Y) < 1e-9 {
				return
			}
		}
		pts = append(pts, p)
	}
	// Vertical edges x = const
	if math.Abs(n.Y) > 1e-12 {
		for _, x := range []float64{bounds.X, maxP.X} {
			add(Point{X: x, Y: (l.Rho - x*n.X) / n.Y})
		}
	}
	// Horizontal edges y = const
	if math.Abs(n.X) > 1e-12 {
		for _, y := range []float64{bounds.Y, maxP.Y} {
			add(Point{X: (l.Rho - y*n.Y) / n.X, Y: y})
		}
	}
	if len(pts) < 2 {
		return Point{}, Point{}, false
	}
	return pts[0], pts[1], true
}
