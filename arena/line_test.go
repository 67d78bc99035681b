package arena

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFromPolar(t *testing.T) {
	l := LineFromPolar(10, math.Pi/2)
	assert.InDelta(t, 0, l.Orientation.X, 1e-12)
	assert.InDelta(t, 1, l.Orientation.Y, 1e-12)
	assert.InDelta(t, math.Pi/2, l.Theta(), 1e-12)
	assert.Equal(t, 10.0, l.Rho)
}

func TestInverseOrientation_SamePoints(t *testing.T) {
	l := LineFromPolar(120, 0.7)
	inv := l
	inv.InverseOrientation()

	assert.Equal(t, -l.Rho, inv.Rho)
	assert.Equal(t, l.Orientation.Scale(-1), inv.Orientation)

	for _, x := range []float64{-50, 0, 33, 400} {
		// point on l with the given x
		y := (l.Rho - x*l.Orientation.X) / l.Orientation.Y
		p := Point{X: x, Y: y}
		assert.InDelta(t, 0, l.Distance(p), 1e-9)
		assert.InDelta(t, 0, inv.Distance(p), 1e-9)
	}

	inv.InverseOrientation()
	assert.Equal(t, l, inv)
}

func TestLineSegment(t *testing.T) {
	bounds := Rect{Width: 640, Height: 480}

	tests := []struct {
		name   string
		line   Line
		wantOK bool
		a, b   Point
	}{
		{"vertical", NewLine(100, Vec2{X: 1}), true, Point{X: 100, Y: 0}, Point{X: 100, Y: 480}},
		{"horizontal", NewLine(240, Vec2{Y: 1}), true, Point{X: 0, Y: 240}, Point{X: 640, Y: 240}},
		{"flipped vertical", NewLine(-100, Vec2{X: -1}), true, Point{X: 100, Y: 0}, Point{X: 100, Y: 480}},
		{"outside", NewLine(1000, Vec2{X: 1}), false, Point{}, Point{}},
		{"zero normal", NewLine(0, Vec2{}), false, Point{}, Point{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, ok := tt.line.Segment(bounds)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.InDelta(t, tt.a.X, a.X, 1e-9)
			assert.InDelta(t, tt.a.Y, a.Y, 1e-9)
			assert.InDelta(t, tt.b.X, b.X, 1e-9)
			assert.InDelta(t, tt.b.Y, b.Y, 1e-9)
		})
	}
}

func TestLineSegment_ThroughCorner(t *testing.T) {
	// diagonal through (0,0) and (100,100): corners must not be duplicated
	n := 1 / math.Sqrt2
	l := NewLine(0, Vec2{X: n, Y: -n})
	a, b, ok := l.Segment(Rect{Width: 100, Height: 100})
	require.True(t, ok)
	assert.InDelta(t, 0, a.X, 1e-9)
	assert.InDelta(t, 0, a.Y, 1e-9)
	assert.InDelta(t, 100, b.X, 1e-9)
	assert.InDelta(t, 100, b.Y, 1e-9)
}
