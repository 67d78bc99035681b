package arena

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
)

// rectBound converts a Rect to an orb bound
func rectBound(r Rect) orb.Bound {
	m := r.Max()
	return orb.Bound{Min: orb.Point{r.X, r.Y}, Max: orb.Point{m.X, m.Y}}
}

// LineToLineString returns the part of l that lies within bounds.
// The result is empty when the line misses the rectangle.
func LineToLineString(l Line, bounds Rect) orb.LineString {
	// Extend past bounds on every side, then clip back to the exact rectangle.
	pad := 1 + math.Max(bounds.Width, bounds.Height)
	outer := Rect{X: bounds.X - pad, Y: bounds.Y - pad, Width: bounds.Width + 2*pad, Height: bounds.Height + 2*pad}
	a, b, ok := l.Segment(outer)
	if !ok {
		return nil
	}

	clipped := clip.LineString(rectBound(bounds), orb.LineString{{a.X, a.Y}, {b.X, b.Y}})
	if len(clipped) == 0 {
		return nil
	}
	return clipped[0]
}

// LinesToFeatureCollection exports boundary lines and arena corners in
// image coordinates. Lines that miss bounds are omitted.
func LinesToFeatureCollection(lines []Line, corners []Point, bounds Rect) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for i, l := range lines {
		ls := LineToLineString(l, bounds)
		if len(ls) < 2 {
			continue
		}
		f := geojson.NewFeature(ls)
		f.Properties["kind"] = "boundary"
		f.Properties["index"] = i
		f.Properties["rho"] = l.Rho
		f.Properties["theta"] = l.Theta()
		fc.Append(f)
	}

	for i, c := range corners {
		f := geojson.NewFeature(orb.Point{c.X, c.Y})
		f.Properties["kind"] = "corner"
		f.Properties["index"] = i
		fc.Append(f)
	}

	return fc
}
