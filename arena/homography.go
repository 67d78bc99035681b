package arena

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when corner correspondences do not determine a
// homography.
var ErrSingular = errors.New("singular homography system")

// Homography is a 3x3 projective transform with H[2][2] normalised to 1
type Homography [3][3]float64

// IdentityHomography returns the transform that leaves points unchanged
func IdentityHomography() Homography {
	return Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply maps p through the homography
func (h Homography) Apply(p Point) Point {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	return Point{
		X: (h[0][0]*p.X + h[0][1]*p.Y + h[0][2]) / w,
		Y: (h[1][0]*p.X + h[1][1]*p.Y + h[1][2]) / w,
	}
}

// IsIdentity reports whether every coefficient is within tol of identity
func (h Homography) IsIdentity(tol float64) bool {
	id := IdentityHomography()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(h[i][j]-id[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// Invert returns the inverse transform, normalised so H[2][2] is 1
func (h Homography) Invert() (Homography, error) {
	m := mat.NewDense(3, 3, []float64{
		h[0][0], h[0][1], h[0][2],
		h[1][0], h[1][1], h[1][2],
		h[2][0], h[2][1], h[2][2],
	})
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}
	scale := inv.At(2, 2)
	if math.Abs(scale) < ParallelEpsilon {
		scale = 1
	}

	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = inv.At(i, j) / scale
		}
	}
	return out, nil
}

// RotationFromAttitude builds Rx(-pitch) * Ry(-roll), the rotation that
// undoes the camera tilt.
func RotationFromAttitude(roll, pitch float64) *mat.Dense {
	cp, sp := math.Cos(-pitch), math.Sin(-pitch)
	cr, sr := math.Cos(-roll), math.Sin(-roll)

	rx := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, cp, -sp,
		0, sp, cp,
	})
	ry := mat.NewDense(3, 3, []float64{
		cr, 0, sr,
		0, 1, 0,
		-sr, 0, cr,
	})

	var r mat.Dense
	r.Mul(rx, ry)
	return &r
}

// ProjectionMatrix returns the 4x4 projection parameterised by focal
// length and frame size.
func ProjectionMatrix(f, width, height float64) *mat.Dense {
	p := mat.NewDense(4, 4, nil)
	p.Set(0, 0, 2*f/width)
	p.Set(1, 1, 2*f/height)
	p.Set(3, 2, -1)
	return p
}

// canonicalCorners are the unit square corners on the z = 0 plane
var canonicalCorners = [4][4]float64{
	{1, 1, 0, 1},
	{-1, 1, 0, 1},
	{-1, -1, 0, 1},
	{1, -1, 0, 1},
}

// PerspectiveCorners projects the canonical corners with (src) and without
// (dst) the attitude rotation and returns them in pixel coordinates.
func PerspectiveCorners(att Attitude, f, width, height float64) (src, dst [4]Point) {
	r3 := RotationFromAttitude(att.Roll, att.Pitch)
	r := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r.Set(i, j, r3.At(i, j))
		}
	}
	r.Set(3, 3, 1)

	p := ProjectionMatrix(f, width, height)

	project := func(v *mat.VecDense) Point {
		// translate by (0, 0, -1)
		v.SetVec(2, v.AtVec(2)-1)
		var out mat.VecDense
		out.MulVec(p, v)
		w := out.AtVec(3)
		x, y := out.AtVec(0)/w, out.AtVec(1)/w
		return Point{X: x*width/2 + width/2, Y: y*height/2 + height/2}
	}

	for i, c := range canonicalCorners {
		dst[i] = project(mat.NewVecDense(4, []float64{c[0], c[1], c[2], c[3]}))

		var rotated mat.VecDense
		rotated.MulVec(r, mat.NewVecDense(4, []float64{c[0], c[1], c[2], c[3]}))
		src[i] = project(&rotated)
	}
	return src, dst
}

// HomographyFromCorners solves the 8-unknown system mapping each src
// corner onto its dst corner.
func HomographyFromCorners(src, dst [4]Point) (Homography, error) {
	if src == dst {
		return IdentityHomography(), nil
	}

	a := mat.NewDense(8, 8, nil)
	b := mat.NewVecDense(8, nil)
	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		u, v := dst[i].X, dst[i].Y

		a.SetRow(2*i, []float64{x, y, 1, 0, 0, 0, -u * x, -u * y})
		b.SetVec(2*i, u)
		a.SetRow(2*i+1, []float64{0, 0, 0, x, y, 1, -v * x, -v * y})
		b.SetVec(2*i+1, v)
	}

	var h mat.VecDense
	if err := h.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrSingular, err)
	}

	return Homography{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// AttitudeHomography returns the transform that warps a frame taken at att
// into the level top-down view.
func AttitudeHomography(att Attitude, f, width, height float64) (Homography, error) {
	src, dst := PerspectiveCorners(att, f, width, height)
	return HomographyFromCorners(src, dst)
}
