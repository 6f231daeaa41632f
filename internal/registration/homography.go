package registration

import (
	"fmt"
	"image"
	"math"
)

// singularEpsilon is the magnitude below which a determinant or projective
// divisor is treated as zero.
const singularEpsilon = 1e-12

// Homography is a 3x3 projective transform, row major. In this package it
// always maps candidate image coordinates to template coordinates.
type Homography [3][3]float64

// Identity returns the identity transform.
func Identity() Homography {
	return Homography{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// Apply maps (x, y) through h. It reports false when the point maps to
// infinity.
func (h Homography) Apply(x, y float64) (float64, float64, bool) {
	w := h[2][0]*x + h[2][1]*y + h[2][2]
	if math.Abs(w) < singularEpsilon {
		return 0, 0, false
	}
	return (h[0][0]*x + h[0][1]*y + h[0][2]) / w,
		(h[1][0]*x + h[1][1]*y + h[1][2]) / w,
		true
}

// LinearDet is the determinant of the upper-left 2x2 block, the local area
// scale factor of the transform.
func (h Homography) LinearDet() float64 {
	return h[0][0]*h[1][1] - h[0][1]*h[1][0]
}

// Det is the determinant of the full matrix.
func (h Homography) Det() float64 {
	return h[0][0]*(h[1][1]*h[2][2]-h[1][2]*h[2][1]) -
		h[0][1]*(h[1][0]*h[2][2]-h[1][2]*h[2][0]) +
		h[0][2]*(h[1][0]*h[2][1]-h[1][1]*h[2][0])
}

// Inverse returns the inverse transform, or false when h is singular.
func (h Homography) Inverse() (Homography, bool) {
	det := h.Det()
	if math.Abs(det) < singularEpsilon || math.IsNaN(det) || math.IsInf(det, 0) {
		return Homography{}, false
	}

	var inv Homography
	inv[0][0] = (h[1][1]*h[2][2] - h[1][2]*h[2][1]) / det
	inv[0][1] = (h[0][2]*h[2][1] - h[0][1]*h[2][2]) / det
	inv[0][2] = (h[0][1]*h[1][2] - h[0][2]*h[1][1]) / det
	inv[1][0] = (h[1][2]*h[2][0] - h[1][0]*h[2][2]) / det
	inv[1][1] = (h[0][0]*h[2][2] - h[0][2]*h[2][0]) / det
	inv[1][2] = (h[0][2]*h[1][0] - h[0][0]*h[1][2]) / det
	inv[2][0] = (h[1][0]*h[2][1] - h[1][1]*h[2][0]) / det
	inv[2][1] = (h[0][1]*h[2][0] - h[0][0]*h[2][1]) / det
	inv[2][2] = (h[0][0]*h[1][1] - h[0][1]*h[1][0]) / det
	return inv, true
}

// Point is a sub-pixel image coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Corners returns the four corners of a w x h image, clockwise from the origin.
func Corners(size image.Point) [4]Point {
	w, h := float64(size.X), float64(size.Y)
	return [4]Point{{0, 0}, {w, 0}, {w, h}, {0, h}}
}

// ValidateHomography checks that h, mapping a candidate of size candidate onto
// a template of size template, is geometrically plausible.
//
// The checks, in order:
//
//  1. Scale: LinearDet must lie within the relative band around the expected
//     scale (template area / candidate area) or, failing that, within the
//     absolute band.
//  2. Invertibility.
//  3. The template corners mapped back into the candidate must form a convex
//     quadrilateral.
//  4. The area of that quadrilateral must lie within the area ratio band of
//     the candidate area.
//
// A failure is returned wrapped in ErrHomographyInvalid.
func ValidateHomography(h Homography, candidate, template image.Point, limits ValidationLimits) error {
	candidateArea := float64(candidate.X) * float64(candidate.Y)
	templateArea := float64(template.X) * float64(template.Y)

	expected := 1.0
	if candidateArea > 0 {
		expected = templateArea / candidateArea
	}

	det := h.LinearDet()
	inRelative := det >= limits.RelativeScaleMin*expected && det <= limits.RelativeScaleMax*expected
	inAbsolute := det >= limits.AbsoluteScaleMin && det <= limits.AbsoluteScaleMax
	if !inRelative && !inAbsolute {
		return fmt.Errorf("%w: determinant %.3f outside bands (expected %.3f)", ErrHomographyInvalid, det, expected)
	}

	inv, ok := h.Inverse()
	if !ok {
		return fmt.Errorf("%w: singular matrix", ErrHomographyInvalid)
	}

	var quad [4]Point
	for i, c := range Corners(template) {
		x, y, ok := inv.Apply(c.X, c.Y)
		if !ok {
			return fmt.Errorf("%w: template corner (%.0f,%.0f) maps to infinity", ErrHomographyInvalid, c.X, c.Y)
		}
		quad[i] = Point{X: x, Y: y}
	}

	if !isConvex(quad) {
		return fmt.Errorf("%w: projected template outline is not convex", ErrHomographyInvalid)
	}

	area := polygonArea(quad[:])
	if area < candidateArea*limits.AreaRatioMin {
		return fmt.Errorf("%w: projected area %.0f too small for candidate area %.0f", ErrHomographyInvalid, area, candidateArea)
	}
	if area > candidateArea*limits.AreaRatioMax {
		return fmt.Errorf("%w: projected area %.0f too large for candidate area %.0f", ErrHomographyInvalid, area, candidateArea)
	}

	return nil
}

// isConvex reports whether the closed polygon turns strictly the same way at
// every vertex. A self-intersecting quad turns both ways.
func isConvex(pts [4]Point) bool {
	sign := 0
	for i := range pts {
		a, b, c := pts[i], pts[(i+1)%4], pts[(i+2)%4]
		cross := (b.X-a.X)*(c.Y-b.Y) - (b.Y-a.Y)*(c.X-b.X)
		switch {
		case math.IsNaN(cross) || cross == 0:
			return false
		case cross > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		default:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return true
}

// polygonArea returns the absolute shoelace area of a closed polygon.
func polygonArea(pts []Point) float64 {
	var sum float64
	for i := range pts {
		j := (i + 1) % len(pts)
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return math.Abs(sum) / 2
}
