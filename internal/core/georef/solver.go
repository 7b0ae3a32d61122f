// Package georef fits 2D affine transforms that anchor raster images to WGS 84
// coordinates from small ground-control-point sets, and derives overlay bounds
// and fit-quality metrics from them. All functions are pure and safe for
// concurrent use.
package georef

import (
	"errors"
	"fmt"
	"math"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/pkg/geospatial"
)

// MinControlPoints is the smallest point set that determines the six affine
// parameters.
const MinControlPoints = 3

// detTolerance is the threshold below which a determinant is treated as zero.
// It scales with pixel-coordinate magnitudes, so it is a practical cutoff
// rather than a physical bound; changing it changes which point configurations
// are accepted.
const detTolerance = 1e-10

var (
	// ErrInsufficientPoints means fewer than MinControlPoints control points
	// were supplied. Recoverable by collecting more points; never worth an
	// automatic retry, since the failure is deterministic in the input.
	ErrInsufficientPoints = errors.New("insufficient control points")

	// ErrDegenerateGeometry means the control points are collinear or
	// coincident, leaving the normal equations singular. Recoverable only by
	// moving points apart.
	ErrDegenerateGeometry = errors.New("degenerate control point geometry")
)

// Fit computes the affine transform that best maps the control points' pixel
// coordinates onto their geographic coordinates, by unweighted ordinary least
// squares. The two linear maps (lat and lng) share one 3x3 normal-equations
// matrix, solved in closed form by Cramer's rule with the determinant computed
// once. The system stays 3x3 regardless of point count, which is why the
// closed form is used instead of a QR/SVD decomposition; that trade-off holds
// for the small point sets this service sees and would need revisiting for
// large or ill-conditioned inputs.
//
// Points must be fully specified; filtering out partially placed points is the
// caller's job.
func Fit(points []domain.ControlPoint) (domain.AffineTransform, error) {
	if len(points) < MinControlPoints {
		return domain.AffineTransform{}, fmt.Errorf("%w: got %d, need at least %d",
			ErrInsufficientPoints, len(points), MinControlPoints)
	}

	var (
		n                  = float64(len(points))
		sx, sy             float64
		sxx, syy, sxy      float64
		slat, slatx, slaty float64
		slng, slngx, slngy float64
	)
	for _, p := range points {
		x, y := p.Image.X, p.Image.Y
		sx += x
		sy += y
		sxx += x * x
		syy += y * y
		sxy += x * y
		slat += p.Map.Lat
		slatx += p.Map.Lat * x
		slaty += p.Map.Lat * y
		slng += p.Map.Lng
		slngx += p.Map.Lng * x
		slngy += p.Map.Lng * y
	}

	// Determinant of [[n,sx,sy],[sx,sxx,sxy],[sy,sxy,syy]], shared by both
	// right-hand sides.
	det := n*(sxx*syy-sxy*sxy) - sx*(sx*syy-sxy*sy) + sy*(sx*sxy-sxx*sy)
	if math.Abs(det) < detTolerance {
		return domain.AffineTransform{}, fmt.Errorf("%w: normal equations determinant %.3e",
			ErrDegenerateGeometry, det)
	}

	a0, a1, a2 := solve3(det, n, sx, sy, sxx, sxy, syy, slat, slatx, slaty)
	b0, b1, b2 := solve3(det, n, sx, sy, sxx, sxy, syy, slng, slngx, slngy)

	return domain.AffineTransform{A0: a0, A1: a1, A2: a2, B0: b0, B1: b1, B2: b2}, nil
}

// solve3 applies Cramer's rule to the symmetric system
//
//	[ n   sx  sy  ] [c0]   [s0]
//	[ sx  sxx sxy ] [c1] = [s1]
//	[ sy  sxy syy ] [c2]   [s2]
//
// with the determinant already computed by the caller.
func solve3(det, n, sx, sy, sxx, sxy, syy, s0, s1, s2 float64) (c0, c1, c2 float64) {
	c0 = (s0*(sxx*syy-sxy*sxy) - sx*(s1*syy-sxy*s2) + sy*(s1*sxy-sxx*s2)) / det
	c1 = (n*(s1*syy-sxy*s2) - s0*(sx*syy-sxy*sy) + sy*(sx*s2-s1*sy)) / det
	c2 = (n*(sxx*s2-s1*sxy) - sx*(sx*s2-s1*sy) + s0*(sx*sxy-sxx*sy)) / det
	return c0, c1, c2
}

// Bounds projects the four image corners (0,0), (w,0), (w,h), (0,h) through
// the transform and returns the tightest axis-aligned envelope of the results.
// A transform encoding rotation or shear projects the image to a quadrilateral
// that is not axis-aligned; flattening it to a rectangle is the documented
// contract with overlay renderers that only accept axis-aligned bounds.
func Bounds(t domain.AffineTransform, width, height float64) domain.GeoBounds {
	corners := [4]domain.GeoPoint{
		t.Project(0, 0),
		t.Project(width, 0),
		t.Project(width, height),
		t.Project(0, height),
	}

	b := domain.GeoBounds{
		South: corners[0].Lat, North: corners[0].Lat,
		West: corners[0].Lng, East: corners[0].Lng,
	}
	for _, c := range corners[1:] {
		b.South = math.Min(b.South, c.Lat)
		b.North = math.Max(b.North, c.Lat)
		b.West = math.Min(b.West, c.Lng)
		b.East = math.Max(b.East, c.Lng)
	}
	return b
}

// Residuals returns, for each control point, the distance in meters between
// its true map position and where the transform projects its pixel position.
// Degree errors convert to meters at 111320 m per degree of latitude, with the
// longitude axis corrected by cos(lat) for meridian convergence. This is a
// planar small-extent approximation, not a geodesic; it degrades near the
// poles and across very large extents.
func Residuals(t domain.AffineTransform, points []domain.ControlPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		proj := t.Project(p.Image.X, p.Image.Y)
		latErrM := (proj.Lat - p.Map.Lat) * geospatial.MetersPerDegreeLat
		lngErrM := (proj.Lng - p.Map.Lng) * geospatial.LonMetersPerDegree(p.Map.Lat)
		out[i] = math.Hypot(latErrM, lngErrM)
	}
	return out
}

// RMSE is the root mean square of Residuals, in meters. Zero for an empty
// slice; callers gate fitting behind MinControlPoints, so in practice the
// metric always covers at least three points.
func RMSE(t domain.AffineTransform, points []domain.ControlPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, r := range Residuals(t, points) {
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(points)))
}

// Invert returns the geographic-to-pixel inverse of t. The returned transform
// takes (lat, lng) as its inputs; evaluate it with Unproject. The same
// determinant tolerance as Fit guards the 2x2 linear part, since a transform
// that collapses the image onto a line has no inverse.
func Invert(t domain.AffineTransform) (domain.AffineTransform, error) {
	det := t.A1*t.B2 - t.A2*t.B1
	if math.Abs(det) < detTolerance {
		return domain.AffineTransform{}, fmt.Errorf("%w: linear part is singular", ErrDegenerateGeometry)
	}

	inv := domain.AffineTransform{
		A1: t.B2 / det,
		A2: -t.A2 / det,
		B1: -t.B1 / det,
		B2: t.A1 / det,
	}
	inv.A0 = -(inv.A1*t.A0 + inv.A2*t.B0)
	inv.B0 = -(inv.B1*t.A0 + inv.B2*t.B0)
	return inv, nil
}

// Unproject evaluates an inverse transform from Invert at a geographic point,
// yielding the source pixel position.
func Unproject(inv domain.AffineTransform, p domain.GeoPoint) domain.PixelPoint {
	return domain.PixelPoint{
		X: inv.A0 + inv.A1*p.Lat + inv.A2*p.Lng,
		Y: inv.B0 + inv.B1*p.Lat + inv.B2*p.Lng,
	}
}

// Decompose reports the mean ground size of one pixel in meters and the
// rotation of the image x axis from geographic east in degrees, both measured
// at the image center where the planar approximation is tightest. Useful as a
// sanity check on a fit: a site plan scanned at 300 dpi should not come out
// with ten-meter pixels.
func Decompose(t domain.AffineTransform, width, height float64) (pixelSizeMeters, rotationDegrees float64) {
	center := t.Project(width/2, height/2)
	mLat := geospatial.MetersPerDegreeLat
	mLng := geospatial.LonMetersPerDegree(center.Lat)

	// Ground step vectors (east, north) for one pixel along each image axis.
	xe, xn := t.B1*mLng, t.A1*mLat
	ye, yn := t.B2*mLng, t.A2*mLat

	pixelSizeMeters = (math.Hypot(xe, xn) + math.Hypot(ye, yn)) / 2
	rotationDegrees = math.Atan2(xn, xe) * 180 / math.Pi
	return pixelSizeMeters, rotationDegrees
}

// Extent returns the maximum pairwise great-circle distance in meters between
// the control points' map positions. Large extents flag fits where the planar
// residual approximation is being stretched.
func Extent(points []domain.ControlPoint) float64 {
	var max float64
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			d := geospatial.Haversine(
				points[i].Map.Lat, points[i].Map.Lng,
				points[j].Map.Lat, points[j].Map.Lng,
			)
			if d > max {
				max = d
			}
		}
	}
	return max
}
