package georef_test

import (
	"errors"
	"math"
	"testing"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
)

// refTransform is the fixture used to synthesize consistent control points: a
// site plan of roughly 8 cm per pixel anchored near 40.75N 14.49E with a
// slight rotation.
var refTransform = domain.AffineTransform{
	A0: 40.7495, A1: -1.2e-7, A2: -7.3e-7,
	B0: 14.4865, B1: 9.6e-7, B2: -1.5e-7,
}

func pointsThrough(tr domain.AffineTransform, pixels ...domain.PixelPoint) []domain.ControlPoint {
	pts := make([]domain.ControlPoint, len(pixels))
	for i, px := range pixels {
		pts[i] = domain.ControlPoint{Image: px, Map: tr.Project(px.X, px.Y)}
	}
	return pts
}

// groundDistance is the planar meter distance between two projections, the
// same conversion the solver reports residuals in.
func groundDistance(a, b domain.GeoPoint) float64 {
	latM := (a.Lat - b.Lat) * 111320.0
	lngM := (a.Lng - b.Lng) * 111320.0 * math.Cos(a.Lat*math.Pi/180)
	return math.Hypot(latM, lngM)
}

// --- Fitting ---

func TestFit_ExactWithThreePoints(t *testing.T) {
	points := []domain.ControlPoint{
		{Image: domain.PixelPoint{X: 12.5, Y: 88.2}, Map: domain.GeoPoint{Lat: 40.74931, Lng: 14.48677}},
		{Image: domain.PixelPoint{X: 403.0, Y: 91.7}, Map: domain.GeoPoint{Lat: 40.74928, Lng: 14.48713}},
		{Image: domain.PixelPoint{X: 210.4, Y: 612.9}, Map: domain.GeoPoint{Lat: 40.74887, Lng: 14.48691}},
	}

	tr, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if rmse := georef.RMSE(tr, points); rmse >= 1e-6 {
		t.Errorf("three non-collinear points must fit exactly, got RMSE %g m", rmse)
	}
}

func TestFit_RecoversKnownTransform(t *testing.T) {
	points := pointsThrough(refTransform,
		domain.PixelPoint{X: 0, Y: 0},
		domain.PixelPoint{X: 1200, Y: 40},
		domain.PixelPoint{X: 80, Y: 900},
		domain.PixelPoint{X: 1150, Y: 870},
	)

	tr, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	probes := []domain.PixelPoint{{X: 0, Y: 0}, {X: 600, Y: 450}, {X: 1200, Y: 900}, {X: 37, Y: 512}}
	for _, px := range probes {
		d := groundDistance(tr.Project(px.X, px.Y), refTransform.Project(px.X, px.Y))
		if d > 1e-5 {
			t.Errorf("projection at (%v,%v) off by %g m", px.X, px.Y, d)
		}
	}
}

func TestFit_InsufficientPoints(t *testing.T) {
	all := pointsThrough(refTransform,
		domain.PixelPoint{X: 0, Y: 0},
		domain.PixelPoint{X: 100, Y: 0},
	)

	for n := 0; n <= 2; n++ {
		_, err := georef.Fit(all[:n])
		if !errors.Is(err, georef.ErrInsufficientPoints) {
			t.Errorf("%d points: expected ErrInsufficientPoints, got %v", n, err)
		}
	}
}

func TestFit_CollinearPointsDegenerate(t *testing.T) {
	points := []domain.ControlPoint{
		{Image: domain.PixelPoint{X: 0, Y: 0}, Map: domain.GeoPoint{Lat: 40.7490, Lng: 14.4860}},
		{Image: domain.PixelPoint{X: 10, Y: 10}, Map: domain.GeoPoint{Lat: 40.7491, Lng: 14.4861}},
		{Image: domain.PixelPoint{X: 20, Y: 20}, Map: domain.GeoPoint{Lat: 40.7492, Lng: 14.4862}},
	}

	_, err := georef.Fit(points)
	if !errors.Is(err, georef.ErrDegenerateGeometry) {
		t.Errorf("expected ErrDegenerateGeometry for collinear pixels, got %v", err)
	}
}

func TestFit_CoincidentPointsDegenerate(t *testing.T) {
	px := domain.PixelPoint{X: 55, Y: 42}
	points := []domain.ControlPoint{
		{Image: px, Map: domain.GeoPoint{Lat: 40.7490, Lng: 14.4860}},
		{Image: px, Map: domain.GeoPoint{Lat: 40.7491, Lng: 14.4861}},
		{Image: px, Map: domain.GeoPoint{Lat: 40.7492, Lng: 14.4862}},
	}

	_, err := georef.Fit(points)
	if !errors.Is(err, georef.ErrDegenerateGeometry) {
		t.Errorf("expected ErrDegenerateGeometry for coincident pixels, got %v", err)
	}
}

func TestFit_ScalingTranslationBounds(t *testing.T) {
	// Pure scaling and translation: image x maps to lng, image y to lat.
	points := []domain.ControlPoint{
		{Image: domain.PixelPoint{X: 0, Y: 0}, Map: domain.GeoPoint{Lat: 0, Lng: 0}},
		{Image: domain.PixelPoint{X: 100, Y: 0}, Map: domain.GeoPoint{Lat: 0, Lng: 0.001}},
		{Image: domain.PixelPoint{X: 100, Y: 100}, Map: domain.GeoPoint{Lat: 0.001, Lng: 0.001}},
		{Image: domain.PixelPoint{X: 0, Y: 100}, Map: domain.GeoPoint{Lat: 0.001, Lng: 0}},
	}

	tr, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := georef.Bounds(tr, 100, 100)
	for _, check := range []struct {
		name string
		got  float64
		want float64
	}{
		{"south", b.South, 0},
		{"west", b.West, 0},
		{"north", b.North, 0.001},
		{"east", b.East, 0.001},
	} {
		if math.Abs(check.got-check.want) > 1e-9 {
			t.Errorf("%s: got %v, want %v", check.name, check.got, check.want)
		}
	}
}

func TestFit_InconsistentFourthPointRaisesRMSE(t *testing.T) {
	exact := pointsThrough(refTransform,
		domain.PixelPoint{X: 0, Y: 0},
		domain.PixelPoint{X: 400, Y: 0},
		domain.PixelPoint{X: 0, Y: 300},
	)

	tr3, err := georef.Fit(exact)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rmse3 := georef.RMSE(tr3, exact)

	fourth := domain.ControlPoint{
		Image: domain.PixelPoint{X: 400, Y: 300},
		Map:   refTransform.Project(400, 300),
	}
	fourth.Map.Lat += 0.0004 // ~45 m off the plane of the first three

	all := append(exact, fourth)
	tr4, err := georef.Fit(all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rmse4 := georef.RMSE(tr4, all)

	if rmse4 <= rmse3 {
		t.Errorf("inconsistent fourth point must raise RMSE: got %g m after %g m", rmse4, rmse3)
	}
	if rmse4 < 5 {
		t.Errorf("expected RMSE on the order of meters, got %g m", rmse4)
	}
}

func TestFit_OrderInvariance(t *testing.T) {
	points := pointsThrough(refTransform,
		domain.PixelPoint{X: 0, Y: 0},
		domain.PixelPoint{X: 980, Y: 15},
		domain.PixelPoint{X: 25, Y: 760},
		domain.PixelPoint{X: 940, Y: 790},
		domain.PixelPoint{X: 505, Y: 388},
	)
	// Make the fit non-trivial so parameters are not exactly reproduced from
	// the fixture either way.
	points[4].Map.Lat += 3e-6

	shuffled := []domain.ControlPoint{points[3], points[0], points[4], points[1], points[2]}

	tr1, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tr2, err := georef.Fit(shuffled)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pairs := []struct {
		name string
		a, b float64
	}{
		{"a0", tr1.A0, tr2.A0}, {"a1", tr1.A1, tr2.A1}, {"a2", tr1.A2, tr2.A2},
		{"b0", tr1.B0, tr2.B0}, {"b1", tr1.B1, tr2.B1}, {"b2", tr1.B2, tr2.B2},
	}
	for _, p := range pairs {
		tol := 1e-9 * math.Max(1, math.Abs(p.a))
		if math.Abs(p.a-p.b) > tol {
			t.Errorf("%s differs across input orders: %v vs %v", p.name, p.a, p.b)
		}
	}
}

// --- Bounds ---

func TestBounds_OrderedUnderRotation(t *testing.T) {
	// A transform with strong rotation and shear; corner projections land in
	// no particular order.
	rotated := domain.AffineTransform{
		A0: 40.7495, A1: 6.4e-7, A2: -7.7e-7,
		B0: 14.4865, B1: 7.7e-7, B2: 6.4e-7,
	}

	points := pointsThrough(rotated,
		domain.PixelPoint{X: 10, Y: 20},
		domain.PixelPoint{X: 800, Y: 35},
		domain.PixelPoint{X: 40, Y: 600},
		domain.PixelPoint{X: 790, Y: 580},
	)

	tr, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := georef.Bounds(tr, 800, 600)
	if b.South > b.North {
		t.Errorf("south %v > north %v", b.South, b.North)
	}
	if b.West > b.East {
		t.Errorf("west %v > east %v", b.West, b.East)
	}
	if !b.Valid() {
		t.Errorf("bounds invalid: %+v", b)
	}
}

// --- Residuals ---

func TestRMSE_EmptyPointsZero(t *testing.T) {
	if got := georef.RMSE(refTransform, nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %v", got)
	}
}

func TestResiduals_PerPointOrder(t *testing.T) {
	points := pointsThrough(refTransform,
		domain.PixelPoint{X: 0, Y: 0},
		domain.PixelPoint{X: 500, Y: 0},
		domain.PixelPoint{X: 0, Y: 500},
		domain.PixelPoint{X: 500, Y: 500},
	)
	tr, err := georef.Fit(points)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := georef.Residuals(tr, points)
	if len(res) != len(points) {
		t.Fatalf("expected %d residuals, got %d", len(points), len(res))
	}
	for i, r := range res {
		if r < 0 || r > 1e-6 {
			t.Errorf("residual %d: expected near zero, got %v", i, r)
		}
	}
}

// --- Inverse ---

func TestInvert_RoundTrip(t *testing.T) {
	inv, err := georef.Invert(refTransform)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, px := range []domain.PixelPoint{{X: 0, Y: 0}, {X: 123.4, Y: 567.8}, {X: 2000, Y: 5}} {
		back := georef.Unproject(inv, refTransform.Project(px.X, px.Y))
		if math.Abs(back.X-px.X) > 1e-6 || math.Abs(back.Y-px.Y) > 1e-6 {
			t.Errorf("round trip of (%v,%v) returned (%v,%v)", px.X, px.Y, back.X, back.Y)
		}
	}
}

func TestInvert_SingularLinearPart(t *testing.T) {
	flat := domain.AffineTransform{A0: 40.75, B0: 14.48} // zero linear part
	_, err := georef.Invert(flat)
	if !errors.Is(err, georef.ErrDegenerateGeometry) {
		t.Errorf("expected ErrDegenerateGeometry, got %v", err)
	}
}

// --- Decomposition and extent ---

func TestDecompose_NorthUpPlan(t *testing.T) {
	// North-up plan at the equator, half-meter pixels: y grows south, x east.
	const size = 0.5
	tr := domain.AffineTransform{
		A0: 0, A1: 0, A2: -size / 111320.0,
		B0: 14.4865, B1: size / 111320.0, B2: 0,
	}

	pixelSize, rotation := georef.Decompose(tr, 1000, 1000)
	if math.Abs(pixelSize-size) > 1e-6 {
		t.Errorf("pixel size: got %v, want %v", pixelSize, size)
	}
	if math.Abs(rotation) > 1e-6 {
		t.Errorf("rotation: got %v, want 0", rotation)
	}
}

func TestExtent_MaxPairwise(t *testing.T) {
	// Two points ~1113 m apart along a meridian, third in between.
	points := []domain.ControlPoint{
		{Map: domain.GeoPoint{Lat: 40.7400, Lng: 14.4865}},
		{Map: domain.GeoPoint{Lat: 40.7500, Lng: 14.4865}},
		{Map: domain.GeoPoint{Lat: 40.7450, Lng: 14.4865}},
	}

	extent := georef.Extent(points)
	if extent < 1080 || extent > 1150 {
		t.Errorf("expected ~1113 m extent, got %v", extent)
	}
}
