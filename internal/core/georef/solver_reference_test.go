package georef_test

import (
	"errors"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
)

// qrFit solves the same least-squares problem with a QR decomposition, as a
// numerically independent reference for the closed-form solver.
func qrFit(t *testing.T, points []domain.ControlPoint) domain.AffineTransform {
	t.Helper()

	n := len(points)
	design := mat.NewDense(n, 3, nil)
	lat := mat.NewVecDense(n, nil)
	lng := mat.NewVecDense(n, nil)
	for i, p := range points {
		design.Set(i, 0, 1)
		design.Set(i, 1, p.Image.X)
		design.Set(i, 2, p.Image.Y)
		lat.SetVec(i, p.Map.Lat)
		lng.SetVec(i, p.Map.Lng)
	}

	var qr mat.QR
	qr.Factorize(design)

	var ca, cb mat.VecDense
	if err := qr.SolveVecTo(&ca, false, lat); err != nil {
		t.Fatalf("qr solve lat: %v", err)
	}
	if err := qr.SolveVecTo(&cb, false, lng); err != nil {
		t.Fatalf("qr solve lng: %v", err)
	}

	return domain.AffineTransform{
		A0: ca.AtVec(0), A1: ca.AtVec(1), A2: ca.AtVec(2),
		B0: cb.AtVec(0), B1: cb.AtVec(1), B2: cb.AtVec(2),
	}
}

func TestFit_MatchesQRReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 50; trial++ {
		n := 3 + rng.Intn(6)
		points := make([]domain.ControlPoint, n)
		for i := range points {
			x := rng.Float64() * 2000
			y := rng.Float64() * 1500
			base := refTransform.Project(x, y)
			points[i] = domain.ControlPoint{
				Image: domain.PixelPoint{X: x, Y: y},
				Map: domain.GeoPoint{
					// Jitter the targets so every trial is a genuine
					// least-squares problem, not an exact interpolation.
					Lat: base.Lat + (rng.Float64()-0.5)*2e-6,
					Lng: base.Lng + (rng.Float64()-0.5)*2e-6,
				},
			}
		}

		got, err := georef.Fit(points)
		if errors.Is(err, georef.ErrDegenerateGeometry) {
			continue // rare near-collinear draw
		}
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}

		want := qrFit(t, points)

		// Compare projections rather than raw parameters: the intercept and
		// slopes trade off against each other, but the fitted surfaces must
		// agree everywhere on the image.
		probes := []domain.PixelPoint{
			{X: 0, Y: 0}, {X: 2000, Y: 0}, {X: 0, Y: 1500},
			{X: 2000, Y: 1500}, {X: 1000, Y: 750},
		}
		for _, px := range probes {
			d := groundDistance(got.Project(px.X, px.Y), want.Project(px.X, px.Y))
			if d > 1e-3 {
				t.Errorf("trial %d: solvers disagree by %g m at (%v,%v)", trial, d, px.X, px.Y)
			}
		}
	}
}
