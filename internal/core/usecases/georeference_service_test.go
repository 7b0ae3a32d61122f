package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
	"github.com/digmaps/groundcontrol/internal/core/usecases"
)

func TestGeoreferenceService_Fit_PopulatesDerivedFields(t *testing.T) {
	svc := usecases.NewGeoreferenceService()

	result, err := svc.Fit(context.Background(), 800, 600, sitePlanPoints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.ResidualsMeters) != 4 {
		t.Errorf("expected 4 residuals, got %d", len(result.ResidualsMeters))
	}
	if result.ExtentMeters <= 0 {
		t.Errorf("expected positive extent, got %v", result.ExtentMeters)
	}
	if result.PixelSizeMeters <= 0 {
		t.Errorf("expected positive pixel size, got %v", result.PixelSizeMeters)
	}
	if result.Bounds.South > result.Bounds.North || result.Bounds.West > result.Bounds.East {
		t.Errorf("bounds out of order: %+v", result.Bounds)
	}
}

func TestGeoreferenceService_Fit_TooFewPoints(t *testing.T) {
	svc := usecases.NewGeoreferenceService()

	_, err := svc.Fit(context.Background(), 800, 600, sitePlanPoints()[:1])
	if !errors.Is(err, georef.ErrInsufficientPoints) {
		t.Errorf("expected ErrInsufficientPoints, got %v", err)
	}
}

func TestGeoreferenceService_ProjectUnproject_RoundTrip(t *testing.T) {
	svc := usecases.NewGeoreferenceService()

	result, err := svc.Fit(context.Background(), 800, 600, sitePlanPoints())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pixels := []domain.PixelPoint{{X: 100, Y: 100}, {X: 400, Y: 300}, {X: 799, Y: 1}}
	geo := svc.Project(context.Background(), result.Transform, pixels)
	back, err := svc.Unproject(context.Background(), result.Transform, geo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range pixels {
		if math.Abs(back[i].X-pixels[i].X) > 1e-6 || math.Abs(back[i].Y-pixels[i].Y) > 1e-6 {
			t.Errorf("point %d: round trip of (%v,%v) returned (%v,%v)",
				i, pixels[i].X, pixels[i].Y, back[i].X, back[i].Y)
		}
	}
}

func TestGeoreferenceService_Unproject_SingularTransform(t *testing.T) {
	svc := usecases.NewGeoreferenceService()

	flat := domain.AffineTransform{A0: 38.9, B0: -6.3}
	_, err := svc.Unproject(context.Background(), flat, []domain.GeoPoint{{Lat: 38.9, Lng: -6.3}})
	if !errors.Is(err, georef.ErrDegenerateGeometry) {
		t.Errorf("expected ErrDegenerateGeometry, got %v", err)
	}
}
