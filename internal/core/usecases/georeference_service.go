package usecases

import (
	"context"
	"errors"
	"log/slog"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/georef"
	"github.com/digmaps/groundcontrol/internal/pkg/metrics"
)

// extentWarnMeters flags fits whose control points span far enough that the
// planar residual conversion starts to stretch.
const extentWarnMeters = 50000

// GeoreferenceService is the single fitting path for every consumer (REST,
// GraphQL, stored records). It holds no state and is safe for concurrent use.
type GeoreferenceService struct{}

// NewGeoreferenceService creates a new GeoreferenceService.
func NewGeoreferenceService() *GeoreferenceService {
	return &GeoreferenceService{}
}

// Fit computes the affine transform for the given control points plus
// everything derived from it: the corner envelope for the overlay, RMSE and
// per-point residuals in meters, ground extent, and the pixel-size/rotation
// decomposition.
func (s *GeoreferenceService) Fit(ctx context.Context, width, height float64, points []domain.ControlPoint) (*domain.FitResult, error) {
	tr, err := georef.Fit(points)
	if err != nil {
		metrics.FitsTotal.WithLabelValues(fitOutcome(err)).Inc()
		return nil, err
	}

	result := &domain.FitResult{
		Transform:       tr,
		Bounds:          georef.Bounds(tr, width, height),
		RMSEMeters:      georef.RMSE(tr, points),
		ResidualsMeters: georef.Residuals(tr, points),
		ExtentMeters:    georef.Extent(points),
	}
	result.PixelSizeMeters, result.RotationDegrees = georef.Decompose(tr, width, height)

	metrics.FitsTotal.WithLabelValues("ok").Inc()
	metrics.FitRMSEMeters.Observe(result.RMSEMeters)
	metrics.FitControlPoints.Observe(float64(len(points)))

	if result.ExtentMeters > extentWarnMeters {
		slog.Warn("control points span a large extent; planar residuals lose accuracy",
			"extent_meters", result.ExtentMeters)
	}

	return result, nil
}

// Project maps pixel points to geographic coordinates through a transform.
func (s *GeoreferenceService) Project(ctx context.Context, tr domain.AffineTransform, points []domain.PixelPoint) []domain.GeoPoint {
	out := make([]domain.GeoPoint, len(points))
	for i, p := range points {
		out[i] = tr.Project(p.X, p.Y)
	}
	return out
}

// Unproject maps geographic points back to pixel coordinates. Fails when the
// transform's linear part is singular.
func (s *GeoreferenceService) Unproject(ctx context.Context, tr domain.AffineTransform, points []domain.GeoPoint) ([]domain.PixelPoint, error) {
	inv, err := georef.Invert(tr)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PixelPoint, len(points))
	for i, p := range points {
		out[i] = georef.Unproject(inv, p)
	}
	return out, nil
}

// BoundsFor projects the image corners through an existing transform.
func (s *GeoreferenceService) BoundsFor(ctx context.Context, tr domain.AffineTransform, width, height float64) domain.GeoBounds {
	return georef.Bounds(tr, width, height)
}

// fitOutcome labels solver failures for the fit counter.
func fitOutcome(err error) string {
	switch {
	case errors.Is(err, georef.ErrInsufficientPoints):
		return "insufficient_points"
	case errors.Is(err, georef.ErrDegenerateGeometry):
		return "degenerate_geometry"
	default:
		return "error"
	}
}
