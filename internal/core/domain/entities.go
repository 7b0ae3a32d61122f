package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested georeference does not exist.
var ErrNotFound = errors.New("georeference not found")

// ControlPoint pairs a pixel position on the source raster with the geographic
// position it should map to. ID is opaque caller bookkeeping (UI point labels,
// file row numbers); the solver never reads it.
type ControlPoint struct {
	ID    string     `json:"id,omitempty"`
	Image PixelPoint `json:"image"`
	Map   GeoPoint   `json:"map"`
}

// AffineTransform maps raster pixel coordinates to WGS 84 degrees:
//
//	lat = a0 + a1*x + a2*y
//	lng = b0 + b1*x + b2*y
//
// A transform is computed fresh from a control-point set on every fit and is
// immutable once returned.
type AffineTransform struct {
	A0 float64 `json:"a0"`
	A1 float64 `json:"a1"`
	A2 float64 `json:"a2"`
	B0 float64 `json:"b0"`
	B1 float64 `json:"b1"`
	B2 float64 `json:"b2"`
}

// Project evaluates the transform at pixel (x, y). Pure; no failure modes for
// finite input.
func (t AffineTransform) Project(x, y float64) GeoPoint {
	return GeoPoint{
		Lat: t.A0 + t.A1*x + t.A2*y,
		Lng: t.B0 + t.B1*x + t.B2*y,
	}
}

// FitResult bundles everything derived from one fit: the transform, the corner
// envelope, and the quality metrics surfaced to the caller.
type FitResult struct {
	Transform       AffineTransform `json:"transform"`
	Bounds          GeoBounds       `json:"bounds"`
	RMSEMeters      float64         `json:"rmse_meters"`
	ResidualsMeters []float64       `json:"residuals_meters"` // per input point, same order
	ExtentMeters    float64         `json:"extent_meters"`    // max pairwise ground distance
	PixelSizeMeters float64         `json:"pixel_size_meters"`
	RotationDegrees float64         `json:"rotation_degrees"`
}

// Georeference is a stored anchoring of one raster image: the control points
// supplied by the user plus the transform, bounds, and RMSE derived from them.
// Points are kept so the record can be refitted after edits.
type Georeference struct {
	ID          string          `json:"id"`
	ImageName   string          `json:"image_name"`
	ImageWidth  int             `json:"image_width"`
	ImageHeight int             `json:"image_height"`
	Points      []ControlPoint  `json:"points"`
	Transform   AffineTransform `json:"transform"`
	Bounds      GeoBounds       `json:"bounds"`
	RMSEMeters  float64         `json:"rmse_meters"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Reference event actions.
const (
	ReferenceCreated = "created"
	ReferenceUpdated = "updated"
	ReferenceDeleted = "deleted"
)

// ReferenceEvent is published when a georeference record changes.
type ReferenceEvent struct {
	ID         string     `json:"id"`
	Action     string     `json:"action"`
	ImageName  string     `json:"image_name"`
	Bounds     *GeoBounds `json:"bounds,omitempty"` // absent on delete
	RMSEMeters *float64   `json:"rmse_meters,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
