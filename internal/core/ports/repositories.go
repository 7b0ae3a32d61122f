package ports

import (
	"context"

	"github.com/digmaps/groundcontrol/internal/core/domain"
)

// ReferenceFilter narrows georeference listings. The zero value matches
// everything.
type ReferenceFilter struct {
	// ImageName filters on exact image name.
	ImageName string
	// Intersects keeps records whose bounds intersect this envelope.
	Intersects *domain.GeoBounds
	// Limit caps the number of rows fetched; 0 means the repository default.
	Limit int
}

// ReferenceRepository persists georeference records.
type ReferenceRepository interface {
	Create(ctx context.Context, ref *domain.Georeference) error
	GetByID(ctx context.Context, id string) (*domain.Georeference, error)
	List(ctx context.Context, filter ReferenceFilter) ([]domain.Georeference, error)
	Update(ctx context.Context, ref *domain.Georeference) error
	Delete(ctx context.Context, id string) error
}
