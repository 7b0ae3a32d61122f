package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/ports"
	"github.com/digmaps/groundcontrol/internal/pkg/metrics"
)

// ReferenceService manages stored georeference records: fitting on create,
// refitting on point edits, cache read-through, and change events.
type ReferenceService struct {
	refs      ports.ReferenceRepository
	cache     ports.CacheService
	publisher ports.EventPublisher
	solver    *GeoreferenceService
}

// NewReferenceService creates a new ReferenceService. cache and publisher may
// be nil, in which case the service runs uncached and emits no events.
func NewReferenceService(
	refs ports.ReferenceRepository,
	cache ports.CacheService,
	publisher ports.EventPublisher,
	solver *GeoreferenceService,
) *ReferenceService {
	return &ReferenceService{refs: refs, cache: cache, publisher: publisher, solver: solver}
}

// CreateInput carries everything needed to georeference one image.
type CreateInput struct {
	ImageName   string
	ImageWidth  int
	ImageHeight int
	Points      []domain.ControlPoint
}

// Create fits the supplied control points and persists the resulting record.
// Solver failures (too few points, degenerate geometry) propagate unchanged so
// the transport layer can tell them apart.
func (s *ReferenceService) Create(ctx context.Context, in CreateInput) (*domain.Georeference, error) {
	fit, err := s.solver.Fit(ctx, float64(in.ImageWidth), float64(in.ImageHeight), in.Points)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ref := &domain.Georeference{
		ID:          uuid.NewString(),
		ImageName:   in.ImageName,
		ImageWidth:  in.ImageWidth,
		ImageHeight: in.ImageHeight,
		Points:      in.Points,
		Transform:   fit.Transform,
		Bounds:      fit.Bounds,
		RMSEMeters:  fit.RMSEMeters,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.refs.Create(ctx, ref); err != nil {
		return nil, fmt.Errorf("create georeference: %w", err)
	}

	s.publish(ctx, ref, domain.ReferenceCreated)
	return ref, nil
}

// Get returns a single record, read through the cache when one is wired.
func (s *ReferenceService) Get(ctx context.Context, id string) (*domain.Georeference, error) {
	cacheKey := "georef:id:" + id
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var ref domain.Georeference
			if err := json.Unmarshal(data, &ref); err == nil {
				metrics.CacheHits.WithLabelValues("reference_get").Inc()
				return &ref, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("reference_get").Inc()
	}

	ref, err := s.refs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(ref); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 300) // 5 min; invalidated on writes
		}
	}

	return ref, nil
}

// List returns records matching the filter, newest first.
func (s *ReferenceService) List(ctx context.Context, filter ports.ReferenceFilter) ([]domain.Georeference, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 500
	}
	return s.refs.List(ctx, filter)
}

// UpdatePoints refits a record from an edited point set. Transform, bounds,
// and RMSE are replaced wholesale; there is no partial update, since a
// transform is either fully valid or not produced at all.
func (s *ReferenceService) UpdatePoints(ctx context.Context, id string, points []domain.ControlPoint) (*domain.Georeference, error) {
	ref, err := s.refs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fit, err := s.solver.Fit(ctx, float64(ref.ImageWidth), float64(ref.ImageHeight), points)
	if err != nil {
		return nil, err
	}

	ref.Points = points
	ref.Transform = fit.Transform
	ref.Bounds = fit.Bounds
	ref.RMSEMeters = fit.RMSEMeters
	ref.UpdatedAt = time.Now().UTC()

	if err := s.refs.Update(ctx, ref); err != nil {
		return nil, fmt.Errorf("update georeference: %w", err)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, ref, domain.ReferenceUpdated)
	return ref, nil
}

// Delete removes a record.
func (s *ReferenceService) Delete(ctx context.Context, id string) error {
	ref, err := s.refs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.refs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete georeference: %w", err)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, ref, domain.ReferenceDeleted)
	return nil
}

func (s *ReferenceService) invalidate(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "georef:id:"+id)
	}
}

// publish emits a change event; delivery is best effort and never fails the
// write that triggered it.
func (s *ReferenceService) publish(ctx context.Context, ref *domain.Georeference, action string) {
	if s.publisher == nil {
		return
	}

	event := &domain.ReferenceEvent{
		ID:         ref.ID,
		Action:     action,
		ImageName:  ref.ImageName,
		OccurredAt: time.Now().UTC(),
	}
	if action != domain.ReferenceDeleted {
		bounds := ref.Bounds
		rmse := ref.RMSEMeters
		event.Bounds = &bounds
		event.RMSEMeters = &rmse
	}

	if err := s.publisher.PublishReferenceEvent(ctx, event); err != nil {
		slog.Warn("publish reference event", "action", action, "id", ref.ID, "error", err)
	}
}
