package ports

import (
	"context"

	"github.com/digmaps/groundcontrol/internal/core/domain"
)

// EventPublisher publishes georeference change events to a message broker.
type EventPublisher interface {
	PublishReferenceEvent(ctx context.Context, event *domain.ReferenceEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
