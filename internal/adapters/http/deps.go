package http

import (
	"github.com/nats-io/nats.go"

	"github.com/digmaps/groundcontrol/internal/adapters/postgres"
	"github.com/digmaps/groundcontrol/internal/adapters/valkey"
	"github.com/digmaps/groundcontrol/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers. NATS, DB, and Cache
// may be nil; handlers and readiness checks degrade accordingly.
type Dependencies struct {
	Georef     *usecases.GeoreferenceService
	References *usecases.ReferenceService
	NATS       *nats.Conn
	DB         *postgres.DB
	Cache      *valkey.Cache

	// MaxControlPoints caps point lists on fit, create, and point-update
	// requests; 0 disables the cap.
	MaxControlPoints int
}
