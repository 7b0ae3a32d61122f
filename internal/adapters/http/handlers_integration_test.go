//go:build integration
// +build integration

package http_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	handler "github.com/digmaps/groundcontrol/internal/adapters/http"
	"github.com/digmaps/groundcontrol/internal/adapters/postgres"
	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/usecases"
	"github.com/digmaps/groundcontrol/internal/pkg/config"
)

// setupTestDB connects to the test database.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("groundcontrol-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("ping db: %v", err)
	}

	return &postgres.DB{Pool: pool}
}

// setupTestDeps creates dependencies with a real DB and repo, no cache or NATS.
func setupTestDeps(t *testing.T, db *postgres.DB) *handler.Dependencies {
	georefSvc := usecases.NewGeoreferenceService()
	refRepo := postgres.NewReferenceRepo(db)

	return &handler.Dependencies{
		Georef:     georefSvc,
		References: usecases.NewReferenceService(refRepo, nil, nil, georefSvc),
		DB:         db,
	}
}

// TestReferenceLifecycle_Integration exercises create, read, refit, filter,
// and delete against a real PostGIS database.
func TestReferenceLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	defer db.Pool.Close()

	deps := setupTestDeps(t, db)
	app := setupApp(deps)

	name := "integ_" + time.Now().Format("20060102150405") + ".png"

	// Create
	req := httptest.NewRequest("POST", "/v1/references", fitBody(t, name, 800, 600, cornerPoints()))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("test request: %v", err)
	}
	if resp.StatusCode != 201 {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}

	var created domain.Georeference
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected assigned ID")
	}

	// Read back
	req = httptest.NewRequest("GET", "/v1/references/"+created.ID, nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	var fetched domain.Georeference
	if err := json.NewDecoder(resp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.ImageName != name || len(fetched.Points) != 4 {
		t.Errorf("round-tripped record mismatch: %+v", fetched)
	}

	// BBox filter should find it
	req = httptest.NewRequest("GET", "/v1/references?bbox=38.90,-6.40,38.95,-6.30&image="+name, nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 200 {
		t.Fatalf("list: expected 200, got %d", resp.StatusCode)
	}
	var listed struct {
		Data       []domain.Georeference `json:"data"`
		Pagination struct{ Total int }   `json:"pagination"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if listed.Pagination.Total < 1 {
		t.Error("expected the created record inside the bbox")
	}

	// A far-away bbox should not
	req = httptest.NewRequest("GET", "/v1/references?bbox=50.0,10.0,51.0,11.0&image="+name, nil)
	resp, _ = app.Test(req, -1)
	listed.Pagination.Total = -1
	_ = json.NewDecoder(resp.Body).Decode(&listed)
	if listed.Pagination.Total != 0 {
		t.Errorf("expected no records in a far-away bbox, got %d", listed.Pagination.Total)
	}

	// Delete
	req = httptest.NewRequest("DELETE", "/v1/references/"+created.ID, nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 204 {
		t.Fatalf("delete: expected 204, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest("GET", "/v1/references/"+created.ID, nil)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 404 {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}
