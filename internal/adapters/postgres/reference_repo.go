package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/core/ports"
)

// ReferenceRepo implements ports.ReferenceRepository with pgx. Bounds are
// stored twice: as scalar columns for plain reads and as a PostGIS envelope
// for indexed intersection queries.
type ReferenceRepo struct {
	db *DB
}

// NewReferenceRepo creates a new ReferenceRepo.
func NewReferenceRepo(db *DB) *ReferenceRepo {
	return &ReferenceRepo{db: db}
}

const referenceColumns = `id, image_name, image_width, image_height, points,
       a0, a1, a2, b0, b1, b2,
       south, west, north, east, rmse_meters, created_at, updated_at`

// Create inserts a new georeference record.
func (r *ReferenceRepo) Create(ctx context.Context, ref *domain.Georeference) error {
	points, err := json.Marshal(ref.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO georeferences (id, image_name, image_width, image_height, points,
		                           a0, a1, a2, b0, b1, b2,
		                           south, west, north, east, footprint,
		                           rmse_meters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5,
		        $6, $7, $8, $9, $10, $11,
		        $12, $13, $14, $15, ST_MakeEnvelope($13, $12, $15, $14, 4326),
		        $16, $17, $18)
	`, ref.ID, ref.ImageName, ref.ImageWidth, ref.ImageHeight, points,
		ref.Transform.A0, ref.Transform.A1, ref.Transform.A2,
		ref.Transform.B0, ref.Transform.B1, ref.Transform.B2,
		ref.Bounds.South, ref.Bounds.West, ref.Bounds.North, ref.Bounds.East,
		ref.RMSEMeters, ref.CreatedAt, ref.UpdatedAt)
	return err
}

// GetByID returns a record by UUID.
func (r *ReferenceRepo) GetByID(ctx context.Context, id string) (*domain.Georeference, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+referenceColumns+` FROM georeferences WHERE id = $1`, id)

	ref, err := scanReference(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return ref, err
}

// List returns records matching the filter, most recently updated first.
func (r *ReferenceRepo) List(ctx context.Context, filter ports.ReferenceFilter) ([]domain.Georeference, error) {
	query := `SELECT ` + referenceColumns + ` FROM georeferences`

	var conds []string
	var args []any
	if filter.ImageName != "" {
		args = append(args, filter.ImageName)
		conds = append(conds, fmt.Sprintf("image_name = $%d", len(args)))
	}
	if filter.Intersects != nil {
		b := filter.Intersects
		args = append(args, b.West, b.South, b.East, b.North)
		conds = append(conds, fmt.Sprintf(
			"footprint && ST_MakeEnvelope($%d, $%d, $%d, $%d, 4326)",
			len(args)-3, len(args)-2, len(args)-1, len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d", len(args))

	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []domain.Georeference
	for rows.Next() {
		ref, err := scanReference(rows)
		if err != nil {
			return nil, err
		}
		refs = append(refs, *ref)
	}
	return refs, rows.Err()
}

// Update replaces a record's points and everything derived from them.
func (r *ReferenceRepo) Update(ctx context.Context, ref *domain.Georeference) error {
	points, err := json.Marshal(ref.Points)
	if err != nil {
		return fmt.Errorf("encode points: %w", err)
	}

	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE georeferences
		SET image_name = $2, points = $3,
		    a0 = $4, a1 = $5, a2 = $6, b0 = $7, b1 = $8, b2 = $9,
		    south = $10, west = $11, north = $12, east = $13,
		    footprint = ST_MakeEnvelope($11, $10, $13, $12, 4326),
		    rmse_meters = $14, updated_at = $15
		WHERE id = $1
	`, ref.ID, ref.ImageName, points,
		ref.Transform.A0, ref.Transform.A1, ref.Transform.A2,
		ref.Transform.B0, ref.Transform.B1, ref.Transform.B2,
		ref.Bounds.South, ref.Bounds.West, ref.Bounds.North, ref.Bounds.East,
		ref.RMSEMeters, ref.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a record.
func (r *ReferenceRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM georeferences WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReference(row rowScanner) (*domain.Georeference, error) {
	var ref domain.Georeference
	var points []byte
	err := row.Scan(
		&ref.ID, &ref.ImageName, &ref.ImageWidth, &ref.ImageHeight, &points,
		&ref.Transform.A0, &ref.Transform.A1, &ref.Transform.A2,
		&ref.Transform.B0, &ref.Transform.B1, &ref.Transform.B2,
		&ref.Bounds.South, &ref.Bounds.West, &ref.Bounds.North, &ref.Bounds.East,
		&ref.RMSEMeters, &ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(points, &ref.Points); err != nil {
		return nil, fmt.Errorf("decode points: %w", err)
	}
	return &ref, nil
}
