package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/peakform/peakform/internal/models"
)

// UpsertProgram inserts or replaces a catalog entry. The definition is stored
// as the raw JSON it arrived in; decoding happens on read so legacy map-form
// workout data keeps its key order intact.
func (db *DB) UpsertProgram(ctx context.Context, id, name string, definition json.RawMessage) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO programs (id, name, definition)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE
			SET name = $2, definition = $3, updated_at = NOW()`,
		id, name, definition)
	if err != nil {
		return fmt.Errorf("upserting program %s: %w", id, err)
	}
	return nil
}

// GetProgram retrieves one program with its decoded definition.
// Returns (nil, nil) when no such program exists.
func (db *DB) GetProgram(ctx context.Context, id string) (*models.Program, error) {
	var p models.Program
	var raw []byte
	err := db.Pool.QueryRow(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM programs WHERE id = $1`,
		id).Scan(&p.ID, &p.Name, &raw, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying program %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &p.Definition); err != nil {
		return nil, fmt.Errorf("decoding program %s definition: %w", id, err)
	}
	return &p, nil
}

// ListPrograms retrieves the whole catalog ordered by name.
func (db *DB) ListPrograms(ctx context.Context) ([]models.Program, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, name, definition, created_at, updated_at FROM programs ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying programs: %w", err)
	}
	defer rows.Close()

	var result []models.Program
	for rows.Next() {
		var p models.Program
		var raw []byte
		if err := rows.Scan(&p.ID, &p.Name, &raw, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning program: %w", err)
		}
		if err := json.Unmarshal(raw, &p.Definition); err != nil {
			return nil, fmt.Errorf("decoding program %s definition: %w", p.ID, err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
