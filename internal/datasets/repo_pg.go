package datasets

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new dataset record.
func (r *PGRepo) Create(ctx context.Context, ds Dataset) error {
	const query = `
INSERT INTO datasets (
    id,
    file_name,
    artifact_key,
    row_count,
    columns,
    created_at
) VALUES ($1, $2, $3, $4, $5, $6)`

	columnsJSON, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}

	_, err = r.DB.ExecContext(
		ctx,
		query,
		ds.ID,
		ds.FileName,
		ds.ArtifactKey,
		ds.Rows,
		columnsJSON,
		ds.CreatedAt,
	)
	return err
}

// GetByID returns a dataset by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Dataset, error) {
	const query = `
SELECT id, file_name, artifact_key, row_count, columns, created_at
FROM datasets
WHERE id = $1`

	var ds Dataset
	var columnsJSON []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&ds.ID,
		&ds.FileName,
		&ds.ArtifactKey,
		&ds.Rows,
		&columnsJSON,
		&ds.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Dataset{}, ErrNotFound
		}
		return Dataset{}, err
	}
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &ds.Columns); err != nil {
			return Dataset{}, fmt.Errorf("unmarshal columns: %w", err)
		}
	}
	return ds, nil
}

// List returns dataset records, newest first, honoring limit/offset.
func (r *PGRepo) List(ctx context.Context, limit, offset int) ([]Dataset, error) {
	const query = `
SELECT id, file_name, artifact_key, row_count, columns, created_at
FROM datasets
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Dataset{}
	for rows.Next() {
		var ds Dataset
		var columnsJSON []byte
		if err := rows.Scan(
			&ds.ID,
			&ds.FileName,
			&ds.ArtifactKey,
			&ds.Rows,
			&columnsJSON,
			&ds.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(columnsJSON) > 0 {
			if err := json.Unmarshal(columnsJSON, &ds.Columns); err != nil {
				return nil, fmt.Errorf("unmarshal columns: %w", err)
			}
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
