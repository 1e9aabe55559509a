package datasets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreateSerializesColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	ds := Dataset{
		ID:          "ds-1",
		FileName:    "sales.csv",
		ArtifactKey: "datasets/ds-1.parquet",
		Rows:        95,
		Columns:     []string{"region", "amount"},
		CreatedAt:   time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO datasets").
		WithArgs(
			ds.ID,
			ds.FileName,
			ds.ArtifactKey,
			ds.Rows,
			[]byte(`["region","amount"]`),
			ds.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), ds); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDRestoresColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	createdAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "file_name", "artifact_key", "row_count", "columns", "created_at"}).
		AddRow("ds-1", "sales.csv", "datasets/ds-1.parquet", 95, []byte(`["region","amount"]`), createdAt)
	mock.ExpectQuery("SELECT id, file_name, artifact_key, row_count, columns, created_at").
		WithArgs("ds-1").
		WillReturnRows(rows)

	ds, err := repo.GetByID(context.Background(), "ds-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if ds.FileName != "sales.csv" || ds.Rows != 95 {
		t.Fatalf("unexpected dataset: %+v", ds)
	}
	if len(ds.Columns) != 2 || ds.Columns[0] != "region" || ds.Columns[1] != "amount" {
		t.Fatalf("unexpected columns: %v", ds.Columns)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDMissingReturnsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectQuery("SELECT id, file_name, artifact_key, row_count, columns, created_at").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id", "file_name", "artifact_key", "row_count", "columns", "created_at"}))

	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
