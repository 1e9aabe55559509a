package datasets

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoCreateAndGet(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	ds := Dataset{
		ID:          "ds-1",
		FileName:    "sales.csv",
		ArtifactKey: "datasets/ds-1.parquet",
		Rows:        10,
		Columns:     []string{"a", "b"},
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, ds); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FileName != "sales.csv" || got.Rows != 10 {
		t.Fatalf("unexpected dataset: %+v", got)
	}

	// Mutating the returned record must not leak back into the repo.
	got.Columns[0] = "mutated"
	again, err := repo.GetByID(ctx, "ds-1")
	if err != nil {
		t.Fatalf("GetByID again: %v", err)
	}
	if again.Columns[0] != "a" {
		t.Fatalf("stored columns mutated: %v", again.Columns)
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := repo.Create(ctx, Dataset{ID: id, CreatedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}

	all, err := repo.List(ctx, 0, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 || all[0].ID != "new" || all[2].ID != "old" {
		t.Fatalf("unexpected order: %+v", all)
	}

	page, err := repo.List(ctx, 1, 1)
	if err != nil {
		t.Fatalf("List paged: %v", err)
	}
	if len(page) != 1 || page[0].ID != "mid" {
		t.Fatalf("unexpected page: %+v", page)
	}
}
