package datasets

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu   sync.RWMutex
	data map[string]Dataset
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		data: make(map[string]Dataset),
	}
}

// Create stores a dataset record.
func (r *MemoryRepo) Create(ctx context.Context, ds Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[ds.ID] = cloneDataset(ds)
	return nil
}

// GetByID returns a dataset by ID.
func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.data[id]
	if !ok {
		return Dataset{}, ErrNotFound
	}
	return cloneDataset(ds), nil
}

// List returns dataset records, newest first, honoring limit/offset.
func (r *MemoryRepo) List(ctx context.Context, limit, offset int) ([]Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	all := make([]Dataset, 0, len(r.data))
	for _, ds := range r.data {
		all = append(all, cloneDataset(ds))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []Dataset{}, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func cloneDataset(ds Dataset) Dataset {
	out := ds
	if ds.Columns != nil {
		out.Columns = make([]string, len(ds.Columns))
		copy(out.Columns, ds.Columns)
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
