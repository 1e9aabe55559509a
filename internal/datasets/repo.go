package datasets

import "context"

// Repo defines persistence operations for dataset records.
type Repo interface {
	Create(ctx context.Context, ds Dataset) error
	GetByID(ctx context.Context, id string) (Dataset, error)
	List(ctx context.Context, limit, offset int) ([]Dataset, error)
}
