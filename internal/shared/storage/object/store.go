package object

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound indicates the requested object does not exist in the store.
var ErrNotFound = errors.New("object not found")

// ObjectStore defines the contract for saving and retrieving dataset
// artifacts by storage key.
type ObjectStore interface {
	Save(ctx context.Context, storageKey string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}
