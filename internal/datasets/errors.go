package datasets

import "errors"

// ErrNotFound indicates no dataset exists for the given ID.
var ErrNotFound = errors.New("dataset not found")
