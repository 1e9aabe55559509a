package analyst

import "errors"

// ErrInvalidInput indicates the analysis request was malformed.
var ErrInvalidInput = errors.New("invalid input")
