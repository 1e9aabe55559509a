package ingest

import "errors"

var (
	// ErrInvalidInput indicates the upload request itself was malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTooLarge indicates the upload exceeded the configured size limit.
	ErrTooLarge = errors.New("file exceeds maximum upload size")
)
