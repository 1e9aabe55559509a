package util

import (
	"errors"
	"strings"
)

var errInvalidFileName = errors.New("invalid file name")

var pathSeparators = strings.NewReplacer("/", "_", "\\", "_")

// SanitizeFileName normalizes an uploaded file name for use inside a
// staging path. Traversal sequences are rejected outright; path separators
// are flattened to underscores.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errInvalidFileName
	}
	cleaned := pathSeparators.Replace(strings.TrimSpace(name))
	if cleaned == "" {
		return "", errInvalidFileName
	}
	return cleaned, nil
}
