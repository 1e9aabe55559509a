package llm

import (
	"context"
	"errors"
)

// Client abstracts LLM providers for query generation.
type Client interface {
	GenerateCode(ctx context.Context, prompt string) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// GenerateCode returns ErrNotImplemented.
func (PlaceholderClient) GenerateCode(ctx context.Context, prompt string) (string, error) {
	_ = ctx
	_ = prompt
	return "", ErrNotImplemented
}
