package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"datachat-backend/internal/llm"
)

const (
	// DefaultTimeout bounds a single chat completion call.
	DefaultTimeout = 60 * time.Second

	// MaxRetries is the retry limit for rate-limited calls.
	MaxRetries = 3

	baseBackoff = 2 * time.Second
	maxBackoff  = 16 * time.Second
)

// ErrMaxRetriesExceeded indicates the provider kept rate-limiting us.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Client implements llm.Client using OpenAI-compatible Chat Completions.
// A non-empty baseURL points it at compatible providers such as Groq.
type Client struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

// NewClient constructs a new OpenAI chat client.
func NewClient(apiKey, model, baseURL string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if strings.TrimSpace(baseURL) != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &Client{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
	}, nil
}

// ModelName returns the configured model.
func (c *Client) ModelName() string {
	return c.model
}

// GenerateCode sends the prompt and returns the raw completion text.
func (c *Client) GenerateCode(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := baseBackoff << (attempt - 1)
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(c.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(0.1),
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("chat completion failed: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", ErrMaxRetriesExceeded, lastErr)
}

var _ llm.Client = (*Client)(nil)

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
