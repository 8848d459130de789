package llm

import (
	"context"
)

// Client interface for language model integration
type Client interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// GenerateOptions control a single generation call. A zero temperature is
// meaningful and is always sent.
type GenerateOptions struct {
	Temperature     float64
	MaxOutputTokens int
}

// Config holds configuration for LLM clients
type Config struct {
	APIKey          string
	Model           string
	BaseURL         string
	Timeout         int
	MaxOutputTokens int
}
