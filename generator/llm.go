package generator

import (
	"context"
	"time"
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "llama3-8b-8192"

// LLMClient abstracts the chat completion provider so it can be swapped or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// LLMSettings is the base configuration handed to concrete clients.
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}
