package generator

import "context"

// LLMClient abstracts the text-completion backend so it can be replaced or mocked.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// ImageClient abstracts the image backend. Both calls return raw PNG bytes.
type ImageClient interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	Edit(ctx context.Context, image []byte, mimeType, directive string) ([]byte, error)
}

// LLMSettings carries the base configuration for concrete backends.
type LLMSettings struct {
	Provider   string
	Model      string
	ImageModel string
	APIKey     string
	BaseURL    string
}
