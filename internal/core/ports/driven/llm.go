package driven

import "context"

// LLMService provides language model operations. This is an optional
// service - when nil, query rewriting and answer generation are disabled and
// the orchestrator returns retrieval bundles only.
type LLMService interface {
	// Generate produces a text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// RewriteQuery expands or rewrites a query for better recall, using
	// conversation context to resolve pronouns and references.
	RewriteQuery(ctx context.Context, query string, context []string) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64
}
