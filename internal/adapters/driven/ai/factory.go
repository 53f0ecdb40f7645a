// Package ai provides factory functions for creating model service adapters
// from configuration.
package ai

import (
	"fmt"

	ollamaembed "github.com/tessera-labs/recall/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/tessera-labs/recall/internal/adapters/driven/embedding/openai"
	openaillm "github.com/tessera-labs/recall/internal/adapters/driven/llm/openai"
	"github.com/tessera-labs/recall/internal/config"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
)

// CreateEmbeddingService creates the embedding service the configuration
// names. An empty provider returns nil; retrieval then runs keyword-only.
func CreateEmbeddingService(cfg config.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case "":
		return nil, nil

	case "ollama":
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:           cfg.BaseURL,
			Model:             cfg.Model,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}), nil

	case "openai":
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// CreateLLMService creates the completion service the configuration names.
// An empty provider returns nil; query rewriting and answer generation are
// then disabled.
func CreateLLMService(cfg config.LLMConfig) (driven.LLMService, error) {
	switch cfg.Provider {
	case "":
		return nil, nil

	case "openai":
		return openaillm.NewLLMService(openaillm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
