// Package app wires configuration into a running retrieval stack: storage,
// indexes, model services and the core services on top of them.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessera-labs/recall/internal/adapters/driven/ai"
	"github.com/tessera-labs/recall/internal/adapters/driven/index/keyword"
	"github.com/tessera-labs/recall/internal/adapters/driven/index/vector"
	"github.com/tessera-labs/recall/internal/adapters/driven/storage/memory"
	"github.com/tessera-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/tessera-labs/recall/internal/config"
	"github.com/tessera-labs/recall/internal/core/domain"
	"github.com/tessera-labs/recall/internal/core/ports/driven"
	"github.com/tessera-labs/recall/internal/core/ports/driving"
	"github.com/tessera-labs/recall/internal/core/services"
	"github.com/tessera-labs/recall/internal/logger"
	"github.com/tessera-labs/recall/internal/processor"
)

// App holds the assembled services and the resources backing them.
type App struct {
	Config config.Config

	Indexer   driving.IndexerService
	Retriever driving.RetrieverService
	Citations driving.CitationService
	Memory    driving.MemoryService
	Assistant driving.AssistantService

	store    *sqlite.Store // nil for the memory backend
	embedder driven.EmbeddingService
	llm      driven.LLMService
}

// New assembles the application from configuration. The in-memory indexes
// are rebuilt from the document store before New returns, so retrieval is
// ready immediately.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger.SetVerbose(cfg.Verbose)

	a := &App{Config: cfg}

	var docs driven.DocumentStore
	var sessions driven.SessionStore
	switch cfg.Storage.Backend {
	case "memory":
		docs = memory.NewDocumentStore()
		sessions = memory.NewSessionStore()
	default:
		store, err := sqlite.NewStore(cfg.Storage.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		a.store = store
		docs = store.DocumentStore()
		sessions = store.SessionStore()
	}

	embedder, err := ai.CreateEmbeddingService(cfg.Embedding)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.embedder = embedder

	llm, err := ai.CreateLLMService(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.llm = llm

	proc := processor.New(
		processor.WithWindowTokens(cfg.Chunking.WindowTokens),
		processor.WithOverlapFraction(cfg.Chunking.OverlapFraction),
	)
	vectorIdx := vector.New()
	keywordIdx := keyword.New()

	citations := services.NewCitationTracker(docs)
	retriever := services.NewRetriever(embedder, vectorIdx, keywordIdx, docs)
	conversation := services.NewConversationMemory(sessions)
	indexer := services.NewIndexer(proc, embedder, docs, vectorIdx, keywordIdx, citations)
	assistant := services.NewAssistant(retriever, citations, conversation, docs, llm)

	a.Indexer = indexer
	a.Retriever = retriever
	a.Citations = citations
	a.Memory = conversation
	a.Assistant = assistant

	if err := indexer.Warm(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("warming indexes: %w", err)
	}

	return a, nil
}

// Close releases model service connections and the storage backend.
func (a *App) Close() error {
	var errs []error
	if a.llm != nil {
		errs = append(errs, a.llm.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// RetrievalOptions returns the configured retrieval defaults.
func (a *App) RetrievalOptions() domain.RetrievalOptions {
	return domain.RetrievalOptions{
		K: a.Config.Retrieval.K,
		Weights: domain.Weights{
			Semantic: a.Config.Retrieval.SemanticWeight,
			Keyword:  a.Config.Retrieval.KeywordWeight,
		},
		Oversample: a.Config.Retrieval.Oversample,
	}
}

// AskOptions returns the configured orchestration defaults.
func (a *App) AskOptions() driving.AskOptions {
	return driving.AskOptions{
		Retrieval:    a.RetrievalOptions(),
		ContextTurns: a.Config.Memory.ContextTurns,
		MaxTokens:    a.Config.LLM.MaxTokens,
		Temperature:  a.Config.LLM.Temperature,
	}
}

// EvictionPolicy returns the configured session eviction policy.
func (a *App) EvictionPolicy() domain.EvictionPolicy {
	return domain.EvictionPolicy{
		MaxSessions: a.Config.Memory.MaxSessions,
		MaxAge:      a.Config.Memory.MaxAge(),
	}
}
