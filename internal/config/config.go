// Package config loads the TOML configuration file controlling storage,
// chunking, retrieval, memory and model settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config is the full application configuration.
type Config struct {
	Verbose   bool            `toml:"verbose"`
	Storage   StorageConfig   `toml:"storage"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Memory    MemoryConfig    `toml:"memory"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
}

// StorageConfig selects and locates the durable store.
type StorageConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `toml:"backend"`

	// DataDir holds the database file for the sqlite backend. Empty uses
	// the default under the home directory.
	DataDir string `toml:"data_dir"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	WindowTokens    int     `toml:"window_tokens"`
	OverlapFraction float64 `toml:"overlap_fraction"`
}

// RetrievalConfig controls hybrid retrieval defaults.
type RetrievalConfig struct {
	K              int     `toml:"k"`
	SemanticWeight float64 `toml:"semantic_weight"`
	KeywordWeight  float64 `toml:"keyword_weight"`
	Oversample     int     `toml:"oversample"`
}

// MemoryConfig controls conversation memory eviction.
type MemoryConfig struct {
	ContextTurns int `toml:"context_turns"`
	MaxSessions  int `toml:"max_sessions"`
	MaxAgeDays   int `toml:"max_age_days"`
}

// MaxAge converts the configured day count into a duration. Zero disables
// age-based eviction.
func (m MemoryConfig) MaxAge() time.Duration {
	return time.Duration(m.MaxAgeDays) * 24 * time.Hour
}

// EmbeddingConfig selects the embedding backend. An empty provider disables
// the semantic side; retrieval then runs keyword-only.
type EmbeddingConfig struct {
	// Provider is "ollama", "openai" or empty.
	Provider string `toml:"provider"`
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`

	// RequestsPerSecond throttles embedding calls. Zero disables the limit.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LLMConfig selects the completion backend. An empty provider disables
// query rewriting and answer generation.
type LLMConfig struct {
	// Provider is "openai" or empty.
	Provider    string  `toml:"provider"`
	BaseURL     string  `toml:"base_url"`
	Model       string  `toml:"model"`
	APIKey      string  `toml:"api_key"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float64 `toml:"temperature"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: "sqlite",
		},
		Chunking: ChunkingConfig{
			WindowTokens:    200,
			OverlapFraction: 0.15,
		},
		Retrieval: RetrievalConfig{
			K:              10,
			SemanticWeight: 0.5,
			KeywordWeight:  0.5,
			Oversample:     2,
		},
		Memory: MemoryConfig{
			ContextTurns: 10,
			MaxSessions:  100,
			MaxAgeDays:   30,
		},
	}
}

// Load reads a TOML config file over the defaults. A missing file yields
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Chunking.WindowTokens <= 0 {
		return fmt.Errorf("chunking window_tokens must be positive, got %d", c.Chunking.WindowTokens)
	}
	if c.Chunking.OverlapFraction < 0 || c.Chunking.OverlapFraction >= 1 {
		return fmt.Errorf("chunking overlap_fraction must be in [0,1), got %g", c.Chunking.OverlapFraction)
	}
	if c.Retrieval.SemanticWeight < 0 || c.Retrieval.KeywordWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	return nil
}
