// Package embeddings turns text into fixed-length float vectors via an HTTP
// embedding provider. Two providers are supported: a TEI-compatible server
// (text-embeddings-inference) and Ollama.
package embeddings

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Provider names accepted by NewProvider.
const (
	ProviderTEI    = "tei"
	ProviderOllama = "ollama"
)

// Config holds configuration for creating an embedding provider.
type Config struct {
	// Provider is "tei" (default) or "ollama".
	Provider string
	// BaseURL is the provider endpoint, e.g. http://localhost:8080 for TEI
	// or http://localhost:11434 for Ollama.
	BaseURL string
	// Model is the embedding model name. TEI servers bind the model at
	// startup; Ollama selects it per request.
	Model string
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrInvalidConfig)
	}
	return nil
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case ProviderTEI, "":
		return NewTEIService(cfg)
	case ProviderOllama:
		return NewOllamaService(cfg)
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", ErrInvalidConfig, cfg.Provider)
	}
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if the model is unknown.
func detectDimensionFromModel(model string) int {
	switch {
	case strings.Contains(model, "nomic-embed-text"):
		return 768
	case strings.Contains(model, "mxbai-embed-large"), strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384
	}
}
