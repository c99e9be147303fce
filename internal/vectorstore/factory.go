package vectorstore

import (
	"fmt"

	"go.uber.org/zap"
)

// Provider names accepted by the factory.
const (
	ProviderChromem = "chromem"
	ProviderQdrant  = "qdrant"
)

// Config selects and configures a backend implementation.
type Config struct {
	// Provider is "chromem" (embedded, default) or "qdrant" (remote).
	Provider string

	Qdrant  QdrantConfig
	Chromem ChromemConfig
}

// New creates the backend selected by cfg.Provider.
func New(cfg Config, logger *zap.Logger) (Backend, error) {
	switch cfg.Provider {
	case ProviderChromem, "":
		return NewChromemBackend(cfg.Chromem, logger)
	case ProviderQdrant:
		return NewQdrantBackend(cfg.Qdrant, logger)
	default:
		return nil, fmt.Errorf("%w: unknown backend provider %q", ErrInvalidConfig, cfg.Provider)
	}
}
