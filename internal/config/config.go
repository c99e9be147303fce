// Package config provides configuration loading for vaultd.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

// Config is the full vaultd configuration tree.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Source    SourceConfig    `koanf:"source"`
	Chunker   ChunkerConfig   `koanf:"chunker"`
	Cache     CacheConfig     `koanf:"cache"`
	Queue     QueueConfig     `koanf:"queue"`
	Backend   BackendConfig   `koanf:"backend"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	HTTP      HTTPConfig      `koanf:"http"`
	Watcher   WatcherConfig   `koanf:"watcher"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `koanf:"level"`
	// Format is json or console.
	Format string `koanf:"format"`
}

// SourceConfig locates the document collection.
type SourceConfig struct {
	// Root is the directory holding the documents.
	Root string `koanf:"root"`
	// Extensions limits indexing to these file extensions.
	Extensions []string `koanf:"extensions"`
}

// ChunkerConfig controls document splitting.
type ChunkerConfig struct {
	MaxChunkSize int `koanf:"max_chunk_size"`
	OverlapSize  int `koanf:"overlap_size"`
}

// CacheConfig bounds the in-memory cache.
type CacheConfig struct {
	MaxSizeBytes int `koanf:"max_size_bytes"`
}

// QueueConfig controls persist batching.
type QueueConfig struct {
	BatchSize     int           `koanf:"batch_size"`
	FlushInterval time.Duration `koanf:"flush_interval"`
}

// BackendConfig selects and configures the vector backend.
type BackendConfig struct {
	// Provider is "chromem" or "qdrant".
	Provider   string        `koanf:"provider"`
	Collection string        `koanf:"collection"`
	Qdrant     QdrantConfig  `koanf:"qdrant"`
	Chromem    ChromemConfig `koanf:"chromem"`
}

// QdrantConfig holds remote backend connection settings.
type QdrantConfig struct {
	Host   string `koanf:"host"`
	Port   int    `koanf:"port"`
	UseTLS bool   `koanf:"use_tls"`
}

// ChromemConfig holds embedded backend settings.
type ChromemConfig struct {
	// Path is the persistence directory; empty keeps the store in memory.
	Path     string `koanf:"path"`
	Compress bool   `koanf:"compress"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is "tei" or "ollama".
	Provider string `koanf:"provider"`
	BaseURL  string `koanf:"base_url"`
	Model    string `koanf:"model"`
}

// HTTPConfig controls the API server.
type HTTPConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// WatcherConfig controls filesystem watching.
type WatcherConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Debounce time.Duration `koanf:"debounce"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Backend.Provider == "" {
		cfg.Backend.Provider = vectorstore.ProviderChromem
	}
	if cfg.Backend.Collection == "" {
		cfg.Backend.Collection = "vaultd"
	}
	if cfg.Backend.Qdrant.Host == "" {
		cfg.Backend.Qdrant.Host = "localhost"
	}
	if cfg.Backend.Qdrant.Port == 0 {
		cfg.Backend.Qdrant.Port = 6334
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = embeddings.ProviderTEI
	}
	if cfg.Embedding.BaseURL == "" {
		switch cfg.Embedding.Provider {
		case embeddings.ProviderOllama:
			cfg.Embedding.BaseURL = "http://localhost:11434"
		default:
			cfg.Embedding.BaseURL = "http://localhost:8080"
		}
	}
	if cfg.Queue.BatchSize == 0 {
		cfg.Queue.BatchSize = 10
	}
	if cfg.Queue.FlushInterval == 0 {
		cfg.Queue.FlushInterval = 30 * time.Second
	}
	if cfg.Watcher.Debounce == 0 {
		cfg.Watcher.Debounce = 500 * time.Millisecond
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "127.0.0.1"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 8991
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Backend.Provider {
	case vectorstore.ProviderChromem, vectorstore.ProviderQdrant:
	default:
		return fmt.Errorf("backend.provider must be chromem or qdrant, got %q", c.Backend.Provider)
	}
	switch c.Embedding.Provider {
	case embeddings.ProviderTEI, embeddings.ProviderOllama:
	default:
		return fmt.Errorf("embedding.provider must be tei or ollama, got %q", c.Embedding.Provider)
	}
	if c.Chunker.MaxChunkSize < 0 {
		return fmt.Errorf("chunker.max_chunk_size must not be negative")
	}
	if c.Queue.BatchSize < 1 {
		return fmt.Errorf("queue.batch_size must be at least 1")
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port %d out of range", c.HTTP.Port)
	}
	return nil
}
