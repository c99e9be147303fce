package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/cache"
	"github.com/fyrsmithlabs/vaultd/internal/chunker"
	"github.com/fyrsmithlabs/vaultd/internal/config"
	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/extraction"
	"github.com/fyrsmithlabs/vaultd/internal/indexer"
	"github.com/fyrsmithlabs/vaultd/internal/logging"
	"github.com/fyrsmithlabs/vaultd/internal/queue"
	"github.com/fyrsmithlabs/vaultd/internal/source"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

// app bundles the wired components a command needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	backend vectorstore.Backend
	queue   *queue.PersistQueue
	manager *indexer.Manager
	source  *source.FilesystemSource
}

// buildApp loads configuration and wires the full indexing stack. The
// document source is only built when the config (or --vault) names a root.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if vaultDir != "" {
		cfg.Source.Root = vaultDir
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	backend, err := vectorstore.New(vectorstore.Config{
		Provider: cfg.Backend.Provider,
		Qdrant: vectorstore.QdrantConfig{
			Host:       cfg.Backend.Qdrant.Host,
			Port:       cfg.Backend.Qdrant.Port,
			Collection: cfg.Backend.Collection,
			UseTLS:     cfg.Backend.Qdrant.UseTLS,
		},
		Chromem: vectorstore.ChromemConfig{
			Path:       cfg.Backend.Chromem.Path,
			Compress:   cfg.Backend.Chromem.Compress,
			Collection: cfg.Backend.Collection,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating vector backend: %w", err)
	}
	if err := backend.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing vector backend: %w", err)
	}

	embedder, err := embeddings.NewProvider(embeddings.Config{
		Provider: cfg.Embedding.Provider,
		BaseURL:  cfg.Embedding.BaseURL,
		Model:    cfg.Embedding.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Embedding.Provider),
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimension", embedder.Dimension()))

	memCache := cache.New(cfg.Cache.MaxSizeBytes)
	q := queue.New(backend, logger,
		queue.WithBatchSize(cfg.Queue.BatchSize),
		queue.WithFlushInterval(cfg.Queue.FlushInterval))

	manager := indexer.New(
		chunker.New(chunker.Config{
			MaxChunkSize: cfg.Chunker.MaxChunkSize,
			OverlapSize:  cfg.Chunker.OverlapSize,
		}),
		memCache,
		q,
		backend,
		embedder,
		extraction.NewHeuristicExtractor(),
		logger,
	)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		backend: backend,
		queue:   q,
		manager: manager,
	}

	if cfg.Source.Root != "" {
		src, err := source.NewFilesystemSource(cfg.Source.Root, cfg.Source.Extensions)
		if err != nil {
			a.close()
			return nil, err
		}
		a.source = src
	}
	return a, nil
}

// requireSource returns the document source or an error naming the missing
// flag.
func (a *app) requireSource() (*source.FilesystemSource, error) {
	if a.source == nil {
		return nil, fmt.Errorf("no vault configured: set --vault or source.root")
	}
	return a.source, nil
}

// indexAll walks the source and indexes every document, then flushes.
func (a *app) indexAll(ctx context.Context) (int, error) {
	src, err := a.requireSource()
	if err != nil {
		return 0, err
	}

	paths, err := src.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		text, err := src.ReadFile(ctx, p)
		if err != nil {
			return 0, err
		}
		if err := a.manager.IndexFile(ctx, p, text); err != nil {
			return 0, err
		}
	}
	if err := a.manager.Flush(ctx); err != nil {
		return 0, err
	}
	return len(paths), nil
}

func (a *app) close() {
	a.queue.Stop()
	if err := a.backend.Close(); err != nil {
		a.logger.Warn("closing backend", zap.Error(err))
	}
	_ = a.logger.Sync()
}
