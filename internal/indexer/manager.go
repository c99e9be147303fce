// Package indexer orchestrates the write and read paths of the vector
// index: chunk, extract, embed, cache, queue on write; cache scan plus
// backend fusion search, merged, on read.
package indexer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/vaultd/internal/cache"
	"github.com/fyrsmithlabs/vaultd/internal/chunker"
	"github.com/fyrsmithlabs/vaultd/internal/embeddings"
	"github.com/fyrsmithlabs/vaultd/internal/extraction"
	"github.com/fyrsmithlabs/vaultd/internal/queue"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

var tracer = otel.Tracer("vaultd.indexer")

// summaryFallbackLen is how much chunk content stands in for a missing
// extracted summary.
const summaryFallbackLen = 200

// Stats aggregates cache, queue, and backend counters.
type Stats struct {
	CacheEntries     int         `json:"cache_entries"`
	CacheSizeBytes   int         `json:"cache_size_bytes"`
	CacheMaxBytes    int         `json:"cache_max_bytes"`
	Queue            queue.Stats `json:"queue"`
	BackendRecords   uint64      `json:"backend_records"`
	BackendReachable bool        `json:"backend_reachable"`
}

// Manager is the top-level facade over chunking, embedding, caching,
// queueing, and backend search.
type Manager struct {
	chunker   *chunker.Chunker
	cache     *cache.MemoryCache
	queue     *queue.PersistQueue
	backend   vectorstore.Backend
	embedder  embeddings.Embedder
	extractor extraction.Extractor
	logger    *zap.Logger
}

// New wires a Manager from its collaborators.
func New(
	ch *chunker.Chunker,
	c *cache.MemoryCache,
	q *queue.PersistQueue,
	backend vectorstore.Backend,
	embedder embeddings.Embedder,
	extractor extraction.Extractor,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		chunker:   ch,
		cache:     c,
		queue:     q,
		backend:   backend,
		embedder:  embedder,
		extractor: extractor,
		logger:    logger,
	}
}

// ChunkID returns the stable id of a document chunk. Re-indexing a file
// reproduces the same ids, so newer records supersede older ones.
func ChunkID(path string, index int) string {
	return path + "-chunk-" + strconv.Itoa(index)
}

// IndexFile chunks text, embeds each chunk in the three vector spaces, and
// writes the results to the cache and the persist queue. Embedding failures
// abort the file; extraction failures degrade to default metadata.
func (m *Manager) IndexFile(ctx context.Context, path, text string) error {
	ctx, span := tracer.Start(ctx, "Manager.IndexFile")
	defer span.End()
	span.SetAttributes(attribute.String("file.path", path))

	chunks := m.chunker.Chunk(text)
	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	if len(chunks) == 0 {
		m.logger.Debug("nothing to index", zap.String("path", path))
		return nil
	}

	for _, ch := range chunks {
		if err := m.indexChunk(ctx, path, ch); err != nil {
			return fmt.Errorf("indexing %s chunk %d: %w", path, ch.Index, err)
		}
	}

	m.logger.Info("file indexed",
		zap.String("path", path),
		zap.Int("chunks", len(chunks)))
	return nil
}

func (m *Manager) indexChunk(ctx context.Context, path string, ch chunker.Chunk) error {
	meta, err := m.extractor.Extract(ctx, ch.Content)
	if err != nil {
		m.logger.Warn("metadata extraction failed, using defaults",
			zap.String("path", path),
			zap.Int("chunk", ch.Index),
			zap.Error(err))
		meta = extraction.Defaults()
	}

	summaryText := meta.Summary
	if summaryText == "" {
		summaryText = headOf(ch.Content, summaryFallbackLen)
	}
	titleText := ch.HeaderPath
	if titleText == "" {
		titleText = path
	}

	var contentVec, summaryVec, titleVec []float32
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		contentVec, err = m.embedder.EmbedQuery(gctx, ch.Content)
		return err
	})
	g.Go(func() (err error) {
		summaryVec, err = m.embedder.EmbedQuery(gctx, summaryText)
		return err
	})
	g.Go(func() (err error) {
		titleVec, err = m.embedder.EmbedQuery(gctx, titleText)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	now := time.Now().Unix()
	id := ChunkID(path, ch.Index)
	chunkMeta := vectorstore.ChunkMetadata{
		FilePath:   path,
		HeaderPath: ch.HeaderPath,
		StartLine:  ch.StartLine,
		EndLine:    ch.EndLine,
		Content:    ch.Content,
		Summary:    meta.Summary,
		Tags:       meta.Tags,
		WordCount:  len(strings.Fields(ch.Content)),
		IndexedAt:  now,
	}

	m.cache.Set(id, cache.Entry{
		ID:        id,
		Content:   ch.Content,
		Embedding: contentVec,
		Metadata:  chunkMeta,
		Timestamp: now,
	})
	m.queue.Enqueue(vectorstore.Record{
		ID: id,
		Vectors: vectorstore.MultiVector{
			Content: contentVec,
			Summary: summaryVec,
			Title:   titleVec,
		},
		Metadata: chunkMeta,
	})
	return nil
}

// Search embeds the query once, scans the cache by cosine similarity,
// queries the backend with fusion, and merges the two result sets. On an id
// collision the cache entry wins: it reflects the most recent unflushed
// state.
func (m *Manager) Search(ctx context.Context, query string, opts vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "Manager.Search")
	defer span.End()

	queryVec, err := m.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	cacheResults := m.scanCache(queryVec, opts.Tags)
	backendResults, err := m.backend.SearchWithFusion(ctx, queryVec, opts)
	if err != nil {
		return nil, fmt.Errorf("backend search: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	merged := make([]vectorstore.SearchResult, 0, len(cacheResults)+len(backendResults))
	seen := make(map[string]struct{}, len(cacheResults))
	for _, r := range cacheResults {
		seen[r.ID] = struct{}{}
		merged = append(merged, r)
	}
	for _, r := range backendResults {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		merged = append(merged, r)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}

	span.SetAttributes(
		attribute.Int("results.cache", len(cacheResults)),
		attribute.Int("results.backend", len(backendResults)),
		attribute.Int("results.merged", len(merged)),
	)
	return merged, nil
}

// scanCache scores every cache entry against the query vector.
func (m *Manager) scanCache(queryVec []float32, tags []string) []vectorstore.SearchResult {
	var results []vectorstore.SearchResult
	for _, e := range m.cache.GetAll() {
		if len(tags) > 0 && !hasAnyTag(e.Metadata.Tags, tags) {
			continue
		}
		results = append(results, vectorstore.SearchResult{
			ID:       e.ID,
			Content:  e.Content,
			Score:    cosineSimilarity(queryVec, e.Embedding),
			Metadata: e.Metadata,
		})
	}
	return results
}

// UpdateFile removes all state for the file and re-indexes the new text.
func (m *Manager) UpdateFile(ctx context.Context, path, text string) error {
	if err := m.RemoveFile(ctx, path); err != nil {
		return err
	}
	return m.IndexFile(ctx, path, text)
}

// RemoveFile drops the file's chunks from the cache, queue, and backend.
func (m *Manager) RemoveFile(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Manager.RemoveFile")
	defer span.End()

	removedCache := m.cache.DeleteByFilePath(path)
	removedQueue := m.queue.RemoveByFilePath(path)
	if err := m.backend.DeleteByFilePath(ctx, path); err != nil {
		return fmt.Errorf("removing %s from backend: %w", path, err)
	}

	m.logger.Info("file removed",
		zap.String("path", path),
		zap.Int("cache_entries", removedCache),
		zap.Int("queue_entries", removedQueue))
	return nil
}

// Flush persists all queued records to the backend.
func (m *Manager) Flush(ctx context.Context) error {
	return m.queue.Flush(ctx)
}

// OnFileSave persists only the saved file's pending records, leaving the
// rest of the queue for the normal flush cycle.
func (m *Manager) OnFileSave(ctx context.Context, path string) error {
	flushed, err := m.queue.FlushFilePath(ctx, path)
	if err != nil {
		return fmt.Errorf("persisting %s on save: %w", path, err)
	}
	if flushed > 0 {
		m.logger.Debug("file flushed on save",
			zap.String("path", path),
			zap.Int("records", flushed))
	}
	return nil
}

// Clear empties the cache, the queue, and the backend.
func (m *Manager) Clear(ctx context.Context) error {
	m.cache.Clear()
	m.queue.Clear()
	if err := m.backend.Clear(ctx); err != nil {
		return fmt.Errorf("clearing backend: %w", err)
	}
	m.logger.Info("index cleared")
	return nil
}

// Stats reports cache, queue, and backend counters. Backend errors degrade
// to BackendReachable=false rather than failing the call.
func (m *Manager) Stats(ctx context.Context) Stats {
	s := Stats{
		CacheEntries:   m.cache.Size(),
		CacheSizeBytes: m.cache.CurrentSize(),
		CacheMaxBytes:  m.cache.MaxSize(),
		Queue:          m.queue.Stats(),
	}
	count, err := m.backend.Count(ctx)
	if err != nil {
		m.logger.Warn("backend count failed", zap.Error(err))
		return s
	}
	s.BackendRecords = count
	s.BackendReachable = true
	return s
}

// cosineSimilarity of zero-norm vectors is 0, not NaN.
func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func hasAnyTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// headOf returns at most n bytes of s without splitting a rune.
func headOf(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
