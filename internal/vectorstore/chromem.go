package vectorstore

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var chromemTracer = otel.Tracer("vaultd.vectorstore.chromem")

// tagSeparator joins tags into a single chromem metadata value. Chromem
// metadata is flat string-to-string, so lists are encoded on write and
// decoded on read.
const tagSeparator = ","

// ChromemConfig holds configuration for the embedded chromem-go backend.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Empty means a purely
	// in-memory store (used by tests).
	Path string

	// Compress enables gzip compression of persisted data.
	Compress bool

	// Collection is the base collection name; the backend maintains three
	// parallel collections (<name>_content, <name>_summary, <name>_title),
	// one per vector kind.
	Collection string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Collection == "" {
		c.Collection = "vaultd"
	}
}

// ChromemBackend stores multi-vector records in an embedded chromem-go
// database: one collection per vector kind, searched independently and
// fused locally by reciprocal rank.
//
// chromem-go is pure Go with no external service, which makes it the
// zero-dependency default backend.
type ChromemBackend struct {
	config ChromemConfig
	logger *zap.Logger

	mu  sync.Mutex
	db  *chromem.DB
	dim int
}

// NewChromemBackend creates an embedded backend. Storage is opened by
// Initialize.
func NewChromemBackend(cfg ChromemConfig, logger *zap.Logger) (*ChromemBackend, error) {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromemBackend{
		config: cfg,
		logger: logger,
	}, nil
}

// Initialize opens (or creates) the underlying database.
func (b *ChromemBackend) Initialize(ctx context.Context) error {
	_, span := chromemTracer.Start(ctx, "ChromemBackend.Initialize")
	defer span.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db != nil {
		return nil
	}

	var (
		db  *chromem.DB
		err error
	)
	if b.config.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(b.config.Path, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", b.config.Path, err)
		}
		db, err = chromem.NewPersistentDB(b.config.Path, b.config.Compress)
		if err != nil {
			return fmt.Errorf("opening chromem DB: %w", err)
		}
	}
	b.db = db

	span.SetStatus(codes.Ok, "success")
	b.logger.Info("chromem backend initialized",
		zap.String("path", b.config.Path),
		zap.String("collection", b.config.Collection),
		zap.Bool("compress", b.config.Compress),
	)
	return nil
}

// Close is a no-op: chromem persists on write.
func (b *ChromemBackend) Close() error { return nil }

// vectorKinds in prefetch order; fusion iterates result lists in this
// order so ties resolve deterministically.
var vectorKinds = []string{vectorFieldContent, vectorFieldSummary, vectorFieldTitle}

func (b *ChromemBackend) collectionName(kind string) string {
	return b.config.Collection + "_" + kind
}

// stubEmbedding guards against accidental text queries: the backend only
// ever receives precomputed vectors.
func stubEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("chromem backend stores precomputed vectors only")
}

// getOrCreate returns the collection for a vector kind, creating it if
// needed.
func (b *ChromemBackend) getOrCreate(kind string) (*chromem.Collection, error) {
	col, err := b.db.GetOrCreateCollection(b.collectionName(kind), nil, stubEmbedding)
	if err != nil {
		return nil, fmt.Errorf("getting collection %s: %w", b.collectionName(kind), err)
	}
	return col, nil
}

// UpsertMultiVector stores the record's three vectors in their parallel
// collections. All three carry the full metadata payload so any fused hit
// can be rendered without a second lookup.
func (b *ChromemBackend) UpsertMultiVector(ctx context.Context, rec Record) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.UpsertMultiVector")
	defer span.End()
	span.SetAttributes(attribute.String("record_id", rec.ID))

	if err := rec.Validate(); err != nil {
		return err
	}
	dim, _ := rec.Vectors.Dimension()

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}
	if b.dim == 0 {
		b.dim = dim
	} else if b.dim != dim {
		return fmt.Errorf("%w: store dimension %d, record dimension %d", ErrDimensionMismatch, b.dim, dim)
	}

	meta := metadataToStrings(rec.Metadata)
	vectors := map[string][]float32{
		vectorFieldContent: rec.Vectors.Content,
		vectorFieldSummary: rec.Vectors.Summary,
		vectorFieldTitle:   rec.Vectors.Title,
	}

	for _, kind := range vectorKinds {
		col, err := b.getOrCreate(kind)
		if err != nil {
			span.RecordError(err)
			return err
		}
		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Metadata.Content,
			Metadata:  meta,
			Embedding: vectors[kind],
		}
		if err := col.AddDocuments(ctx, []chromem.Document{doc}, 1); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("adding %s vector for %s: %w", kind, rec.ID, err)
		}
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// SearchWithFusion runs three independent nearest-neighbor searches and
// combines them with the reciprocal-rank-fusion formula: each list
// contributes 1/(k+rank+1) per candidate (k = 60), summed across lists.
// Tag filtering is applied to each candidate list before ranks are
// assigned, never after fusion.
func (b *ChromemBackend) SearchWithFusion(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemBackend.SearchWithFusion")
	defer span.End()

	limit := opts.limitOrDefault()
	span.SetAttributes(attribute.Int("limit", limit))

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil, fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}

	lists := make([][]SearchResult, 0, len(vectorKinds))
	for _, kind := range vectorKinds {
		col := b.db.GetCollection(b.collectionName(kind), stubEmbedding)
		if col == nil || col.Count() == 0 {
			continue
		}

		// Over-fetch so tag filtering still leaves enough candidates;
		// chromem scans exhaustively either way.
		k := limit * 8
		if len(opts.Tags) == 0 {
			k = limit
		}
		if n := col.Count(); k > n {
			k = n
		}

		hits, err := col.QueryEmbedding(ctx, queryVector, k, nil, nil)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("querying %s vectors: %w", kind, err)
		}

		list := make([]SearchResult, 0, len(hits))
		for _, h := range hits {
			meta := metadataFromStrings(h.Metadata)
			meta.Content = h.Content
			if !matchesAnyTag(meta.Tags, opts.Tags) {
				continue
			}
			list = append(list, SearchResult{
				ID:       h.ID,
				Content:  h.Content,
				Score:    h.Similarity,
				Metadata: meta,
			})
			if len(list) == limit {
				break
			}
		}
		lists = append(lists, list)
	}

	results := fuseReciprocalRank(DefaultRRFK, limit, lists...)
	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Delete removes the record from all three collections. Missing ids are
// ignored.
func (b *ChromemBackend) Delete(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}

	for _, kind := range vectorKinds {
		col := b.db.GetCollection(b.collectionName(kind), stubEmbedding)
		if col == nil {
			continue
		}
		if err := col.Delete(ctx, nil, nil, id); err != nil {
			return fmt.Errorf("deleting %s from %s: %w", id, kind, err)
		}
	}
	return nil
}

// DeleteByFilePath removes all records for a file path from all three
// collections.
func (b *ChromemBackend) DeleteByFilePath(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}

	where := map[string]string{"file_path": path}
	for _, kind := range vectorKinds {
		col := b.db.GetCollection(b.collectionName(kind), stubEmbedding)
		if col == nil || col.Count() == 0 {
			continue
		}
		if err := col.Delete(ctx, where, nil); err != nil {
			return fmt.Errorf("deleting %s from %s: %w", path, kind, err)
		}
	}
	return nil
}

// Count returns the number of stored records (the content collection is
// authoritative; the others are parallel).
func (b *ChromemBackend) Count(ctx context.Context) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return 0, fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}

	col := b.db.GetCollection(b.collectionName(vectorFieldContent), stubEmbedding)
	if col == nil {
		return 0, nil
	}
	return uint64(col.Count()), nil
}

// Clear drops all three collections and resets the established dimension.
func (b *ChromemBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.db == nil {
		return fmt.Errorf("%w: backend not initialized", ErrBackendUnavailable)
	}

	for _, kind := range vectorKinds {
		name := b.collectionName(kind)
		if b.db.GetCollection(name, stubEmbedding) == nil {
			continue
		}
		if err := b.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("deleting collection %s: %w", name, err)
		}
	}
	b.dim = 0

	b.logger.Info("cleared chromem collections", zap.String("collection", b.config.Collection))
	return nil
}

// matchesAnyTag reports whether recordTags contains at least one of the
// wanted tags; an empty filter matches everything.
func matchesAnyTag(recordTags, wanted []string) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, w := range wanted {
		for _, t := range recordTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

// metadataToStrings flattens the closed metadata record into chromem's
// string map.
func metadataToStrings(m ChunkMetadata) map[string]string {
	return map[string]string{
		"file_path":   m.FilePath,
		"header_path": m.HeaderPath,
		"start_line":  strconv.Itoa(m.StartLine),
		"end_line":    strconv.Itoa(m.EndLine),
		"summary":     m.Summary,
		"tags":        strings.Join(m.Tags, tagSeparator),
		"word_count":  strconv.Itoa(m.WordCount),
		"indexed_at":  strconv.FormatInt(m.IndexedAt, 10),
	}
}

// metadataFromStrings rebuilds the metadata record; the content field is
// carried on the document itself.
func metadataFromStrings(m map[string]string) ChunkMetadata {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(m[key])
		return n
	}
	var tags []string
	if m["tags"] != "" {
		tags = strings.Split(m["tags"], tagSeparator)
	}
	indexedAt, _ := strconv.ParseInt(m["indexed_at"], 10, 64)
	return ChunkMetadata{
		FilePath:   m["file_path"],
		HeaderPath: m["header_path"],
		StartLine:  atoi("start_line"),
		EndLine:    atoi("end_line"),
		Summary:    m["summary"],
		Tags:       tags,
		WordCount:  atoi("word_count"),
		IndexedAt:  indexedAt,
	}
}

var _ Backend = (*ChromemBackend)(nil)
