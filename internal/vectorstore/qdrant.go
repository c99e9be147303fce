package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var qdrantTracer = otel.Tracer("vaultd.vectorstore.qdrant")

// Named vector fields of the collection. Every record carries one
// embedding per field; fused search prefetches all three.
const (
	vectorFieldContent = "content"
	vectorFieldSummary = "summary"
	vectorFieldTitle   = "title"
)

// QdrantConfig holds configuration for the Qdrant gRPC backend.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the Qdrant gRPC port (6334, not the 6333 REST port).
	Port int

	// Collection is the collection holding this installation's records.
	Collection string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// MaxRetries is the retry budget for transient failures. Default: 3.
	MaxRetries int

	// RetryBackoff is the initial retry backoff, doubling per attempt.
	// Default: 1s.
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size. Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	return nil
}

// isTransientError reports whether an error should be retried.
func isTransientError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// isUnreachableError reports whether an error means the backend could not
// be reached, as opposed to a not-found or invalid-argument condition.
func isUnreachableError(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

// QdrantBackend stores multi-vector records in a remote Qdrant instance
// over its native gRPC transport. Fusion is delegated to Qdrant's Query
// API: three prefetch sub-queries (one per named vector) combined with
// reciprocal-rank fusion server-side.
type QdrantBackend struct {
	client *qdrant.Client
	config QdrantConfig
	logger *zap.Logger

	// mu guards dimension establishment and lazy collection creation.
	mu      sync.Mutex
	dim     int
	ensured bool
}

// NewQdrantBackend creates a backend for the given configuration. The
// connection is established and health-checked by Initialize.
func NewQdrantBackend(cfg QdrantConfig, logger *zap.Logger) (*QdrantBackend, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		UseTLS: cfg.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(cfg.MaxMessageSize),
				grpc.MaxCallSendMsgSize(cfg.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	return &QdrantBackend{
		client: client,
		config: cfg,
		logger: logger,
	}, nil
}

// Initialize verifies connectivity. Collection creation is deferred until
// the first upsert establishes the vector dimension.
func (b *QdrantBackend) Initialize(ctx context.Context) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.Initialize")
	defer span.End()

	if _, err := b.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: health check: %v", ErrBackendUnavailable, err)
	}

	span.SetStatus(codes.Ok, "healthy")
	b.logger.Info("qdrant backend initialized",
		zap.String("host", b.config.Host),
		zap.Int("port", b.config.Port),
		zap.String("collection", b.config.Collection),
	)
	return nil
}

// Close closes the gRPC connection.
func (b *QdrantBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// retry runs op with exponential backoff on transient failures.
func (b *QdrantBackend) retry(ctx context.Context, name string, op func() error) error {
	backoff := b.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransientError(err) {
			return fmt.Errorf("%s failed: %w", name, err)
		}
		if attempt == b.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, b.config.MaxRetries, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", name, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
}

// ensureCollection lazily creates the collection with three named vector
// fields once the dimension is known. A concurrent writer winning the
// create race is treated as success.
func (b *QdrantBackend) ensureCollection(ctx context.Context, dim int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.dim == 0 {
		b.dim = dim
	} else if b.dim != dim {
		return fmt.Errorf("%w: collection dimension %d, record dimension %d", ErrDimensionMismatch, b.dim, dim)
	}
	if b.ensured {
		return nil
	}

	exists, err := b.client.CollectionExists(ctx, b.config.Collection)
	if err != nil {
		if isUnreachableError(err) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return fmt.Errorf("checking collection %s: %w", b.config.Collection, err)
	}
	if exists {
		b.ensured = true
		return nil
	}

	params := func() *qdrant.VectorParams {
		return &qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}
	}
	err = b.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: b.config.Collection,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			vectorFieldContent: params(),
			vectorFieldSummary: params(),
			vectorFieldTitle:   params(),
		}),
	})
	if err != nil {
		st, ok := status.FromError(err)
		already := (ok && st.Code() == grpccodes.AlreadyExists) ||
			strings.Contains(err.Error(), "already exists")
		if !already {
			if isUnreachableError(err) {
				return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			return fmt.Errorf("creating collection %s: %w", b.config.Collection, err)
		}
	}

	b.ensured = true
	b.logger.Info("created qdrant collection",
		zap.String("collection", b.config.Collection),
		zap.Int("dimension", dim),
	)
	return nil
}

// collectionKnown reports whether the collection exists, without creating
// it. Used by read paths so an empty index yields empty results.
func (b *QdrantBackend) collectionKnown(ctx context.Context) (bool, error) {
	b.mu.Lock()
	if b.ensured {
		b.mu.Unlock()
		return true, nil
	}
	b.mu.Unlock()

	exists, err := b.client.CollectionExists(ctx, b.config.Collection)
	if err != nil {
		if isUnreachableError(err) {
			return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return false, fmt.Errorf("checking collection %s: %w", b.config.Collection, err)
	}
	if exists {
		b.mu.Lock()
		b.ensured = true
		b.mu.Unlock()
	}
	return exists, nil
}

// UpsertMultiVector stores one record under a UUIDv5 point id derived from
// the chunk id, so re-indexing the same chunk supersedes the old point.
func (b *QdrantBackend) UpsertMultiVector(ctx context.Context, rec Record) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.UpsertMultiVector")
	defer span.End()
	span.SetAttributes(
		attribute.String("record_id", rec.ID),
		attribute.String("collection", b.config.Collection),
	)

	if err := rec.Validate(); err != nil {
		return err
	}
	dim, _ := rec.Vectors.Dimension()

	if err := b.ensureCollection(ctx, dim); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	point := pointFromRecord(rec)

	err := b.retry(ctx, "upsert", func() error {
		_, err := b.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: b.config.Collection,
			Points:         []*qdrant.PointStruct{point},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isUnreachableError(err) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// pointFromRecord builds the named-vector point for a record. The point id is
// a UUIDv5 of the chunk id so the same chunk always maps to the same point.
func pointFromRecord(rec Record) *qdrant.PointStruct {
	return &qdrant.PointStruct{
		Id: qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceURL, []byte(rec.ID)).String()),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
			vectorFieldContent: qdrant.NewVector(rec.Vectors.Content...),
			vectorFieldSummary: qdrant.NewVector(rec.Vectors.Summary...),
			vectorFieldTitle:   qdrant.NewVector(rec.Vectors.Title...),
		}),
		Payload: payloadFromMetadata(rec.ID, rec.Metadata),
	}
}

// SearchWithFusion queries all three named vectors with the same query
// embedding and lets Qdrant fuse the rankings by reciprocal rank. A
// missing collection returns an empty result list.
func (b *QdrantBackend) SearchWithFusion(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.SearchWithFusion")
	defer span.End()

	limit := opts.limitOrDefault()
	span.SetAttributes(
		attribute.String("collection", b.config.Collection),
		attribute.Int("limit", limit),
	)

	known, err := b.collectionKnown(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !known {
		span.SetStatus(codes.Ok, "empty index")
		return []SearchResult{}, nil
	}

	filter := tagFilter(opts.Tags)
	prefetchLimit := qdrant.PtrOf(uint64(limit))
	prefetch := make([]*qdrant.PrefetchQuery, 0, 3)
	for _, field := range []string{vectorFieldContent, vectorFieldSummary, vectorFieldTitle} {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query:  qdrant.NewQuery(queryVector...),
			Using:  qdrant.PtrOf(field),
			Filter: filter,
			Limit:  prefetchLimit,
		})
	}

	var points []*qdrant.ScoredPoint
	err = b.retry(ctx, "search", func() error {
		res, err := b.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: b.config.Collection,
			Prefetch:       prefetch,
			Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
			Limit:          qdrant.PtrOf(uint64(limit)),
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return err
		}
		points = res
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isUnreachableError(err) {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return nil, err
	}

	results := make([]SearchResult, len(points))
	for i, p := range points {
		id, meta := metadataFromPayload(p.Payload)
		results[i] = SearchResult{
			ID:       id,
			Content:  meta.Content,
			Score:    p.Score,
			Metadata: meta,
		}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Delete removes the record with the given chunk id by matching the id
// stored in the payload.
func (b *QdrantBackend) Delete(ctx context.Context, id string) error {
	return b.deleteByField(ctx, "id", id)
}

// DeleteByFilePath removes every record for the given file path.
func (b *QdrantBackend) DeleteByFilePath(ctx context.Context, path string) error {
	return b.deleteByField(ctx, "file_path", path)
}

func (b *QdrantBackend) deleteByField(ctx context.Context, field, value string) error {
	ctx, span := qdrantTracer.Start(ctx, "QdrantBackend.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("field", field))

	known, err := b.collectionKnown(ctx)
	if err != nil {
		return err
	}
	if !known {
		return nil
	}

	err = b.retry(ctx, "delete", func() error {
		_, err := b.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: b.config.Collection,
			Points: &qdrant.PointsSelector{
				PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
					Filter: &qdrant.Filter{
						Must: []*qdrant.Condition{keywordCondition(field, value)},
					},
				},
			},
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if isUnreachableError(err) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Count returns the exact number of stored points; zero when the
// collection has not been created yet.
func (b *QdrantBackend) Count(ctx context.Context) (uint64, error) {
	known, err := b.collectionKnown(ctx)
	if err != nil {
		return 0, err
	}
	if !known {
		return 0, nil
	}

	var count uint64
	err = b.retry(ctx, "count", func() error {
		n, err := b.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: b.config.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		if isUnreachableError(err) {
			return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		return 0, err
	}
	return count, nil
}

// Clear drops the collection; the next upsert re-creates it and
// re-establishes the dimension.
func (b *QdrantBackend) Clear(ctx context.Context) error {
	known, err := b.collectionKnown(ctx)
	if err != nil {
		return err
	}
	if known {
		if err := b.client.DeleteCollection(ctx, b.config.Collection); err != nil {
			if isUnreachableError(err) {
				return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			return fmt.Errorf("deleting collection %s: %w", b.config.Collection, err)
		}
	}

	b.mu.Lock()
	b.dim = 0
	b.ensured = false
	b.mu.Unlock()

	b.logger.Info("cleared qdrant collection", zap.String("collection", b.config.Collection))
	return nil
}

// keywordCondition builds an exact keyword match condition. For list
// payloads (tags) Qdrant matches when any element equals the keyword.
func keywordCondition(field, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key: field,
				Match: &qdrant.Match{
					MatchValue: &qdrant.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

// tagFilter builds an any-of tag filter, or nil when no tags are given.
func tagFilter(tags []string) *qdrant.Filter {
	if len(tags) == 0 {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: "tags",
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keywords{
								Keywords: &qdrant.RepeatedStrings{Strings: tags},
							},
						},
					},
				},
			},
		},
	}
}

// payloadFromMetadata renders the closed metadata record as a Qdrant
// payload. The chunk id is stored alongside so point-deletes and result
// mapping work on chunk ids rather than UUIDs.
func payloadFromMetadata(id string, m ChunkMetadata) map[string]*qdrant.Value {
	str := func(s string) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: s}}
	}
	num := func(n int64) *qdrant.Value {
		return &qdrant.Value{Kind: &qdrant.Value_IntegerValue{IntegerValue: n}}
	}

	tagValues := make([]*qdrant.Value, len(m.Tags))
	for i, t := range m.Tags {
		tagValues[i] = str(t)
	}

	return map[string]*qdrant.Value{
		"id":          str(id),
		"file_path":   str(m.FilePath),
		"header_path": str(m.HeaderPath),
		"start_line":  num(int64(m.StartLine)),
		"end_line":    num(int64(m.EndLine)),
		"content":     str(m.Content),
		"summary":     str(m.Summary),
		"tags":        {Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: tagValues}}},
		"word_count":  num(int64(m.WordCount)),
		"indexed_at":  num(m.IndexedAt),
	}
}

// metadataFromPayload rebuilds the chunk id and metadata from a payload.
func metadataFromPayload(payload map[string]*qdrant.Value) (string, ChunkMetadata) {
	str := func(key string) string {
		if v, ok := payload[key]; ok {
			if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
				return s.StringValue
			}
		}
		return ""
	}
	num := func(key string) int64 {
		if v, ok := payload[key]; ok {
			if n, ok := v.Kind.(*qdrant.Value_IntegerValue); ok {
				return n.IntegerValue
			}
		}
		return 0
	}

	var tags []string
	if v, ok := payload["tags"]; ok {
		if l, ok := v.Kind.(*qdrant.Value_ListValue); ok && l.ListValue != nil {
			for _, tv := range l.ListValue.Values {
				if s, ok := tv.Kind.(*qdrant.Value_StringValue); ok {
					tags = append(tags, s.StringValue)
				}
			}
		}
	}

	meta := ChunkMetadata{
		FilePath:   str("file_path"),
		HeaderPath: str("header_path"),
		StartLine:  int(num("start_line")),
		EndLine:    int(num("end_line")),
		Content:    str("content"),
		Summary:    str("summary"),
		Tags:       tags,
		WordCount:  int(num("word_count")),
		IndexedAt:  num("indexed_at"),
	}
	return str("id"), meta
}

var _ Backend = (*QdrantBackend)(nil)
