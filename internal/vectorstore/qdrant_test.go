package vectorstore

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestQdrantConfigDefaults(t *testing.T) {
	cfg := QdrantConfig{Collection: "vaultd"}
	cfg.ApplyDefaults()

	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 6334, cfg.Port)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.RetryBackoff)
	assert.Equal(t, 50*1024*1024, cfg.MaxMessageSize)
}

func TestQdrantConfigValidate(t *testing.T) {
	cfg := QdrantConfig{Collection: "vaultd", Port: 6334}
	assert.NoError(t, cfg.Validate())

	cfg = QdrantConfig{Collection: "", Port: 6334}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = QdrantConfig{Collection: "vaultd", Port: 0}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = QdrantConfig{Collection: "vaultd", Port: 99999}
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestErrorClassification(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "connection refused")
	deadline := status.Error(codes.DeadlineExceeded, "timeout")
	notFound := status.Error(codes.NotFound, "no such collection")
	aborted := status.Error(codes.Aborted, "conflict")

	assert.True(t, isTransientError(unavailable))
	assert.True(t, isTransientError(deadline))
	assert.True(t, isTransientError(aborted))
	assert.False(t, isTransientError(notFound))
	assert.False(t, isTransientError(errors.New("plain error")))

	assert.True(t, isUnreachableError(unavailable))
	assert.True(t, isUnreachableError(deadline))
	assert.False(t, isUnreachableError(aborted))
	assert.False(t, isUnreachableError(notFound))
}

func TestPayloadRoundTrip(t *testing.T) {
	meta := ChunkMetadata{
		FilePath:   "notes/a.md",
		HeaderPath: "# Guide > ## Setup",
		StartLine:  4,
		EndLine:    12,
		Content:    "chunk body",
		Summary:    "a summary",
		Tags:       []string{"go", "search"},
		WordCount:  2,
		IndexedAt:  1700000000,
	}

	payload := payloadFromMetadata("notes/a.md-chunk-1", meta)
	id, got := metadataFromPayload(payload)

	assert.Equal(t, "notes/a.md-chunk-1", id)
	assert.Equal(t, meta, got)
}

func TestPointFromRecord(t *testing.T) {
	rec := Record{
		ID: "notes/a.md-chunk-0",
		Vectors: MultiVector{
			Content: []float32{1, 0},
			Summary: []float32{0, 1},
			Title:   []float32{0.5, 0.5},
		},
		Metadata: ChunkMetadata{FilePath: "notes/a.md", Content: "body"},
	}

	point := pointFromRecord(rec)

	wantID := uuid.NewSHA1(uuid.NameSpaceURL, []byte(rec.ID)).String()
	assert.Equal(t, wantID, point.GetId().GetUuid())

	named := point.GetVectors().GetVectors().GetVectors()
	require.Len(t, named, 3)
	assert.Equal(t, rec.Vectors.Content, named[vectorFieldContent].GetData())
	assert.Equal(t, rec.Vectors.Summary, named[vectorFieldSummary].GetData())
	assert.Equal(t, rec.Vectors.Title, named[vectorFieldTitle].GetData())

	// Re-indexing the same chunk id must target the same point.
	assert.Equal(t, wantID, pointFromRecord(rec).GetId().GetUuid())
}

func TestTagFilter(t *testing.T) {
	assert.Nil(t, tagFilter(nil))

	f := tagFilter([]string{"go", "search"})
	assert.Len(t, f.Must, 1)
}
