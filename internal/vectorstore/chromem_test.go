package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) *ChromemBackend {
	t.Helper()
	b, err := NewChromemBackend(ChromemConfig{Collection: "vaultd_test"}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Initialize(context.Background()))
	return b
}

func unitVec(dim, axis int) []float32 {
	v := make([]float32, dim)
	v[axis] = 1
	return v
}

func testRecord(id, path string, axis int) Record {
	return Record{
		ID: id,
		Vectors: MultiVector{
			Content: unitVec(4, axis),
			Summary: unitVec(4, axis),
			Title:   unitVec(4, axis),
		},
		Metadata: ChunkMetadata{
			FilePath:   path,
			HeaderPath: "# T",
			StartLine:  1,
			EndLine:    3,
			Content:    "content of " + id,
			Summary:    "summary of " + id,
			Tags:       []string{"notes", "go"},
			WordCount:  3,
			IndexedAt:  time.Now().Unix(),
		},
	}
}

func TestChromemSearchEmptyIndex(t *testing.T) {
	b := newTestBackend(t)

	results, err := b.SearchWithFusion(context.Background(), unitVec(4, 0), SearchOptions{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemUpsertAndSearch(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("n.md-chunk-0", "n.md", 0)))

	results, err := b.SearchWithFusion(ctx, unitVec(4, 0), SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, "n.md-chunk-0", r.ID)
	assert.Equal(t, "content of n.md-chunk-0", r.Content)
	assert.Equal(t, "n.md", r.Metadata.FilePath)
	assert.Equal(t, "# T", r.Metadata.HeaderPath)
	assert.Equal(t, 1, r.Metadata.StartLine)
	assert.Equal(t, 3, r.Metadata.EndLine)
	assert.Equal(t, []string{"notes", "go"}, r.Metadata.Tags)

	// One record at rank 0 in all three vector spaces: 3/(k+1).
	assert.InDelta(t, 3.0/float64(DefaultRRFK+1), float64(r.Score), 1e-6)
}

func TestChromemUpsertSupersedesSameID(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("n.md-chunk-0", "n.md", 0)))

	updated := testRecord("n.md-chunk-0", "n.md", 0)
	updated.Metadata.Summary = "revised"
	require.NoError(t, b.UpsertMultiVector(ctx, updated))

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	results, err := b.SearchWithFusion(ctx, unitVec(4, 0), SearchOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "revised", results[0].Metadata.Summary)
}

func TestChromemDimensionMismatchRejected(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-0", "a.md", 0)))

	bad := Record{
		ID: "b-chunk-0",
		Vectors: MultiVector{
			Content: unitVec(8, 0),
			Summary: unitVec(8, 0),
			Title:   unitVec(8, 0),
		},
		Metadata: ChunkMetadata{FilePath: "b.md", Content: "x"},
	}
	err := b.UpsertMultiVector(ctx, bad)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemRecordWithUnequalVectorsRejected(t *testing.T) {
	b := newTestBackend(t)

	bad := Record{
		ID: "a-chunk-0",
		Vectors: MultiVector{
			Content: unitVec(4, 0),
			Summary: unitVec(4, 0),
			Title:   unitVec(6, 0),
		},
	}
	err := b.UpsertMultiVector(context.Background(), bad)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestChromemDelete(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-0", "a.md", 0)))
	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-1", "a.md", 1)))

	require.NoError(t, b.Delete(ctx, "a-chunk-0"))

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	results, err := b.SearchWithFusion(ctx, unitVec(4, 0), SearchOptions{Limit: 5})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a-chunk-1", results[0].ID)
}

func TestChromemDeleteByFilePath(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-0", "a.md", 0)))
	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-1", "a.md", 1)))
	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("b-chunk-0", "b.md", 2)))

	require.NoError(t, b.DeleteByFilePath(ctx, "a.md"))

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestChromemTagFilterAppliedBeforeFusion(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	tagged := testRecord("a-chunk-0", "a.md", 0)
	tagged.Metadata.Tags = []string{"project"}
	require.NoError(t, b.UpsertMultiVector(ctx, tagged))

	other := testRecord("b-chunk-0", "b.md", 1)
	other.Metadata.Tags = []string{"journal"}
	require.NoError(t, b.UpsertMultiVector(ctx, other))

	results, err := b.SearchWithFusion(ctx, unitVec(4, 1), SearchOptions{
		Limit: 5,
		Tags:  []string{"project", "missing"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a-chunk-0", results[0].ID)
}

func TestChromemClearResetsDimension(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.UpsertMultiVector(ctx, testRecord("a-chunk-0", "a.md", 0)))
	require.NoError(t, b.Clear(ctx))

	count, err := b.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	// A different dimension is accepted after Clear.
	rec := Record{
		ID: "c-chunk-0",
		Vectors: MultiVector{
			Content: unitVec(8, 0),
			Summary: unitVec(8, 0),
			Title:   unitVec(8, 0),
		},
		Metadata: ChunkMetadata{FilePath: "c.md", Content: "x"},
	}
	assert.NoError(t, b.UpsertMultiVector(ctx, rec))
}

func TestFactorySelectsProvider(t *testing.T) {
	b, err := New(Config{Provider: ProviderChromem, Chromem: ChromemConfig{Collection: "x"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &ChromemBackend{}, b)

	_, err = New(Config{Provider: "bogus"}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
