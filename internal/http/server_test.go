package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/indexer"
	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

// fakeIndex records calls and returns scripted results.
type fakeIndex struct {
	indexed   map[string]string
	updated   map[string]string
	removed   []string
	flushed   int
	cleared   int
	results   []vectorstore.SearchResult
	searchErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		indexed: make(map[string]string),
		updated: make(map[string]string),
	}
}

func (f *fakeIndex) IndexFile(_ context.Context, path, text string) error {
	f.indexed[path] = text
	return nil
}

func (f *fakeIndex) UpdateFile(_ context.Context, path, text string) error {
	f.updated[path] = text
	return nil
}

func (f *fakeIndex) RemoveFile(_ context.Context, path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeIndex) Search(context.Context, string, vectorstore.SearchOptions) ([]vectorstore.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.results, nil
}

func (f *fakeIndex) Flush(context.Context) error { f.flushed++; return nil }
func (f *fakeIndex) Clear(context.Context) error { f.cleared++; return nil }

func (f *fakeIndex) Stats(context.Context) indexer.Stats {
	return indexer.Stats{CacheEntries: 2, BackendRecords: 5, BackendReachable: true}
}

func newTestServer(t *testing.T, idx Index) *Server {
	t.Helper()
	s, err := NewServer(idx, zap.NewNop(), Config{})
	require.NoError(t, err)
	return s
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, newFakeIndex())

	rec := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestIndexEndpoint(t *testing.T) {
	idx := newFakeIndex()
	s := newTestServer(t, idx)

	rec := do(s, http.MethodPost, "/api/v1/index", `{"path":"a.md","text":"hello"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "hello", idx.indexed["a.md"])

	rec = do(s, http.MethodPost, "/api/v1/index", `{"path":"a.md","text":"revised","update":true}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "revised", idx.updated["a.md"])
}

func TestIndexRequiresPath(t *testing.T) {
	s := newTestServer(t, newFakeIndex())

	rec := do(s, http.MethodPost, "/api/v1/index", `{"text":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	idx := newFakeIndex()
	idx.results = []vectorstore.SearchResult{
		{
			ID:      "a.md-chunk-0",
			Score:   0.92,
			Content: "hello world",
			Metadata: vectorstore.ChunkMetadata{
				FilePath:   "a.md",
				HeaderPath: "# T",
				StartLine:  1,
				EndLine:    3,
			},
		},
	}
	s := newTestServer(t, idx)

	rec := do(s, http.MethodPost, "/api/v1/search", `{"query":"hello","limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.md-chunk-0", resp.Results[0].ID)
	assert.Equal(t, "a.md", resp.Results[0].Metadata.FilePath)
}

func TestSearchEmptyIndexReturnsEmptyList(t *testing.T) {
	s := newTestServer(t, newFakeIndex())

	rec := do(s, http.MethodPost, "/api/v1/search", `{"query":"hello"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestSearchBackendUnavailableIs503(t *testing.T) {
	idx := newFakeIndex()
	idx.searchErr = vectorstore.ErrBackendUnavailable
	s := newTestServer(t, idx)

	rec := do(s, http.MethodPost, "/api/v1/search", `{"query":"hello"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchRequiresQuery(t *testing.T) {
	s := newTestServer(t, newFakeIndex())

	rec := do(s, http.MethodPost, "/api/v1/search", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFlushRemoveClear(t *testing.T) {
	idx := newFakeIndex()
	s := newTestServer(t, idx)

	rec := do(s, http.MethodPost, "/api/v1/flush", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, idx.flushed)

	rec = do(s, http.MethodPost, "/api/v1/remove", `{"path":"a.md"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"a.md"}, idx.removed)

	rec = do(s, http.MethodPost, "/api/v1/clear", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, idx.cleared)
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, newFakeIndex())

	rec := do(s, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats indexer.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.CacheEntries)
	assert.Equal(t, uint64(5), stats.BackendRecords)
	assert.True(t, stats.BackendReachable)
}
