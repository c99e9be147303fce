package vectorstore

import "fmt"

// ChunkMetadata is the closed metadata record attached to every stored
// chunk. It replaces free-form metadata maps so the payload shape is
// validated at the backend boundary.
type ChunkMetadata struct {
	FilePath   string   `json:"file_path"`
	HeaderPath string   `json:"header_path"`
	StartLine  int      `json:"start_line"`
	EndLine    int      `json:"end_line"`
	Content    string   `json:"content"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags,omitempty"`
	WordCount  int      `json:"word_count"`
	IndexedAt  int64    `json:"indexed_at"`
}

// MultiVector holds the three independent embeddings of one chunk. All
// three must have the same dimension.
type MultiVector struct {
	Content []float32
	Summary []float32
	Title   []float32
}

// Dimension returns the shared vector dimension, or an error if the three
// vectors disagree or any is empty.
func (v MultiVector) Dimension() (int, error) {
	d := len(v.Content)
	if d == 0 {
		return 0, fmt.Errorf("%w: empty content vector", ErrInvalidRecord)
	}
	if len(v.Summary) != d || len(v.Title) != d {
		return 0, fmt.Errorf("%w: content=%d summary=%d title=%d",
			ErrDimensionMismatch, d, len(v.Summary), len(v.Title))
	}
	return d, nil
}

// Record is the unit stored in a backend: one chunk id with its three
// vectors and metadata.
type Record struct {
	ID       string
	Vectors  MultiVector
	Metadata ChunkMetadata
}

// Validate checks structural invariants of the record.
func (r Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	_, err := r.Vectors.Dimension()
	return err
}

// SearchOptions control a fused search.
type SearchOptions struct {
	// Limit is the maximum number of results. Non-positive falls back to 10.
	Limit int

	// Tags filters candidates to records carrying at least one of the given
	// tags, applied to each per-vector search before fusion.
	Tags []string
}

// limitOrDefault returns the effective result limit.
func (o SearchOptions) limitOrDefault() int {
	if o.Limit <= 0 {
		return 10
	}
	return o.Limit
}

// SearchResult is one ranked hit from a backend search.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata ChunkMetadata
}
