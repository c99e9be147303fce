// Package vectorstore defines the vector backend interface and its two
// implementations: a remote Qdrant store (gRPC) and an embedded chromem-go
// store. Both hold multi-vector records (content/summary/title embeddings
// per chunk) and expose reciprocal-rank-fusion search across the three
// vector spaces.
package vectorstore

import (
	"context"
	"errors"
)

// Sentinel errors for backend operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates the backend could not be reached.
	// Callers must distinguish this from an empty result: an absent
	// collection or empty index is a valid empty state, not an error.
	ErrBackendUnavailable = errors.New("vector backend unavailable")

	// ErrDimensionMismatch is returned when a record's vectors do not match
	// the dimension the backend established from the first record.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidRecord indicates a malformed record (missing id or vectors).
	ErrInvalidRecord = errors.New("invalid record")
)

// Backend is the capability set required of a durable vector store.
//
// Implementations fix their vector dimension from the first record they
// receive and reject later mismatches with ErrDimensionMismatch. Search on
// a store that has never seen a record returns an empty result list.
type Backend interface {
	// Initialize prepares the backend (connection, storage directory).
	// Collection creation is lazy: it happens on the first upsert, once the
	// vector dimension is known.
	Initialize(ctx context.Context) error

	// UpsertMultiVector stores one record, superseding any record with the
	// same id.
	UpsertMultiVector(ctx context.Context, rec Record) error

	// SearchWithFusion runs nearest-neighbor search against all three
	// vector spaces and returns one ranking fused by reciprocal rank.
	// Tag filters apply to each per-vector search before fusion.
	SearchWithFusion(ctx context.Context, queryVector []float32, opts SearchOptions) ([]SearchResult, error)

	// Delete removes the record with the given id. Missing ids are not an
	// error.
	Delete(ctx context.Context, id string) error

	// DeleteByFilePath removes every record whose metadata file path
	// matches.
	DeleteByFilePath(ctx context.Context, path string) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (uint64, error)

	// Clear removes all records and resets the established dimension; the
	// next upsert re-creates storage.
	Clear(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
