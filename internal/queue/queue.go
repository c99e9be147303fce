// Package queue buffers index records between the indexer and the vector
// backend. Records are deduplicated by id (last write wins) and flushed in
// batches, either when the queue reaches batchSize or on a periodic timer.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

const (
	// DefaultBatchSize triggers an asynchronous flush once this many
	// distinct ids are pending.
	DefaultBatchSize = 10

	// DefaultFlushInterval is the periodic flush cadence.
	DefaultFlushInterval = 30 * time.Second
)

// Stats is a snapshot of queue counters.
type Stats struct {
	Pending       int   `json:"pending"`
	TotalFlushed  int64 `json:"total_flushed"`
	FlushCount    int64 `json:"flush_count"`
	FailedFlushes int64 `json:"failed_flushes"`
}

// PersistQueue accumulates records and writes them to a backend. At most one
// pending copy exists per record id; re-enqueueing an id replaces its payload
// without changing its position in flush order.
type PersistQueue struct {
	backend       vectorstore.Backend
	logger        *zap.Logger
	batchSize     int
	flushInterval time.Duration

	mu      sync.Mutex
	entries map[string]*vectorstore.Record
	order   []string

	totalFlushed  int64
	flushCount    int64
	failedFlushes int64

	kick     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures a PersistQueue.
type Option func(*PersistQueue)

// WithBatchSize sets the size threshold that triggers an async flush.
func WithBatchSize(n int) Option {
	return func(q *PersistQueue) {
		if n > 0 {
			q.batchSize = n
		}
	}
}

// WithFlushInterval sets the periodic flush cadence.
func WithFlushInterval(d time.Duration) Option {
	return func(q *PersistQueue) {
		if d > 0 {
			q.flushInterval = d
		}
	}
}

// New creates a queue and starts its background flush worker. Call Stop to
// shut the worker down.
func New(backend vectorstore.Backend, logger *zap.Logger, opts ...Option) *PersistQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &PersistQueue{
		backend:       backend,
		logger:        logger,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		entries:       make(map[string]*vectorstore.Record),
		kick:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.wg.Add(1)
	go q.worker()
	return q
}

// Enqueue adds or replaces the record for rec.ID. When the queue reaches
// batchSize an asynchronous flush is signalled; flush failures there are
// logged, not returned.
func (q *PersistQueue) Enqueue(rec vectorstore.Record) {
	q.mu.Lock()
	if _, ok := q.entries[rec.ID]; !ok {
		q.order = append(q.order, rec.ID)
	}
	r := rec
	q.entries[rec.ID] = &r
	pending := len(q.entries)
	q.mu.Unlock()

	if pending >= q.batchSize {
		select {
		case q.kick <- struct{}{}:
		default:
		}
	}
}

// Flush writes all pending records to the backend, one upsert per record.
// On success the flushed records are removed; a record re-enqueued while the
// flush was in flight stays pending for the next cycle. On failure nothing
// is removed and the error is returned.
func (q *PersistQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.entries) == 0 {
		q.mu.Unlock()
		return nil
	}
	snapshot := make([]*vectorstore.Record, 0, len(q.order))
	for _, id := range q.order {
		snapshot = append(snapshot, q.entries[id])
	}
	q.mu.Unlock()

	for _, rec := range snapshot {
		if err := q.backend.UpsertMultiVector(ctx, *rec); err != nil {
			q.mu.Lock()
			q.failedFlushes++
			q.mu.Unlock()
			return fmt.Errorf("flush record %s: %w", rec.ID, err)
		}
	}

	q.mu.Lock()
	flushed := 0
	for _, rec := range snapshot {
		// Only remove entries that were not replaced mid-flush.
		if cur, ok := q.entries[rec.ID]; ok && cur == rec {
			delete(q.entries, rec.ID)
			flushed++
		}
	}
	q.compactOrderLocked()
	q.totalFlushed += int64(flushed)
	q.flushCount++
	q.mu.Unlock()

	q.logger.Debug("queue flushed", zap.Int("records", flushed))
	return nil
}

// FlushFilePath persists only the pending records for one file path, with the
// same retained-on-failure and re-enqueue semantics as Flush: a record
// replaced while its upsert was in flight stays pending for the next cycle.
// Returns how many records were persisted and removed.
func (q *PersistQueue) FlushFilePath(ctx context.Context, path string) (int, error) {
	q.mu.Lock()
	var snapshot []*vectorstore.Record
	for _, id := range q.order {
		if rec, ok := q.entries[id]; ok && rec.Metadata.FilePath == path {
			snapshot = append(snapshot, rec)
		}
	}
	q.mu.Unlock()
	if len(snapshot) == 0 {
		return 0, nil
	}

	for _, rec := range snapshot {
		if err := q.backend.UpsertMultiVector(ctx, *rec); err != nil {
			q.mu.Lock()
			q.failedFlushes++
			q.mu.Unlock()
			return 0, fmt.Errorf("flush record %s: %w", rec.ID, err)
		}
	}

	q.mu.Lock()
	flushed := 0
	for _, rec := range snapshot {
		if cur, ok := q.entries[rec.ID]; ok && cur == rec {
			delete(q.entries, rec.ID)
			flushed++
		}
	}
	if flushed > 0 {
		q.compactOrderLocked()
	}
	q.totalFlushed += int64(flushed)
	q.flushCount++
	q.mu.Unlock()

	q.logger.Debug("file flushed", zap.String("path", path), zap.Int("records", flushed))
	return flushed, nil
}

// GetByFilePath returns pending records whose metadata file path matches, in
// insertion order.
func (q *PersistQueue) GetByFilePath(path string) []vectorstore.Record {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []vectorstore.Record
	for _, id := range q.order {
		if rec, ok := q.entries[id]; ok && rec.Metadata.FilePath == path {
			out = append(out, *rec)
		}
	}
	return out
}

// RemoveByFilePath drops pending records for the given file path and returns
// how many were removed.
func (q *PersistQueue) RemoveByFilePath(path string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, rec := range q.entries {
		if rec.Metadata.FilePath == path {
			delete(q.entries, id)
			removed++
		}
	}
	if removed > 0 {
		q.compactOrderLocked()
	}
	return removed
}

// Clear drops all pending records without flushing them.
func (q *PersistQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[string]*vectorstore.Record)
	q.order = q.order[:0]
}

// Len reports the number of pending records.
func (q *PersistQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Stats returns a snapshot of the queue counters.
func (q *PersistQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:       len(q.entries),
		TotalFlushed:  q.totalFlushed,
		FlushCount:    q.flushCount,
		FailedFlushes: q.failedFlushes,
	}
}

// Stop shuts down the background worker and performs a final flush of any
// pending records. Safe to call more than once.
func (q *PersistQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.done)
		q.wg.Wait()
		if err := q.Flush(context.Background()); err != nil {
			q.logger.Warn("final flush failed", zap.Error(err))
		}
	})
}

func (q *PersistQueue) worker() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.done:
			return
		case <-q.kick:
			q.flushAsync()
		case <-ticker.C:
			q.flushAsync()
		}
	}
}

func (q *PersistQueue) flushAsync() {
	if err := q.Flush(context.Background()); err != nil {
		q.logger.Warn("background flush failed, records retained", zap.Error(err))
	}
}

// compactOrderLocked rebuilds the insertion-order slice to match the entries
// map. Caller holds q.mu.
func (q *PersistQueue) compactOrderLocked() {
	kept := q.order[:0]
	for _, id := range q.order {
		if _, ok := q.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	q.order = kept
}
