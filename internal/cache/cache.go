// Package cache provides a byte-budgeted LRU cache of embedded chunks.
//
// The cache backs ambient (zero-latency) search: the indexer writes every
// embedded chunk here so queries can scan recent material without touching
// the durable backend. Eviction is strictly least-recently-used within a
// fixed byte budget.
package cache

import (
	"encoding/json"
	"sync"

	"github.com/fyrsmithlabs/vaultd/internal/vectorstore"
)

const (
	// DefaultMaxSize is the default cache budget (50MB).
	DefaultMaxSize = 50 * 1024 * 1024

	// entryOverhead is the fixed per-entry bookkeeping cost in the size
	// estimate.
	entryOverhead = 100
)

// Entry is one cached chunk: the content-vector embedding plus the chunk's
// metadata. Entries are owned exclusively by the cache and evicted by LRU
// recency, never by the document owner.
type Entry struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  vectorstore.ChunkMetadata
	Timestamp int64
}

type item struct {
	entry    Entry
	size     int
	lastUsed uint64
}

// MemoryCache is a fixed-byte-budget LRU cache keyed by chunk id.
//
// All operations are safe for concurrent use.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]*item
	maxSize int
	curSize int
	clock   uint64 // logical clock, bumped on every get and set
}

// New creates a MemoryCache with the given byte budget. A non-positive
// budget falls back to DefaultMaxSize.
func New(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &MemoryCache{
		items:   make(map[string]*item),
		maxSize: maxSize,
	}
}

// entrySize approximates the memory footprint of an entry: UTF-16 content,
// 64-bit floats, stringified metadata, and fixed overhead.
func entrySize(e Entry) int {
	meta, _ := json.Marshal(e.Metadata)
	return 2*len(e.Content) + 8*len(e.Embedding) + 2*len(meta) + entryOverhead
}

// Set inserts or overwrites the entry for id, evicting least-recently-used
// entries until the new entry fits. A single entry larger than the budget
// is still admitted; the cache then holds just that entry over budget.
func (c *MemoryCache) Set(id string, e Entry) {
	size := entrySize(e)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[id]; ok {
		c.curSize -= old.size
		delete(c.items, id)
	}

	for c.curSize+size > c.maxSize && len(c.items) > 0 {
		c.evictOldestLocked()
	}

	c.clock++
	c.items[id] = &item{entry: e, size: size, lastUsed: c.clock}
	c.curSize += size
}

// evictOldestLocked removes the single least-recently-touched entry.
func (c *MemoryCache) evictOldestLocked() {
	var oldestID string
	var oldest uint64
	first := true
	for id, it := range c.items {
		if first || it.lastUsed < oldest {
			oldestID = id
			oldest = it.lastUsed
			first = false
		}
	}
	if !first {
		c.curSize -= c.items[oldestID].size
		delete(c.items, oldestID)
	}
}

// Get returns the entry for id and whether it was present. A hit refreshes
// the entry's recency.
func (c *MemoryCache) Get(id string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[id]
	if !ok {
		return Entry{}, false
	}
	c.clock++
	it.lastUsed = c.clock
	return it.entry, true
}

// Has reports whether id is present without touching recency.
func (c *MemoryCache) Has(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[id]
	return ok
}

// Delete removes the entry for id if present.
func (c *MemoryCache) Delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[id]; ok {
		c.curSize -= it.size
		delete(c.items, id)
	}
}

// DeleteByFilePath removes all entries whose metadata file path matches
// and returns how many were removed.
func (c *MemoryCache) DeleteByFilePath(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for id, it := range c.items {
		if it.entry.Metadata.FilePath == path {
			c.curSize -= it.size
			delete(c.items, id)
			removed++
		}
	}
	return removed
}

// GetByFilePath returns all entries for the given file path without
// touching recency.
func (c *MemoryCache) GetByFilePath(path string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entries []Entry
	for _, it := range c.items {
		if it.entry.Metadata.FilePath == path {
			entries = append(entries, it.entry)
		}
	}
	return entries
}

// GetAll returns a snapshot of all entries without touching recency.
func (c *MemoryCache) GetAll() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := make([]Entry, 0, len(c.items))
	for _, it := range c.items {
		entries = append(entries, it.entry)
	}
	return entries
}

// Clear removes all entries.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*item)
	c.curSize = 0
}

// Size returns the number of cached entries.
func (c *MemoryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CurrentSize returns the summed computed size of all entries in bytes.
func (c *MemoryCache) CurrentSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curSize
}

// MaxSize returns the configured byte budget.
func (c *MemoryCache) MaxSize() int { return c.maxSize }
