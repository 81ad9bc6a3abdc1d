// Package cache provides an LRU cache of per-file analysis results with
// msgpack persistence. Entries are keyed by a hash of the file content and
// of the analysis settings, so a changed file or a changed rule set misses.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/l3aro/go-sharp-flow/pkg/rules"
)

// ErrVersionMismatch is returned when a persisted cache was written by an
// incompatible version.
var ErrVersionMismatch = errors.New("cache version mismatch")

// formatVersion is bumped whenever Result changes shape.
const formatVersion = 1

// Result is the cached outcome of analyzing one file.
type Result struct {
	Path        string             `msgpack:"path"`
	Procedures  int                `msgpack:"procedures"`
	Skipped     []string           `msgpack:"skipped"`
	Diagnostics []rules.Diagnostic `msgpack:"diagnostics"`
}

// Entry represents a cache entry with metadata.
type Entry struct {
	Key        string    `msgpack:"key"`
	Value      Result    `msgpack:"value"`
	AccessedAt time.Time `msgpack:"accessed_at"`
	CreatedAt  time.Time `msgpack:"created_at"`
	Size       int       `msgpack:"size"` // estimated size in bytes
}

// Options configures the LRU cache.
type Options struct {
	// MaxEntries is the maximum number of entries. 0 means unlimited.
	MaxEntries int

	// MaxBytes is the approximate maximum size in bytes. 0 means unlimited.
	MaxBytes int64

	// OnEvict is called when an entry is evicted.
	OnEvict func(key string, value Result)
}

// Stats returns cache statistics.
type Stats struct {
	Length       int   `json:"length"`
	CurrentBytes int64 `json:"current_bytes"`
	HitCount     int64 `json:"hit_count"`
	MissCount    int64 `json:"miss_count"`
}

// LRUCache is an in-memory LRU cache that is safe for concurrent use.
type LRUCache struct {
	mu           sync.Mutex
	items        map[string]*listItem
	lru          *list
	maxEntries   int
	maxBytes     int64
	currentBytes int64
	onEvict      func(key string, value Result)
	hits, misses int64
}

// New creates a new LRU cache with the given options.
func New(opts Options) *LRUCache {
	return &LRUCache{
		items:      make(map[string]*listItem),
		lru:        &list{},
		maxEntries: opts.MaxEntries,
		maxBytes:   opts.MaxBytes,
		onEvict:    opts.OnEvict,
	}
}

// Get retrieves a value from the cache and counts the hit or miss.
func (c *LRUCache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		c.misses++
		return Result{}, false
	}
	c.hits++
	item.AccessedAt = time.Now()
	c.lru.moveToFront(item)
	return item.Value, true
}

// Set stores a value, evicting the least recently used entries when a
// limit is exceeded.
func (c *LRUCache) Set(key string, value Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	size := estimateSize(value)
	now := time.Now()
	if item, exists := c.items[key]; exists {
		c.currentBytes += int64(size - item.Size)
		item.Value = value
		item.Size = size
		item.AccessedAt = now
		c.lru.moveToFront(item)
		c.evictIfNeeded()
		return
	}

	item := &listItem{Entry: Entry{Key: key, Value: value, AccessedAt: now, CreatedAt: now, Size: size}}
	c.items[key] = item
	c.lru.pushFront(item)
	c.currentBytes += int64(size)
	c.evictIfNeeded()
}

// Delete removes a key from the cache.
func (c *LRUCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found {
		return
	}
	c.lru.remove(item)
	delete(c.items, key)
	c.currentBytes -= int64(item.Size)
}

// Clear removes all entries and resets the statistics.
func (c *LRUCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.hits, c.misses = 0, 0
}

func (c *LRUCache) reset() {
	c.items = make(map[string]*listItem)
	c.lru = &list{}
	c.currentBytes = 0
}

// Len returns the number of entries in the cache.
func (c *LRUCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns the current cache statistics.
func (c *LRUCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Length:       len(c.items),
		CurrentBytes: c.currentBytes,
		HitCount:     c.hits,
		MissCount:    c.misses,
	}
}

// HitRate returns the cache hit rate.
func (c *LRUCache) HitRate() float64 {
	s := c.Stats()
	total := s.HitCount + s.MissCount
	if total == 0 {
		return 0
	}
	return float64(s.HitCount) / float64(total)
}

func (c *LRUCache) evictIfNeeded() {
	for c.shouldEvict() {
		item := c.lru.removeBack()
		if item == nil {
			break
		}
		delete(c.items, item.Key)
		c.currentBytes -= int64(item.Size)
		if c.onEvict != nil {
			c.onEvict(item.Key, item.Value)
		}
	}
}

func (c *LRUCache) shouldEvict() bool {
	if c.maxEntries > 0 && c.lru.len > c.maxEntries {
		return true
	}
	return c.maxBytes > 0 && c.currentBytes > c.maxBytes && c.lru.len > 1
}

// snapshot is the persisted form of the cache.
type snapshot struct {
	Version int     `msgpack:"version"`
	Entries []Entry `msgpack:"entries"`
}

// Save writes the entries, most recently used first, with msgpack.
func (c *LRUCache) Save(w io.Writer) error {
	c.mu.Lock()
	data := snapshot{Version: formatVersion, Entries: make([]Entry, 0, len(c.items))}
	for item := c.lru.head; item != nil; item = item.next {
		data.Entries = append(data.Entries, item.Entry)
	}
	c.mu.Unlock()

	return msgpack.NewEncoder(w).Encode(&data)
}

// Load replaces the cache contents with entries read from r. Recency order
// is restored and the limits are applied.
func (c *LRUCache) Load(r io.Reader) error {
	var data snapshot
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if data.Version != formatVersion {
		return fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, data.Version, formatVersion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	for i := len(data.Entries) - 1; i >= 0; i-- {
		item := &listItem{Entry: data.Entries[i]}
		c.items[item.Key] = item
		c.lru.pushFront(item)
		c.currentBytes += int64(item.Size)
	}
	c.evictIfNeeded()
	return nil
}

// SaveFile persists the cache to path, creating parent directories.
func (c *LRUCache) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile loads the cache from path. A missing file leaves the cache empty.
func (c *LRUCache) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // No cache file is not an error
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}

// estimateSize approximates the memory held by a result.
func estimateSize(r Result) int {
	size := len(r.Path) + 16
	for _, s := range r.Skipped {
		size += len(s)
	}
	for _, d := range r.Diagnostics {
		size += len(d.RuleID) + len(d.Message) + len(d.Procedure) + 32
	}
	return size
}
