// Package anacache implements the analysis cache (spec.md §4.9): a
// small TTL-plus-LRU cache of expensive tool results, keyed by
// (tool_name, parameter hash, optional target).
package anacache

import (
	"container/list"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultMaxEntries   = 1000
	defaultMaxBytes     = 50 * 1024 * 1024
	defaultTTL          = 10 * time.Minute
)

// perToolTTL mirrors spec.md §4.9's named overrides.
var perToolTTL = map[string]time.Duration{
	"trace_inheritance": time.Hour,
	"find_dependencies": 15 * time.Minute,
	"search_symbols":    5 * time.Minute,
}

// Cacheable is the whitelist of tools the cache applies to (spec.md
// §4.9: "Only a whitelisted set of tools is cached; fast tools are
// never cached.").
var Cacheable = map[string]bool{
	"trace_inheritance":  true,
	"find_dependencies":  true,
	"search_symbols":     true,
	"search_content":     true,
	"analyze_complexity": true,
	"detect_patterns":    true,
}

// Key identifies one cached result.
type Key struct {
	ToolName string
	ParamsHash uint64
	Target   string
}

func (k Key) string() string {
	return fmt.Sprintf("%s\x00%x\x00%s", k.ToolName, k.ParamsHash, k.Target)
}

// HashParams derives the ParamsHash field of a Key from an arbitrary
// JSON-marshalable parameter object.
func HashParams(params any) (uint64, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	return xxhash.Sum64(b), nil
}

// Entry is one cached value plus its bookkeeping (spec.md §4.9).
type Entry struct {
	Key         Key
	Result      any
	CachedAt    time.Time
	TTL         time.Duration
	AccessCount int64
	LastAccess  time.Time
	SizeBytes   int64
}

func (e *Entry) expired(now time.Time) bool {
	return now.Sub(e.CachedAt) > e.TTL
}

type record struct {
	entry *Entry
}

// Cache is the TTL-plus-LRU analysis cache.
type Cache struct {
	mu sync.Mutex

	maxEntries int
	maxBytes   int64

	items      map[string]*list.Element
	order      *list.List // front = most recently used
	totalBytes int64

	hits   int64
	misses int64
}

// Option configures a Cache at construction.
type Option func(*Cache)

// WithMaxEntries overrides the default entry-count limit.
func WithMaxEntries(n int) Option { return func(c *Cache) { c.maxEntries = n } }

// WithMaxBytes overrides the default total-size limit.
func WithMaxBytes(n int64) Option { return func(c *Cache) { c.maxBytes = n } }

// New creates an empty Cache with spec.md §4.9's defaults, as
// overridden by opts.
func New(opts ...Option) *Cache {
	c := &Cache{
		maxEntries: defaultMaxEntries,
		maxBytes:   defaultMaxBytes,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ttlFor returns the configured TTL for toolName, falling back to the
// global default.
func ttlFor(toolName string) time.Duration {
	if ttl, ok := perToolTTL[toolName]; ok {
		return ttl
	}
	return defaultTTL
}

// Get returns the cached result for key if present and unexpired,
// marking it as recently used.
func (c *Cache) Get(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key.string()]
	if !ok {
		c.misses++
		return nil, false
	}
	rec := elem.Value.(*record)
	if rec.entry.expired(time.Now()) {
		c.removeElementLocked(elem)
		c.misses++
		return nil, false
	}
	rec.entry.AccessCount++
	rec.entry.LastAccess = time.Now()
	c.order.MoveToFront(elem)
	c.hits++
	return rec.entry.Result, true
}

// Set stores result under key, evicting by LRU score if the cache is
// over its entry-count or byte-size limit afterward.
func (c *Cache) Set(key Key, result any, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	entry := &Entry{
		Key:        key,
		Result:     result,
		CachedAt:   now,
		TTL:        ttlFor(key.ToolName),
		LastAccess: now,
		SizeBytes:  sizeBytes,
	}

	if elem, ok := c.items[key.string()]; ok {
		c.totalBytes -= elem.Value.(*record).entry.SizeBytes
		elem.Value.(*record).entry = entry
		c.order.MoveToFront(elem)
	} else {
		elem := c.order.PushFront(&record{entry: entry})
		c.items[key.string()] = elem
	}
	c.totalBytes += sizeBytes

	c.evictOverBudgetLocked()
}

// evictOverBudgetLocked evicts from the back of the LRU order (the
// least recently used entry) until both limits are satisfied. Order is
// by recency alone; AccessCount is not consulted when choosing a victim.
func (c *Cache) evictOverBudgetLocked() {
	for c.order.Len() > c.maxEntries || c.totalBytes > c.maxBytes {
		back := c.order.Back()
		if back == nil {
			return
		}
		c.removeElementLocked(back)
	}
}

func (c *Cache) removeElementLocked(elem *list.Element) {
	rec := elem.Value.(*record)
	c.order.Remove(elem)
	delete(c.items, rec.entry.Key.string())
	c.totalBytes -= rec.entry.SizeBytes
}

// CleanupExpired removes every entry whose TTL has elapsed, returning
// the count removed.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element
	for e := c.order.Front(); e != nil; e = e.Next() {
		if e.Value.(*record).entry.expired(now) {
			toRemove = append(toRemove, e)
		}
	}
	for _, e := range toRemove {
		c.removeElementLocked(e)
	}
	return len(toRemove)
}

// InvalidateByPattern removes every entry whose tool name or target
// contains substr (spec.md §4.9; used after indexing that might
// invalidate cached results).
func (c *Cache) InvalidateByPattern(substr string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for e := c.order.Front(); e != nil; e = e.Next() {
		k := e.Value.(*record).entry.Key
		if containsSubstr(k.ToolName, substr) || containsSubstr(k.Target, substr) {
			toRemove = append(toRemove, e)
		}
	}
	for _, e := range toRemove {
		c.removeElementLocked(e)
	}
	return len(toRemove)
}

func containsSubstr(s, substr string) bool {
	if substr == "" {
		return false
	}
	return indexOf(s, substr) >= 0
}

func indexOf(s, substr string) int {
	n, m := len(s), len(substr)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == substr {
			return i
		}
	}
	return -1
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// HitRate returns hits / (hits + misses), or 0 if there have been no lookups.
func (c *Cache) HitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// persistedEntry is the JSON-serializable snapshot of one cache entry.
// Result is stored as a json.RawMessage so PersistToStorage never
// needs to know the concrete result types of any tool.
type persistedEntry struct {
	ToolName    string          `json:"tool_name"`
	ParamsHash  uint64          `json:"params_hash"`
	Target      string          `json:"target"`
	Result      json.RawMessage `json:"result"`
	CachedAt    time.Time       `json:"cached_at"`
	TTL         time.Duration   `json:"ttl"`
	AccessCount int64           `json:"access_count"`
	LastAccess  time.Time       `json:"last_access"`
	SizeBytes   int64           `json:"size_bytes"`
}

// PersistToStorage writes every entry to path as JSON. The snapshot is
// taken under the cache's single write lock (SPEC_FULL.md Open
// Question decision #3), so a concurrent Set cannot interleave with
// a partially-written entry list.
func (c *Cache) PersistToStorage(path string) error {
	c.mu.Lock()
	snapshot := make([]persistedEntry, 0, c.order.Len())
	for e := c.order.Front(); e != nil; e = e.Next() {
		entry := e.Value.(*record).entry
		raw, err := json.Marshal(entry.Result)
		if err != nil {
			c.mu.Unlock()
			return fmt.Errorf("anacache: marshal result for %s: %w", entry.Key.ToolName, err)
		}
		snapshot = append(snapshot, persistedEntry{
			ToolName:    entry.Key.ToolName,
			ParamsHash:  entry.Key.ParamsHash,
			Target:      entry.Key.Target,
			Result:      raw,
			CachedAt:    entry.CachedAt,
			TTL:         entry.TTL,
			AccessCount: entry.AccessCount,
			LastAccess:  entry.LastAccess,
			SizeBytes:   entry.SizeBytes,
		})
	}
	c.mu.Unlock()

	b, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// RestoreFromStorage loads entries previously written by
// PersistToStorage, skipping any already expired by the time of
// restore. Result values are restored as json.RawMessage; callers
// that need a concrete type must unmarshal it themselves after Get.
func (c *Cache) RestoreFromStorage(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snapshot []persistedEntry
	if err := json.Unmarshal(b, &snapshot); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for _, pe := range snapshot {
		entry := &Entry{
			Key:         Key{ToolName: pe.ToolName, ParamsHash: pe.ParamsHash, Target: pe.Target},
			Result:      pe.Result,
			CachedAt:    pe.CachedAt,
			TTL:         pe.TTL,
			AccessCount: pe.AccessCount,
			LastAccess:  pe.LastAccess,
			SizeBytes:   pe.SizeBytes,
		}
		if entry.expired(now) {
			continue
		}
		elem := c.order.PushBack(&record{entry: entry})
		c.items[entry.Key.string()] = elem
		c.totalBytes += entry.SizeBytes
	}
	c.evictOverBudgetLocked()
	return nil
}
