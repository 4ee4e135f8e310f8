package anacache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestSetGetHitAndMiss(t *testing.T) {
	c := New()
	k := Key{ToolName: "search_symbols", ParamsHash: 42, Target: "Bar"}

	if _, ok := c.Get(k); ok {
		t.Fatalf("expected miss before any Set")
	}
	c.Set(k, "cached-result", 10)

	got, ok := c.Get(k)
	if !ok || got != "cached-result" {
		t.Fatalf("expected cache hit returning the stored result, got %v, %v", got, ok)
	}
	if c.HitRate() <= 0 {
		t.Fatalf("expected a positive hit rate after at least one hit")
	}
}

// TestScenarioD grounds spec.md §8 Scenario D: cache-hit behavior and
// a hits counter.
func TestScenarioDCacheHitIncrementsCounterAndSkipsRecompute(t *testing.T) {
	c := New()
	k := Key{ToolName: "find_dependencies", ParamsHash: 7, Target: "node-1"}
	c.Set(k, []string{"dep-a", "dep-b"}, 20)

	_, _ = c.Get(k)
	_, _ = c.Get(k)

	if c.HitRate() != 1.0 {
		t.Fatalf("expected hit rate 1.0 with only hits so far, got %f", c.HitRate())
	}
}

func TestEntryCountEvictionIsLRU(t *testing.T) {
	c := New(WithMaxEntries(2))
	c.Set(Key{ToolName: "search_symbols", Target: "a"}, "a", 1)
	c.Set(Key{ToolName: "search_symbols", Target: "b"}, "b", 1)

	// touch "a" so "b" becomes the least recently used
	c.Get(Key{ToolName: "search_symbols", Target: "a"})
	c.Set(Key{ToolName: "search_symbols", Target: "c"}, "c", 1)

	if _, ok := c.Get(Key{ToolName: "search_symbols", Target: "b"}); ok {
		t.Fatalf("expected 'b' to be evicted as least recently used")
	}
	if _, ok := c.Get(Key{ToolName: "search_symbols", Target: "a"}); !ok {
		t.Fatalf("expected 'a' to survive since it was touched more recently")
	}
	if c.Len() != 2 {
		t.Fatalf("expected cache bounded to 2 entries, got %d", c.Len())
	}
}

func TestByteBudgetEviction(t *testing.T) {
	c := New(WithMaxBytes(15))
	c.Set(Key{ToolName: "search_symbols", Target: "a"}, "a", 10)
	c.Set(Key{ToolName: "search_symbols", Target: "b"}, "b", 10)

	if c.Len() != 1 {
		t.Fatalf("expected byte budget to force eviction down to 1 entry, got %d", c.Len())
	}
}

func TestCleanupExpired(t *testing.T) {
	c := New()
	k := Key{ToolName: "search_symbols", Target: "a"}
	c.Set(k, "a", 1)

	// Force expiry by rewriting the entry's CachedAt into the past.
	c.mu.Lock()
	elem := c.items[k.string()]
	elem.Value.(*record).entry.CachedAt = time.Now().Add(-time.Hour)
	elem.Value.(*record).entry.TTL = time.Minute
	c.mu.Unlock()

	removed := c.CleanupExpired()
	if removed != 1 {
		t.Fatalf("expected 1 expired entry removed, got %d", removed)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after cleanup, got %d", c.Len())
	}
}

func TestInvalidateByPattern(t *testing.T) {
	c := New()
	c.Set(Key{ToolName: "search_symbols", Target: "node-1"}, "a", 1)
	c.Set(Key{ToolName: "find_dependencies", Target: "node-2"}, "b", 1)

	removed := c.InvalidateByPattern("node-1")
	if removed != 1 {
		t.Fatalf("expected 1 entry invalidated, got %d", removed)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 remaining entry, got %d", c.Len())
	}
}

func TestPersistAndRestore(t *testing.T) {
	c := New()
	c.Set(Key{ToolName: "search_symbols", Target: "a"}, map[string]string{"name": "Bar"}, 5)

	path := filepath.Join(t.TempDir(), "cache.json")
	if err := c.PersistToStorage(path); err != nil {
		t.Fatal(err)
	}

	restored := New()
	if err := restored.RestoreFromStorage(path); err != nil {
		t.Fatal(err)
	}
	if restored.Len() != 1 {
		t.Fatalf("expected 1 restored entry, got %d", restored.Len())
	}
	if _, ok := restored.Get(Key{ToolName: "search_symbols", Target: "a"}); !ok {
		t.Fatalf("expected the restored entry to be retrievable by its original key")
	}
}

func TestHashParamsIsDeterministic(t *testing.T) {
	h1, err := HashParams(map[string]any{"pattern": "Bar", "limit": 50})
	if err != nil {
		t.Fatal(err)
	}
	h2, err := HashParams(map[string]any{"pattern": "Bar", "limit": 50})
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical params to hash identically")
	}
}
