package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func testCache(t *testing.T, cfg ResultCacheConfig) *ResultCache {
	t.Helper()
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(t.TempDir(), "cache.db")
	}
	cfg.Enabled = true
	rc, err := NewResultCache(cfg, nil)
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(rc.Stop)
	return rc
}

func TestCacheSetGet(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1})

	key := rc.Key([]byte("# Invoice"), "invoice", "gemini-2.0-flash")
	rc.Set(key, rc.ContentHash([]byte("# Invoice")), "invoice", "gemini-2.0-flash",
		`{"vendor":"Acme"}`, 9, 1.5)

	entry, ok := rc.Get(key)
	if !ok {
		t.Fatal("freshly written entry missed")
	}
	if entry.Value != `{"vendor":"Acme"}` {
		t.Errorf("value = %q", entry.Value)
	}
	if entry.HitCount != 1 {
		t.Errorf("hit count = %d, want 1", entry.HitCount)
	}
	if entry.ProcessingTime != 1.5 {
		t.Errorf("processing time = %v", entry.ProcessingTime)
	}

	if _, ok := rc.Get(rc.Key([]byte("other"), "invoice", "gemini-2.0-flash")); ok {
		t.Error("unknown key hit")
	}
}

func TestCacheKeyVariesWithSchemaAndModel(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1})
	content := []byte("same content")

	a := rc.Key(content, "invoice", "gemini-2.0-flash")
	if b := rc.Key(content, "receipt", "gemini-2.0-flash"); a == b {
		t.Error("schema key ignored in cache key")
	}
	if b := rc.Key(content, "invoice", "gemini-1.5-pro"); a == b {
		t.Error("model ignored in cache key")
	}
}

func TestCacheLazyExpiry(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1})

	key := "expired-key"
	rc.Set(key, "h", "invoice", "m", "{}", 2, 0)
	// Force the row into the past.
	if _, err := rc.db.Exec(`UPDATE result_cache SET expires_at = ?`, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	if _, ok := rc.Get(key); ok {
		t.Error("expired entry served")
	}
	if rc.Count() != 0 {
		t.Errorf("expired row not deleted, count = %d", rc.Count())
	}
}

func TestCacheZeroTTLMeansPermanent(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 0})

	rc.Set("k", "h", "invoice", "m", "{}", 2, 0)
	entry, ok := rc.Get("k")
	if !ok {
		t.Fatal("entry missed")
	}
	if entry.ExpiresAt.Before(time.Now().AddDate(5, 0, 0)) {
		t.Errorf("zero TTL expiry too close: %v", entry.ExpiresAt)
	}
}

func TestCacheRejectsOversizedValues(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1, MaxEntrySize: 10})

	rc.Set("big", "h", "invoice", "m", "this value is larger than ten bytes", 5, 0)
	if _, ok := rc.Get("big"); ok {
		t.Error("oversized value stored")
	}
}

func TestCacheEvictsOldestPastCapacity(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1, MaxEntries: 3})

	for i := 0; i < 5; i++ {
		rc.Set(fmt.Sprintf("k%d", i), "h", "invoice", "m", "{}", 2, 0)
		// Distinct created_at so eviction order is stable.
		if _, err := rc.db.Exec(`UPDATE result_cache SET created_at = ? WHERE cache_key = ?`,
			time.Now().Add(time.Duration(i)*time.Second), fmt.Sprintf("k%d", i)); err != nil {
			t.Fatal(err)
		}
		rc.evictOverflow()
	}

	if got := rc.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	if _, ok := rc.Get("k0"); ok {
		t.Error("oldest entry survived eviction")
	}
	if _, ok := rc.Get("k4"); !ok {
		t.Error("newest entry evicted")
	}
}

func TestCacheCleanupRemovesExpiredRows(t *testing.T) {
	rc := testCache(t, ResultCacheConfig{TTLHours: 1})

	rc.Set("live", "h", "invoice", "m", "{}", 2, 0)
	rc.Set("stale", "h", "invoice", "m", "{}", 2, 0)
	if _, err := rc.db.Exec(`UPDATE result_cache SET expires_at = ? WHERE cache_key = 'stale'`,
		time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	rc.Cleanup()
	if got := rc.Count(); got != 1 {
		t.Errorf("count after cleanup = %d, want 1", got)
	}
}

func TestCacheDisabledNoOps(t *testing.T) {
	rc, err := NewResultCache(ResultCacheConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if rc.Enabled() {
		t.Error("disabled cache reports enabled")
	}
	rc.Set("k", "h", "s", "m", "{}", 2, 0)
	if _, ok := rc.Get("k"); ok {
		t.Error("disabled cache returned a hit")
	}
}
