package services

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	_ "modernc.org/sqlite"

	"document-extraction-platform/internal/logger"
	"document-extraction-platform/internal/telemetry"
	"document-extraction-platform/models"
	"document-extraction-platform/utils"
)

// ResultCacheConfig controls the content-addressed extraction cache.
type ResultCacheConfig struct {
	Enabled         bool
	DBPath          string
	TTLHours        int
	MaxEntries      int
	HashAlgorithm   string
	MaxEntrySize    int
	CleanupInterval time.Duration
}

// ResultCache stores terminal extraction results keyed by
// (content hash, schema key, model). A disabled cache is a valid no-op
// instance so call sites never branch.
type ResultCache struct {
	cfg       ResultCacheConfig
	db        *sql.DB
	metrics   *telemetry.Metrics
	scheduler *gocron.Scheduler
}

// NewResultCache opens (or creates) the cache database. With Enabled false
// it returns a cache whose operations all miss.
func NewResultCache(cfg ResultCacheConfig, metrics *telemetry.Metrics) (*ResultCache, error) {
	if cfg.TTLHours < 0 {
		return nil, fmt.Errorf("cache TTL must not be negative")
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.MaxEntrySize <= 0 {
		cfg.MaxEntrySize = 1 << 20
	}
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = "sha256"
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Hour
	}

	rc := &ResultCache{cfg: cfg, metrics: metrics}
	if !cfg.Enabled {
		return rc, nil
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS result_cache (
			cache_key       TEXT PRIMARY KEY,
			content_hash    TEXT NOT NULL,
			schema_key      TEXT NOT NULL,
			model_id        TEXT NOT NULL,
			value           TEXT NOT NULL,
			created_at      TIMESTAMP NOT NULL,
			expires_at      TIMESTAMP NOT NULL,
			hit_count       INTEGER NOT NULL DEFAULT 0,
			content_size    INTEGER NOT NULL,
			processing_time REAL NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_result_cache_expires ON result_cache(expires_at);
		CREATE INDEX IF NOT EXISTS idx_result_cache_content ON result_cache(content_hash);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	rc.db = db
	logger.Info("result cache opened", "path", cfg.DBPath, "ttl_hours", cfg.TTLHours)
	return rc, nil
}

// ContentHash hashes raw document content with the configured algorithm.
func (rc *ResultCache) ContentHash(content []byte) string {
	return utils.ContentHash(rc.cfg.HashAlgorithm, content)
}

// Key derives the cache key for a document's content and extraction
// parameters.
func (rc *ResultCache) Key(content []byte, schemaKey, modelID string) string {
	return utils.CacheFingerprint(rc.ContentHash(content), schemaKey, modelID)
}

// Get returns the cached entry for the key, lazily expiring stale rows. A
// hit bumps the row's hit count.
func (rc *ResultCache) Get(key string) (*models.CacheEntry, bool) {
	if rc.db == nil {
		return nil, false
	}

	var entry models.CacheEntry
	err := rc.db.QueryRow(`
		SELECT cache_key, content_hash, schema_key, model_id, value,
		       created_at, expires_at, hit_count, content_size, processing_time
		FROM result_cache WHERE cache_key = ?`, key).Scan(
		&entry.CacheKey, &entry.ContentHash, &entry.SchemaKey, &entry.ModelID,
		&entry.Value, &entry.CreatedAt, &entry.ExpiresAt, &entry.HitCount,
		&entry.ContentSize, &entry.ProcessingTime)
	if errors.Is(err, sql.ErrNoRows) {
		rc.metrics.RecordCacheLookup(false)
		return nil, false
	}
	if err != nil {
		logger.Warn("cache lookup failed", "error", err)
		rc.metrics.RecordCacheLookup(false)
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		if _, err := rc.db.Exec(`DELETE FROM result_cache WHERE cache_key = ?`, key); err != nil {
			logger.Warn("failed to delete expired cache row", "error", err)
		}
		rc.metrics.RecordCacheLookup(false)
		return nil, false
	}

	if _, err := rc.db.Exec(`UPDATE result_cache SET hit_count = hit_count + 1 WHERE cache_key = ?`, key); err != nil {
		logger.Warn("failed to bump cache hit count", "error", err)
	}
	entry.HitCount++
	rc.metrics.RecordCacheLookup(true)
	return &entry, true
}

// Set stores a terminal result. Values larger than MaxEntrySize are
// rejected silently; a TTL of zero hours means effectively permanent.
func (rc *ResultCache) Set(key, contentHash, schemaKey, modelID, value string, contentSize int, processingTime float64) {
	if rc.db == nil {
		return
	}
	if len(value) > rc.cfg.MaxEntrySize {
		logger.Debug("cache value over size limit, skipping",
			"size", len(value), "limit", rc.cfg.MaxEntrySize)
		return
	}

	ttl := time.Duration(rc.cfg.TTLHours) * time.Hour
	if rc.cfg.TTLHours == 0 {
		ttl = 10 * 365 * 24 * time.Hour
	}
	now := time.Now()

	_, err := rc.db.Exec(`
		INSERT INTO result_cache
			(cache_key, content_hash, schema_key, model_id, value,
			 created_at, expires_at, hit_count, content_size, processing_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			value = excluded.value,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at,
			content_size = excluded.content_size,
			processing_time = excluded.processing_time`,
		key, contentHash, schemaKey, modelID, value,
		now, now.Add(ttl), contentSize, processingTime)
	if err != nil {
		logger.Warn("cache write failed", "error", err)
		return
	}

	rc.evictOverflow()
}

// evictOverflow removes the oldest rows beyond MaxEntries.
func (rc *ResultCache) evictOverflow() {
	res, err := rc.db.Exec(`
		DELETE FROM result_cache WHERE cache_key IN (
			SELECT cache_key FROM result_cache
			ORDER BY created_at DESC
			LIMIT -1 OFFSET ?
		)`, rc.cfg.MaxEntries)
	if err != nil {
		logger.Warn("cache eviction failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Debug("evicted cache rows over capacity", "count", n)
	}
}

// Cleanup deletes all expired rows; the scheduler runs it periodically.
func (rc *ResultCache) Cleanup() {
	if rc.db == nil {
		return
	}
	res, err := rc.db.Exec(`DELETE FROM result_cache WHERE expires_at < ?`, time.Now())
	if err != nil {
		logger.Warn("cache cleanup failed", "error", err)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("cache cleanup removed expired rows", "count", n)
	}
}

// Count returns the number of live rows (tests and stats).
func (rc *ResultCache) Count() int {
	if rc.db == nil {
		return 0
	}
	var n int
	if err := rc.db.QueryRow(`SELECT COUNT(*) FROM result_cache`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Start launches the periodic expiry sweeper.
func (rc *ResultCache) Start() error {
	if rc.db == nil || rc.scheduler != nil {
		return nil
	}
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(rc.cfg.CleanupInterval).Do(rc.Cleanup); err != nil {
		return err
	}
	s.StartAsync()
	rc.scheduler = s
	return nil
}

// Stop halts the sweeper and closes the database.
func (rc *ResultCache) Stop() {
	if rc.scheduler != nil {
		rc.scheduler.Stop()
		rc.scheduler = nil
	}
	if rc.db != nil {
		rc.db.Close()
	}
}

// Enabled reports whether caching is active.
func (rc *ResultCache) Enabled() bool { return rc.db != nil }
