package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/smart-url-view/pkg/dbinterfaces"
)

// DefaultCacheTable is the table used for rendered card fragments.
const DefaultCacheTable = "html_cache"

// CacheEntry represents a generic cache entry
type CacheEntry struct {
	Key       string
	Value     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Cache is a key/value store with per-entry expiry on top of the database.
type Cache struct {
	db        *Database
	tableName string
	now       func() time.Time
}

var (
	_ dbinterfaces.StatsProvider   = (*Cache)(nil)
	_ dbinterfaces.CleanupProvider = (*Cache)(nil)
)

// NewCache creates the cache table if needed and returns the cache.
func NewCache(ctx context.Context, db *Database, tableName string) (*Cache, error) {
	if tableName == "" {
		tableName = DefaultCacheTable
	}
	c := &Cache{
		db:        db,
		tableName: tableName,
		now:       time.Now,
	}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			expires_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_expires ON %s(expires_at);
	`, c.tableName, c.tableName, c.tableName)

	return c.db.ExecuteSchema(ctx, schema)
}

// Get retrieves a value from the cache. Expired entries are misses.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ? AND expires_at > ?`, c.tableName)

	var value string
	err := c.db.DB().QueryRowContext(ctx, query, key, c.now().Unix()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return value, true, nil
}

// Set stores a value in the cache, replacing any previous entry.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := c.now()

	query := fmt.Sprintf(`
		INSERT OR REPLACE INTO %s (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query, key, value, now.Add(ttl).Unix(), now.Unix()); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}

	return nil
}

// Delete removes a value from the cache
func (c *Cache) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete cache value: %w", err)
	}

	return nil
}

// DeleteByPrefix removes every entry whose key starts with prefix and returns
// the number removed.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key LIKE ? ESCAPE '\'`, c.tableName)

	result, err := c.db.DB().ExecContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to delete cache prefix %q: %w", prefix, err)
	}

	removed, _ := result.RowsAffected()
	slog.Debug("Deleted cache entries by prefix", "table", c.tableName, "prefix", prefix, "count", removed)

	// shrink the file so Stats reports the freed space
	if removed > 0 {
		if err := VacuumDatabase(ctx, c.db); err != nil {
			slog.Warn("Failed to vacuum cache database", "path", c.db.Path(), "error", err)
		}
	}
	return removed, nil
}

// CleanupExpired removes expired entries from the cache
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, c.tableName)

	result, err := c.db.DB().ExecContext(ctx, query, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}

	return rowsAffected, nil
}

// Stats returns cache statistics
func (c *Cache) Stats(ctx context.Context) (dbinterfaces.CacheStats, error) {
	stats := dbinterfaces.CacheStats{Backend: "sqlite"}

	query := fmt.Sprintf(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END), 0)
		FROM %s
	`, c.tableName)
	if err := c.db.DB().QueryRowContext(ctx, query, c.now().Unix()).Scan(&stats.Total, &stats.Valid); err != nil {
		return stats, fmt.Errorf("failed to get cache stats: %w", err)
	}
	stats.Expired = stats.Total - stats.Valid

	if size, err := GetDatabaseSize(c.db.Path()); err == nil {
		stats.SizeBytes = size
	}

	return stats, nil
}

// Clear removes all entries from the cache
func (c *Cache) Clear(ctx context.Context) error {
	query := fmt.Sprintf(`DELETE FROM %s`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	return nil
}

// GetAll returns all valid entries from the cache, newest first.
func (c *Cache) GetAll(ctx context.Context) ([]CacheEntry, error) {
	query := fmt.Sprintf(`
		SELECT key, value, expires_at, updated_at
		FROM %s
		WHERE expires_at > ?
		ORDER BY updated_at DESC, key
	`, c.tableName)

	rows, err := c.db.DB().QueryContext(ctx, query, c.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get all cache entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var entry CacheEntry
		var expiresAt, updatedAt int64
		if err := rows.Scan(&entry.Key, &entry.Value, &expiresAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entry.ExpiresAt = time.Unix(expiresAt, 0)
		entry.UpdatedAt = time.Unix(updatedAt, 0)
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
