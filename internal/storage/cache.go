package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// CacheTier represents the type of cache
type CacheTier string

const (
	// QueryCache for retrieval query results (key includes project_id)
	QueryCache CacheTier = "query"
	// ViewCache for rendered hierarchical/T-Map context blocks
	ViewCache CacheTier = "view"
	// NegativeCache for short-circuiting calls known to fail
	NegativeCache CacheTier = "negative"
)

// NegativeCacheEntry represents an entry in the negative cache
type NegativeCacheEntry struct {
	Key          string
	ErrorType    string
	ErrorMessage string
	ExpiresAt    time.Time
	ProjectID    string
	CreatedAt    time.Time
}

// Cache provides the query/view/negative cache tiers sitting in front of
// RetrievalEngine for internal/api, distinct from the in-process
// embedding/result LRU caches in internal/cache.
type Cache struct {
	db *DB
}

// NewCache creates a new cache instance
func NewCache(db *DB) *Cache {
	return &Cache{db: db}
}

// GetQueryCache retrieves a value from the query cache.
// Returns ok=false if not found or expired.
func (c *Cache) GetQueryCache(key, projectID string) (string, bool, error) {
	var valueJSON, expiresAt string

	err := c.db.QueryRow(`
		SELECT value_json, expires_at
		FROM query_cache
		WHERE key = ? AND project_id = ?
	`, key, projectID).Scan(&valueJSON, &expiresAt)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query cache lookup failed: %w", err)
	}

	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", false, fmt.Errorf("invalid expires_at format: %w", err)
	}

	if time.Now().After(expiresAtTime) {
		c.db.Exec("DELETE FROM query_cache WHERE key = ? AND project_id = ?", key, projectID)
		return "", false, nil
	}

	return valueJSON, true, nil
}

// SetQueryCache stores a value in the query cache
func (c *Cache) SetQueryCache(key, projectID, valueJSON string, ttlSeconds int) error {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO query_cache (key, project_id, value_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, projectID, valueJSON, expiresAt.Format(time.RFC3339), now.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to set query cache: %w", err)
	}
	return nil
}

// GetViewCache retrieves a value from the view cache
func (c *Cache) GetViewCache(key, projectID string) (string, bool, error) {
	var valueJSON, expiresAt string

	err := c.db.QueryRow(`
		SELECT value_json, expires_at
		FROM view_cache
		WHERE key = ? AND project_id = ?
	`, key, projectID).Scan(&valueJSON, &expiresAt)

	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("view cache lookup failed: %w", err)
	}

	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return "", false, fmt.Errorf("invalid expires_at format: %w", err)
	}

	if time.Now().After(expiresAtTime) {
		c.db.Exec("DELETE FROM view_cache WHERE key = ? AND project_id = ?", key, projectID)
		return "", false, nil
	}

	return valueJSON, true, nil
}

// SetViewCache stores a value in the view cache
func (c *Cache) SetViewCache(key, projectID, valueJSON string, ttlSeconds int) error {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO view_cache (key, project_id, value_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, key, projectID, valueJSON, expiresAt.Format(time.RFC3339), now.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to set view cache: %w", err)
	}
	return nil
}

// GetNegativeCache retrieves an error from the negative cache
func (c *Cache) GetNegativeCache(key, projectID string) (*NegativeCacheEntry, error) {
	var entry NegativeCacheEntry
	var expiresAt, createdAt string

	err := c.db.QueryRow(`
		SELECT key, error_type, error_message, expires_at, project_id, created_at
		FROM negative_cache
		WHERE key = ? AND project_id = ?
	`, key, projectID).Scan(&entry.Key, &entry.ErrorType, &entry.ErrorMessage, &expiresAt, &entry.ProjectID, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("negative cache lookup failed: %w", err)
	}

	expiresAtTime, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at format: %w", err)
	}
	createdAtTime, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at format: %w", err)
	}

	entry.ExpiresAt = expiresAtTime
	entry.CreatedAt = createdAtTime

	if time.Now().After(entry.ExpiresAt) {
		c.db.Exec("DELETE FROM negative_cache WHERE key = ? AND project_id = ?", key, projectID)
		return nil, nil
	}

	return &entry, nil
}

// SetNegativeCache stores an error in the negative cache
func (c *Cache) SetNegativeCache(key, projectID, errorType, errorMessage string, ttlSeconds int) error {
	now := time.Now()
	expiresAt := now.Add(time.Duration(ttlSeconds) * time.Second)

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO negative_cache (key, project_id, error_type, error_message, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key, projectID, errorType, errorMessage, expiresAt.Format(time.RFC3339), now.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to set negative cache: %w", err)
	}
	return nil
}

// InvalidateByProjectID removes all cache entries for a project, triggered
// when a sync run changes the manifest generation (spec.md §9.3 analogue).
func (c *Cache) InvalidateByProjectID(projectID string) error {
	if _, err := c.db.Exec("DELETE FROM query_cache WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to invalidate query cache by project_id: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM view_cache WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to invalidate view cache by project_id: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM negative_cache WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to invalidate negative cache by project_id: %w", err)
	}

	c.db.logger.Debug("Invalidated all caches for project", map[string]interface{}{
		"project_id": projectID,
	})
	return nil
}

// CleanupExpiredEntries removes all expired entries from all cache tables.
// Intended to be called periodically by a jobs.Runner handler.
func (c *Cache) CleanupExpiredEntries() error {
	now := time.Now().Format(time.RFC3339)

	if _, err := c.db.Exec("DELETE FROM query_cache WHERE expires_at < ?", now); err != nil {
		return fmt.Errorf("failed to cleanup query cache: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM view_cache WHERE expires_at < ?", now); err != nil {
		return fmt.Errorf("failed to cleanup view cache: %w", err)
	}
	if _, err := c.db.Exec("DELETE FROM negative_cache WHERE expires_at < ?", now); err != nil {
		return fmt.Errorf("failed to cleanup negative cache: %w", err)
	}

	c.db.logger.Debug("Cleaned up expired cache entries", nil)
	return nil
}

// GetCacheStats returns statistics about cache usage, surfaced on the
// admin telemetry endpoint.
func (c *Cache) GetCacheStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var queryCount, querySizeBytes int
	err := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value_json)), 0)
		FROM query_cache
	`).Scan(&queryCount, &querySizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get query cache stats: %w", err)
	}

	var viewCount, viewSizeBytes int
	err = c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(value_json)), 0)
		FROM view_cache
	`).Scan(&viewCount, &viewSizeBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to get view cache stats: %w", err)
	}

	var negativeCount int
	err = c.db.QueryRow(`SELECT COUNT(*) FROM negative_cache`).Scan(&negativeCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get negative cache stats: %w", err)
	}

	stats["query_cache"] = map[string]interface{}{"entries": queryCount, "size_bytes": querySizeBytes}
	stats["view_cache"] = map[string]interface{}{"entries": viewCount, "size_bytes": viewSizeBytes}
	stats["negative_cache"] = map[string]interface{}{"entries": negativeCount}

	return stats, nil
}
