// Package dbinterfaces provides shared interfaces for the HTML cache backends.
package dbinterfaces

import (
	"context"
	"io"
)

// Database defines the common interface for database operations
type Database interface {
	io.Closer // Close() error
}

// CacheStats summarises the entries held by a cache backend.
type CacheStats struct {
	Backend string `json:"backend"`
	Total   int64  `json:"total"`
	Valid   int64  `json:"valid"`
	Expired int64  `json:"expired"`
	// SizeBytes is the on-disk size when the backend knows it.
	SizeBytes int64 `json:"size_bytes"`
}

// StatsProvider defines the interface for caches that provide statistics
type StatsProvider interface {
	Stats(ctx context.Context) (CacheStats, error)
}

// CleanupProvider defines the interface for caches that purge expired entries
// themselves
type CleanupProvider interface {
	CleanupExpired(ctx context.Context) (int64, error)
}
