// Package cache stores job reports and other small blobs keyed by string.
//
// Backends:
//   - [NullCache]: stores nothing; used when reports are disabled
//   - [FileCache]: JSON files under a directory; the CLI default
//   - [RedisCache]: a shared Redis server, for deployers running on several hosts
//
// Keys are built by a [Keyer] so that callers never format keys by hand.
// [ScopedKeyer] prefixes every key, separating the reports of different
// environments that share one backend.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache is a key/value store with optional expiry.
type Cache interface {
	// Get returns the stored value. A missing or expired key is a miss
	// (hit == false), not an error.
	Get(ctx context.Context, key string) (data []byte, hit bool, err error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}

// Keyer builds cache keys.
type Keyer interface {
	// ReportKey is the key of the report of one job.
	ReportKey(jobID string) string

	// LatestKey is the key holding the id of the most recent job of a kind.
	LatestKey(kind string) string
}

// DefaultKeyer builds unprefixed keys.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a keyer without a prefix.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) ReportKey(jobID string) string { return "report:" + jobID }

func (DefaultKeyer) LatestKey(kind string) string { return "latest:" + kind }

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
