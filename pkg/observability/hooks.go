// Package observability provides hooks for metrics about deployment jobs.
//
// Libraries call the registered hooks; the binary decides what backs them.
// The defaults are no-ops, so packages that emit events carry no dependency
// on a metrics backend. [Prometheus] is the bundled implementation.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    p := observability.NewPrometheus()
//	    observability.SetJobHooks(p)
//	    observability.SetCacheHooks(p)
//	    // ... run application
//	    _ = p.WriteTextfile("/var/lib/node_exporter/deployer.prom")
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Jobs().OnResolveComplete(ctx, nodes, warnings, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// JobHooks receives events from export and install jobs.
type JobHooks interface {
	// OnResolveComplete records a finished closure computation.
	OnResolveComplete(ctx context.Context, nodes, warnings int, duration time.Duration, err error)

	// OnOrderComplete records an install ordering and its forced cycle breaks.
	OnOrderComplete(ctx context.Context, nodes, broken int)

	// OnArchiveEntry records one archive entry written or read.
	OnArchiveEntry(ctx context.Context, op string, bytes int64)

	// OnJobComplete records the outcome of a job ("success", "warnings" or "failed").
	OnJobComplete(ctx context.Context, kind, status string, duration time.Duration)
}

// CacheHooks receives events from report cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// NoopJobHooks is a no-op implementation of JobHooks.
type NoopJobHooks struct{}

func (NoopJobHooks) OnResolveComplete(context.Context, int, int, time.Duration, error) {}
func (NoopJobHooks) OnOrderComplete(context.Context, int, int)                         {}
func (NoopJobHooks) OnArchiveEntry(context.Context, string, int64)                     {}
func (NoopJobHooks) OnJobComplete(context.Context, string, string, time.Duration)      {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	jobHooks   JobHooks   = NoopJobHooks{}
	cacheHooks CacheHooks = NoopCacheHooks{}
	hooksMu    sync.RWMutex
)

// SetJobHooks registers custom job hooks.
// This should be called once at application startup before any job runs.
func SetJobHooks(h JobHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		jobHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
// This should be called once at application startup before any cache operations.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Jobs returns the registered job hooks.
func Jobs() JobHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return jobHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	jobHooks = NoopJobHooks{}
	cacheHooks = NoopCacheHooks{}
}
