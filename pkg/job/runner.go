package job

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/buildinfo"
	"github.com/percussion/deployer/pkg/cache"
	"github.com/percussion/deployer/pkg/closure"
	"github.com/percussion/deployer/pkg/deps"
)

// DefaultReportTTL is how long reports are kept when no TTL is configured.
const DefaultReportTTL = 30 * 24 * time.Hour

// Options configures a Runner.
type Options struct {
	// MaxNodes bounds each closure; see closure.Options.
	MaxNodes int

	// Compression is applied to written archives. Empty means none.
	Compression archive.Compression

	// StagingDir is where install jobs unpack archives. Empty means the
	// system temp directory.
	StagingDir string

	// ReportTTL is the lifetime of persisted reports.
	ReportTTL time.Duration

	// Generator is recorded in archive headers.
	Generator string
}

// WithDefaults returns a copy of o with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	if o.ReportTTL <= 0 {
		o.ReportTTL = DefaultReportTTL
	}
	if o.Generator == "" {
		o.Generator = "deployer " + buildinfo.Version
	}
	return o
}

// Runner runs jobs against one dependency manager.
//
// The Runner holds no per-job state; the manager, resolver and cache are
// shared, so several goroutines may run jobs on the same Runner.
type Runner struct {
	Manager  *deps.Manager
	Resolver *closure.Resolver
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger
	Options  Options
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (reports are not persisted).
func NewRunner(mgr *deps.Manager, c cache.Cache, keyer cache.Keyer, logger *log.Logger, opts Options) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Manager:  mgr,
		Resolver: closure.NewResolver(mgr),
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		Options:  opts.WithDefaults(),
	}
}

// Close releases resources held by the runner (the report cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
