package cli

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/percussion/deployer/internal/config"
	"github.com/percussion/deployer/pkg/archive"
	"github.com/percussion/deployer/pkg/buildinfo"
	"github.com/percussion/deployer/pkg/cache"
	"github.com/percussion/deployer/pkg/depmap"
	"github.com/percussion/deployer/pkg/deps"
	"github.com/percussion/deployer/pkg/errors"
	"github.com/percussion/deployer/pkg/handlers"
	"github.com/percussion/deployer/pkg/job"
	"github.com/percussion/deployer/pkg/observability"
	"github.com/percussion/deployer/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "deployer"

	// ExitCanceled is the exit status after an interrupt.
	ExitCanceled = 130
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	depmapPath string
	verbose    bool

	cfg     *config.Config
	metrics *observability.Prometheus
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Deployer exports and installs design objects with their dependencies",
		Long: `Deployer packages design objects together with everything they depend on
into a single verified archive, and installs such archives on another system
in dependency order.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", config.ProjectFile, "project configuration file")
	flags.StringVar(&c.depmapPath, "depmap", "", "dependency map document (.toml or .hcl)")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(c.typesCommand())
	root.AddCommand(c.depsCommand())
	root.AddCommand(c.exportCommand())
	root.AddCommand(c.installCommand())
	root.AddCommand(c.verifyCommand())
	root.AddCommand(c.reportCommand())
	root.AddCommand(c.storeCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Close flushes metrics. It is called once after the command ran, whether or
// not it failed.
func (c *CLI) Close() error {
	if c.metrics == nil || c.cfg == nil {
		return nil
	}
	return c.metrics.WriteTextfile(c.cfg.Metrics.Textfile)
}

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.IsCanceled(err):
		return ExitCanceled
	}
	return 1
}

func (c *CLI) loadConfig() error {
	if c.cfg != nil {
		return nil
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.depmapPath != "" {
		cfg.DepMap.Path = c.depmapPath
	}
	c.cfg = cfg

	if cfg.Metrics.Textfile != "" {
		c.metrics = observability.NewPrometheus()
		observability.SetJobHooks(c.metrics)
		observability.SetCacheHooks(c.metrics)
	}
	return nil
}

// =============================================================================
// Environment
// =============================================================================

// env is everything a command needs to run jobs.
type env struct {
	store  store.Store
	mgr    *deps.Manager
	runner *job.Runner
}

func (e *env) Close() error {
	return stderrors.Join(e.runner.Close(), e.store.Close())
}

// open connects the object store and report cache and loads the dependency
// map. The caller must Close the result.
func (c *CLI) open(ctx context.Context) (*env, error) {
	m, err := c.loadDepMap()
	if err != nil {
		return nil, err
	}
	s, err := openStore(ctx, c.cfg.Store)
	if err != nil {
		return nil, err
	}
	mgr, err := deps.NewManager(m, handlers.Catalog(s))
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	rc, err := openReportCache(ctx, c.cfg.Reports)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	opts, err := c.jobOptions()
	if err != nil {
		_ = rc.Close()
		_ = s.Close()
		return nil, err
	}
	runner := job.NewRunner(mgr, rc, c.reportKeyer(), c.Logger, opts)
	return &env{store: s, mgr: mgr, runner: runner}, nil
}

func (c *CLI) reportKeyer() cache.Keyer {
	return cache.NewScopedKeyer(cache.NewDefaultKeyer(), c.cfg.Reports.Prefix)
}

func (c *CLI) loadDepMap() (*depmap.Map, error) {
	if c.cfg.DepMap.Path == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "no dependency map: set [depmap] path in %s or pass --depmap", config.ProjectFile)
	}
	return depmap.NewLoader(c.cfg.DepMap.Path, handlers.Known).Load()
}

func (c *CLI) jobOptions() (job.Options, error) {
	compression, err := archive.ParseCompression(c.cfg.Archive.Compression)
	if err != nil {
		return job.Options{}, err
	}
	ttl, err := c.cfg.ReportTTL()
	if err != nil {
		return job.Options{}, err
	}
	return job.Options{
		MaxNodes:    c.cfg.Resolve.MaxNodes,
		Compression: compression,
		StagingDir:  c.cfg.Archive.StagingDir,
		ReportTTL:   ttl,
	}, nil
}

// openStore opens the configured object store. Without a backend the CLI
// keeps objects in files under the data directory, since a memory store
// would not outlive the command.
func openStore(ctx context.Context, cfg config.Store) (store.Store, error) {
	sc := store.Config{
		Backend:       cfg.Backend,
		Dir:           cfg.Dir,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	}
	if sc.Backend == "" {
		sc.Backend = "file"
	}
	if sc.Backend == "file" && sc.Dir == "" {
		dir, err := dataDir()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "locate object store")
		}
		sc.Dir = filepath.Join(dir, "objects")
	}
	return store.Open(ctx, sc)
}

// openReportCache opens the configured report store, defaulting to files
// under the cache directory.
func openReportCache(ctx context.Context, cfg config.Reports) (cache.Cache, error) {
	switch cfg.Backend {
	case "none":
		return cache.NewNullCache(), nil
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "connect to report store")
		}
		return rc, nil
	}
	dir := cfg.Dir
	if dir == "" {
		base, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = filepath.Join(base, "reports")
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/deployer/).
func cacheDir() (string, error) {
	return xdgDir("XDG_CACHE_HOME", ".cache")
}

// dataDir returns the data directory using XDG standard (~/.local/share/deployer/).
func dataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(envVar, fallback string) (string, error) {
	if base := os.Getenv(envVar); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

// =============================================================================
// Arguments
// =============================================================================

// parseKeys parses "Type:ID" arguments.
func parseKeys(args []string) ([]deps.Key, error) {
	keys := make([]deps.Key, 0, len(args))
	for _, a := range args {
		k, err := deps.ParseKey(a)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func toTypes(names []string) []deps.Type {
	types := make([]deps.Type, len(names))
	for i, n := range names {
		types[i] = deps.Type(n)
	}
	return types
}
