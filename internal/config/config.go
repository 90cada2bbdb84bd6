// Package config handles loading deployer.toml configuration files.
//
// Configuration is read from the global file
// (~/.config/deployer/config.toml) and a project file, by default
// deployer.toml in the working directory. A key defined in the project file
// wins; otherwise the global value is used. Relative paths in a file are
// resolved against that file's directory.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/percussion/deployer/pkg/errors"
)

// ProjectFile is the name of the project configuration file.
const ProjectFile = "deployer.toml"

// Config represents a deployer.toml configuration file.
type Config struct {
	DepMap  DepMap  `toml:"depmap"`
	Store   Store   `toml:"store"`
	Reports Reports `toml:"reports"`
	Archive Archive `toml:"archive"`
	Resolve Resolve `toml:"resolve"`
	Metrics Metrics `toml:"metrics"`
}

// DepMap locates the dependency map document.
type DepMap struct {
	Path string `toml:"path"`
}

// Store selects the object store the handlers read and write.
type Store struct {
	// Backend is "memory", "file" or "mongo".
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	MongoURI      string `toml:"mongo-uri"`
	MongoDatabase string `toml:"mongo-database"`
}

// Reports selects where job reports are kept.
type Reports struct {
	// Backend is "file", "redis" or "none".
	Backend       string `toml:"backend"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis-addr"`
	RedisPassword string `toml:"redis-password"`
	RedisDB       int    `toml:"redis-db"`
	Prefix        string `toml:"prefix"`

	// TTL is a Go duration string such as "720h".
	TTL string `toml:"ttl"`
}

// Archive configures archive writing and staging.
type Archive struct {
	Compression string `toml:"compression"`
	StagingDir  string `toml:"staging-dir"`
}

// Resolve bounds closure resolution.
type Resolve struct {
	MaxNodes int `toml:"max-nodes"`
}

// Metrics configures the Prometheus textfile written after each command.
type Metrics struct {
	Textfile string `toml:"textfile"`
}

// ReportTTL parses Reports.TTL. An empty TTL is zero.
func (c *Config) ReportTTL() (time.Duration, error) {
	if c.Reports.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Reports.TTL)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeConfiguration, err, "reports.ttl")
	}
	return d, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if err := oneOf("store.backend", c.Store.Backend, "memory", "file", "mongo"); err != nil {
		return err
	}
	if err := oneOf("reports.backend", c.Reports.Backend, "file", "redis", "none"); err != nil {
		return err
	}
	if err := oneOf("archive.compression", c.Archive.Compression, "none", "zstd"); err != nil {
		return err
	}
	if c.Resolve.MaxNodes < 0 {
		return errors.New(errors.ErrCodeConfiguration, "resolve.max-nodes must not be negative")
	}
	_, err := c.ReportTTL()
	return err
}

func oneOf(key, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.New(errors.ErrCodeConfiguration, "%s: unknown value %q (want one of %s)", key, value, strings.Join(allowed, ", "))
}

// GlobalPath returns the path of the global configuration file.
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeConfiguration, err, "get home directory")
	}
	return filepath.Join(homeDir, ".config", "deployer", "config.toml"), nil
}

// Load loads the global configuration merged with the project file at
// projectPath. Missing files are treated as empty.
func Load(projectPath string) (*Config, error) {
	globalPath, err := GlobalPath()
	if err != nil {
		return nil, err
	}
	return LoadFiles(globalPath, projectPath)
}

// LoadFiles merges two configuration files, the project file winning.
func LoadFiles(globalPath, projectPath string) (*Config, error) {
	globalCfg, globalMeta, err := loadConfigFile(globalPath)
	if err != nil {
		return nil, err
	}
	projectCfg, projectMeta, err := loadConfigFile(projectPath)
	if err != nil {
		return nil, err
	}
	merged := mergeConfigs(globalCfg, projectCfg, globalMeta, projectMeta)
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

func loadConfigFile(path string) (*Config, toml.MetaData, error) {
	if path == "" {
		return &Config{}, toml.MetaData{}, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, toml.MetaData{}, nil
	}
	if err != nil {
		return nil, toml.MetaData{}, errors.Wrap(errors.ErrCodeConfiguration, err, "read config file %s", path)
	}

	var cfg Config
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, toml.MetaData{}, errors.Wrap(errors.ErrCodeConfiguration, err, "parse config file %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, toml.MetaData{}, errors.New(errors.ErrCodeConfiguration, "config file %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, meta, nil
}

// resolvePaths makes relative paths absolute against dir.
func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.DepMap.Path, &c.Store.Dir, &c.Reports.Dir, &c.Archive.StagingDir, &c.Metrics.Textfile} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

func mergeConfigs(globalCfg, projectCfg *Config, globalMeta, projectMeta toml.MetaData) *Config {
	str := func(value *string, project, global string, key ...string) {
		*value = mergeString(projectMeta.IsDefined(key...), project, global)
	}

	var m Config
	str(&m.DepMap.Path, projectCfg.DepMap.Path, globalCfg.DepMap.Path, "depmap", "path")

	str(&m.Store.Backend, projectCfg.Store.Backend, globalCfg.Store.Backend, "store", "backend")
	str(&m.Store.Dir, projectCfg.Store.Dir, globalCfg.Store.Dir, "store", "dir")
	str(&m.Store.MongoURI, projectCfg.Store.MongoURI, globalCfg.Store.MongoURI, "store", "mongo-uri")
	str(&m.Store.MongoDatabase, projectCfg.Store.MongoDatabase, globalCfg.Store.MongoDatabase, "store", "mongo-database")

	str(&m.Reports.Backend, projectCfg.Reports.Backend, globalCfg.Reports.Backend, "reports", "backend")
	str(&m.Reports.Dir, projectCfg.Reports.Dir, globalCfg.Reports.Dir, "reports", "dir")
	str(&m.Reports.RedisAddr, projectCfg.Reports.RedisAddr, globalCfg.Reports.RedisAddr, "reports", "redis-addr")
	str(&m.Reports.RedisPassword, projectCfg.Reports.RedisPassword, globalCfg.Reports.RedisPassword, "reports", "redis-password")
	str(&m.Reports.Prefix, projectCfg.Reports.Prefix, globalCfg.Reports.Prefix, "reports", "prefix")
	str(&m.Reports.TTL, projectCfg.Reports.TTL, globalCfg.Reports.TTL, "reports", "ttl")
	m.Reports.RedisDB = globalCfg.Reports.RedisDB
	if projectMeta.IsDefined("reports", "redis-db") {
		m.Reports.RedisDB = projectCfg.Reports.RedisDB
	}

	str(&m.Archive.Compression, projectCfg.Archive.Compression, globalCfg.Archive.Compression, "archive", "compression")
	str(&m.Archive.StagingDir, projectCfg.Archive.StagingDir, globalCfg.Archive.StagingDir, "archive", "staging-dir")

	m.Resolve.MaxNodes = globalCfg.Resolve.MaxNodes
	if projectMeta.IsDefined("resolve", "max-nodes") {
		m.Resolve.MaxNodes = projectCfg.Resolve.MaxNodes
	}

	str(&m.Metrics.Textfile, projectCfg.Metrics.Textfile, globalCfg.Metrics.Textfile, "metrics", "textfile")
	return &m
}

func mergeString(projectDefined bool, projectValue, globalValue string) string {
	value := globalValue
	if projectDefined {
		value = projectValue
	}
	return strings.TrimSpace(value)
}
