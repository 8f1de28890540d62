package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"schoolcal/internal/observance"
)

// EnvPrefix prefixes every environment override, e.g. SCHOOLCAL_LISTEN.
const EnvPrefix = "SCHOOLCAL_"

// FeedConfig describes a single department ICS feed.
type FeedConfig struct {
	// ID is an internal identifier; imported events get source "feed:<id>".
	ID string `yaml:"id" json:"id"`
	// DeptID is the department that owns the feed's events.
	DeptID string `yaml:"dept_id" json:"dept_id"`
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username" env:"USERNAME"`
	Password string `yaml:"password" json:"password" env:"PASSWORD"`
}

// Enabled reports whether both credentials are set.
func (b BasicAuthConfig) Enabled() bool {
	// 빈 사용자명 또는 비밀번호가 설정된 경우에는 비활성화로 취급한다.
	return b.Username != "" && b.Password != ""
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DatabasePath is the SQLite file.
	DatabasePath string `yaml:"database_path" json:"database_path"`

	// AcademicYear is the default year. Zero means the academic year of
	// today.
	AcademicYear int `yaml:"academic_year" json:"academic_year"`

	// RefreshCron is a standard 5-field cron schedule for feed sync and
	// ICS re-export in serve mode.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// ExportPath is where the ICS export is written. Empty disables the
	// file export.
	ExportPath string `yaml:"export_path" json:"export_path"`

	// CacheDir holds the feed HTTP cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Observances replaces the built-in observance list when non-empty.
	Observances []observance.Observance `yaml:"observances,omitempty" json:"observances,omitempty"`

	// Feeds is the list of department ICS feeds.
	Feeds []FeedConfig `yaml:"feeds" json:"feeds"`

	// BasicAuth enables HTTP Basic Authentication on all endpoints except
	// /health when both fields are set.
	BasicAuth BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		DatabasePath: "./var/schoolcal.db",
		RefreshCron:  "0 * * * *",
		ExportPath:   "./var/schoolcal.ics",
		CacheDir:     "./var/ics-cache",
		LogLevel:     "info",
		Feeds:        []FeedConfig{},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.DatabasePath == "" {
		c.DatabasePath = d.DatabasePath
	}
	if c.RefreshCron == "" {
		c.RefreshCron = d.RefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = d.CacheDir
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = d.LogLevel
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].ID == "" {
			c.Feeds[i].ID = c.Feeds[i].DeptID
		}
	}
}

// Validate checks values that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if c.AcademicYear != 0 && (c.AcademicYear < 1901 || c.AcademicYear > 2098) {
		return fmt.Errorf("config: academic_year %d out of range", c.AcademicYear)
	}
	for _, o := range c.Observances {
		if err := o.Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	seen := make(map[string]bool)
	for _, f := range c.Feeds {
		if f.URL == "" || f.DeptID == "" {
			return fmt.Errorf("config: feed %q needs url and dept_id", f.ID)
		}
		if seen[f.ID] {
			return fmt.Errorf("config: duplicate feed id %q", f.ID)
		}
		seen[f.ID] = true
	}
	return nil
}

// ObservanceList returns the configured observances or the defaults.
func (c *Config) ObservanceList() []observance.Observance {
	if len(c.Observances) > 0 {
		return c.Observances
	}
	return observance.Defaults()
}

// envOverrides lists the fields that SCHOOLCAL_* variables may set.
type envOverrides struct {
	Listen       string          `env:"LISTEN"`
	DatabasePath string          `env:"DATABASE_PATH"`
	AcademicYear int             `env:"ACADEMIC_YEAR"`
	RefreshCron  string          `env:"REFRESH"`
	ExportPath   string          `env:"EXPORT_PATH"`
	CacheDir     string          `env:"CACHE_DIR"`
	LogLevel     string          `env:"LOG_LEVEL"`
	BasicAuth    BasicAuthConfig `envPrefix:"BASIC_AUTH_"`
}

// ApplyEnv overrides fields from SCHOOLCAL_* environment variables. Unset
// variables leave the field untouched.
func (c *Config) ApplyEnv() error {
	o := envOverrides{
		Listen:       c.Listen,
		DatabasePath: c.DatabasePath,
		AcademicYear: c.AcademicYear,
		RefreshCron:  c.RefreshCron,
		ExportPath:   c.ExportPath,
		CacheDir:     c.CacheDir,
		LogLevel:     c.LogLevel,
		BasicAuth:    c.BasicAuth,
	}
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	c.Listen = o.Listen
	c.DatabasePath = o.DatabasePath
	c.AcademicYear = o.AcademicYear
	c.RefreshCron = o.RefreshCron
	c.ExportPath = o.ExportPath
	c.CacheDir = o.CacheDir
	c.LogLevel = o.LogLevel
	c.BasicAuth = o.BasicAuth
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is read and defaults are filled in.
//
// Environment overrides are applied last, then the result is validated.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	cfg, err := readOrCreate(path)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readOrCreate(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filepath.Base(path), err)
	}
	cfg.Normalize()
	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) when needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".schoolcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
