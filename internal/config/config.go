// Package config loads settingsearch configuration from defaults, the user
// config file, the project config file and SETTINGSEARCH_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// ProjectConfigName is the per-directory config file.
	ProjectConfigName = ".settingsearch.yaml"

	// StoreFileName is the index database inside the data directory.
	StoreFileName = "index.db"

	// RankingBleve enables the BM25 relevance overlay.
	RankingBleve = "bleve"
	// RankingNone keeps the tiered order only.
	RankingNone = "none"
)

// Config represents the complete settingsearch configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	History HistoryConfig `yaml:"history" json:"history"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// PathsConfig locates the persisted state and the inputs.
type PathsConfig struct {
	// DataDir holds the index database, the index lock and logs.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// DescriptorDir holds YAML/TOML source descriptors.
	// Default: <data_dir>/descriptors
	DescriptorDir string `yaml:"descriptor_dir" json:"descriptor_dir"`
	// CatalogFile lists installed apps, accessibility services and input devices.
	// Default: <data_dir>/catalog.yaml
	CatalogFile string `yaml:"catalog_file" json:"catalog_file"`
}

// IndexConfig configures index passes.
type IndexConfig struct {
	Locale string `yaml:"locale" json:"locale"`
	// BuildFingerprint forces a full rebuild when it changes.
	// Empty uses the binary version.
	BuildFingerprint string `yaml:"build_fingerprint" json:"build_fingerprint"`
	// AppSourceID owns rows whose source id is blank.
	AppSourceID string `yaml:"app_source_id" json:"app_source_id"`
	Concurrency int    `yaml:"concurrency" json:"concurrency"`
	// RefreshInterval is the periodic reindex interval of serve ("0" disables).
	RefreshInterval string `yaml:"refresh_interval" json:"refresh_interval"`
	// WatchDebounce is the quiet time before descriptor changes are acted on.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
	// WatchMinInterval is the minimum time between two watch-triggered passes.
	WatchMinInterval string `yaml:"watch_min_interval" json:"watch_min_interval"`
}

// SearchConfig configures queries.
type SearchConfig struct {
	StaticTimeout  string `yaml:"static_timeout" json:"static_timeout"`
	DynamicTimeout string `yaml:"dynamic_timeout" json:"dynamic_timeout"`
	ScorerTimeout  string `yaml:"scorer_timeout" json:"scorer_timeout"`
	// Ranking selects the relevance overlay: "bleve" or "none".
	Ranking    string `yaml:"ranking" json:"ranking"`
	CacheSize  int    `yaml:"cache_size" json:"cache_size"`
	MaxResults int    `yaml:"max_results" json:"max_results"`
}

// HistoryConfig configures the saved-query ledger.
type HistoryConfig struct {
	Capacity int `yaml:"capacity" json:"capacity"`
}

// ServerConfig configures logging and the MCP server.
type ServerConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			DataDir: defaultDataDir(),
		},
		Index: IndexConfig{
			Locale:           "en_US",
			AppSourceID:      "com.android.settings",
			Concurrency:      runtime.NumCPU(),
			RefreshInterval:  "1h",
			WatchDebounce:    "200ms",
			WatchMinInterval: "5s",
		},
		Search: SearchConfig{
			StaticTimeout:  "1s",
			DynamicTimeout: "300ms",
			ScorerTimeout:  "300ms",
			Ranking:        RankingBleve,
			CacheSize:      128,
			MaxResults:     20,
		},
		History: HistoryConfig{
			Capacity: 64,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".settingsearch")
	}
	return filepath.Join(home, ".settingsearch")
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/settingsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/settingsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "settingsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "settingsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "settingsearch", "config.yaml")
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/settingsearch/config.yaml)
//  3. Project config (.settingsearch.yaml in dir)
//  4. Environment variables (SETTINGSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if dir != "" {
		for _, name := range []string{ProjectConfigName, ".settingsearch.yml"} {
			path := filepath.Join(dir, name)
			if fileExists(path) {
				if err := cfg.loadYAML(path); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	mergeString(&c.Paths.DataDir, other.Paths.DataDir)
	mergeString(&c.Paths.DescriptorDir, other.Paths.DescriptorDir)
	mergeString(&c.Paths.CatalogFile, other.Paths.CatalogFile)

	mergeString(&c.Index.Locale, other.Index.Locale)
	mergeString(&c.Index.BuildFingerprint, other.Index.BuildFingerprint)
	mergeString(&c.Index.AppSourceID, other.Index.AppSourceID)
	mergeInt(&c.Index.Concurrency, other.Index.Concurrency)
	mergeString(&c.Index.RefreshInterval, other.Index.RefreshInterval)
	mergeString(&c.Index.WatchDebounce, other.Index.WatchDebounce)
	mergeString(&c.Index.WatchMinInterval, other.Index.WatchMinInterval)

	mergeString(&c.Search.StaticTimeout, other.Search.StaticTimeout)
	mergeString(&c.Search.DynamicTimeout, other.Search.DynamicTimeout)
	mergeString(&c.Search.ScorerTimeout, other.Search.ScorerTimeout)
	mergeString(&c.Search.Ranking, other.Search.Ranking)
	mergeInt(&c.Search.CacheSize, other.Search.CacheSize)
	mergeInt(&c.Search.MaxResults, other.Search.MaxResults)

	mergeInt(&c.History.Capacity, other.History.Capacity)

	mergeString(&c.Server.LogLevel, other.Server.LogLevel)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// applyEnvOverrides applies SETTINGSEARCH_* environment variable overrides.
// Unparseable numbers are ignored.
func (c *Config) applyEnvOverrides() {
	envString := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	envInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	envString("SETTINGSEARCH_DATA_DIR", &c.Paths.DataDir)
	envString("SETTINGSEARCH_DESCRIPTOR_DIR", &c.Paths.DescriptorDir)
	envString("SETTINGSEARCH_CATALOG_FILE", &c.Paths.CatalogFile)
	envString("SETTINGSEARCH_LOCALE", &c.Index.Locale)
	envString("SETTINGSEARCH_BUILD_FINGERPRINT", &c.Index.BuildFingerprint)
	envString("SETTINGSEARCH_REFRESH_INTERVAL", &c.Index.RefreshInterval)
	envString("SETTINGSEARCH_RANKING", &c.Search.Ranking)
	envInt("SETTINGSEARCH_CACHE_SIZE", &c.Search.CacheSize)
	envInt("SETTINGSEARCH_HISTORY_CAPACITY", &c.History.Capacity)
	envString("SETTINGSEARCH_LOG_LEVEL", &c.Server.LogLevel)
}

func (c *Config) resolvePaths() {
	if c.Paths.DescriptorDir == "" {
		c.Paths.DescriptorDir = filepath.Join(c.Paths.DataDir, "descriptors")
	}
	if c.Paths.CatalogFile == "" {
		c.Paths.CatalogFile = filepath.Join(c.Paths.DataDir, "catalog.yaml")
	}
}

// StorePath returns the index database path.
func (c *Config) StorePath() string {
	return filepath.Join(c.Paths.DataDir, StoreFileName)
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if c.Index.Locale == "" {
		return fmt.Errorf("index.locale is required")
	}
	if c.Index.Concurrency < 1 {
		return fmt.Errorf("index.concurrency must be at least 1, got %d", c.Index.Concurrency)
	}

	durations := []struct {
		name     string
		value    string
		positive bool
	}{
		{"index.refresh_interval", c.Index.RefreshInterval, false},
		{"index.watch_debounce", c.Index.WatchDebounce, true},
		{"index.watch_min_interval", c.Index.WatchMinInterval, false},
		{"search.static_timeout", c.Search.StaticTimeout, true},
		{"search.dynamic_timeout", c.Search.DynamicTimeout, true},
		{"search.scorer_timeout", c.Search.ScorerTimeout, true},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s must be a duration, got %q", d.name, d.value)
		}
		if v < 0 || (d.positive && v == 0) {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	switch strings.ToLower(c.Search.Ranking) {
	case RankingBleve, RankingNone:
	default:
		return fmt.Errorf("search.ranking must be 'bleve' or 'none', got %s", c.Search.Ranking)
	}
	if c.Search.CacheSize < 0 {
		return fmt.Errorf("search.cache_size must be non-negative, got %d", c.Search.CacheSize)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.History.Capacity < 1 {
		return fmt.Errorf("history.capacity must be at least 1, got %d", c.History.Capacity)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// Duration parses a validated duration field. Invalid input yields 0.
func Duration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
