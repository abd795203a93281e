// Package config loads server configuration from two optional layers:
// a user-level config.toml and a repo-level .chix YAML file. Repo
// settings win where both specify a value.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Default values applied when neither layer configures a setting.
const (
	DefaultTimeout     = 300 * time.Second
	DefaultMaxBytes    = 100_000
	DefaultMaxLines    = 2000
	DefaultMaxItems    = 100
	DefaultLogTail     = 500
	DefaultSearchLimit = 50
)

// Config is the merged configuration. All fields are optional; zero
// values mean "use the default", exposed through the accessor methods.
type Config struct {
	Cachix       CachixConfig
	OutputLimits OutputLimitsConfig

	RawTimeout string // e.g. "5m", "300s"; repo layer only
}

// userConfig mirrors the config.toml layout.
type userConfig struct {
	Cachix       CachixConfig       `toml:"cachix"`
	OutputLimits OutputLimitsConfig `toml:"output_limits"`
}

// repoConfig mirrors the .chix dotfile layout.
type repoConfig struct {
	Version    int                `yaml:"version"`
	RawTimeout string             `yaml:"timeout"`
	Limits     OutputLimitsConfig `yaml:"output_limits"`
}

// CachixConfig names the default binary cache and its auth tokens.
type CachixConfig struct {
	DefaultCache string                `toml:"default_cache"`
	AuthToken    string                `toml:"auth_token"`
	Caches       map[string]CacheEntry `toml:"caches"`
}

// CacheEntry holds per-cache overrides.
type CacheEntry struct {
	AuthToken string `toml:"auth_token"`
}

// OutputLimitsConfig bounds how much tool output leaves the server.
type OutputLimitsConfig struct {
	MaxBytes    int `toml:"default_max_bytes" yaml:"max_bytes"`
	MaxLines    int `toml:"default_max_lines" yaml:"max_lines"`
	MaxItems    int `toml:"default_max_items" yaml:"max_items"`
	LogTail     int `toml:"log_tail_default" yaml:"log_tail"`
	SearchLimit int `toml:"search_limit_default" yaml:"search_limit"`
}

// Timeout returns the configured command timeout or the default.
func (c *Config) Timeout() time.Duration {
	if c.RawTimeout != "" {
		d, err := time.ParseDuration(c.RawTimeout)
		if err == nil && d > 0 {
			return d
		}
	}
	return DefaultTimeout
}

// MaxBytes returns the per-output byte budget.
func (c *Config) MaxBytes() int {
	if c.OutputLimits.MaxBytes > 0 {
		return c.OutputLimits.MaxBytes
	}
	return DefaultMaxBytes
}

// MaxLines returns the per-output line budget.
func (c *Config) MaxLines() int {
	if c.OutputLimits.MaxLines > 0 {
		return c.OutputLimits.MaxLines
	}
	return DefaultMaxLines
}

// MaxItems returns the page size for list-shaped results.
func (c *Config) MaxItems() int {
	if c.OutputLimits.MaxItems > 0 {
		return c.OutputLimits.MaxItems
	}
	return DefaultMaxItems
}

// LogTail returns the default number of trailing log lines.
func (c *Config) LogTail() int {
	if c.OutputLimits.LogTail > 0 {
		return c.OutputLimits.LogTail
	}
	return DefaultLogTail
}

// SearchLimit returns the default result cap for package searches.
func (c *Config) SearchLimit() int {
	if c.OutputLimits.SearchLimit > 0 {
		return c.OutputLimits.SearchLimit
	}
	return DefaultSearchLimit
}

// CachixToken resolves the auth token for cacheName. Priority: the
// per-cache token, then the global token, then CACHIX_AUTH_TOKEN from
// the environment. Returns "" when no token is configured.
func (c *Config) CachixToken(cacheName string) string {
	if cacheName != "" {
		if entry, ok := c.Cachix.Caches[cacheName]; ok && entry.AuthToken != "" {
			return entry.AuthToken
		}
	}
	if c.Cachix.AuthToken != "" {
		return c.Cachix.AuthToken
	}
	return os.Getenv("CACHIX_AUTH_TOKEN")
}

// DefaultCache returns the configured default cachix cache name.
func (c *Config) DefaultCache() string {
	return c.Cachix.DefaultCache
}

// LoadResult holds the merged config and the discovered flake root.
type LoadResult struct {
	Config    *Config
	FlakeRoot string // directory containing flake.nix; falls back to workspace
}

// Load merges the user config with the repo dotfile found from
// workspace. Missing files are not errors; malformed files are.
//
// The flake root is discovered by walking upward from workspace looking
// for flake.nix, so the server can be started from any subdirectory of
// a flake-managed repository.
func Load(workspace string) (*LoadResult, error) {
	root, err := findFlakeRoot(workspace)
	if err != nil {
		// No flake.nix found; use workspace as root.
		root = workspace
	}

	cfg := &Config{}
	if err := loadUser(cfg); err != nil {
		return nil, err
	}
	if err := loadRepo(cfg, root); err != nil {
		return nil, err
	}
	return &LoadResult{Config: cfg, FlakeRoot: root}, nil
}

// UserConfigPath returns the location of the user-level config file.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chix", "config.toml"), nil
}

func loadUser(cfg *Config) error {
	path, err := UserConfigPath()
	if err != nil {
		return nil // no home directory; nothing to load
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var uc userConfig
	if err := toml.Unmarshal(data, &uc); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.Cachix = uc.Cachix
	cfg.OutputLimits = uc.OutputLimits
	return nil
}

func loadRepo(cfg *Config, root string) error {
	path := filepath.Join(root, ".chix")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading .chix: %w", err)
	}

	var rc repoConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return fmt.Errorf("parsing .chix: %w", err)
	}
	if rc.RawTimeout != "" {
		cfg.RawTimeout = rc.RawTimeout
	}
	overlayLimits(&cfg.OutputLimits, rc.Limits)
	return nil
}

// overlayLimits copies the set fields of src over dst.
func overlayLimits(dst *OutputLimitsConfig, src OutputLimitsConfig) {
	if src.MaxBytes > 0 {
		dst.MaxBytes = src.MaxBytes
	}
	if src.MaxLines > 0 {
		dst.MaxLines = src.MaxLines
	}
	if src.MaxItems > 0 {
		dst.MaxItems = src.MaxItems
	}
	if src.LogTail > 0 {
		dst.LogTail = src.LogTail
	}
	if src.SearchLimit > 0 {
		dst.SearchLimit = src.SearchLimit
	}
}

// findFlakeRoot walks upward from dir looking for a directory
// containing flake.nix.
func findFlakeRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "flake.nix")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("flake.nix not found")
		}
		dir = parent
	}
}
