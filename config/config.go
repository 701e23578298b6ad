// Package config loads the daemon configuration from ~/.indexd/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	ConfigDirName  = ".indexd"
	ConfigFileName = "config.yaml"
	IndexFileName  = "index.gob"
	SocketFileName = "indexd.sock"
	PIDFileName    = "indexd.pid"
	ReadyFileName  = "indexd.ready"
)

type Config struct {
	Version   int             `yaml:"version"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Store     StoreConfig     `yaml:"store"`
	Quantizer QuantizerConfig `yaml:"quantizer"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Watch     WatchConfig     `yaml:"watch"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Ignore    []string        `yaml:"ignore"`
}

type DaemonConfig struct {
	SocketPath string `yaml:"socket_path,omitempty"`
	// StorageCapMB bounds the on-disk index size; LRU projects are evicted
	// when usage exceeds it.
	StorageCapMB int64 `yaml:"storage_cap_mb"`
	MaxProjects  int   `yaml:"max_projects"`
}

type EmbedderConfig struct {
	Provider    string `yaml:"provider"` // openai | hash
	Model       string `yaml:"model"`
	Endpoint    string `yaml:"endpoint,omitempty"`
	APIKey      string `yaml:"api_key,omitempty"`
	Dimensions  *int   `yaml:"dimensions,omitempty"`
	RatePerSec  int    `yaml:"rate_per_sec"` // embedding request budget
	Parallelism int    `yaml:"parallelism"`
}

// GetDimensions returns the configured dimensions or the provider default.
func (e *EmbedderConfig) GetDimensions() int {
	if e.Dimensions != nil {
		return *e.Dimensions
	}
	switch e.Provider {
	case "openai":
		return 1536
	default:
		return 256
	}
}

type StoreConfig struct {
	Backend  string         `yaml:"backend"` // gob | postgres
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type QuantizerConfig struct {
	// Subspaces (M) and Centroids (K) shape the product quantizer. The
	// embedder dimension must be divisible by Subspaces.
	Subspaces int `yaml:"subspaces"`
	Centroids int `yaml:"centroids"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms"`
}

type DiscoveryConfig struct {
	Roots    []string `yaml:"roots"`
	MaxDepth int      `yaml:"max_depth"`
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Version: 1,
		Daemon: DaemonConfig{
			StorageCapMB: 512,
			MaxProjects:  32,
		},
		Embedder: EmbedderConfig{
			Provider:    "hash",
			Model:       "hash-256",
			RatePerSec:  8,
			Parallelism: 4,
		},
		Store: StoreConfig{
			Backend: "gob",
		},
		Quantizer: QuantizerConfig{
			Subspaces: 16,
			Centroids: 256,
		},
		Chunking: ChunkingConfig{
			Size:    512,
			Overlap: 2,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
		Discovery: DiscoveryConfig{
			Roots:    []string{home},
			MaxDepth: 3,
		},
		Ignore: []string{
			".git",
			".indexd",
			"node_modules",
			"vendor",
			"bin",
			"dist",
			"target",
			"__pycache__",
			".venv",
			"venv",
			".idea",
			".vscode",
		},
	}
}

// ConfigDir returns ~/.indexd, overridable with INDEXD_HOME for tests and
// parallel installs.
func ConfigDir() string {
	if dir := os.Getenv("INDEXD_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigDirName
	}
	return filepath.Join(home, ConfigDirName)
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}

func IndexPath() string {
	return filepath.Join(ConfigDir(), IndexFileName)
}

func PIDPath() string {
	return filepath.Join(ConfigDir(), PIDFileName)
}

func ReadyPath() string {
	return filepath.Join(ConfigDir(), ReadyFileName)
}

// SocketPath returns the configured socket path, or the default under the
// config dir.
func (c *Config) SocketPath() string {
	if c.Daemon.SocketPath != "" {
		return c.Daemon.SocketPath
	}
	return filepath.Join(ConfigDir(), SocketFileName)
}

func (c *Config) StorageCapBytes() int64 {
	return c.Daemon.StorageCapMB * 1024 * 1024
}

// Load reads the config file, falling back to defaults when it does not
// exist.
func Load() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in missing values so older or partial config files
// keep working.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Daemon.StorageCapMB <= 0 {
		c.Daemon.StorageCapMB = defaults.Daemon.StorageCapMB
	}
	if c.Daemon.MaxProjects <= 0 {
		c.Daemon.MaxProjects = defaults.Daemon.MaxProjects
	}

	if c.Embedder.Provider == "" {
		c.Embedder.Provider = defaults.Embedder.Provider
	}
	if c.Embedder.Model == "" {
		switch c.Embedder.Provider {
		case "openai":
			c.Embedder.Model = "text-embedding-3-small"
		default:
			c.Embedder.Model = defaults.Embedder.Model
		}
	}
	if c.Embedder.Endpoint == "" && c.Embedder.Provider == "openai" {
		c.Embedder.Endpoint = "https://api.openai.com/v1"
	}
	if c.Embedder.RatePerSec <= 0 {
		c.Embedder.RatePerSec = defaults.Embedder.RatePerSec
	}
	if c.Embedder.Parallelism <= 0 {
		c.Embedder.Parallelism = defaults.Embedder.Parallelism
	}

	if c.Store.Backend == "" {
		c.Store.Backend = defaults.Store.Backend
	}

	if c.Quantizer.Subspaces <= 0 {
		c.Quantizer.Subspaces = defaults.Quantizer.Subspaces
	}
	if c.Quantizer.Centroids <= 0 {
		c.Quantizer.Centroids = defaults.Quantizer.Centroids
	}

	if c.Chunking.Size <= 0 {
		c.Chunking.Size = defaults.Chunking.Size
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = defaults.Chunking.Overlap
	}

	if c.Watch.DebounceMs <= 0 {
		c.Watch.DebounceMs = defaults.Watch.DebounceMs
	}

	if len(c.Discovery.Roots) == 0 {
		c.Discovery.Roots = defaults.Discovery.Roots
	}
	if c.Discovery.MaxDepth <= 0 {
		c.Discovery.MaxDepth = defaults.Discovery.MaxDepth
	}

	if len(c.Ignore) == 0 {
		c.Ignore = defaults.Ignore
	}
}

func (c *Config) Save() error {
	if err := os.MkdirAll(ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
