// Package config handles loading and managing configuration for the flowsync CLI.
// It supports loading from YAML files, a .env file, environment variables, and
// hardcoded defaults.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/Jayphen/flowsync/internal/keyprovider"
)

// Backend names.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Key sources.
const (
	KeySourceEnv        = "env"
	KeySourcePassphrase = "passphrase"
)

// Config holds all configuration settings for the flowsync CLI.
type Config struct {
	// Vault is the logical vault name; keys and records are scoped to it.
	Vault string `yaml:"vault"`

	// Backend selects where encrypted records live (file, redis).
	Backend string `yaml:"backend"`

	// DataDir is the root directory for the file backend.
	DataDir string `yaml:"data_dir"`

	// RedisURL is the Redis connection URL for the redis backend.
	RedisURL string `yaml:"redis_url"`

	// KeySource selects the key provider (env, passphrase).
	KeySource string `yaml:"key_source"`

	// KeyEnv is the environment variable holding the key for the env source.
	KeyEnv string `yaml:"key_env"`

	// KDFSalt is the hex-encoded salt for the passphrase source.
	KDFSalt string `yaml:"kdf_salt"`

	// KDF holds Argon2id cost parameters for the passphrase source.
	KDF keyprovider.KDFParams `yaml:"kdf"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration from the config file.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file"`
	JSON       bool   `yaml:"json"`
	Console    bool   `yaml:"console"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Default configuration values
const (
	DefaultVault     = "default"
	DefaultBackend   = BackendFile
	DefaultRedisURL  = "redis://localhost:6379"
	DefaultKeySource = KeySourceEnv
	DefaultKeyEnv    = keyprovider.DefaultKeyEnv
	DefaultLogLevel  = "warn"
)

var (
	globalConfig *Config
	configOnce   sync.Once
	configErr    error
)

// Get returns the global configuration, loading it if necessary.
// This function is safe for concurrent use.
func Get() (*Config, error) {
	configOnce.Do(func() {
		globalConfig, configErr = Load()
	})
	return globalConfig, configErr
}

// Defaults returns the configuration used when nothing else is set.
func Defaults() *Config {
	cfg := &Config{
		Vault:     DefaultVault,
		Backend:   DefaultBackend,
		RedisURL:  DefaultRedisURL,
		KeySource: DefaultKeySource,
		KeyEnv:    DefaultKeyEnv,
		KDF:       keyprovider.DefaultKDFParams,
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			JSON:     true,
			Compress: true,
		},
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.DataDir = filepath.Join(home, ".local", "share", "flowsync")
	}
	return cfg
}

// Load reads configuration from files and environment variables.
// Priority (highest to lowest):
// 1. Environment variables (including those set by ./.env)
// 2. ~/.config/flowsync/config.yaml (or config.yml)
// 3. ~/.flowsync.yaml
// 4. Hardcoded defaults
//
// Missing files are skipped; a file that exists but does not parse is an error.
func Load() (*Config, error) {
	cfg := Defaults()

	// .env never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	for _, path := range filePathsLowestFirst() {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnvOverrides()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single config file on top of the defaults and env.
func LoadFile(path string) (*Config, error) {
	cfg := Defaults()
	if err := mergeFile(cfg, path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func filePathsLowestFirst() []string {
	paths := ConfigPaths()
	out := make([]string, 0, len(paths))
	for i := len(paths) - 1; i >= 0; i-- {
		out = append(out, paths[i])
	}
	return out
}

// applyEnvOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvOverrides() {
	if val := os.Getenv("FLOWSYNC_VAULT"); val != "" {
		c.Vault = val
	}
	if val := os.Getenv("FLOWSYNC_BACKEND"); val != "" {
		c.Backend = val
	}
	if val := os.Getenv("FLOWSYNC_DATA_DIR"); val != "" {
		c.DataDir = val
	}

	// Redis URL (support both REDIS_URL and FLOWSYNC_REDIS_URL)
	if val := os.Getenv("FLOWSYNC_REDIS_URL"); val != "" {
		c.RedisURL = val
	} else if val := os.Getenv("REDIS_URL"); val != "" {
		c.RedisURL = val
	}

	if val := os.Getenv("FLOWSYNC_KEY_SOURCE"); val != "" {
		c.KeySource = val
	}
	if val := os.Getenv("FLOWSYNC_KEY_ENV"); val != "" {
		c.KeyEnv = val
	}
	if val := os.Getenv("FLOWSYNC_KDF_SALT"); val != "" {
		c.KDFSalt = val
	}
	if val := os.Getenv("FLOWSYNC_KDF_TIME"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.KDF.Time = uint32(n)
		}
	}
	if val := os.Getenv("FLOWSYNC_KDF_MEMORY_KIB"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 32); err == nil {
			c.KDF.MemoryKiB = uint32(n)
		}
	}
	if val := os.Getenv("FLOWSYNC_KDF_THREADS"); val != "" {
		if n, err := strconv.ParseUint(val, 10, 8); err == nil {
			c.KDF.Threads = uint8(n)
		}
	}

	if val := os.Getenv("FLOWSYNC_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("FLOWSYNC_LOG_FILE"); val != "" {
		c.Logging.FilePath = val
	}
}

// expandPaths resolves a leading ~ in path settings.
func (c *Config) expandPaths() {
	c.DataDir = expandHome(c.DataDir)
	c.Logging.FilePath = expandHome(c.Logging.FilePath)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Vault == "" {
		return errors.New("vault must not be empty")
	}
	switch c.Backend {
	case BackendFile:
		if c.DataDir == "" {
			return errors.New("data_dir must be set for the file backend")
		}
	case BackendRedis:
	default:
		return fmt.Errorf("unknown backend %q: must be %s or %s", c.Backend, BackendFile, BackendRedis)
	}
	switch c.KeySource {
	case KeySourceEnv:
	case KeySourcePassphrase:
		if err := c.KDF.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown key_source %q: must be %s or %s", c.KeySource, KeySourceEnv, KeySourcePassphrase)
	}
	return nil
}

// VaultDir returns the file backend directory for the configured vault.
func (c *Config) VaultDir() string {
	return filepath.Join(c.DataDir, "vaults", c.Vault)
}

// Salt decodes KDFSalt.
func (c *Config) Salt() ([]byte, error) {
	if c.KDFSalt == "" {
		return nil, fmt.Errorf("kdf_salt is not set (run 'flowsync keygen --salt' and add it to your config)")
	}
	salt, err := hex.DecodeString(c.KDFSalt)
	if err != nil {
		return nil, fmt.Errorf("kdf_salt is not valid hex: %w", err)
	}
	return salt, nil
}

// Reload forces a reload of the configuration.
// This resets the global singleton and returns the newly loaded config.
func Reload() (*Config, error) {
	configOnce = sync.Once{}
	return Get()
}

// ConfigPaths returns the paths where config files are searched, highest
// priority first.
func ConfigPaths() []string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(homeDir, ".config", "flowsync", "config.yaml"),
		filepath.Join(homeDir, ".config", "flowsync", "config.yml"),
		filepath.Join(homeDir, ".flowsync.yaml"),
	}
}

// WriteExample writes an example configuration file to the specified path.
func WriteExample(path string) error {
	example := `# FlowSync configuration file
# Place this file at ~/.config/flowsync/config.yaml or ~/.flowsync.yaml

# Vault name; records and keys are scoped to it
vault: default

# Where encrypted records are stored: file or redis
backend: file

# Root directory for the file backend
data_dir: ~/.local/share/flowsync

# Redis connection URL for the redis backend
redis_url: redis://localhost:6379

# Key source: env (hex/base64 key in key_env) or passphrase (Argon2id)
key_source: env
key_env: FLOWSYNC_KEY

# Hex salt for the passphrase key source (flowsync keygen --salt)
kdf_salt: ""
kdf:
  time: 3
  memory_kib: 65536
  threads: 4

logging:
  level: warn
  file: ""
  json: true
  console: false
  max_size: 10
  max_backups: 5
  max_age: 7
  compress: true
`
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(example), 0o644)
}
