package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/Jayphen/flowsync/internal/keyprovider"
)

// isolate points HOME and the working directory at empty temp dirs and clears
// every FLOWSYNC_* variable so tests see only what they set.
func isolate(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "FLOWSYNC_") || name == "REDIS_URL" {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	return home
}

func TestDefaultConfig(t *testing.T) {
	home := isolate(t)

	// Reset global config for testing
	configOnce = sync.Once{}
	globalConfig = nil
	configErr = nil

	cfg, err := Get()
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if cfg.Vault != DefaultVault {
		t.Errorf("Vault = %q, want %q", cfg.Vault, DefaultVault)
	}
	if cfg.Backend != DefaultBackend {
		t.Errorf("Backend = %q, want %q", cfg.Backend, DefaultBackend)
	}
	if cfg.RedisURL != DefaultRedisURL {
		t.Errorf("RedisURL = %q, want %q", cfg.RedisURL, DefaultRedisURL)
	}
	if cfg.KeySource != DefaultKeySource {
		t.Errorf("KeySource = %q, want %q", cfg.KeySource, DefaultKeySource)
	}
	if cfg.KeyEnv != DefaultKeyEnv {
		t.Errorf("KeyEnv = %q, want %q", cfg.KeyEnv, DefaultKeyEnv)
	}
	if cfg.KDF != keyprovider.DefaultKDFParams {
		t.Errorf("KDF = %+v, want %+v", cfg.KDF, keyprovider.DefaultKDFParams)
	}
	if want := filepath.Join(home, ".local", "share", "flowsync"); cfg.DataDir != want {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, want)
	}
	if want := filepath.Join(home, ".local", "share", "flowsync", "vaults", "default"); cfg.VaultDir() != want {
		t.Errorf("VaultDir() = %q, want %q", cfg.VaultDir(), want)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)

	t.Setenv("FLOWSYNC_VAULT", "work")
	t.Setenv("FLOWSYNC_BACKEND", "redis")
	t.Setenv("FLOWSYNC_REDIS_URL", "redis://custom:6380")
	t.Setenv("FLOWSYNC_KEY_SOURCE", "passphrase")
	t.Setenv("FLOWSYNC_KDF_SALT", "00112233445566778899aabbccddeeff")
	t.Setenv("FLOWSYNC_KDF_TIME", "5")
	t.Setenv("FLOWSYNC_KDF_MEMORY_KIB", "2048")
	t.Setenv("FLOWSYNC_KDF_THREADS", "2")
	t.Setenv("FLOWSYNC_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Vault != "work" {
		t.Errorf("Vault = %q, want %q", cfg.Vault, "work")
	}
	if cfg.Backend != BackendRedis {
		t.Errorf("Backend = %q, want %q", cfg.Backend, BackendRedis)
	}
	if cfg.RedisURL != "redis://custom:6380" {
		t.Errorf("RedisURL = %q, want %q", cfg.RedisURL, "redis://custom:6380")
	}
	if cfg.KeySource != KeySourcePassphrase {
		t.Errorf("KeySource = %q", cfg.KeySource)
	}
	want := keyprovider.KDFParams{Time: 5, MemoryKiB: 2048, Threads: 2}
	if cfg.KDF != want {
		t.Errorf("KDF = %+v, want %+v", cfg.KDF, want)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}

	salt, err := cfg.Salt()
	if err != nil {
		t.Fatalf("Salt() failed: %v", err)
	}
	if len(salt) != 16 {
		t.Errorf("salt length = %d, want 16", len(salt))
	}
}

func TestRedisURLFallback(t *testing.T) {
	isolate(t)
	t.Setenv("REDIS_URL", "redis://fallback:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RedisURL != "redis://fallback:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestFilePriority(t *testing.T) {
	home := isolate(t)

	legacy := filepath.Join(home, ".flowsync.yaml")
	if err := os.WriteFile(legacy, []byte("vault: legacy\nbackend: redis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	xdg := filepath.Join(home, ".config", "flowsync", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(xdg), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xdg, []byte("vault: xdg\ndata_dir: ~/tasks\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Vault != "xdg" {
		t.Errorf("Vault = %q, want xdg config to win", cfg.Vault)
	}
	if cfg.Backend != BackendRedis {
		t.Errorf("Backend = %q, want value from legacy file", cfg.Backend)
	}
	if want := filepath.Join(home, "tasks"); cfg.DataDir != want {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, want)
	}

	t.Setenv("FLOWSYNC_VAULT", "env")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Vault != "env" {
		t.Errorf("Vault = %q, want env to win", cfg.Vault)
	}
}

func TestDotEnv(t *testing.T) {
	isolate(t)

	if err := os.WriteFile(".env", []byte("FLOWSYNC_VAULT=from-dotenv\nFLOWSYNC_BACKEND=redis\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Already-set variables win over .env.
	t.Setenv("FLOWSYNC_BACKEND", "file")

	cfg, err := Load()
	// godotenv sets process variables; clean up the one it introduced.
	t.Cleanup(func() { os.Unsetenv("FLOWSYNC_VAULT") })
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Vault != "from-dotenv" {
		t.Errorf("Vault = %q, want %q", cfg.Vault, "from-dotenv")
	}
	if cfg.Backend != BackendFile {
		t.Errorf("Backend = %q, want existing env to win over .env", cfg.Backend)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	home := isolate(t)

	path := filepath.Join(home, ".flowsync.yaml")
	if err := os.WriteFile(path, []byte("vault: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(); err == nil {
		t.Error("expected error for unparseable config file")
	}
}

func TestValidate(t *testing.T) {
	isolate(t)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty vault", func(c *Config) { c.Vault = "" }},
		{"unknown backend", func(c *Config) { c.Backend = "s3" }},
		{"file backend without dir", func(c *Config) { c.DataDir = "" }},
		{"unknown key source", func(c *Config) { c.KeySource = "keychain" }},
		{"bad kdf params", func(c *Config) {
			c.KeySource = KeySourcePassphrase
			c.KDF.Threads = 0
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	if err := Defaults().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSaltErrors(t *testing.T) {
	cfg := &Config{}
	if _, err := cfg.Salt(); err == nil {
		t.Error("expected error for missing salt")
	}
	cfg.KDFSalt = "zz"
	if _, err := cfg.Salt(); err == nil {
		t.Error("expected error for non-hex salt")
	}
}

func TestWriteExample(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if err := WriteExample(path); err != nil {
		t.Fatalf("WriteExample() failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	content := string(data)
	for _, key := range []string{"vault", "backend", "data_dir", "redis_url", "key_source", "kdf_salt", "logging"} {
		if !strings.Contains(content, key) {
			t.Errorf("Config file missing key: %s", key)
		}
	}

	// The example must load cleanly.
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile(example) failed: %v", err)
	}
	if cfg.KDF != keyprovider.DefaultKDFParams {
		t.Errorf("example KDF = %+v, want defaults", cfg.KDF)
	}
}
