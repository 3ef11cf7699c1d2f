package main

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/Jayphen/flowsync/internal/blobstore"
	"github.com/Jayphen/flowsync/internal/config"
	"github.com/Jayphen/flowsync/internal/keyprovider"
	"github.com/Jayphen/flowsync/internal/logging"
	"github.com/Jayphen/flowsync/internal/redis"
	"github.com/Jayphen/flowsync/internal/taskstore"
)

// PassphraseEnv is read before prompting for a passphrase.
const PassphraseEnv = "FLOWSYNC_PASSPHRASE"

// loadConfig returns the active configuration with command-line overrides
// applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	out := *cfg
	if vaultFlag != "" {
		out.Vault = vaultFlag
	}
	return &out, nil
}

// openBlobs opens the configured backend for the configured vault.
func openBlobs(cfg *config.Config) (blobstore.Store, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		c, err := redis.NewClient(cfg.RedisURL, cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return c, nil
	default:
		fs, err := blobstore.NewFileStore(cfg.VaultDir())
		if err != nil {
			return nil, fmt.Errorf("failed to open data directory: %w", err)
		}
		return fs, nil
	}
}

// openKeys builds the configured key provider. The returned func wipes any
// key material the provider holds.
func openKeys(cfg *config.Config) (keyprovider.Provider, func(), error) {
	switch cfg.KeySource {
	case config.KeySourcePassphrase:
		salt, err := cfg.Salt()
		if err != nil {
			return nil, nil, err
		}
		pass, err := readPassphrase()
		if err != nil {
			return nil, nil, err
		}
		defer clear(pass)

		p, err := keyprovider.NewPassphrase(pass, salt, cfg.KDF)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Zero, nil
	default:
		return keyprovider.NewEnv(cfg.KeyEnv), func() {}, nil
	}
}

// openStore opens the encrypted task store for the configured vault.
func openStore(cfg *config.Config) (*taskstore.Store, func(), error) {
	keys, wipe, err := openKeys(cfg)
	if err != nil {
		return nil, nil, err
	}

	blobs, err := openBlobs(cfg)
	if err != nil {
		wipe()
		return nil, nil, err
	}

	logging.WithVault(cfg.Vault).WithField("backend", cfg.Backend).Debug("store opened")

	closer := func() {
		wipe()
		if err := blobs.Close(); err != nil {
			logging.WithError(err).Warn("failed to close store")
		}
	}
	return taskstore.New(blobs, keys, cfg.Vault), closer, nil
}

// readPassphrase returns the passphrase from the environment, or prompts for
// it without echo when stdin is a terminal.
func readPassphrase() ([]byte, error) {
	if val := os.Getenv(PassphraseEnv); val != "" {
		return []byte(val), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("%w: set %s or run in a terminal", keyprovider.ErrKeyNotFound, PassphraseEnv)
	}

	fmt.Fprint(os.Stderr, "Passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to read passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, errors.New("empty passphrase")
	}
	return pass, nil
}
