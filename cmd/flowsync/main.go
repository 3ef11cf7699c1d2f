// Package main is the entry point for the flowsync CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Jayphen/flowsync/internal/config"
	"github.com/Jayphen/flowsync/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// vaultFlag overrides the configured vault for a single invocation.
var vaultFlag string

func main() {
	// Initialize logging from config
	initLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowsync",
		Short: "Encrypted local task storage",
		Long: `FlowSync keeps tasks encrypted at rest with AES-256-GCM.

Tasks are stored per vault in a local directory or in Redis. The vault key
comes from the environment (FLOWSYNC_KEY) or is derived from a passphrase.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&vaultFlag, "vault", "", "Vault to use (overrides config)")

	// Add subcommands
	rootCmd.AddCommand(
		newTaskCmd(),
		newEncryptCmd(),
		newDecryptCmd(),
		newExportCmd(),
		newImportCmd(),
		newKeygenCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

// initLogging initializes the logger from config.
func initLogging() {
	cfg, err := config.Get()
	if err != nil {
		// If config fails, use defaults
		_ = logging.Init(nil)
		return
	}

	settings := logging.Settings{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		JSON:       cfg.Logging.JSON,
		Console:    cfg.Logging.Console,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	}

	if err := logging.InitFromSettings(settings); err != nil {
		// Fall back to defaults on error
		_ = logging.Init(nil)
	}
}
