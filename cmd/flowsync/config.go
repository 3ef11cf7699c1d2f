package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jayphen/flowsync/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long:  `Manage flowsync configuration files.`,
	}

	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the current configuration values from all sources.`,
		RunE:  runConfigShow,
	}
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create example configuration file",
		Long: `Create an example configuration file at ~/.config/flowsync/config.yaml.

The generated file contains all available options with their default values.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing config file")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file paths",
		Long:  `Display the paths where configuration files are searched.`,
		RunE:  runConfigPath,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  vault:      %s\n", cfg.Vault)
	fmt.Fprintf(out, "  backend:    %s\n", cfg.Backend)
	fmt.Fprintf(out, "  data_dir:   %s\n", valueOrDefault(cfg.DataDir, "(not set)"))
	fmt.Fprintf(out, "  redis_url:  %s\n", cfg.RedisURL)
	fmt.Fprintf(out, "  key_source: %s\n", cfg.KeySource)
	fmt.Fprintf(out, "  key_env:    %s (%s)\n", cfg.KeyEnv, maskSecret(os.Getenv(cfg.KeyEnv)))
	fmt.Fprintf(out, "  kdf_salt:   %s\n", valueOrDefault(cfg.KDFSalt, "(not set)"))
	fmt.Fprintf(out, "  kdf:        time=%d memory_kib=%d threads=%d\n", cfg.KDF.Time, cfg.KDF.MemoryKiB, cfg.KDF.Threads)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "  Logging:")
	fmt.Fprintf(out, "    level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "    file:  %s\n", valueOrDefault(cfg.Logging.FilePath, "(stderr)"))
	fmt.Fprintf(out, "    json:  %t\n", cfg.Logging.JSON)

	return nil
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	paths := config.ConfigPaths()
	if len(paths) == 0 {
		return fmt.Errorf("failed to get home directory")
	}
	configPath := paths[0]

	// Check if file exists
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", configPath)
	}

	if err := config.WriteExample(configPath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created config file at: %s\n", configPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Edit this file to customize your settings.")
	fmt.Fprintln(out, "Run 'flowsync config show' to see current values.")

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration file search paths (in priority order):")
	fmt.Fprintln(out)

	for i, p := range config.ConfigPaths() {
		exists := "not found"
		if _, err := os.Stat(p); err == nil {
			exists = "found"
		}
		fmt.Fprintf(out, "  %d. %s (%s)\n", i+1, p, exists)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Environment variables (and ./.env) override file settings.")
	fmt.Fprintln(out, "Supported env vars:")
	for _, name := range []string{
		"FLOWSYNC_VAULT",
		"FLOWSYNC_BACKEND",
		"FLOWSYNC_DATA_DIR",
		"FLOWSYNC_REDIS_URL (or REDIS_URL)",
		"FLOWSYNC_KEY_SOURCE",
		"FLOWSYNC_KEY_ENV",
		"FLOWSYNC_KDF_SALT",
		"FLOWSYNC_KDF_TIME",
		"FLOWSYNC_KDF_MEMORY_KIB",
		"FLOWSYNC_KDF_THREADS",
		"FLOWSYNC_LOG_LEVEL",
		"FLOWSYNC_LOG_FILE",
		PassphraseEnv,
	} {
		fmt.Fprintf(out, "  %s\n", name)
	}

	return nil
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

func maskSecret(val string) string {
	if val == "" {
		return "(not set)"
	}
	if len(val) <= 8 {
		return "***"
	}
	return val[:4] + "..." + val[len(val)-4:]
}
