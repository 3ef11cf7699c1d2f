package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jayphen/flowsync/internal/taskstore"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <file>",
		Short: "Export the vault as one encrypted file",
		Long: `Write every task in the vault to a single encrypted file.
Use - to write to stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore("export", func(s *taskstore.Store) error {
				blob, err := s.Export(cmd.Context())
				if err != nil {
					return err
				}

				if args[0] == "-" {
					_, err := cmd.OutOrStdout().Write(blob)
					return err
				}
				if err := os.WriteFile(args[0], blob, 0o600); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported vault %s to %s\n", s.VaultID(), args[0])
				return nil
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import tasks from an export file",
		Long: `Restore tasks from a file produced by 'flowsync export' for the same vault
and key. Tasks with matching ids are replaced. Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				blob []byte
				err  error
			)
			if args[0] == "-" {
				blob, err = io.ReadAll(cmd.InOrStdin())
			} else {
				blob, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}

			return withStore("import", func(s *taskstore.Store) error {
				n, err := s.Import(cmd.Context(), blob)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d tasks into vault %s\n", n, s.VaultID())
				return nil
			})
		},
	}
}
