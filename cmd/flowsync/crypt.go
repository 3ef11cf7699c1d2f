package main

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Jayphen/flowsync/internal/keyprovider"
	"github.com/Jayphen/flowsync/internal/logging"
	"github.com/Jayphen/flowsync/internal/vault"
)

// cryptOptions are shared by encrypt and decrypt.
type cryptOptions struct {
	key    string
	ad     string
	base64 bool
}

func (o *cryptOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.key, "key", "k", "", "Hex or base64 key (default: the vault key)")
	cmd.Flags().StringVar(&o.ad, "ad", "", "Associated data bound to the blob")
	cmd.Flags().BoolVar(&o.base64, "base64", false, "Use base64 for the encrypted side")
}

// resolveKey returns the key from --key or from the configured provider.
func (o *cryptOptions) resolveKey(cmd *cobra.Command) (vault.Key, error) {
	if o.key != "" {
		return keyprovider.ParseKey(o.key)
	}

	cfg, err := loadConfig()
	if err != nil {
		return vault.Key{}, err
	}
	keys, wipe, err := openKeys(cfg)
	if err != nil {
		return vault.Key{}, err
	}
	defer wipe()

	return keys.GetKey(cmd.Context(), cfg.Vault)
}

func newEncryptCmd() *cobra.Command {
	var opts cryptOptions

	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt stdin to stdout",
		Long: `Encrypt raw bytes from stdin with AES-256-GCM and write
nonce || ciphertext || tag to stdout.`,
		Example: `  echo "Buy milk" | flowsync encrypt --base64
  flowsync encrypt < notes.txt > notes.enc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			plaintext, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			defer clear(plaintext)

			key, err := opts.resolveKey(cmd)
			if err != nil {
				return err
			}
			defer key.Zero()

			blob, err := vault.EncryptWithAD(plaintext, []byte(opts.ad), key)
			if err != nil {
				return err
			}

			logging.WithCommand("encrypt").WithField("bytes", len(plaintext)).Debug("encrypted input")

			out := cmd.OutOrStdout()
			if opts.base64 {
				_, err = fmt.Fprintln(out, base64.StdEncoding.EncodeToString(blob))
				return err
			}
			_, err = out.Write(blob)
			return err
		},
	}

	opts.register(cmd)
	return cmd
}

func newDecryptCmd() *cobra.Command {
	var opts cryptOptions

	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt stdin to stdout",
		Long: `Decrypt a blob produced by 'flowsync encrypt' from stdin and write the
plaintext to stdout. Nothing is written if authentication fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			if opts.base64 {
				blob, err = base64.StdEncoding.DecodeString(string(bytes.TrimSpace(blob)))
				if err != nil {
					return fmt.Errorf("%w: input is not base64", vault.ErrMalformed)
				}
			}

			key, err := opts.resolveKey(cmd)
			if err != nil {
				return err
			}
			defer key.Zero()

			plaintext, err := vault.DecryptWithAD(blob, []byte(opts.ad), key)
			if err != nil {
				logging.WithCommand("decrypt").WithError(err).Debug("decrypt failed")
				return err
			}
			defer clear(plaintext)

			_, err = cmd.OutOrStdout().Write(plaintext)
			return err
		},
	}

	opts.register(cmd)
	return cmd
}

func newKeygenCmd() *cobra.Command {
	var (
		salt    bool
		encoded bool
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a random key or salt",
		Long: `Print a new random 256-bit key in hex, suitable for FLOWSYNC_KEY.

With --salt, print a random salt for the passphrase key source instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if salt {
				s, err := keyprovider.GenerateSalt()
				if err != nil {
					return err
				}
				fmt.Fprintln(out, hex.EncodeToString(s))
				return nil
			}

			key, err := keyprovider.GenerateKey()
			if err != nil {
				return err
			}
			defer key.Zero()

			if encoded {
				fmt.Fprintln(out, base64.StdEncoding.EncodeToString(key[:]))
			} else {
				fmt.Fprintln(out, hex.EncodeToString(key[:]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&salt, "salt", false, "Generate a KDF salt instead of a key")
	cmd.Flags().BoolVar(&encoded, "base64", false, "Print the key as base64")

	return cmd
}
