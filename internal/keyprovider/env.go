package keyprovider

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Jayphen/flowsync/internal/vault"
)

// DefaultKeyEnv is the environment variable read by Env when none is given.
const DefaultKeyEnv = "FLOWSYNC_KEY"

// Env reads keys from environment variables. For vault "work" and variable
// FLOWSYNC_KEY it looks at FLOWSYNC_KEY_WORK first, then FLOWSYNC_KEY.
//
// Vault ids are folded to upper case and every character outside
// [A-Z0-9_] becomes '_', so "work-2", "work_2" and "Work.2" all read
// FLOWSYNC_KEY_WORK_2. Vaults whose ids fold together share a key, the same
// way every vault without its own variable shares FLOWSYNC_KEY. Their
// records stay apart because each vault has its own storage namespace.
type Env struct {
	name   string
	lookup func(string) (string, bool)
}

// NewEnv returns an Env provider reading name (DefaultKeyEnv if empty).
func NewEnv(name string) *Env {
	if name == "" {
		name = DefaultKeyEnv
	}
	return &Env{name: name, lookup: os.LookupEnv}
}

// GetKey implements Provider.
func (e *Env) GetKey(ctx context.Context, vaultID string) (vault.Key, error) {
	for _, name := range e.candidates(vaultID) {
		val, ok := e.lookup(name)
		if !ok || val == "" {
			continue
		}
		k, err := ParseKey(val)
		if err != nil {
			return vault.Key{}, fmt.Errorf("%s: %w", name, err)
		}
		return k, nil
	}
	return vault.Key{}, fmt.Errorf("%w: set %s", ErrKeyNotFound, e.name)
}

func (e *Env) candidates(vaultID string) []string {
	if vaultID == "" {
		return []string{e.name}
	}
	return []string{e.name + "_" + envSuffix(vaultID), e.name}
}

// envSuffix upper-cases a vault id and replaces anything outside [A-Z0-9_].
// The mapping is not injective; see Env.
func envSuffix(vaultID string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(vaultID) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
