package keyprovider

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/Jayphen/flowsync/internal/vault"
)

// MinSaltSize is the smallest salt accepted by NewPassphrase.
const MinSaltSize = 16

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time      uint32 `yaml:"time"`
	MemoryKiB uint32 `yaml:"memory_kib"`
	Threads   uint8  `yaml:"threads"`
}

// DefaultKDFParams follow the RFC 9106 second recommended option.
var DefaultKDFParams = KDFParams{
	Time:      3,
	MemoryKiB: 64 * 1024,
	Threads:   4,
}

// Validate checks the parameters are usable by argon2.IDKey.
func (p KDFParams) Validate() error {
	if p.Time < 1 {
		return errors.New("kdf time must be at least 1")
	}
	if p.Threads < 1 {
		return errors.New("kdf threads must be at least 1")
	}
	if p.MemoryKiB < 8*uint32(p.Threads) {
		return fmt.Errorf("kdf memory must be at least %d KiB for %d threads", 8*uint32(p.Threads), p.Threads)
	}
	return nil
}

// Passphrase derives vault keys from a passphrase with Argon2id. Each vault
// gets its own key because the vault id is mixed into the salt.
type Passphrase struct {
	passphrase []byte
	salt       []byte
	params     KDFParams
}

// NewPassphrase copies passphrase and salt; the caller may wipe its own copies.
func NewPassphrase(passphrase, salt []byte, params KDFParams) (*Passphrase, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("%w: empty passphrase", ErrInvalidKey)
	}
	if len(salt) < MinSaltSize {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidKey, MinSaltSize)
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	return &Passphrase{
		passphrase: append([]byte(nil), passphrase...),
		salt:       append([]byte(nil), salt...),
		params:     params,
	}, nil
}

// GetKey implements Provider.
func (p *Passphrase) GetKey(ctx context.Context, vaultID string) (vault.Key, error) {
	if err := ctx.Err(); err != nil {
		return vault.Key{}, err
	}
	if p.passphrase == nil {
		return vault.Key{}, fmt.Errorf("%w: passphrase provider has been wiped", ErrKeyNotFound)
	}

	salt := make([]byte, 0, len(p.salt)+1+len(vaultID))
	salt = append(salt, p.salt...)
	salt = append(salt, 0)
	salt = append(salt, vaultID...)

	derived := argon2.IDKey(p.passphrase, salt, p.params.Time, p.params.MemoryKiB, p.params.Threads, vault.KeySize)
	defer clear(derived)

	return vault.KeyFromBytes(derived)
}

// Zero wipes the stored passphrase. Later GetKey calls fail.
func (p *Passphrase) Zero() {
	clear(p.passphrase)
	p.passphrase = nil
}

// GenerateSalt returns a random salt of MinSaltSize bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, MinSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("%w: %v", vault.ErrRandomSourceUnavailable, err)
	}
	return salt, nil
}
