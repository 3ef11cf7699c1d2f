// Package keyprovider supplies vault keys to the encryption layer.
//
// Key material lives outside flowsync: in the environment, behind a passphrase,
// or in memory for embedding and tests. Providers hand out a fresh copy of the
// key on every call; callers should Zero it when done.
package keyprovider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/Jayphen/flowsync/internal/vault"
)

var (
	// ErrKeyNotFound is returned when a provider has no key for a vault.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey is returned when configured key material cannot be used.
	ErrInvalidKey = errors.New("invalid key material")
)

// Provider supplies the 256-bit key for a logical vault.
type Provider interface {
	GetKey(ctx context.Context, vaultID string) (vault.Key, error)
}

// ParseKey decodes a 32-byte key from hex or base64 (standard or URL, padded
// or raw).
func ParseKey(s string) (vault.Key, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return vault.Key{}, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	decoders := []func(string) ([]byte, error){
		hex.DecodeString,
		base64.StdEncoding.DecodeString,
		base64.RawStdEncoding.DecodeString,
		base64.URLEncoding.DecodeString,
		base64.RawURLEncoding.DecodeString,
	}
	for _, decode := range decoders {
		raw, err := decode(s)
		if err != nil || len(raw) != vault.KeySize {
			clear(raw)
			continue
		}
		k, err := vault.KeyFromBytes(raw)
		clear(raw)
		if err == nil {
			return k, nil
		}
	}

	return vault.Key{}, fmt.Errorf("%w: expected %d bytes encoded as hex or base64", ErrInvalidKey, vault.KeySize)
}

// GenerateKey returns a new random key.
func GenerateKey() (vault.Key, error) {
	var k vault.Key
	if _, err := rand.Read(k[:]); err != nil {
		return vault.Key{}, fmt.Errorf("%w: %v", vault.ErrRandomSourceUnavailable, err)
	}
	return k, nil
}

// Static serves keys held in memory.
type Static struct {
	keys     map[string]vault.Key
	fallback *vault.Key
}

// NewStatic returns a provider that serves key for every vault.
func NewStatic(key vault.Key) *Static {
	return &Static{keys: map[string]vault.Key{}, fallback: &key}
}

// NewStaticMap returns a provider serving one key per vault id.
func NewStaticMap(keys map[string]vault.Key) *Static {
	m := make(map[string]vault.Key, len(keys))
	for id, k := range keys {
		m[id] = k
	}
	return &Static{keys: m}
}

// GetKey implements Provider.
func (s *Static) GetKey(ctx context.Context, vaultID string) (vault.Key, error) {
	if k, ok := s.keys[vaultID]; ok {
		return k, nil
	}
	if s.fallback != nil {
		return *s.fallback, nil
	}
	return vault.Key{}, fmt.Errorf("%w: vault %q", ErrKeyNotFound, vaultID)
}

// Zero wipes every key held by the provider.
func (s *Static) Zero() {
	for id, k := range s.keys {
		k.Zero()
		s.keys[id] = k
	}
	if s.fallback != nil {
		s.fallback.Zero()
	}
}
