// Package vault implements authenticated at-rest encryption for flowsync
// records using AES-256-GCM.
//
// A sealed blob is laid out as
//
//	nonce (12 bytes) || ciphertext || tag (16 bytes)
//
// so it can be opened without any external metadata. Every call to Encrypt
// draws a fresh random nonce; callers can never supply one.
//
// The package holds no key state. Keys are passed per call and any scratch
// copy made here is zeroized before the call returns. All functions are safe
// for concurrent use.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// KeySize is the size of an AES-256 key in bytes.
	KeySize = 32
	// NonceSize is the size of the GCM nonce prepended to every blob.
	NonceSize = 12
	// TagSize is the size of the GCM authentication tag appended to every blob.
	TagSize = 16
	// Overhead is the number of bytes a blob adds to its plaintext.
	Overhead = NonceSize + TagSize
)

var (
	// ErrRandomSourceUnavailable is returned when no nonce could be drawn.
	ErrRandomSourceUnavailable = errors.New("secure random source unavailable")

	// ErrMalformed is returned when a blob is too short to hold a nonce and tag.
	ErrMalformed = errors.New("malformed encrypted blob")

	// ErrAuthenticationFailed is returned for any blob that does not verify,
	// whatever the cause.
	ErrAuthenticationFailed = errors.New("cannot decrypt: wrong key or corrupted data")
)

// Key is a 256-bit symmetric key.
type Key [KeySize]byte

// KeyFromBytes copies b into a Key. b must be exactly KeySize bytes.
func KeyFromBytes(b []byte) (Key, error) {
	var k Key
	if len(b) != KeySize {
		return k, fmt.Errorf("invalid key length %d: want %d bytes", len(b), KeySize)
	}
	copy(k[:], b)
	return k, nil
}

// Zero overwrites the key material.
func (k *Key) Zero() {
	clear(k[:])
}

// Sealer encrypts and decrypts blobs. It holds only a random source, never key
// material, so a single Sealer can be shared freely.
type Sealer struct {
	rand io.Reader
}

// New returns a Sealer backed by crypto/rand.
func New() *Sealer {
	return &Sealer{rand: rand.Reader}
}

// NewWithRand returns a Sealer that draws nonces from r. r must be a
// cryptographically secure source that is safe for concurrent use.
func NewWithRand(r io.Reader) *Sealer {
	return &Sealer{rand: r}
}

var defaultSealer = New()

// Encrypt seals plaintext under key using the default Sealer.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	return defaultSealer.Encrypt(plaintext, key)
}

// Decrypt opens blob under key using the default Sealer.
func Decrypt(blob []byte, key Key) ([]byte, error) {
	return defaultSealer.Decrypt(blob, key)
}

// EncryptWithAD seals plaintext bound to associatedData using the default Sealer.
func EncryptWithAD(plaintext, associatedData []byte, key Key) ([]byte, error) {
	return defaultSealer.EncryptWithAD(plaintext, associatedData, key)
}

// DecryptWithAD opens blob bound to associatedData using the default Sealer.
func DecryptWithAD(blob, associatedData []byte, key Key) ([]byte, error) {
	return defaultSealer.DecryptWithAD(blob, associatedData, key)
}

// Encrypt seals plaintext under key and returns nonce || ciphertext || tag.
func (s *Sealer) Encrypt(plaintext []byte, key Key) ([]byte, error) {
	return s.EncryptWithAD(plaintext, nil, key)
}

// Decrypt verifies and opens a blob produced by Encrypt.
func (s *Sealer) Decrypt(blob []byte, key Key) ([]byte, error) {
	return s.DecryptWithAD(blob, nil, key)
}

// EncryptWithAD is Encrypt with additional authenticated data. The same
// associatedData must be presented to DecryptWithAD.
func (s *Sealer) EncryptWithAD(plaintext, associatedData []byte, key Key) ([]byte, error) {
	defer key.Zero()

	aead, err := newGCM(&key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, NonceSize, NonceSize+len(plaintext)+TagSize)
	if _, err := io.ReadFull(s.rand, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRandomSourceUnavailable, err)
	}

	return aead.Seal(out, out[:NonceSize], plaintext, associatedData), nil
}

// DecryptWithAD is Decrypt with additional authenticated data.
func (s *Sealer) DecryptWithAD(blob, associatedData []byte, key Key) ([]byte, error) {
	defer key.Zero()

	if len(blob) < Overhead {
		return nil, ErrMalformed
	}

	aead, err := newGCM(&key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, blob[:NonceSize], blob[NonceSize:], associatedData)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// newGCM builds an AES-256-GCM instance with the standard nonce and tag sizes.
func newGCM(key *Key) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to initialise AES: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise GCM: %w", err)
	}
	return aead, nil
}
