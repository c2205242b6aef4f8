// Package sealer encrypts raw message bodies before they are persisted.
package sealer

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// version prefixes every sealed blob so the format can be rotated later.
const version byte = 1

var (
	ErrInvalidKey    = errors.New("sealer: key must be 32 bytes")
	ErrMalformedBlob = errors.New("sealer: malformed sealed blob")
)

// Sealer seals and opens blobs with XChaCha20-Poly1305.
type Sealer struct {
	aead cipher.AEAD
}

// New builds a Sealer from a 32-byte key.
func New(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, ErrInvalidKey
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("sealer: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewEphemeral builds a Sealer with a random key. Bodies sealed with it cannot be
// opened after the process exits, so it is only for development.
func NewEphemeral() (*Sealer, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("sealer: generate key: %w", err)
	}
	return New(key)
}

// Seal returns version || nonce || ciphertext. A nil plaintext seals to nil.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	if plaintext == nil {
		return nil, nil
	}

	nonce := make([]byte, s.aead.NonceSize(), 1+s.aead.NonceSize()+len(plaintext)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("sealer: nonce: %w", err)
	}

	out := append([]byte{version}, nonce...)
	return s.aead.Seal(out, nonce, plaintext, []byte{version}), nil
}

// Open reverses Seal.
func (s *Sealer) Open(blob []byte) ([]byte, error) {
	if blob == nil {
		return nil, nil
	}
	ns := s.aead.NonceSize()
	if len(blob) < 1+ns+s.aead.Overhead() || blob[0] != version {
		return nil, ErrMalformedBlob
	}

	plaintext, err := s.aead.Open(nil, blob[1:1+ns], blob[1+ns:], blob[:1])
	if err != nil {
		return nil, fmt.Errorf("sealer: open: %w", err)
	}
	return plaintext, nil
}
