// Package secrets provides optional AES-256-GCM sealing for credential
// fields at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize is the required sealing key size for AES-256.
const KeySize = 32

var (
	// ErrInvalidKeyLength is returned when the sealing key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("secrets: sealing key must be 32 bytes")
	// ErrCiphertextTooShort is returned when sealed data is shorter than a nonce.
	ErrCiphertextTooShort = errors.New("secrets: ciphertext too short")
)

// Sealer encrypts and decrypts field content. A nil *Sealer is a passthrough,
// so callers never branch on whether sealing is configured.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer constructs a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, errCipher := aes.NewCipher(key)
	if errCipher != nil {
		return nil, fmt.Errorf("secrets: new cipher: %w", errCipher)
	}
	aead, errGCM := cipher.NewGCM(block)
	if errGCM != nil {
		return nil, fmt.Errorf("secrets: new gcm: %w", errGCM)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts data, returning base64 text with the nonce prefixed.
func (s *Sealer) Seal(data []byte) ([]byte, error) {
	if s == nil {
		return data, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, errRead := io.ReadFull(rand.Reader, nonce); errRead != nil {
		return nil, fmt.Errorf("secrets: nonce: %w", errRead)
	}
	sealed := s.aead.Seal(nonce, nonce, data, nil)
	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(sealed)))
	base64.StdEncoding.Encode(encoded, sealed)
	return encoded, nil
}

// Open decrypts data produced by Seal.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	if s == nil {
		return data, nil
	}
	sealed := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, errDecode := base64.StdEncoding.Decode(sealed, data)
	if errDecode != nil {
		return nil, fmt.Errorf("secrets: decode: %w", errDecode)
	}
	sealed = sealed[:n]
	nonceSize := s.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}
	plain, errOpen := s.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if errOpen != nil {
		return nil, fmt.Errorf("secrets: open: %w", errOpen)
	}
	return plain, nil
}

// DecodeKey decodes a base64 sealing key from configuration.
func DecodeKey(encoded string) ([]byte, error) {
	key, errDecode := base64.StdEncoding.DecodeString(encoded)
	if errDecode != nil {
		return nil, fmt.Errorf("secrets: decode key: %w", errDecode)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return key, nil
}
