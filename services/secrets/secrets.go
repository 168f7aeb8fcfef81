// Package secrets encrypts credential values before they reach durable
// storage.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLength  = 32
	iterations = 100_000
	salt       = "stockwatch-secret-store"
)

// Store performs symmetric encryption of setting values. The key is
// derived once from the configured secret and the IV is fixed per process:
// no key rotation and no per-record IV. That is a known limitation carried
// over deliberately; replacing it would invalidate every ciphertext at rest.
type Store struct {
	key []byte
	iv  []byte
}

// NewStore derives the AES key from the configured secret via
// PBKDF2-SHA256 and fixes the IV from the configured IV seed.
func NewStore(secret, ivSeed string) *Store {
	key := pbkdf2.Key([]byte(secret), []byte(salt), iterations, keyLength, sha256.New)

	iv := make([]byte, aes.BlockSize)
	copy(iv, []byte(ivSeed))

	return &Store{key: key, iv: iv}
}

// Encrypt returns the url-safe base64 AES-256-CBC ciphertext of plaintext.
func (s *Store) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", fmt.Errorf("cipher init failed: %w", err)
	}

	padded := pad([]byte(plaintext))
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv).CryptBlocks(out, padded)

	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It never fails across the component boundary:
// any cryptographic failure reports ok=false so callers treat the secret
// as not configured instead of crashing.
func (s *Store) Decrypt(ciphertext string) (plaintext string, ok bool) {
	raw, err := base64.URLEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", false
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", false
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", false
	}

	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(block, s.iv).CryptBlocks(out, raw)

	unpadded, err := unpad(out)
	if err != nil {
		return "", false
	}
	if !utf8.Valid(unpadded) {
		return "", false
	}
	return string(unpadded), true
}

// Verify round-trips a probe value, used as a startup self-check.
func (s *Store) Verify() bool {
	const probe = "secret-store-self-check"
	enc, err := s.Encrypt(probe)
	if err != nil {
		return false
	}
	dec, ok := s.Decrypt(enc)
	return ok && dec == probe
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	out := make([]byte, len(b)+n)
	copy(out, b)
	for i := len(b); i < len(out); i++ {
		out[i] = byte(n)
	}
	return out
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty ciphertext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
