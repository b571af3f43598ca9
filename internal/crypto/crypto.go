// Package crypto seals record text with AES-256-GCM before it reaches the
// store, and derives HMAC-SHA256 blind indexes for sealed columns that
// still need equality lookups. Sealed values carry a recognizable prefix,
// so plaintext written before encryption was enabled still reads back
// unchanged.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sealedPrefix = "enc:v1:"

// Cipher seals and opens individual field values. Safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher builds a Cipher from a 64-character hex key (32 bytes for
// AES-256).
func NewCipher(hexKey string) (*Cipher, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts a value and returns it base64-encoded with the nonce
// prepended, behind the sealed prefix. Empty input stays empty.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Values without the sealed prefix are
// returned as-is.
func (c *Cipher) Open(stored string) (string, error) {
	encoded, found := strings.CutPrefix(stored, sealedPrefix)
	if !found {
		return stored, nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode sealed value: %w", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("sealed value too short")
	}

	nonce, cipherBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, cipherBytes, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plaintext), nil
}

// BlindIndex derives deterministic digests for sealed values. Equal inputs
// yield equal digests under one key, so a column can be matched without
// decrypting it, while the digest alone reveals nothing about the value.
type BlindIndex struct {
	key []byte
}

// NewBlindIndex builds a BlindIndex from a 64-character hex key (32 bytes
// for HMAC-SHA256). The key must not be the encryption key.
func NewBlindIndex(hexKey string) (*BlindIndex, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode blind index key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("blind index key must be 32 bytes, got %d", len(key))
	}
	return &BlindIndex{key: key}, nil
}

// Sum returns the base64 digest for a value. Empty input stays empty.
func (b *BlindIndex) Sum(value string) string {
	if value == "" {
		return ""
	}
	mac := hmac.New(sha256.New, b.key)
	mac.Write([]byte(value))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
