package services

import (
	"github.com/SalithaMarasinghe/Pin-Potha/internal/crypto"
)

// EncryptionService bundles the content cipher with the blind-index key and
// applies the domain treatments: entry content and habit notes are sealed
// opaquely, while user emails are sealed alongside a deterministic digest
// so sign-in can still find the row.
type EncryptionService struct {
	cipher *crypto.Cipher
	index  *crypto.BlindIndex
}

// NewEncryptionService builds the service from two hex-encoded 32-byte
// keys, one for AES-256-GCM and a separate one for the HMAC blind index.
func NewEncryptionService(encryptionKey, blindIndexKey string) (*EncryptionService, error) {
	cipher, err := crypto.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	index, err := crypto.NewBlindIndex(blindIndexKey)
	if err != nil {
		return nil, err
	}
	return &EncryptionService{cipher: cipher, index: index}, nil
}

// Seal encrypts one field value for storage.
func (s *EncryptionService) Seal(value string) (string, error) {
	return s.cipher.Seal(value)
}

// Open decrypts a stored field value. Values written before encryption was
// enabled pass through unchanged.
func (s *EncryptionService) Open(value string) (string, error) {
	return s.cipher.Open(value)
}

// SealEmail encrypts an email and returns the sealed value together with
// the digest rows are looked up by.
func (s *EncryptionService) SealEmail(email string) (sealed, digest string, err error) {
	sealed, err = s.cipher.Seal(email)
	if err != nil {
		return "", "", err
	}
	return sealed, s.index.Sum(email), nil
}

// OpenEmail decrypts a stored email column.
func (s *EncryptionService) OpenEmail(sealed string) (string, error) {
	return s.cipher.Open(sealed)
}

// EmailDigest returns the lookup digest for an email.
func (s *EncryptionService) EmailDigest(email string) string {
	return s.index.Sum(email)
}
