// Package phi holds field-level protection for patient data: AES-256-GCM
// encryption of sensitive columns and keyed blind indexes so that encrypted
// values can still be looked up by equality.
package phi

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// FieldEncryptor encrypts and decrypts single column values.
type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// AESEncryptor is a FieldEncryptor using AES-256-GCM. Ciphertexts are
// base64(nonce || sealed).
type AESEncryptor struct {
	aead cipher.AEAD
}

func NewAESEncryptor(key []byte) (*AESEncryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("phi encryptor: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("phi encryptor: create GCM: %w", err)
	}
	return &AESEncryptor{aead: aead}, nil
}

func (e *AESEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("phi encrypt: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

var errShortCiphertext = errors.New("phi decrypt: ciphertext too short")

func (e *AESEncryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("phi decrypt: base64 decode: %w", err)
	}
	n := e.aead.NonceSize()
	if len(data) < n {
		return "", errShortCiphertext
	}
	plain, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("phi decrypt: %w", err)
	}
	return string(plain), nil
}

// EncryptPtr encrypts an optional column. nil, empty values and a nil
// encryptor pass through unchanged.
func EncryptPtr(enc FieldEncryptor, value *string) (*string, error) {
	if enc == nil || value == nil || *value == "" {
		return value, nil
	}
	out, err := enc.Encrypt(*value)
	if err != nil {
		return nil, fmt.Errorf("encrypting PHI field: %w", err)
	}
	return &out, nil
}

// DecryptPtr is the inverse of EncryptPtr.
func DecryptPtr(enc FieldEncryptor, value *string) (*string, error) {
	if enc == nil || value == nil || *value == "" {
		return value, nil
	}
	out, err := enc.Decrypt(*value)
	if err != nil {
		return nil, fmt.Errorf("decrypting PHI field: %w", err)
	}
	return &out, nil
}
