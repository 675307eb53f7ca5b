package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Cipher provides reversible encryption for PII fields (currently only the
// phone number). The key is derived once from a process-wide secret.
type Cipher struct {
	key []byte
}

// NewCipher derives a 32-byte AES key from secret using PBKDF2.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("auth: cipher secret is required")
	}
	salt := []byte("murmur-pii-v1")
	key := pbkdf2.Key([]byte(secret), salt, 10000, 32, sha256.New)
	return &Cipher{key: key}, nil
}

// Encrypt seals plaintext with AES-256-GCM and returns base64 ciphertext
// with the nonce prepended.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Corrupted or foreign ciphertext surfaces as an
// error wrapping ErrCipher, never a panic.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: bad encoding", ErrCipher)
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(data) < gcm.NonceSize() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrCipher)
	}
	nonce, sealed := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCipher, err)
	}
	return string(plain), nil
}
