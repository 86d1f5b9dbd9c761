// Package crypto protects Gemini API keys at rest and derives short,
// non-reversible fingerprints that are safe to log.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// EncryptedPrefix marks a configuration value as AES-GCM ciphertext.
const EncryptedPrefix = "enc:"

const fingerprintLen = 8

var (
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrNoEncryptor       = errors.New("encrypted value found but no encryption key configured")
)

type Encryptor struct {
	gcm cipher.AEAD
}

// NewEncryptor derives a 256-bit key from passphrase.
func NewEncryptor(passphrase string) (*Encryptor, error) {
	key := deriveKey(passphrase)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &Encryptor{gcm: gcm}, nil
}

func deriveKey(passphrase string) []byte {
	sum := sha256.Sum256([]byte(passphrase))
	return sum[:]
}

// Seal encrypts plaintext and returns it with EncryptedPrefix attached,
// ready to be placed in an environment variable.
func (e *Encryptor) Seal(plaintext string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return EncryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

func (e *Encryptor) open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", ErrInvalidCiphertext
	}

	plaintext, err := e.gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}

	return string(plaintext), nil
}

// Reveal returns value unchanged unless it carries EncryptedPrefix, in
// which case it is decrypted. A nil Encryptor can only reveal plain values.
func (e *Encryptor) Reveal(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, EncryptedPrefix)
	if !ok {
		return value, nil
	}
	if e == nil {
		return "", ErrNoEncryptor
	}
	return e.open(encoded)
}

// Fingerprint identifies a key in logs without revealing it.
func Fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
