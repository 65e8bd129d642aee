// Package encryption provides the symmetric cipher used to store Xero refresh
// tokens at rest. Tokens are sealed with AES-256-GCM; the ciphertext carries the
// nonce and is base64 encoded so it can live in a text column.
package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

const keySize = 32

// normalizeKey coerces the configured key string to exactly 32 bytes, padding
// with '0' or truncating. This matches how the stored tokens were originally
// sealed; changing it would orphan every existing ciphertext.
func normalizeKey(key string) []byte {
	b := make([]byte, keySize)
	n := copy(b, key)
	for i := n; i < keySize; i++ {
		b[i] = '0'
	}
	return b
}

// Encrypt seals plaintext with AES-256-GCM under the given key. A fresh
// 12-byte nonce is drawn per call; the result is base64(nonce || ciphertext).
func Encrypt(plaintext, key string) (string, error) {
	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. It fails on malformed base64, a blob too short to
// hold a nonce, or a GCM authentication failure (tampered data or wrong key).
// Callers should treat any error as "token unusable".
func Decrypt(encoded, key string) (string, error) {
	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	block, err := aes.NewCipher(normalizeKey(key))
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	if len(combined) < gcm.NonceSize() {
		return "", fmt.Errorf("ciphertext shorter than nonce")
	}

	nonce, data := combined[:gcm.NonceSize()], combined[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, data, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt token: %w", err)
	}

	return string(plaintext), nil
}
