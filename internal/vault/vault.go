// Package vault protects stored portal credentials with AES-256-GCM.
// Ciphertext, IV and the GCM auth tag are kept as separate hex strings so the
// tag can be verified independently of the ciphertext column.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	ivSize  = 16
	tagSize = 16
)

// EncryptedData holds one encrypted credential
type EncryptedData struct {
	// Ciphertext is the hex-encoded encrypted payload (tag stripped)
	Ciphertext string `json:"ciphertext"`
	// IV is the hex-encoded 16-byte initialization vector
	IV string `json:"iv"`
	// AuthTag is the hex-encoded 16-byte GCM authentication tag
	AuthTag string `json:"authTag"`
}

// Vault encrypts and decrypts credentials with a fixed 32-byte key
type Vault struct {
	key []byte
}

// New creates a vault from a 64-hex-character key string
func New(hexKey string) (*Vault, error) {
	if len(hexKey) != 64 {
		return nil, fmt.Errorf("encryption key must be 64 hex characters (32 bytes), got %d", len(hexKey))
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("encryption key is not valid hex: %w", err)
	}

	return &Vault{key: key}, nil
}

// Encrypt encrypts a plaintext credential. Each call generates a fresh random
// IV, so encrypting the same plaintext twice produces different ciphertext.
func (v *Vault) Encrypt(plaintext string) (*EncryptedData, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	// Seal appends the tag to the ciphertext; store them separately
	sealed := aesgcm.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return &EncryptedData{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(iv),
		AuthTag:    hex.EncodeToString(tag),
	}, nil
}

// Decrypt decrypts a credential encrypted with Encrypt. It fails if the auth
// tag does not match (tampered data) or the metadata is not valid hex.
func (v *Vault) Decrypt(ciphertext, iv, authTag string) (string, error) {
	rawCiphertext, err := hex.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid hex: %w", err)
	}

	rawIV, err := hex.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("iv is not valid hex: %w", err)
	}
	if len(rawIV) != ivSize {
		return "", fmt.Errorf("iv must be %d bytes, got %d", ivSize, len(rawIV))
	}

	rawTag, err := hex.DecodeString(authTag)
	if err != nil {
		return "", fmt.Errorf("auth tag is not valid hex: %w", err)
	}
	if len(rawTag) != tagSize {
		return "", fmt.Errorf("auth tag must be %d bytes, got %d", tagSize, len(rawTag))
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	aesgcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := aesgcm.Open(nil, rawIV, append(rawCiphertext, rawTag...), nil)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}

// JoinPair joins the username and password halves of an IV or tag column.
// One linked account row stores two independently encrypted secrets, so the
// iv and auth_tag columns each carry a "username:password" composite value.
func JoinPair(username, password string) string {
	return username + ":" + password
}

// SplitPair splits a composite IV or tag column back into its username and
// password halves. Both halves must be present and non-empty.
func SplitPair(composite string) (username, password string, err error) {
	parts := strings.Split(composite, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed composite value %q", composite)
	}
	return parts[0], parts[1], nil
}
