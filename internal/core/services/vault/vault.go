package vault

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

var (
	// ErrMissingKey means the vault was constructed without a secret key.
	// The system cannot operate safely without working encryption, so
	// callers treat this as fatal at startup.
	ErrMissingKey = errors.New("vault: secret key is not configured")

	// ErrDecrypt covers tampered ciphertext, a truncated token, or a
	// wrong key. Decryption never silently returns garbage plaintext.
	ErrDecrypt = errors.New("vault: decryption failed")
)

const (
	keyLen        = 32 // AES-256
	nonceLen      = 12 // standard GCM nonce
	kdfIterations = 600_000
)

// keySalt versions the key derivation; changing it invalidates all stored
// ciphertext.
var keySalt = []byte("seclens-vault-v1")

// Vault provides authenticated encryption for tenant API secrets using
// AES-256-GCM. The key is derived once at construction from the process
// secret key via PBKDF2-HMAC-SHA256 and held for the process lifetime.
type Vault struct {
	aead cipher.AEAD
}

// New derives the encryption key and prepares the cipher. An empty secret
// key fails closed rather than falling back to plaintext storage.
func New(secretKey string) (*Vault, error) {
	if secretKey == "" {
		return nil, ErrMissingKey
	}

	key := pbkdf2.Key([]byte(secretKey), keySalt, kdfIterations, keyLen, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("vault: cipher init: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("vault: gcm init: %w", err)
	}

	return &Vault{aead: aead}, nil
}

// Encrypt seals the plaintext under a freshly generated random nonce and
// returns base64url(nonce || ciphertext). A new nonce per call prevents
// nonce reuse under the process key by construction.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("vault: nonce generation: %w", err)
	}

	sealed := v.aead.Seal(nil, nonce, []byte(plaintext), nil)

	token := make([]byte, 0, nonceLen+len(sealed))
	token = append(token, nonce...)
	token = append(token, sealed...)
	return base64.URLEncoding.EncodeToString(token), nil
}

// Decrypt opens a token produced by Encrypt. Any authentication failure,
// malformed encoding, or truncated token yields ErrDecrypt.
func (v *Vault) Decrypt(token string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < nonceLen+v.aead.Overhead() {
		return "", ErrDecrypt
	}

	nonce, sealed := raw[:nonceLen], raw[nonceLen:]
	plaintext, err := v.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plaintext), nil
}
