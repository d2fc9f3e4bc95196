package ports

// Vault encrypts and decrypts tenant API secrets at rest. The core never
// constructs ciphertext itself. Implementations must fail closed: a missing
// key refuses all calls, and a tampered token fails decryption rather than
// returning garbage plaintext.
type Vault interface {
	// Encrypt returns an opaque token embedding a fresh nonce and the
	// authenticated ciphertext.
	Encrypt(plaintext string) (string, error)

	// Decrypt recovers the plaintext from a token produced by Encrypt.
	Decrypt(token string) (string, error)
}
