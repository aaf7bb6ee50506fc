package domain

import "context"

// CipherService unwraps secrets sealed with the shared application key.
type CipherService interface {
	// Encrypt seals plaintext as base64(IV || AES-256-CBC(PKCS7(plaintext))).
	Encrypt(ctx context.Context, plaintext string) (string, error)

	// Decrypt reverses Encrypt. Failures wrap ErrInvalidInput,
	// ErrMisconfiguredKey or ErrCrypto.
	Decrypt(ctx context.Context, ciphertextBase64 string) (string, error)
}
