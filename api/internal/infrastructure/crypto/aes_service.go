package crypto

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"unicode/utf8"

	"akatsuki/api/internal/core/domain"
	"akatsuki/api/internal/logging"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// KeySource yields the raw symmetric key. It is called on every operation.
type KeySource func() string

// AESCryptoService implements domain.CipherService with AES-256-CBC and PKCS7
// padding. Ciphertexts travel as base64(IV || ciphertext).
type AESCryptoService struct {
	key    KeySource
	logger *slog.Logger
}

var _ domain.CipherService = (*AESCryptoService)(nil)

func NewAESCryptoService(key KeySource, logger *slog.Logger) *AESCryptoService {
	return &AESCryptoService{key: key, logger: logger}
}

func (s *AESCryptoService) Encrypt(ctx context.Context, plaintext string) (string, error) {
	block, err := s.block()
	if err != nil {
		logging.Critical(ctx, s.logger, "encryption failed", "error", err)
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)

	// 🛡️ Pre-allocate IV + ciphertext in one buffer
	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		err = fmt.Errorf("%w: iv generation: %v", domain.ErrCrypto, err)
		logging.Critical(ctx, s.logger, "encryption failed", "error", err)
		return "", err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *AESCryptoService) Decrypt(ctx context.Context, ciphertextBase64 string) (string, error) {
	block, err := s.block()
	if err != nil {
		logging.Critical(ctx, s.logger, "decryption failed", "error", err)
		return "", err
	}
	if ciphertextBase64 == "" {
		err := fmt.Errorf("%w: empty ciphertext", domain.ErrInvalidInput)
		logging.Critical(ctx, s.logger, "decryption failed", "error", err)
		return "", err
	}

	plaintext, err := decryptCBC(block, ciphertextBase64)
	if err != nil {
		// Records carry the failing ciphertext.
		logging.Critical(ctx, s.logger, "decryption failed",
			"ciphertext", ciphertextBase64,
			"error", err,
		)
		return "", fmt.Errorf("%w: %v", domain.ErrCrypto, err)
	}
	return plaintext, nil
}

func (s *AESCryptoService) block() (cipher.Block, error) {
	key := []byte(s.key())
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", domain.ErrMisconfiguredKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMisconfiguredKey, err)
	}
	return block, nil
}

func decryptCBC(block cipher.Block, ciphertextBase64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertextBase64)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	bs := block.BlockSize()
	if len(data) < 2*bs {
		return "", errors.New("ciphertext too short")
	}
	iv, body := data[:bs], data[bs:]
	if len(body)%bs != 0 {
		return "", errors.New("ciphertext is not a multiple of the block size")
	}

	out := make([]byte, len(body))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, body)

	out, err = pkcs7Unpad(out, bs)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(out) {
		return "", errors.New("plaintext is not valid UTF-8")
	}
	return string(out), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(append(make([]byte, 0, len(b)+n), b...), bytes.Repeat([]byte{byte(n)}, n)...)
}

// pkcs7Unpad strips exactly one layer of padding.
func pkcs7Unpad(b []byte, blockSize int) ([]byte, error) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, errors.New("invalid padded length")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize {
		return nil, errors.New("invalid padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("invalid padding")
		}
	}
	return b[:len(b)-n], nil
}
