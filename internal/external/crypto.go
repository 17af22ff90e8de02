package external

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/northbound-policy/ingest/internal/apperr"
)

// credentialCipher encrypts and decrypts ExternalDataSource passwords with
// a single symmetric key held by the process. ChaCha20-Poly1305
// is used rather than stdlib AES-GCM because it needs no AES-NI to run at
// speed and its 32-byte key matches CREDENTIAL_ENCRYPTION_KEY's documented
// size exactly.
type credentialCipher struct {
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

func newCredentialCipher(keyHex string) (*credentialCipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInputInvalid, err, "credential encryption key is not valid hex")
	}
	if len(key) != chacha20poly1305.KeySize {
		return nil, apperr.New(apperr.KindInputInvalid,
			fmt.Sprintf("credential encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key)))
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInputInvalid, err, "failed to construct credential cipher")
	}
	return &credentialCipher{aead: aead}, nil
}

// encrypt returns nonce||ciphertext, safe to persist directly in
// password_encrypted.
func (c *credentialCipher) encrypt(plaintext string) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apperr.Wrap(apperr.KindIndexFailure, err, "failed to generate nonce")
	}
	return c.aead.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

func (c *credentialCipher) decrypt(stored []byte) (string, error) {
	n := c.aead.NonceSize()
	if len(stored) < n {
		return "", apperr.New(apperr.KindInputInvalid, "encrypted credential is truncated")
	}
	nonce, ciphertext := stored[:n], stored[n:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperr.Wrap(apperr.KindAccessDenied, err, "failed to decrypt external source credential")
	}
	return string(plaintext), nil
}
