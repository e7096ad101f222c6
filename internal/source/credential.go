package source

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/JustinTDCT/mediaserver/internal/apperr"
)

// CredentialCipher encrypts/decrypts Source.EncryptedCredential at rest.
// The AES-256-GCM key is derived from the server secret via HKDF rather than
// used directly, so rotating derivation context (the info string) can key
// separate purposes off one secret without provisioning a second value.
type CredentialCipher struct {
	key [32]byte
}

func NewCredentialCipher(serverSecret string) (*CredentialCipher, error) {
	kdf := hkdf.New(sha256.New, []byte(serverSecret), nil, []byte("mediaserver/source-credential"))
	var key [32]byte
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "derive credential key", err)
	}
	return &CredentialCipher{key: key}, nil
}

// Encrypt seals Credentials into a nonce-prefixed ciphertext suitable for
// Source.EncryptedCredential.
func (c *CredentialCipher) Encrypt(creds Credentials) ([]byte, error) {
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "marshal credentials", err)
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "init aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "init gcm", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "generate nonce", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt. A nil or empty ciphertext decrypts to a
// zero-value Credentials (sources with no stored auth, e.g. anonymous FTP).
func (c *CredentialCipher) Decrypt(ciphertext []byte) (Credentials, error) {
	if len(ciphertext) == 0 {
		return Credentials{}, nil
	}

	block, err := aes.NewCipher(c.key[:])
	if err != nil {
		return Credentials{}, apperr.Wrap(apperr.Internal, "init aes cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Credentials{}, apperr.Wrap(apperr.Internal, "init gcm", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return Credentials{}, apperr.New(apperr.Internal, "credential ciphertext too short")
	}
	nonce, sealed := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return Credentials{}, apperr.Wrap(apperr.Internal, "decrypt credential", err)
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, apperr.Wrap(apperr.Internal, "unmarshal decrypted credentials", err)
	}
	return creds, nil
}
