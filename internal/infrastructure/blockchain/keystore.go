package blockchain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100_000
	pbkdf2KeyLen     = 32 // AES-256
	saltLen          = 16
)

var randomRead = rand.Read

// EncryptSignerKey encrypts a raw private key for at-rest storage, deriving
// an AES-256 key from passphrase via PBKDF2-SHA256 with a random salt per
// encryption. Output is hex: salt || nonce || ciphertext (GCM tag included).
func EncryptSignerKey(plaintext []byte, passphrase string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := randomRead(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newCipher(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := randomRead(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return hex.EncodeToString(out), nil
}

// DecryptSignerKey reverses EncryptSignerKey.
func DecryptSignerKey(encoded string, passphrase string) ([]byte, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(raw) < saltLen {
		return nil, fmt.Errorf("signer key too short")
	}

	salt := raw[:saltLen]
	gcm, err := newCipher(passphrase, salt)
	if err != nil {
		return nil, err
	}

	nonceLen := gcm.NonceSize()
	if len(raw) < saltLen+nonceLen {
		return nil, fmt.Errorf("signer key too short")
	}
	nonce := raw[saltLen : saltLen+nonceLen]
	ciphertext := raw[saltLen+nonceLen:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt signer key: %w", err)
	}
	return plaintext, nil
}

func newCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, pbkdf2KeyLen, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}
