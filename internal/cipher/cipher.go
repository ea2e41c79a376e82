// Package cipher provides the authenticated symmetric encryption CKeyLock
// uses to seal its on-disk snapshot: AES-256-GCM with a key derived from an
// operator passphrase by a single SHA3-256 pass, grounded on the same
// nonce-prefixed AEAD envelope shape as service_layer's
// infrastructure/crypto package, minus its HKDF-style subject/info
// derivation — a single-key snapshot has no per-subject key space to derive.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// NonceSize is the AES-GCM nonce length CKeyLock always uses.
const NonceSize = 12

// KeySize is the AES-256 key length produced by DeriveKey.
const KeySize = 32

// Cipher seals and opens snapshot blobs with a single AES-256-GCM key.
type Cipher struct {
	aead gocipher.AEAD
}

// DeriveKey derives a 32-byte AES-256 key from the UTF-8 bytes of a
// passphrase via SHA3-256. No salt, no iteration: the derivation must be
// deterministic across restarts so the same passphrase always reopens the
// same snapshot.
func DeriveKey(passphrase string) [KeySize]byte {
	return sha3.Sum256([]byte(passphrase))
}

// New builds a Cipher from a 32-byte AES-256 key.
func New(key [KeySize]byte) (*Cipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("cipher: new AES block: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: new GCM: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// NewFromPassphrase is a convenience wrapper combining DeriveKey and New.
func NewFromPassphrase(passphrase string) (*Cipher, error) {
	return New(DeriveKey(passphrase))
}

// Encrypt seals plaintext, returning nonce || ciphertext || tag. If nonce is
// non-nil it must be exactly NonceSize bytes and is used verbatim; otherwise
// a fresh nonce is drawn from crypto/rand.
func (c *Cipher) Encrypt(plaintext []byte, nonce []byte) ([]byte, error) {
	if nonce != nil {
		if len(nonce) != NonceSize {
			return nil, fmt.Errorf("cipher: nonce must be %d bytes, got %d", NonceSize, len(nonce))
		}
	} else {
		nonce = make([]byte, NonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("cipher: read nonce: %w", err)
		}
	}

	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a blob previously produced by Encrypt. It fails if blob is
// shorter than the nonce or if the AEAD tag does not verify (wrong key,
// tampered ciphertext, truncated blob).
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < NonceSize {
		return nil, fmt.Errorf("cipher: blob too short: %d bytes", len(blob))
	}
	nonce, body := blob[:NonceSize], blob[NonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("cipher: decrypt: %w", err)
	}
	return plaintext, nil
}
