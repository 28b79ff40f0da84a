// Package snapshot serializes a corpus into an encrypted, portable blob
// and restores it, speaking to a content-addressed blob store.
package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	blobVersion = 1
	keySize     = 32 // AES-256
	tagSize     = 16 // GCM auth tag
)

// keyInfo binds derived keys to this format; rotating it invalidates all
// existing snapshots.
var keyInfo = []byte("kbvault/snapshot/v1")

var (
	ErrBlobVersion = errors.New("unsupported encrypted blob version")
	ErrDecrypt     = errors.New("field decryption failed")
)

// EncryptedBlob is the wire form of one encrypted sensitive field.
type EncryptedBlob struct {
	V   int    `json:"v"`
	IV  string `json:"iv"`
	CT  string `json:"ct"`
	Tag string `json:"tag"`
}

// FieldCipher encrypts and decrypts individual sensitive fields with
// AES-256-GCM. Every encryption draws a fresh random nonce, so equal
// plaintexts never produce equal ciphertexts.
type FieldCipher struct {
	aead cipher.AEAD
}

// NewFieldCipher derives the process-wide field key from the given secret
// via HKDF-SHA256 and prepares the AEAD. The secret must be non-empty.
func NewFieldCipher(secret []byte) (*FieldCipher, error) {
	if len(secret) == 0 {
		return nil, errors.New("snapshot secret is required")
	}
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, keyInfo), key); err != nil {
		return nil, fmt.Errorf("derive field key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init aead: %w", err)
	}
	return &FieldCipher{aead: aead}, nil
}

// EncryptField seals one plaintext field into an EncryptedBlob.
func (c *FieldCipher) EncryptField(plaintext string) (EncryptedBlob, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return EncryptedBlob{}, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return EncryptedBlob{
		V:   blobVersion,
		IV:  base64.StdEncoding.EncodeToString(nonce),
		CT:  base64.StdEncoding.EncodeToString(ct),
		Tag: base64.StdEncoding.EncodeToString(tag),
	}, nil
}

// DecryptField opens an EncryptedBlob back into its plaintext. Tampered
// ciphertext, a wrong key or a foreign version all fail.
func (c *FieldCipher) DecryptField(blob EncryptedBlob) (string, error) {
	if blob.V != blobVersion {
		return "", fmt.Errorf("%w: %d", ErrBlobVersion, blob.V)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.IV)
	if err != nil {
		return "", fmt.Errorf("%w: bad iv: %v", ErrDecrypt, err)
	}
	ct, err := base64.StdEncoding.DecodeString(blob.CT)
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext: %v", ErrDecrypt, err)
	}
	tag, err := base64.StdEncoding.DecodeString(blob.Tag)
	if err != nil {
		return "", fmt.Errorf("%w: bad tag: %v", ErrDecrypt, err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: nonce size %d", ErrDecrypt, len(nonce))
	}

	plaintext, err := c.aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(plaintext), nil
}
