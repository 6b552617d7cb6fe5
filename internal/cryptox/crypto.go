// Package cryptox implements the crypto gateway: passphrase-based file
// encryption for backup artifacts. The key is derived with argon2id from the
// passphrase and a per-file random salt; the payload is sealed with
// AES-256-GCM. Each ciphertext file is self-describing:
//
//	magic(4) | salt(16) | nonce(12) | ciphertext
package cryptox

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/offsitebkp/internal/common"
)

// Suffix is appended to the plaintext file name on encryption.
const Suffix = ".enc"

const (
	fileMagic = "OBK1"
	saltSize  = 16
	nonceSize = 12
	keySize   = 32
)

// FileCipher encrypts and decrypts single files with a passphrase-derived
// key. It holds no state beyond the key material.
type FileCipher struct {
	passphrase []byte
}

func New(passphrase []byte) *FileCipher {
	return &FileCipher{passphrase: passphrase}
}

func deriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, keySize)
}

func (c *FileCipher) newGCM(salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(c.passphrase, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plainPath into destDir as <base>.enc and returns the
// ciphertext path. The plaintext file is left untouched.
func (c *FileCipher) Encrypt(ctx context.Context, plainPath, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	plaintext, err := os.ReadFile(plainPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", common.ErrEncryption, plainPath, err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	aead, err := c.newGCM(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrEncryption, err)
	}

	var buf bytes.Buffer
	buf.WriteString(fileMagic)
	buf.Write(salt)
	buf.Write(nonce)
	buf.Write(aead.Seal(nil, nonce, plaintext, []byte(fileMagic)))

	out := filepath.Join(destDir, filepath.Base(plainPath)+Suffix)
	if err := os.WriteFile(out, buf.Bytes(), 0o600); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("%w: writing %s: %v", common.ErrEncryption, out, err)
	}

	return out, nil
}

// Decrypt opens cipherPath into destDir, restoring the original base name,
// and returns the plaintext path. A wrong passphrase, a truncated header or
// tampered ciphertext all fail with ErrDecryption, and no partial plaintext
// is left behind.
func (c *FileCipher) Decrypt(ctx context.Context, cipherPath, destDir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	data, err := os.ReadFile(cipherPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s: %v", common.ErrDecryption, cipherPath, err)
	}

	header := len(fileMagic) + saltSize + nonceSize
	if len(data) < header || string(data[:len(fileMagic)]) != fileMagic {
		return "", fmt.Errorf("%w: %s is not a recognized encrypted backup", common.ErrDecryption, cipherPath)
	}

	salt := data[len(fileMagic) : len(fileMagic)+saltSize]
	nonce := data[len(fileMagic)+saltSize : header]

	aead, err := c.newGCM(salt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrDecryption, err)
	}

	plaintext, err := aead.Open(nil, nonce, data[header:], []byte(fileMagic))
	if err != nil {
		return "", fmt.Errorf("%w: %s: bad key or corrupt ciphertext", common.ErrDecryption, cipherPath)
	}

	out := filepath.Join(destDir, strings.TrimSuffix(filepath.Base(cipherPath), Suffix))
	if err := os.WriteFile(out, plaintext, 0o600); err != nil {
		os.Remove(out)
		return "", fmt.Errorf("%w: writing %s: %v", common.ErrIO, out, err)
	}

	return out, nil
}
