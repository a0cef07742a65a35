// Package vault implements authenticated encryption of wallet secrets
// under a password-derived key. Every layer that persists key material
// goes through Seal/Open; nothing else in the process touches the KDF.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/shared/secret"
	"golang.org/x/crypto/scrypt"
)

const (
	// scrypt parameters for the local wallet record.
	// N=2^15 (~32MB RAM) keeps unlock under ~100ms on desktop hardware
	// while making offline brute force expensive. The record is local
	// and low-volume, so the KDF cost is paid once per unlock.
	defaultScryptN = 1 << 15
	defaultScryptR = 8
	defaultScryptP = 1

	keyLen  = 32
	saltLen = 32
	ivLen   = 12
	tagLen  = 16
)

// SealedPayload is ciphertext plus the metadata needed to decrypt it
// again given the correct password. All fields are base64.
type SealedPayload struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Salt       string `json:"salt"`
}

// Cipher seals and opens byte payloads with scrypt + AES-256-GCM.
type Cipher struct {
	scryptN int
	scryptR int
	scryptP int
}

// NewCipher creates a cipher with production KDF parameters.
func NewCipher() *Cipher {
	return &Cipher{scryptN: defaultScryptN, scryptR: defaultScryptR, scryptP: defaultScryptP}
}

// NewCipherWithParams creates a cipher with custom scrypt parameters.
// Tests use weak parameters to keep the KDF fast.
func NewCipherWithParams(n, r, p int) *Cipher {
	return &Cipher{scryptN: n, scryptR: r, scryptP: p}
}

// Seal encrypts plaintext under a key derived from password. A fresh
// random salt and IV are generated on every call, so sealing identical
// plaintexts yields different payloads.
func (c *Cipher) Seal(plaintext, password []byte) (SealedPayload, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return SealedPayload{}, fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, ivLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return SealedPayload{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	aead, key, err := c.newAEAD(password, salt)
	if err != nil {
		return SealedPayload{}, err
	}
	defer secret.Wipe(key)

	sealed := aead.Seal(nil, iv, plaintext, nil)

	// GCM appends the tag; the record format stores it separately.
	split := len(sealed) - tagLen
	return SealedPayload{
		Ciphertext: base64.StdEncoding.EncodeToString(sealed[:split]),
		IV:         base64.StdEncoding.EncodeToString(iv),
		AuthTag:    base64.StdEncoding.EncodeToString(sealed[split:]),
		Salt:       base64.StdEncoding.EncodeToString(salt),
	}, nil
}

// Open decrypts a sealed payload. It fails with an authentication error
// when the tag does not verify (wrong password or corrupted payload)
// and never returns partial plaintext.
func (c *Cipher) Open(p SealedPayload, password []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return nil, errs.Authentication("corrupted ciphertext: %v", err)
	}
	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil {
		return nil, errs.Authentication("corrupted iv: %v", err)
	}
	tag, err := base64.StdEncoding.DecodeString(p.AuthTag)
	if err != nil {
		return nil, errs.Authentication("corrupted auth tag: %v", err)
	}
	salt, err := base64.StdEncoding.DecodeString(p.Salt)
	if err != nil {
		return nil, errs.Authentication("corrupted salt: %v", err)
	}

	aead, key, err := c.newAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	defer secret.Wipe(key)

	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, errs.Authentication("decryption failed")
	}
	return plaintext, nil
}

func (c *Cipher) newAEAD(password, salt []byte) (cipher.AEAD, []byte, error) {
	key, err := scrypt.Key(password, salt, c.scryptN, c.scryptR, c.scryptP, keyLen)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		secret.Wipe(key)
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		secret.Wipe(key)
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, key, nil
}

// HashPassword computes the fast one-way hash used as a pre-check
// before the full KDF + decrypt on unlock. The salt is reused from the
// sealed record so the hash is installation-specific.
func HashPassword(password, salt []byte) string {
	h := sha256.New()
	h.Write(salt)
	h.Write(password)
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyPassword compares a password against a stored hash in constant
// time to avoid timing side channels.
func VerifyPassword(password, salt []byte, storedHash string) bool {
	computed := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHash)) == 1
}
