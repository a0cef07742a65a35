package wallet

import (
	"time"

	"github.com/lumenbrowser/lumen/backend/internal/vault"
)

// EncryptedWalletRecord is the single persisted wallet entry. Exactly
// one exists per installation; it is created on create/import and only
// ever destroyed, never re-encrypted (password change is out of scope).
type EncryptedWalletRecord struct {
	vault.SealedPayload

	// PasswordHash is the fast one-way pre-check hash, separate from
	// the KDF-derived encryption key.
	PasswordHash string `json:"password_hash"`

	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// keyBundle is the plaintext sealed inside the record. Instances are
// transient: marshaled, sealed, and wiped.
type keyBundle struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
	ViewKey    string `json:"view_key"`
}
