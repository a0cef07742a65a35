package wallet

import (
	"time"

	"github.com/lumenbrowser/lumen/backend/internal/shared/secret"
)

// sessionMaterial is the in-memory unlocked key bundle. It exists only
// while the session is unlocked; lock paths clear every buffer.
type sessionMaterial struct {
	address    string
	privateKey *secret.Buffer
	viewKey    *secret.Buffer
}

func newSessionMaterial(address, privateKey, viewKey string) *sessionMaterial {
	return &sessionMaterial{
		address:    address,
		privateKey: secret.FromString(privateKey),
		viewKey:    secret.FromString(viewKey),
	}
}

// clear zeroes all secret buffers.
func (m *sessionMaterial) clear() {
	m.privateKey.Clear()
	m.viewKey.Clear()
}

// Status is the externally visible session state.
type Status struct {
	Exists           bool       `json:"exists"`
	Locked           bool       `json:"locked"`
	Address          string     `json:"address,omitempty"`
	UnlockedAt       *time.Time `json:"unlocked_at,omitempty"`
	AutoLockDeadline *time.Time `json:"auto_lock_deadline,omitempty"`
}

// CreateResult is returned from Create and ImportFromSeed. SeedPhrase
// is populated exactly once and never persisted.
type CreateResult struct {
	Address    string `json:"address"`
	SeedPhrase string `json:"seed_phrase,omitempty"`
}

// LockReason labels why the session transitioned to locked.
type LockReason string

const (
	LockManual LockReason = "manual"
	LockAuto   LockReason = "auto"
	LockDelete LockReason = "delete"
)
