// Package wallet owns the in-memory wallet session: creation, import,
// password unlock, inactivity auto-lock, and every operation that
// touches secret material. The encrypted wallet record on disk is
// owned exclusively by this package's Manager.
package wallet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/shared/secret"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
	"github.com/lumenbrowser/lumen/backend/internal/vault"
)

const minPasswordLength = 8

// Manager is the wallet session state machine. The session starts
// locked; create/import/unlock transition to unlocked, and explicit
// lock, auto-lock expiry, or deletion transition back.
type Manager struct {
	cipher  *vault.Cipher
	store   *storage.Store
	gw      gateway.Gateway
	network gateway.Network
	logger  *logging.Logger
	metrics *monitoring.Metrics
	idle    time.Duration

	mu         sync.Mutex
	material   *sessionMaterial // nil iff locked
	unlockedAt time.Time
	deadline   time.Time
	timer      *time.Timer
}

// NewManager creates a wallet session manager. The session begins
// locked regardless of what is on disk.
func NewManager(
	cipher *vault.Cipher,
	store *storage.Store,
	gw gateway.Gateway,
	network gateway.Network,
	logger *logging.Logger,
	metrics *monitoring.Metrics,
	autoLockIdle time.Duration,
) *Manager {
	return &Manager{
		cipher:  cipher,
		store:   store,
		gw:      gw,
		network: network,
		logger:  logger.Named("wallet"),
		metrics: metrics,
		idle:    autoLockIdle,
	}
}

// Create generates a new wallet protected by password. Returns the
// address and, when the node derived the account from a seed, the
// recovery phrase. The phrase is surfaced exactly once and never
// persisted.
func (m *Manager) Create(ctx context.Context, password string) (*CreateResult, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if m.store.Exists() {
		return nil, errs.ErrWalletExists
	}

	material, err := m.gw.GenerateKeyMaterial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}

	if err := m.commitNewWallet(material.Address, material.PrivateKey, material.ViewKey, password); err != nil {
		return nil, err
	}

	m.logger.Info("wallet created", zap.String("address", material.Address))
	return &CreateResult{Address: material.Address, SeedPhrase: material.SeedPhrase}, nil
}

// ImportFromKey imports an existing private key.
func (m *Manager) ImportFromKey(ctx context.Context, privateKey, password string) (*CreateResult, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := m.network.ValidatePrivateKey(privateKey); err != nil {
		return nil, err
	}
	if m.store.Exists() {
		return nil, errs.ErrWalletExists
	}

	imported, err := m.gw.ImportKeyMaterial(ctx, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to import key material: %w", err)
	}

	if err := m.commitNewWallet(imported.Address, privateKey, imported.ViewKey, password); err != nil {
		return nil, err
	}

	m.logger.Info("wallet imported from key", zap.String("address", imported.Address))
	return &CreateResult{Address: imported.Address}, nil
}

// ImportFromSeed imports a wallet from its recovery phrase.
func (m *Manager) ImportFromSeed(ctx context.Context, seedPhrase, password string) (*CreateResult, error) {
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	words := strings.Fields(seedPhrase)
	if len(words) != 12 && len(words) != 24 {
		return nil, errs.InvalidKeyFormat("seed phrase must be 12 or 24 words, got %d", len(words))
	}
	if m.store.Exists() {
		return nil, errs.ErrWalletExists
	}

	material, err := m.gw.ImportSeedMaterial(ctx, strings.Join(words, " "))
	if err != nil {
		return nil, fmt.Errorf("failed to derive from seed: %w", err)
	}

	if err := m.commitNewWallet(material.Address, material.PrivateKey, material.ViewKey, password); err != nil {
		return nil, err
	}

	m.logger.Info("wallet imported from seed", zap.String("address", material.Address))
	return &CreateResult{Address: material.Address}, nil
}

// Unlock opens the persisted record with password and populates the
// in-memory session.
func (m *Manager) Unlock(ctx context.Context, password string) error {
	var record EncryptedWalletRecord
	found, err := m.store.Load(&record)
	if err != nil {
		return err
	}
	if !found {
		return errs.ErrNoWallet
	}

	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil {
		return fmt.Errorf("corrupted wallet record: %w", err)
	}

	// Fast pre-check before paying the KDF cost.
	if !vault.VerifyPassword([]byte(password), salt, record.PasswordHash) {
		m.metrics.WalletUnlocks.WithLabelValues("failure").Inc()
		return errs.ErrInvalidPassword
	}

	plaintext, err := m.cipher.Open(record.SealedPayload, []byte(password))
	if err != nil {
		m.metrics.WalletUnlocks.WithLabelValues("failure").Inc()
		if errors.Is(err, errs.ErrAuthentication) {
			return fmt.Errorf("%w: decryption failed", errs.ErrInvalidPassword)
		}
		return err
	}
	defer secret.Wipe(plaintext)

	var bundle keyBundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return fmt.Errorf("corrupted wallet record: %w", err)
	}

	m.mu.Lock()
	m.installMaterial(bundle.Address, bundle.PrivateKey, bundle.ViewKey)
	m.mu.Unlock()
	bundle.PrivateKey = ""
	bundle.ViewKey = ""

	record.LastAccessedAt = time.Now()
	if err := m.store.Save(&record); err != nil {
		m.logger.Warn("failed to update last access time", zap.Error(err))
	}

	m.metrics.WalletUnlocks.WithLabelValues("success").Inc()
	m.logger.Info("wallet unlocked", zap.String("address", bundle.Address))
	return nil
}

// Lock transitions the session to locked. Idempotent.
func (m *Manager) Lock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked(LockManual)
}

// Delete destroys the persisted wallet record and locks the session.
// The password is verified first so a stray UI call cannot wipe the
// wallet.
func (m *Manager) Delete(password string) error {
	var record EncryptedWalletRecord
	found, err := m.store.Load(&record)
	if err != nil {
		return err
	}
	if !found {
		return errs.ErrNoWallet
	}

	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil {
		return fmt.Errorf("corrupted wallet record: %w", err)
	}
	if !vault.VerifyPassword([]byte(password), salt, record.PasswordHash) {
		return errs.ErrInvalidPassword
	}

	if err := m.store.Delete(); err != nil {
		return err
	}

	m.mu.Lock()
	m.lockLocked(LockDelete)
	m.mu.Unlock()

	m.logger.Info("wallet deleted")
	return nil
}

// Status reports the current session state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		Exists: m.store.Exists(),
		Locked: m.material == nil,
	}
	if m.material != nil {
		status.Address = m.material.address
		unlockedAt := m.unlockedAt
		deadline := m.deadline
		status.UnlockedAt = &unlockedAt
		status.AutoLockDeadline = &deadline
	}
	return status
}

// Address returns the public address of the unlocked session.
func (m *Manager) Address() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.material == nil {
		return "", errs.ErrWalletLocked
	}
	m.rearmLocked()
	return m.material.address, nil
}

// ExportPrivateKey returns the plaintext private key. The UI gates
// this behind an explicit user confirmation.
func (m *Manager) ExportPrivateKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.material == nil {
		return "", errs.ErrWalletLocked
	}
	m.rearmLocked()
	return m.material.privateKey.String(), nil
}

// ExportViewKey returns the plaintext view key.
func (m *Manager) ExportViewKey() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.material == nil {
		return "", errs.ErrWalletLocked
	}
	m.rearmLocked()
	return m.material.viewKey.String(), nil
}

// Sign signs an arbitrary message with the wallet's private key.
func (m *Manager) Sign(ctx context.Context, message string) (string, error) {
	key, err := m.privateKeyCopy()
	if err != nil {
		return "", err
	}
	defer secret.Wipe(key)

	return m.gw.SignMessage(ctx, string(key), message)
}

// Send submits a credit transfer and returns the on-chain tx id.
func (m *Manager) Send(ctx context.Context, to, amount, fee string) (string, error) {
	if err := m.network.ValidateAddress(to); err != nil {
		return "", err
	}

	key, err := m.privateKeyCopy()
	if err != nil {
		return "", err
	}
	defer secret.Wipe(key)

	return m.gw.SubmitTransfer(ctx, string(key), to, amount, fee)
}

// Execute submits a program execution and returns the on-chain tx id.
func (m *Manager) Execute(ctx context.Context, req gateway.ExecutionRequest) (string, error) {
	if req.ProgramID == "" || req.FunctionName == "" {
		return "", errs.Validation("program id and function name are required")
	}

	key, err := m.privateKeyCopy()
	if err != nil {
		return "", err
	}
	defer secret.Wipe(key)

	return m.gw.SubmitProgramExecution(ctx, string(key), req)
}

// Balance fetches the balances of the unlocked wallet. Per the
// fail-soft policy for reads, a network failure degrades to a zero
// balance instead of surfacing an error.
func (m *Manager) Balance(ctx context.Context) (*gateway.Balance, error) {
	address, err := m.Address()
	if err != nil {
		return nil, err
	}

	balance, err := m.gw.GetBalance(ctx, address)
	if err != nil {
		if errors.Is(err, errs.ErrNetwork) {
			m.logger.Warn("balance fetch failed, degrading to zero", zap.Error(err))
			return &gateway.Balance{Public: "0", Private: "0"}, nil
		}
		return nil, err
	}
	return balance, nil
}

// Close releases the auto-lock timer and locks the session.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked(LockManual)
}

// commitNewWallet seals and persists a fresh key bundle, then unlocks
// the session with it. Re-checks record existence under the lock so
// two concurrent creates cannot both win.
func (m *Manager) commitNewWallet(address, privateKey, viewKey, password string) error {
	bundle := keyBundle{Address: address, PrivateKey: privateKey, ViewKey: viewKey}
	plaintext, err := json.Marshal(&bundle)
	if err != nil {
		return fmt.Errorf("failed to marshal key bundle: %w", err)
	}
	defer secret.Wipe(plaintext)

	sealed, err := m.cipher.Seal(plaintext, []byte(password))
	if err != nil {
		return err
	}

	salt, err := base64.StdEncoding.DecodeString(sealed.Salt)
	if err != nil {
		return fmt.Errorf("failed to decode salt: %w", err)
	}

	now := time.Now()
	record := EncryptedWalletRecord{
		SealedPayload:  sealed,
		PasswordHash:   vault.HashPassword([]byte(password), salt),
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store.Exists() {
		return errs.ErrWalletExists
	}
	if err := m.store.Save(&record); err != nil {
		return err
	}

	m.installMaterial(address, privateKey, viewKey)
	return nil
}

// installMaterial populates the unlocked session. Caller holds m.mu.
func (m *Manager) installMaterial(address, privateKey, viewKey string) {
	if m.material != nil {
		m.material.clear()
	}
	m.material = newSessionMaterial(address, privateKey, viewKey)
	m.unlockedAt = time.Now()
	m.rearmLocked()
	m.metrics.WalletUnlocked.Set(1)
}

// privateKeyCopy returns a wipeable copy of the private key and counts
// the access as activity.
func (m *Manager) privateKeyCopy() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.material == nil {
		return nil, errs.ErrWalletLocked
	}
	m.rearmLocked()
	return m.material.privateKey.Bytes(), nil
}

// rearmLocked disarms and re-arms the single auto-lock timer; it is
// never stacked. Caller holds m.mu.
func (m *Manager) rearmLocked() {
	m.deadline = time.Now().Add(m.idle)
	if m.timer == nil {
		m.timer = time.AfterFunc(m.idle, m.autoLock)
		return
	}
	m.timer.Stop()
	m.timer.Reset(m.idle)
}

func (m *Manager) autoLock() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.material == nil {
		return
	}
	m.lockLocked(LockAuto)
	m.logger.Info("wallet auto-locked after inactivity")
}

// lockLocked clears secret material and disarms the timer. Caller
// holds m.mu. Idempotent.
func (m *Manager) lockLocked(reason LockReason) {
	if m.timer != nil {
		m.timer.Stop()
	}
	if m.material == nil {
		return
	}
	m.material.clear()
	m.material = nil
	m.unlockedAt = time.Time{}
	m.deadline = time.Time{}
	m.metrics.WalletUnlocked.Set(0)
	m.metrics.WalletLocks.WithLabelValues(string(reason)).Inc()
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return errs.Validation("password must be at least %d characters", minPasswordLength)
	}
	return nil
}
