package wallet

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/monitoring"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/storage"
	"github.com/lumenbrowser/lumen/backend/internal/vault"
)

var (
	testAddress    = "aleo1" + strings.Repeat("q", 58)
	testPrivateKey = "APrivateKey1" + strings.Repeat("x", 47)
	testViewKey    = "AViewKey1" + strings.Repeat("v", 44)
	testSeedPhrase = strings.TrimSpace(strings.Repeat("abandon ", 12))
)

// fakeGateway satisfies gateway.Gateway with overridable behavior.
type fakeGateway struct {
	generateErr error
	balanceErr  error
	submitted   []string
}

func (f *fakeGateway) GenerateKeyMaterial(ctx context.Context) (*gateway.KeyMaterial, error) {
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &gateway.KeyMaterial{
		Address:    testAddress,
		PrivateKey: testPrivateKey,
		ViewKey:    testViewKey,
		SeedPhrase: testSeedPhrase,
	}, nil
}

func (f *fakeGateway) ImportKeyMaterial(ctx context.Context, privateKey string) (*gateway.ImportedKey, error) {
	return &gateway.ImportedKey{Address: testAddress, ViewKey: testViewKey}, nil
}

func (f *fakeGateway) ImportSeedMaterial(ctx context.Context, seedPhrase string) (*gateway.KeyMaterial, error) {
	return &gateway.KeyMaterial{
		Address:    testAddress,
		PrivateKey: testPrivateKey,
		ViewKey:    testViewKey,
	}, nil
}

func (f *fakeGateway) SignMessage(ctx context.Context, privateKey, message string) (string, error) {
	return "sig1" + message, nil
}

func (f *fakeGateway) SubmitTransfer(ctx context.Context, privateKey, to, amount, fee string) (string, error) {
	f.submitted = append(f.submitted, "transfer")
	return "at1transfer", nil
}

func (f *fakeGateway) SubmitProgramExecution(ctx context.Context, privateKey string, req gateway.ExecutionRequest) (string, error) {
	f.submitted = append(f.submitted, req.ProgramID)
	return "at1execute", nil
}

func (f *fakeGateway) GetTransactionStatus(ctx context.Context, txID string) (*gateway.TransactionStatus, error) {
	return &gateway.TransactionStatus{Found: true, Status: "confirmed"}, nil
}

func (f *fakeGateway) GetBalance(ctx context.Context, address string) (*gateway.Balance, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &gateway.Balance{Public: "1000000", Private: "500000"}, nil
}

func newTestManager(t *testing.T, gw gateway.Gateway, idle time.Duration) (*Manager, *storage.Store) {
	t.Helper()

	store, err := storage.NewStore(filepath.Join(t.TempDir(), "wallet.json"))
	require.NoError(t, err)

	networks := gateway.DefaultNetworks()
	m := NewManager(
		vault.NewCipherWithParams(1<<4, 8, 1),
		store,
		gw,
		networks["testnet"],
		logging.NewNop(),
		monitoring.NewMetricsWithRegistry(prometheus.NewRegistry()),
		idle,
	)
	t.Cleanup(m.Close)
	return m, store
}

func TestCreateRejectsShortPassword(t *testing.T) {
	m, store := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "short")
	assert.ErrorIs(t, err, errs.ErrValidation)
	assert.False(t, store.Exists(), "rejected create must leave no record")
}

func TestCreateUnlocksSession(t *testing.T) {
	m, store := newTestManager(t, &fakeGateway{}, time.Minute)

	result, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, testAddress, result.Address)
	assert.Equal(t, testSeedPhrase, result.SeedPhrase)
	assert.True(t, store.Exists())

	status := m.Status()
	assert.True(t, status.Exists)
	assert.False(t, status.Locked)
	assert.Equal(t, testAddress, status.Address)
	require.NotNil(t, status.AutoLockDeadline)
	assert.True(t, status.AutoLockDeadline.After(time.Now()))
}

func TestCreateRefusesSecondWallet(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	_, err = m.Create(context.Background(), "another password")
	assert.ErrorIs(t, err, errs.ErrWalletExists)
}

func TestUnlockRoundTrip(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)
	m.Lock()

	_, err = m.Address()
	require.ErrorIs(t, err, errs.ErrWalletLocked)

	require.NoError(t, m.Unlock(context.Background(), "correct horse battery"))
	addr, err := m.Address()
	require.NoError(t, err)
	assert.Equal(t, testAddress, addr)
}

func TestUnlockWrongPassword(t *testing.T) {
	m, store := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)
	m.Lock()

	err = m.Unlock(context.Background(), "wrong password!!")
	assert.ErrorIs(t, err, errs.ErrInvalidPassword)
	assert.True(t, m.Status().Locked)
	assert.True(t, store.Exists(), "failed unlock must not touch the record")
}

func TestUnlockWithoutWallet(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	err := m.Unlock(context.Background(), "whatever password")
	assert.ErrorIs(t, err, errs.ErrNoWallet)
}

func TestImportFromKey(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	result, err := m.ImportFromKey(context.Background(), testPrivateKey, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, testAddress, result.Address)
	assert.Empty(t, result.SeedPhrase)

	exported, err := m.ExportPrivateKey()
	require.NoError(t, err)
	assert.Equal(t, testPrivateKey, exported)
}

func TestImportFromKeyRejectsBadFormat(t *testing.T) {
	m, store := newTestManager(t, &fakeGateway{}, time.Minute)

	cases := []string{
		"",
		"not a key",
		"APrivateKey1tooshort",
		strings.Repeat("x", 59),
	}
	for _, key := range cases {
		_, err := m.ImportFromKey(context.Background(), key, "correct horse battery")
		assert.ErrorIs(t, err, errs.ErrInvalidKeyFormat, "key %q", key)
	}
	assert.False(t, store.Exists())
}

func TestImportFromSeedValidatesWordCount(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.ImportFromSeed(context.Background(), "one two three", "correct horse battery")
	assert.ErrorIs(t, err, errs.ErrInvalidKeyFormat)

	result, err := m.ImportFromSeed(context.Background(), testSeedPhrase, "correct horse battery")
	require.NoError(t, err)
	assert.Equal(t, testAddress, result.Address)
}

func TestLockedOperationsFail(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Address()
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.ExportPrivateKey()
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.ExportViewKey()
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.Sign(context.Background(), "hello")
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.Send(context.Background(), testAddress, "10", "0.1")
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.Execute(context.Background(), gateway.ExecutionRequest{ProgramID: "credits.aleo", FunctionName: "join"})
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
	_, err = m.Balance(context.Background())
	assert.ErrorIs(t, err, errs.ErrWalletLocked)
}

func TestSendValidatesRecipient(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	_, err = m.Send(context.Background(), "bogus-address", "10", "0.1")
	assert.ErrorIs(t, err, errs.ErrValidation)

	txID, err := m.Send(context.Background(), testAddress, "10", "0.1")
	require.NoError(t, err)
	assert.Equal(t, "at1transfer", txID)
}

func TestExecuteRequiresProgramAndFunction(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	_, err = m.Execute(context.Background(), gateway.ExecutionRequest{FunctionName: "join"})
	assert.ErrorIs(t, err, errs.ErrValidation)

	txID, err := m.Execute(context.Background(), gateway.ExecutionRequest{
		ProgramID:    "credits.aleo",
		FunctionName: "transfer_public",
		Inputs:       []string{testAddress, "10u64"},
		Fee:          "0.1",
	})
	require.NoError(t, err)
	assert.Equal(t, "at1execute", txID)
}

func TestBalanceDegradesOnNetworkError(t *testing.T) {
	gw := &fakeGateway{balanceErr: errs.Network(assert.AnError)}
	m, _ := newTestManager(t, gw, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	balance, err := m.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", balance.Public)
	assert.Equal(t, "0", balance.Private)
}

func TestDelete(t *testing.T) {
	m, store := newTestManager(t, &fakeGateway{}, time.Minute)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	err = m.Delete("wrong password!!")
	assert.ErrorIs(t, err, errs.ErrInvalidPassword)
	assert.True(t, store.Exists())

	require.NoError(t, m.Delete("correct horse battery"))
	assert.False(t, store.Exists())

	status := m.Status()
	assert.False(t, status.Exists)
	assert.True(t, status.Locked)
}

func TestAutoLockFires(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, 50*time.Millisecond)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)
	assert.False(t, m.Status().Locked)

	assert.Eventually(t, func() bool {
		return m.Status().Locked
	}, 2*time.Second, 10*time.Millisecond, "session should auto-lock after the idle window")
}

func TestActivityDefersAutoLock(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, 300*time.Millisecond)

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)

	// Keep touching the session inside the idle window.
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		_, err := m.Address()
		require.NoError(t, err, "activity inside the idle window must keep the session alive")
	}
}

func TestLockIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t, &fakeGateway{}, time.Minute)

	m.Lock()
	m.Lock()

	_, err := m.Create(context.Background(), "correct horse battery")
	require.NoError(t, err)
	m.Lock()
	m.Lock()
	assert.True(t, m.Status().Locked)
}
