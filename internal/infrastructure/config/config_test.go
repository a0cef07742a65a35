package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8600", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 15*time.Minute, cfg.Wallet.AutoLockIdle)
	assert.Equal(t, 5*time.Minute, cfg.Approval.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Ledger.ReconcileInterval)
	assert.Equal(t, 10*time.Minute, cfg.Ledger.NotFoundGrace)
	assert.Equal(t, "testnet", cfg.Gateway.Network)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("WALLET_AUTO_LOCK", "2m")
	t.Setenv("GATEWAY_NETWORK", "mainnet")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Wallet.AutoLockIdle)
	assert.Equal(t, "mainnet", cfg.Gateway.Network)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("APPROVAL_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}
