// Package config loads wallet-core configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Wallet    WalletConfig
	Approval  ApprovalConfig
	Ledger    LedgerConfig
	Gateway   GatewayConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8600"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// WalletConfig holds wallet session configuration.
type WalletConfig struct {
	DataDir      string        `envconfig:"WALLET_DATA_DIR" default:"~/.lumen/wallet"`
	AutoLockIdle time.Duration `envconfig:"WALLET_AUTO_LOCK" default:"15m"`
}

// ApprovalConfig holds dapp approval negotiation configuration.
type ApprovalConfig struct {
	Timeout time.Duration `envconfig:"APPROVAL_TIMEOUT" default:"5m"`
}

// LedgerConfig holds transaction reconciliation configuration.
type LedgerConfig struct {
	ReconcileInterval time.Duration `envconfig:"LEDGER_RECONCILE_INTERVAL" default:"30s"`
	NotFoundGrace     time.Duration `envconfig:"LEDGER_NOT_FOUND_GRACE" default:"10m"`
}

// GatewayConfig holds blockchain node client configuration.
type GatewayConfig struct {
	Endpoint     string `envconfig:"GATEWAY_ENDPOINT" default:"http://localhost:3030"`
	Network      string `envconfig:"GATEWAY_NETWORK" default:"testnet"`
	NetworksFile string `envconfig:"GATEWAY_NETWORKS_FILE" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8600",
			Host: "127.0.0.1",
		},
		Wallet: WalletConfig{
			DataDir:      "~/.lumen/wallet",
			AutoLockIdle: 15 * time.Minute,
		},
		Approval: ApprovalConfig{
			Timeout: 5 * time.Minute,
		},
		Ledger: LedgerConfig{
			ReconcileInterval: 30 * time.Second,
			NotFoundGrace:     10 * time.Minute,
		},
		Gateway: GatewayConfig{
			Endpoint: "http://localhost:3030",
			Network:  "testnet",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}
