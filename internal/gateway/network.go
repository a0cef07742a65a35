package gateway

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
)

// Network describes one chain's canonical key formats and explorer.
// Keys and addresses use fixed prefixes and fixed lengths; anything
// else is rejected before it reaches the node.
type Network struct {
	Name             string `yaml:"name" json:"name"`
	AddressPrefix    string `yaml:"address_prefix" json:"address_prefix"`
	AddressLength    int    `yaml:"address_length" json:"address_length"`
	PrivateKeyPrefix string `yaml:"private_key_prefix" json:"private_key_prefix"`
	PrivateKeyLength int    `yaml:"private_key_length" json:"private_key_length"`
	ViewKeyPrefix    string `yaml:"view_key_prefix" json:"view_key_prefix"`
	ViewKeyLength    int    `yaml:"view_key_length" json:"view_key_length"`
	// ExplorerTxURL is a format string receiving the transaction id.
	ExplorerTxURL string `yaml:"explorer_tx_url" json:"explorer_tx_url"`
}

// ValidatePrivateKey checks the canonical private key format.
func (n Network) ValidatePrivateKey(key string) error {
	if !strings.HasPrefix(key, n.PrivateKeyPrefix) {
		return errs.InvalidKeyFormat("private key must start with %q", n.PrivateKeyPrefix)
	}
	if len(key) != n.PrivateKeyLength {
		return errs.InvalidKeyFormat("private key must be %d characters, got %d", n.PrivateKeyLength, len(key))
	}
	return nil
}

// ValidateAddress checks the canonical address format.
func (n Network) ValidateAddress(address string) error {
	if !strings.HasPrefix(address, n.AddressPrefix) {
		return errs.Validation("address must start with %q", n.AddressPrefix)
	}
	if len(address) != n.AddressLength {
		return errs.Validation("address must be %d characters, got %d", n.AddressLength, len(address))
	}
	return nil
}

// ExplorerURL computes the explorer link for a transaction id.
func (n Network) ExplorerURL(txID string) string {
	if n.ExplorerTxURL == "" {
		return ""
	}
	return fmt.Sprintf(n.ExplorerTxURL, txID)
}

// DefaultNetworks returns the built-in network parameter sets.
func DefaultNetworks() map[string]Network {
	return map[string]Network{
		"mainnet": {
			Name:             "mainnet",
			AddressPrefix:    "aleo1",
			AddressLength:    63,
			PrivateKeyPrefix: "APrivateKey1",
			PrivateKeyLength: 59,
			ViewKeyPrefix:    "AViewKey1",
			ViewKeyLength:    53,
			ExplorerTxURL:    "https://explorer.aleo.org/transaction/%s",
		},
		"testnet": {
			Name:             "testnet",
			AddressPrefix:    "aleo1",
			AddressLength:    63,
			PrivateKeyPrefix: "APrivateKey1",
			PrivateKeyLength: 59,
			ViewKeyPrefix:    "AViewKey1",
			ViewKeyLength:    53,
			ExplorerTxURL:    "https://testnet.explorer.aleo.org/transaction/%s",
		},
	}
}

// LoadNetworks reads network parameter sets from a YAML file and
// merges them over the built-in defaults.
func LoadNetworks(path string) (map[string]Network, error) {
	networks := DefaultNetworks()
	if path == "" {
		return networks, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read networks file: %w", err)
	}

	var loaded map[string]Network
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse networks file: %w", err)
	}

	for name, n := range loaded {
		if n.Name == "" {
			n.Name = name
		}
		networks[name] = n
	}
	return networks, nil
}

// SelectNetwork resolves a configured network by name.
func SelectNetwork(networks map[string]Network, name string) (Network, error) {
	n, ok := networks[name]
	if !ok {
		return Network{}, fmt.Errorf("unknown network %q", name)
	}
	return n, nil
}
