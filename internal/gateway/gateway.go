// Package gateway defines the contract the wallet core expects from
// the blockchain node and provides the HTTP client that fulfills it.
// Key derivation, proof generation, and transaction construction all
// live behind this boundary; the core only moves payloads.
package gateway

import "context"

// KeyMaterial is a freshly generated key bundle. SeedPhrase is present
// only when the node derived the account from a seed; it is surfaced
// to the user exactly once and never persisted.
type KeyMaterial struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
	ViewKey    string `json:"view_key"`
	SeedPhrase string `json:"seed_phrase,omitempty"`
}

// ImportedKey is the account derived from an existing private key.
type ImportedKey struct {
	Address string `json:"address"`
	ViewKey string `json:"view_key"`
}

// Balance holds the public and private balances of an address, as
// decimal strings in the network's base unit.
type Balance struct {
	Public  string `json:"public"`
	Private string `json:"private"`
}

// TransactionStatus is the node's view of a submitted transaction.
// Found is false when the node does not know the transaction id yet;
// that is a normal propagation state, not an error.
type TransactionStatus struct {
	Found         bool    `json:"found"`
	Status        string  `json:"status"`
	BlockHeight   *uint64 `json:"block_height,omitempty"`
	Confirmations *uint64 `json:"confirmations,omitempty"`
}

// ExecutionRequest describes a program execution to submit.
type ExecutionRequest struct {
	ProgramID    string   `json:"program_id"`
	FunctionName string   `json:"function_name"`
	Inputs       []string `json:"inputs"`
	Fee          string   `json:"fee"`
}

// Gateway is the node client consumed by the wallet session manager
// and the transaction ledger.
type Gateway interface {
	// GenerateKeyMaterial asks the node for a new account.
	GenerateKeyMaterial(ctx context.Context) (*KeyMaterial, error)

	// ImportKeyMaterial derives the address and view key for an
	// existing private key.
	ImportKeyMaterial(ctx context.Context, privateKey string) (*ImportedKey, error)

	// ImportSeedMaterial derives a full key bundle from a recovery
	// phrase.
	ImportSeedMaterial(ctx context.Context, seedPhrase string) (*KeyMaterial, error)

	// SignMessage signs an arbitrary message with the private key and
	// returns the signature string.
	SignMessage(ctx context.Context, privateKey, message string) (string, error)

	// SubmitTransfer broadcasts a credit transfer and returns the
	// on-chain transaction id.
	SubmitTransfer(ctx context.Context, privateKey, to, amount, fee string) (string, error)

	// SubmitProgramExecution broadcasts a program execution and
	// returns the on-chain transaction id.
	SubmitProgramExecution(ctx context.Context, privateKey string, req ExecutionRequest) (string, error)

	// GetTransactionStatus queries the node for a transaction's state.
	// A missing transaction is reported via Found=false, not an error.
	GetTransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error)

	// GetBalance queries the public and private balances of an address.
	GetBalance(ctx context.Context, address string) (*Balance, error)
}
