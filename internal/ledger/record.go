// Package ledger tracks the lifecycle of submitted transactions from
// broadcast to finality. Records are kept most-recent-first in a
// write-through JSON log and reconciled against the node on a fixed
// interval.
package ledger

import (
	"strings"
	"time"

	"github.com/lumenbrowser/lumen/backend/internal/shared/id"
)

// Kind labels the direction and shape of a transaction.
type Kind string

const (
	KindSend    Kind = "send"
	KindReceive Kind = "receive"
	KindExecute Kind = "execute"
	KindDeploy  Kind = "deploy"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindSend, KindReceive, KindExecute, KindDeploy:
		return true
	}
	return false
}

// Status is the local view of a transaction's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

var (
	confirmKeywords = []string{"accepted", "confirmed", "finalized"}
	failureKeywords = []string{"rejected", "failed", "aborted"}
)

// classifyStatus maps a raw node status payload to the local
// lifecycle. Nodes embed the keyword in free-form text ("accepted in
// block 42"), so matching is by containment, case-insensitively.
// Anything without a known keyword stays pending for the next sweep.
func classifyStatus(raw string) Status {
	s := strings.ToLower(raw)
	for _, kw := range failureKeywords {
		if strings.Contains(s, kw) {
			return StatusFailed
		}
	}
	for _, kw := range confirmKeywords {
		if strings.Contains(s, kw) {
			return StatusConfirmed
		}
	}
	return StatusPending
}

// Record is one tracked transaction.
type Record struct {
	ID        id.TransactionID `json:"id"`
	ChainTxID string           `json:"chain_tx_id"`
	Kind      Kind             `json:"kind"`
	Status    Status           `json:"status"`

	// Amount and Fee are decimal credit strings.
	Amount string `json:"amount,omitempty"`
	Fee    string `json:"fee,omitempty"`

	From         string `json:"from,omitempty"`
	To           string `json:"to,omitempty"`
	ProgramID    string `json:"program_id,omitempty"`
	FunctionName string `json:"function_name,omitempty"`

	BlockHeight   *uint64 `json:"block_height,omitempty"`
	Confirmations *uint64 `json:"confirmations,omitempty"`
	Error         string  `json:"error,omitempty"`
	ExplorerURL   string  `json:"explorer_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Stats summarizes the log. Monetary totals cover confirmed
// transactions only; pending and failed amounts are not money moved.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`

	TotalSent     string `json:"total_sent"`
	TotalReceived string `json:"total_received"`
	TotalFees     string `json:"total_fees"`
}
