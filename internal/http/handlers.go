package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lumenbrowser/lumen/backend/internal/gateway"
	"github.com/lumenbrowser/lumen/backend/internal/ledger"
	"github.com/lumenbrowser/lumen/backend/internal/permission"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
	"github.com/lumenbrowser/lumen/backend/internal/shared/id"
	"github.com/lumenbrowser/lumen/backend/internal/wallet"
	"github.com/lumenbrowser/lumen/backend/internal/ws"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	wallet *wallet.Manager
	broker *permission.Broker
	ledger *ledger.Ledger
	hub    *ws.Hub
}

// NewHandlers creates a new handler set.
func NewHandlers(
	walletManager *wallet.Manager,
	broker *permission.Broker,
	txLedger *ledger.Ledger,
	hub *ws.Hub,
) *Handlers {
	return &Handlers{
		wallet: walletManager,
		broker: broker,
		ledger: txLedger,
		hub:    hub,
	}
}

// Root handles health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "Lumen Wallet Core",
		"version": "0.3.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	status := h.wallet.Status()
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"wallet": gin.H{"exists": status.Exists, "locked": status.Locked},
		"dapps":  gin.H{"connections": len(h.broker.Connections())},
		"ledger": h.ledger.Stats(),
	})
}

// --- Wallet session ---

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// CreateWallet generates a new wallet.
func (h *Handlers) CreateWallet(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	result, err := h.wallet.Create(c.Request.Context(), req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	h.hub.Broadcast("wallet_created", gin.H{"address": result.Address})
	c.JSON(http.StatusCreated, result)
}

type importRequest struct {
	Password   string `json:"password" binding:"required"`
	PrivateKey string `json:"private_key,omitempty"`
	SeedPhrase string `json:"seed_phrase,omitempty"`
}

// ImportWallet imports a wallet from a private key or a seed phrase.
func (h *Handlers) ImportWallet(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	var (
		result *wallet.CreateResult
		err    error
	)
	switch {
	case req.PrivateKey != "" && req.SeedPhrase != "":
		writeError(c, errs.Validation("provide a private key or a seed phrase, not both"))
		return
	case req.PrivateKey != "":
		result, err = h.wallet.ImportFromKey(c.Request.Context(), req.PrivateKey, req.Password)
	case req.SeedPhrase != "":
		result, err = h.wallet.ImportFromSeed(c.Request.Context(), req.SeedPhrase, req.Password)
	default:
		writeError(c, errs.Validation("a private key or a seed phrase is required"))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.hub.Broadcast("wallet_created", gin.H{"address": result.Address})
	c.JSON(http.StatusCreated, result)
}

// UnlockWallet opens the session with the wallet password.
func (h *Handlers) UnlockWallet(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	if err := h.wallet.Unlock(c.Request.Context(), req.Password); err != nil {
		writeError(c, err)
		return
	}
	h.hub.Broadcast("wallet_unlocked", nil)
	c.JSON(http.StatusOK, h.wallet.Status())
}

// LockWallet locks the session.
func (h *Handlers) LockWallet(c *gin.Context) {
	h.wallet.Lock()
	h.hub.Broadcast("wallet_locked", nil)
	c.JSON(http.StatusOK, h.wallet.Status())
}

// WalletStatus reports the session state.
func (h *Handlers) WalletStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.wallet.Status())
}

// WalletAddress returns the unlocked wallet's address.
func (h *Handlers) WalletAddress(c *gin.Context) {
	address, err := h.wallet.Address()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": address})
}

// WalletBalance returns the wallet's balances.
func (h *Handlers) WalletBalance(c *gin.Context) {
	balance, err := h.wallet.Balance(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

type exportRequest struct {
	Key string `json:"key" binding:"required"` // private_key or view_key
}

// ExportKey returns a plaintext key. The shell gates this behind an
// explicit confirmation dialog.
func (h *Handlers) ExportKey(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	var (
		value string
		err   error
	)
	switch req.Key {
	case "private_key":
		value, err = h.wallet.ExportPrivateKey()
	case "view_key":
		value, err = h.wallet.ExportViewKey()
	default:
		writeError(c, errs.Validation("unknown key %q", req.Key))
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": req.Key, "value": value})
}

type signRequest struct {
	Message string `json:"message" binding:"required"`
}

// SignMessage signs an arbitrary message.
func (h *Handlers) SignMessage(c *gin.Context) {
	var req signRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	signature, err := h.wallet.Sign(c.Request.Context(), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

// DeleteWallet destroys the wallet record after verifying the password.
func (h *Handlers) DeleteWallet(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	if err := h.wallet.Delete(req.Password); err != nil {
		writeError(c, err)
		return
	}
	h.hub.Broadcast("wallet_deleted", nil)
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// --- Dapp bridge ---

type dappRequest struct {
	Origin       string   `json:"origin" binding:"required"`
	Capabilities []string `json:"capabilities" binding:"required"`
}

// RequestCapabilities opens an approval negotiation for a dapp origin.
// Blocks until the user decides or the approval window expires.
func (h *Handlers) RequestCapabilities(c *gin.Context) {
	var req dappRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}

	caps, err := permission.ParseCapabilities(req.Capabilities)
	if err != nil {
		writeError(c, err)
		return
	}

	granted, err := h.broker.RequestCapabilities(c.Request.Context(), req.Origin, caps)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"origin": req.Origin, "capabilities": granted})
}

type resolveRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Approved  bool   `json:"approved"`
}

// ResolveApproval delivers the user's decision over REST; the shell
// normally answers over the WebSocket channel instead.
func (h *Handlers) ResolveApproval(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}
	h.broker.Resolve(req.RequestID, req.Approved)
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// ListConnections lists every granted origin.
func (h *Handlers) ListConnections(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"connections": h.broker.Connections()})
}

// Disconnect removes all grants for one origin.
func (h *Handlers) Disconnect(c *gin.Context) {
	origin := c.Query("origin")
	if origin == "" {
		writeError(c, errs.Validation("origin query parameter is required"))
		return
	}
	if err := h.broker.Disconnect(origin); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"origin": origin, "disconnected": true})
}

// RevokeCapability removes one capability from an origin's grant.
func (h *Handlers) RevokeCapability(c *gin.Context) {
	origin := c.Query("origin")
	capability := permission.Capability(c.Query("capability"))
	if origin == "" || !capability.Valid() {
		writeError(c, errs.Validation("origin and a valid capability are required"))
		return
	}
	if err := h.broker.RevokeCapability(origin, capability); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"origin": origin, "revoked": string(capability)})
}

type dappSignRequest struct {
	Origin  string `json:"origin" binding:"required"`
	Message string `json:"message" binding:"required"`
}

// DappSign signs a message on behalf of a connected origin.
func (h *Handlers) DappSign(c *gin.Context) {
	var req dappSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}
	if err := h.broker.RequireCapability(req.Origin, permission.CapSign); err != nil {
		writeError(c, err)
		return
	}

	signature, err := h.wallet.Sign(c.Request.Context(), req.Message)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signature": signature})
}

type dappOriginRequest struct {
	Origin string `json:"origin" binding:"required"`
}

// DappViewKey returns the view key to a connected origin.
func (h *Handlers) DappViewKey(c *gin.Context) {
	var req dappOriginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}
	if err := h.broker.RequireCapability(req.Origin, permission.CapViewKey); err != nil {
		writeError(c, err)
		return
	}

	viewKey, err := h.wallet.ExportViewKey()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view_key": viewKey})
}

// --- Transactions ---

type sendRequest struct {
	To     string `json:"to" binding:"required"`
	Amount string `json:"amount" binding:"required"`
	Fee    string `json:"fee" binding:"required"`
	Origin string `json:"origin,omitempty"` // set for dapp-initiated sends
}

// SendTransaction broadcasts a transfer and records it in the ledger.
func (h *Handlers) SendTransaction(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}
	if req.Origin != "" {
		if err := h.broker.RequireCapability(req.Origin, permission.CapTransaction); err != nil {
			writeError(c, err)
			return
		}
	}

	from, err := h.wallet.Address()
	if err != nil {
		writeError(c, err)
		return
	}

	chainTxID, err := h.wallet.Send(c.Request.Context(), req.To, req.Amount, req.Fee)
	if err != nil {
		writeError(c, err)
		return
	}

	record, err := h.ledger.RecordSubmission(ledger.Submission{
		ChainTxID: chainTxID,
		Kind:      ledger.KindSend,
		Amount:    req.Amount,
		Fee:       req.Fee,
		From:      from,
		To:        req.To,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Broadcast("transaction_submitted", record)
	c.JSON(http.StatusCreated, record)
}

type executeRequest struct {
	ProgramID    string   `json:"program_id" binding:"required"`
	FunctionName string   `json:"function_name" binding:"required"`
	Inputs       []string `json:"inputs,omitempty"`
	Fee          string   `json:"fee" binding:"required"`
	Origin       string   `json:"origin,omitempty"`
}

// ExecuteProgram broadcasts a program execution and records it.
func (h *Handlers) ExecuteProgram(c *gin.Context) {
	var req executeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation("invalid request: %v", err))
		return
	}
	if req.Origin != "" {
		if err := h.broker.RequireCapability(req.Origin, permission.CapTransaction); err != nil {
			writeError(c, err)
			return
		}
	}

	from, err := h.wallet.Address()
	if err != nil {
		writeError(c, err)
		return
	}

	chainTxID, err := h.wallet.Execute(c.Request.Context(), gateway.ExecutionRequest{
		ProgramID:    req.ProgramID,
		FunctionName: req.FunctionName,
		Inputs:       req.Inputs,
		Fee:          req.Fee,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	record, err := h.ledger.RecordSubmission(ledger.Submission{
		ChainTxID:    chainTxID,
		Kind:         ledger.KindExecute,
		Fee:          req.Fee,
		From:         from,
		ProgramID:    req.ProgramID,
		FunctionName: req.FunctionName,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	h.hub.Broadcast("transaction_submitted", record)
	c.JSON(http.StatusCreated, record)
}

// ListTransactions returns the log, most recent first.
func (h *Handlers) ListTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"transactions": h.ledger.List()})
}

// TransactionStats summarizes the log.
func (h *Handlers) TransactionStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.ledger.Stats())
}

// DeleteTransaction removes one record.
func (h *Handlers) DeleteTransaction(c *gin.Context) {
	if err := h.ledger.Delete(id.TransactionID(c.Param("id"))); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ClearTransactions wipes the whole log.
func (h *Handlers) ClearTransactions(c *gin.Context) {
	if err := h.ledger.Clear(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}
