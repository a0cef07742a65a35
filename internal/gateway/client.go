package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/logging"
	"github.com/lumenbrowser/lumen/backend/internal/infrastructure/resilience"
	"github.com/lumenbrowser/lumen/backend/internal/shared/errs"
)

// Client talks to the blockchain node over its HTTP API with retries,
// rate limiting, and a circuit breaker. It implements Gateway.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	logger  *logging.Logger
}

var _ Gateway = (*Client)(nil)

// NewClient creates a node client for the given endpoint.
func NewClient(endpoint string, logger *logging.Logger) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 15 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(30 * time.Second).
		SetHeader("User-Agent", "LumenWallet/1.0").
		SetTransport(retryClient.HTTPClient.Transport)

	breaker := resilience.New("node", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 8
		},
	})

	return &Client{
		resty:   restyClient,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
		breaker: breaker,
		logger:  logger.Named("gateway"),
	}
}

// GenerateKeyMaterial asks the node for a fresh account.
func (c *Client) GenerateKeyMaterial(ctx context.Context) (*KeyMaterial, error) {
	var out KeyMaterial
	if err := c.post(ctx, "/account/generate", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportKeyMaterial derives address and view key from a private key.
func (c *Client) ImportKeyMaterial(ctx context.Context, privateKey string) (*ImportedKey, error) {
	var out ImportedKey
	body := map[string]string{"private_key": privateKey}
	if err := c.post(ctx, "/account/import", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportSeedMaterial derives a full key bundle from a recovery phrase.
func (c *Client) ImportSeedMaterial(ctx context.Context, seedPhrase string) (*KeyMaterial, error) {
	var out KeyMaterial
	body := map[string]string{"seed_phrase": seedPhrase}
	if err := c.post(ctx, "/account/from-seed", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignMessage signs an arbitrary message with the private key.
func (c *Client) SignMessage(ctx context.Context, privateKey, message string) (string, error) {
	var out struct {
		Signature string `json:"signature"`
	}
	body := map[string]string{
		"private_key": privateKey,
		"message":     message,
	}
	if err := c.post(ctx, "/account/sign", body, &out); err != nil {
		return "", err
	}
	return out.Signature, nil
}

// SubmitTransfer broadcasts a transfer.
func (c *Client) SubmitTransfer(ctx context.Context, privateKey, to, amount, fee string) (string, error) {
	var out struct {
		TxID string `json:"tx_id"`
	}
	body := map[string]string{
		"private_key": privateKey,
		"to":          to,
		"amount":      amount,
		"fee":         fee,
	}
	if err := c.post(ctx, "/transaction/transfer", body, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// SubmitProgramExecution broadcasts a program execution.
func (c *Client) SubmitProgramExecution(ctx context.Context, privateKey string, req ExecutionRequest) (string, error) {
	var out struct {
		TxID string `json:"tx_id"`
	}
	body := map[string]interface{}{
		"private_key":   privateKey,
		"program_id":    req.ProgramID,
		"function_name": req.FunctionName,
		"inputs":        req.Inputs,
		"fee":           req.Fee,
	}
	if err := c.post(ctx, "/transaction/execute", body, &out); err != nil {
		return "", err
	}
	return out.TxID, nil
}

// GetTransactionStatus queries the node for a transaction's state.
func (c *Client) GetTransactionStatus(ctx context.Context, txID string) (*TransactionStatus, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var out TransactionStatus
	resp, err := c.execute(func() (*resty.Response, error) {
		return req.SetResult(&out).Get("/transaction/" + txID)
	})
	if err != nil {
		return nil, errs.Network(err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return &TransactionStatus{Found: false}, nil
	}
	if resp.IsError() {
		return nil, errs.Network(fmt.Errorf("node returned %s", resp.Status()))
	}

	out.Found = true
	return &out, nil
}

// GetBalance queries the balances of an address.
func (c *Client) GetBalance(ctx context.Context, address string) (*Balance, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}

	var out Balance
	resp, err := c.execute(func() (*resty.Response, error) {
		return req.SetResult(&out).Get("/account/balance/" + address)
	})
	if err != nil {
		return nil, errs.Network(err)
	}
	if resp.IsError() {
		return nil, errs.Network(fmt.Errorf("node returned %s", resp.Status()))
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	req, err := c.request(ctx)
	if err != nil {
		return err
	}
	if body != nil {
		req.SetBody(body)
	}

	var nodeErr struct {
		Error string `json:"error"`
	}
	resp, err := c.execute(func() (*resty.Response, error) {
		return req.SetResult(result).SetError(&nodeErr).Post(path)
	})
	if err != nil {
		return errs.Network(err)
	}

	if resp.IsError() {
		// 4xx carries a node-side rejection (bad input, insufficient
		// balance); surface the node's reason to the caller.
		if resp.StatusCode() >= 400 && resp.StatusCode() < 500 && nodeErr.Error != "" {
			return errs.Validation("node rejected request: %s", nodeErr.Error)
		}
		return errs.Network(fmt.Errorf("node returned %s", resp.Status()))
	}
	return nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if c.breaker.State() == resilience.StateOpen {
		return nil, errs.Network(resilience.ErrCircuitOpen)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.Network(fmt.Errorf("rate limit: %w", err))
	}
	// Nodes are not consistent about response content types; the API is
	// JSON regardless.
	return c.resty.R().SetContext(ctx).ForceContentType("application/json"), nil
}

func (c *Client) execute(fn func() (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn()
		if err != nil {
			return nil, err
		}
		// Server-side failures count against the breaker.
		if resp.StatusCode() >= 500 {
			return resp, fmt.Errorf("node returned %s", resp.Status())
		}
		return resp, nil
	})
	if err == resilience.ErrCircuitOpen {
		c.logger.Warn("node circuit breaker open, failing fast")
		return nil, err
	}
	if err != nil {
		if result != nil {
			return result.(*resty.Response), err
		}
		return nil, err
	}
	return result.(*resty.Response), nil
}
