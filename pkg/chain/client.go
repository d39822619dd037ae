// SPDX-License-Identifier: LGPL-3.0-or-later

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
)

// Client is the typed RPC client for the external blockchain node
// (spec.md §6). It speaks the node's JSON-RPC 1.0 dialect over HTTP basic
// auth, retries transient failures, and fronts getIdentity with a
// TTL/LRU cache plus singleflight de-duplication of concurrent lookups
// for the same identity (spec.md §4.1 step 4, §5 "identity cache").
type Client struct {
	rpcURL     string
	user, pass string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration

	cache  *identityCache
	group  singleflight.Group
	log    logger.Logger
}

// Config configures a Client. Zero values take the defaults documented in
// config.ChainConfig.
type Config struct {
	RPCURL         string
	RPCUser        string
	RPCPass        string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	CacheSize      int
	CacheTTL       time.Duration
}

// New builds a Client against cfg.
func New(cfg Config, log logger.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Client{
		rpcURL:     cfg.RPCURL,
		user:       cfg.RPCUser,
		pass:       cfg.RPCPass,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		cache:      newIdentityCache(cfg.CacheSize, cfg.CacheTTL),
		log:        log,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     string          `json:"id"`
}

// ErrRPCUnreachable wraps any transport-level failure talking to the node.
type ErrRPCUnreachable struct {
	Method string
	Cause  error
}

func (e *ErrRPCUnreachable) Error() string {
	return fmt.Sprintf("chain rpc %s unreachable: %v", e.Method, e.Cause)
}
func (e *ErrRPCUnreachable) Unwrap() error { return e.Cause }

// call issues one JSON-RPC request with bounded retries on transport errors.
// Node-level errors (rpcResponse.Error) are not retried; they're the node
// telling us something concrete (e.g. "identity not found").
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ChainRPCDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		metrics.ChainRPCCalls.WithLabelValues(method, outcome).Inc()
	}()

	body, err := json.Marshal(rpcRequest{JSONRPC: "1.0", ID: "vap", Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build rpc request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.user != "" {
			req.SetBasicAuth(c.user, c.pass)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &ErrRPCUnreachable{Method: method, Cause: err}
			c.log.Warn("chain rpc transport error", logger.String("method", method), logger.Int("attempt", attempt), logger.Error(err))
			continue
		}

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
		resp.Body.Close()
		if err != nil {
			lastErr = &ErrRPCUnreachable{Method: method, Cause: err}
			continue
		}

		var rr rpcResponse
		if err := json.Unmarshal(respBody, &rr); err != nil {
			lastErr = fmt.Errorf("decode rpc response for %s: %w", method, err)
			continue
		}
		if rr.Error != nil {
			outcome = "rpc-error"
			return fmt.Errorf("chain rpc %s: %s (code %d)", method, rr.Error.Message, rr.Error.Code)
		}
		if out != nil {
			if err := json.Unmarshal(rr.Result, out); err != nil {
				return fmt.Errorf("decode rpc result for %s: %w", method, err)
			}
		}
		outcome = "ok"
		return nil
	}
	return lastErr
}

// GetIdentity resolves a friendly name or identity address to the node's
// full identity record, using the TTL/LRU cache when fresh.
func (c *Client) GetIdentity(ctx context.Context, verusID string) (*IdentityResponse, error) {
	if cached, ok := c.cache.get(verusID); ok {
		metrics.IdentityCacheHits.WithLabelValues("hit").Inc()
		return cached, nil
	}

	v, err, _ := c.group.Do(verusID, func() (interface{}, error) {
		var ir IdentityResponse
		if err := c.call(ctx, "getidentity", []interface{}{verusID}, &ir); err != nil {
			return nil, err
		}
		return &ir, nil
	})
	if err != nil {
		metrics.IdentityCacheHits.WithLabelValues("miss").Inc()
		return nil, err
	}
	ir := v.(*IdentityResponse)
	c.cache.set(verusID, ir)
	c.cache.set(ir.Identity.IdentityAddress, ir)
	metrics.IdentityCacheHits.WithLabelValues("miss").Inc()
	return ir, nil
}

// InvalidateIdentity drops any cached entry for verusID (used by C7 after a
// registration/update so the next read sees fresh data).
func (c *Client) InvalidateIdentity(verusID string) {
	c.cache.invalidate(verusID)
}

// VerifyMessage asks the node to verify that signatureBase64 is a valid
// signature over messageText by identityAddress.
func (c *Client) VerifyMessage(ctx context.Context, identityAddress, messageText, signatureBase64 string) (bool, error) {
	var ok bool
	if err := c.call(ctx, "verifymessage", []interface{}{identityAddress, signatureBase64, messageText}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// SignData requests the node sign datahash as address. The platform never
// holds private keys; this is used only for the platform's own identity
// (e.g. QR-login consent requests), never on behalf of a user.
func (c *Client) SignData(ctx context.Context, address string, datahash []byte) (string, error) {
	var res SignDataResult
	params := []interface{}{map[string]interface{}{
		"address":  address,
		"datahash": fmt.Sprintf("%x", datahash),
	}}
	if err := c.call(ctx, "signdata", params, &res); err != nil {
		return "", err
	}
	return res.Signature, nil
}

// GetTransaction fetches confirmations and outputs for a txid.
func (c *Client) GetTransaction(ctx context.Context, txid string) (*Transaction, error) {
	var tx Transaction
	if err := c.call(ctx, "getrawtransaction", []interface{}{txid, 1}, &tx); err != nil {
		return nil, err
	}
	tx.TxID = txid
	return &tx, nil
}

// GetBlockchainInfo reports the current tip height, used by the indexer to
// decide how far it can safely read.
func (c *Client) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	var info BlockchainInfo
	if err := c.call(ctx, "getblockchaininfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// CacheLen reports the current identity cache size (diagnostics/tests).
func (c *Client) CacheLen() int { return c.cache.len() }
