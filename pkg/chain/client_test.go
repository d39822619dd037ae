// SPDX-License-Identifier: LGPL-3.0-or-later

package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/internal/logger"
)

func rpcServer(t *testing.T, handler func(method string, params json.RawMessage) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := rpcResponse{ID: req.ID, Error: rpcErr}
		if result != nil {
			b, _ := json.Marshal(result)
			resp.Result = b
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(t *testing.T, srv *httptest.Server) *Client {
	return New(Config{RPCURL: srv.URL, RPCUser: "u", RPCPass: "p", RequestTimeout: time.Second}, logger.NewDefaultLogger())
}

func TestGetIdentity_CachesAndDedupes(t *testing.T) {
	var calls int32
	srv := rpcServer(t, func(method string, params json.RawMessage) (interface{}, *rpcError) {
		atomic.AddInt32(&calls, 1)
		require.Equal(t, "getidentity", method)
		return IdentityResponse{Identity: Identity{IdentityAddress: "iABC123", Name: "alice@"}}, nil
	})
	defer srv.Close()

	c := testClient(t, srv)

	ir, err := c.GetIdentity(context.Background(), "alice@")
	require.NoError(t, err)
	require.Equal(t, "iABC123", ir.Identity.IdentityAddress)

	ir2, err := c.GetIdentity(context.Background(), "alice@")
	require.NoError(t, err)
	require.Equal(t, ir.Identity.IdentityAddress, ir2.Identity.IdentityAddress)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls), "second lookup must hit the cache, not the RPC")

	// resolved address is also cached
	_, err = c.GetIdentity(context.Background(), "iABC123")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestVerifyMessage(t *testing.T) {
	srv := rpcServer(t, func(method string, params json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "verifymessage", method)
		return true, nil
	})
	defer srv.Close()

	c := testClient(t, srv)
	ok, err := c.VerifyMessage(context.Background(), "iABC", "hello", "sig==")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestGetTransaction_Confirmations(t *testing.T) {
	srv := rpcServer(t, func(method string, params json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "getrawtransaction", method)
		return Transaction{Confirmations: 6, Vout: []TxOut{{Value: 10, ScriptPubKey: TxOutScript{Addresses: []string{"iSeller"}}}}}, nil
	})
	defer srv.Close()

	c := testClient(t, srv)
	tx, err := c.GetTransaction(context.Background(), "txid1")
	require.NoError(t, err)
	require.EqualValues(t, 6, tx.Confirmations)
	require.Equal(t, "txid1", tx.TxID)
}

func TestCall_RetriesOnTransportError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			// simulate connection reset by closing without a response
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
				return
			}
		}
		json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage(`{"blocks":100}`)})
	}))
	defer srv.Close()

	c := New(Config{RPCURL: srv.URL, RPCUser: "u", RPCPass: "p", RequestTimeout: time.Second, RetryDelay: time.Millisecond, MaxRetries: 3}, logger.NewDefaultLogger())
	info, err := c.GetBlockchainInfo(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 100, info.Blocks)
	require.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestCall_NodeErrorNotRetried(t *testing.T) {
	var attempts int32
	srv := rpcServer(t, func(method string, params json.RawMessage) (interface{}, *rpcError) {
		atomic.AddInt32(&attempts, 1)
		return nil, &rpcError{Code: -5, Message: "identity not found"}
	})
	defer srv.Close()

	c := testClient(t, srv)
	_, err := c.GetIdentity(context.Background(), "ghost@")
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}
