// SPDX-License-Identifier: LGPL-3.0-or-later

package endpointverify

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

func TestValidateOrigin_RejectsNonHTTP(t *testing.T) {
	err := validateOrigin("ftp://example.com")
	require.Error(t, err)
}

func TestIsBlockedIP_RejectsPrivateRanges(t *testing.T) {
	cases := map[string]bool{
		"10.0.0.5":       true,
		"169.254.169.254": true,
		"127.0.0.1":      true,
		"8.8.8.8":        false,
	}
	for ip, want := range cases {
		require.Equal(t, want, isBlockedIP(mustParseIP(t, ip)), ip)
	}
}

func TestChallengeThenVerify_Success(t *testing.T) {
	var issuedToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var payload challengePayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			issuedToken = payload.Token
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{Token: issuedToken, VerusID: "alice@"})
	}))
	defer srv.Close()

	store := memory.NewStore()
	w := New(store, Config{AllowPrivate: true, Timeout: 2 * time.Second}, nil)
	ctx := context.Background()

	ep := &storage.Endpoint{ID: uuid.NewString(), AgentID: "alice@", URL: srv.URL}
	require.NoError(t, store.UpsertEndpoint(ctx, ep))

	v, err := w.Challenge(ctx, ep, "alice@")
	require.NoError(t, err)
	require.Equal(t, storage.VerificationPending, v.Status)

	require.NoError(t, w.Verify(ctx, v, ep))
	require.Equal(t, storage.VerificationVerified, v.Status)

	got, err := store.GetEndpoint(ctx, ep.ID)
	require.NoError(t, err)
	require.True(t, got.Verified)
}

func TestVerify_TokenMismatchFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		_ = json.NewEncoder(w).Encode(verifyResponse{Token: "wrong-token", VerusID: "alice@"})
	}))
	defer srv.Close()

	store := memory.NewStore()
	w := New(store, Config{AllowPrivate: true, Timeout: 2 * time.Second}, nil)
	ctx := context.Background()

	ep := &storage.Endpoint{ID: uuid.NewString(), AgentID: "alice@", URL: srv.URL}
	require.NoError(t, store.UpsertEndpoint(ctx, ep))
	v, err := w.Challenge(ctx, ep, "alice@")
	require.NoError(t, err)

	require.NoError(t, w.Verify(ctx, v, ep))
	require.Equal(t, storage.VerificationPending, v.Status)
	require.Equal(t, 1, v.RetryCount)
}

func TestFail_MarksFailedAfterThreeRetries(t *testing.T) {
	store := memory.NewStore()
	w := New(store, Config{AllowPrivate: true}, nil)
	ctx := context.Background()
	ep := &storage.Endpoint{ID: "ep1", AgentID: "alice@", URL: "http://example.com"}
	v := &storage.EndpointVerification{ID: "v1", EndpointID: "ep1", Challenge: "t"}

	for i := 0; i < 3; i++ {
		require.NoError(t, w.fail(ctx, v, ep))
	}
	require.Equal(t, storage.VerificationFailed, v.Status)
}

func mustParseIP(t *testing.T, s string) net.IP {
	t.Helper()
	ip := net.ParseIP(s)
	require.NotNil(t, ip)
	return ip
}
