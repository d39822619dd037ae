// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

func newTestServer(t *testing.T) (*Server, storage.Store) {
	t.Helper()
	store := memory.NewStore()
	s := NewServer(":0", Deps{Store: store})
	return s, store
}

func TestHandleGetAgent_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/agents/unknown-id@", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetAgent_Found(t *testing.T) {
	s, store := newTestServer(t)

	agent := &storage.Agent{
		IdentityAddress: "alice@",
		Name:            "Alice",
		Type:            storage.AgentAutonomous,
		Status:          storage.AgentActive,
		Owner:           "alice@",
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, store.UpsertAgent(t.Context(), agent))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/alice@", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got storage.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, agent.IdentityAddress, got.IdentityAddress)
}

func TestHandleTrust_NoActivity(t *testing.T) {
	s, store := newTestServer(t)

	agent := &storage.Agent{
		IdentityAddress: "bob@",
		Name:            "Bob",
		Type:            storage.AgentAutonomous,
		Status:          storage.AgentActive,
		Owner:           "bob@",
		CreatedAt:       time.Now().Add(-48 * time.Hour),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, store.UpsertAgent(t.Context(), agent))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/bob@/trust", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body, "level")
	require.Contains(t, body, "score")
}

func TestHandleSearchAgents_Empty(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/agents?q=nothing", nil)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var agents []*storage.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Empty(t, agents)
}
