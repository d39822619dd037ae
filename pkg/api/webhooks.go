// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// handleCreateWebhook registers a subscription and returns the plaintext
// secret exactly once; only its AEAD-sealed form is ever persisted
// (spec.md §3 WebhookSubscription "encrypted shared secret").
func (s *Server) handleCreateWebhook(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if identity != agentID {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this agent's identity"))
		return
	}
	var req createWebhookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if req.URL == "" || len(req.Events) == 0 {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "url and events are required"))
		return
	}

	secret, display, err := notify.GenerateSecret()
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "generate webhook secret", err))
		return
	}
	sealed, err := notify.SealSecret(s.deps.WebhookEncryptionKey, secret)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "seal webhook secret", err))
		return
	}

	sub := &storage.WebhookSubscription{
		ID:              uuid.NewString(),
		AgentID:         agentID,
		URL:             req.URL,
		Events:          req.Events,
		EncryptedSecret: sealed,
		Active:          true,
		CreatedAt:       time.Now(),
	}
	if err := s.deps.Store.CreateSubscription(r.Context(), sub); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "create subscription", err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"subscription": sub,
		"secret":       display,
	})
}

func (s *Server) handleListWebhooks(w http.ResponseWriter, r *http.Request) {
	subs, err := s.deps.Store.ListSubscriptions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list subscriptions", err))
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) handleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sub, err := s.deps.Store.GetSubscription(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "subscription not found"))
		return
	}
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if identity != sub.AgentID {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this subscription's owner"))
		return
	}
	if err := s.deps.Store.DeleteSubscription(r.Context(), id); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "delete subscription", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
