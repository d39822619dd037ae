// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
)

// chatTokenTTL bounds a one-shot websocket handshake token's lifetime.
const chatTokenTTL = 5 * time.Minute

// handleIssueChatToken mints a one-shot bearer for the websocket handshake
// (spec.md §4.3 handshake mode b), for callers that can't rely on the
// cookie (e.g. a native agent client with no cookie jar).
func (s *Server) handleIssueChatToken(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "job not found"))
		return
	}
	if identity != job.Buyer && identity != job.Seller {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not a job participant"))
		return
	}
	token, err := s.deps.Chat.IssueToken(r.Context(), identity, jobID, chatTokenTTL)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
