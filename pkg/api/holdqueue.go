// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"context"
	"net/http"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Server) isBuyer(jobID, identity string) bool {
	job, err := s.deps.Store.GetJob(context.Background(), jobID)
	return err == nil && job.Buyer == identity
}

func (s *Server) handleListHoldQueue(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	status := storage.HoldStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = storage.HoldHeld
	}
	entries, err := s.deps.HoldQ.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list hold queue", err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if err := s.deps.HoldQ.Release(r.Context(), r.PathValue("id"), identity, s.isBuyer); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

type rejectHoldRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleRejectHold(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	var req rejectHoldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if err := s.deps.HoldQ.Reject(r.Context(), r.PathValue("id"), identity, req.Reason, s.isBuyer); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}
