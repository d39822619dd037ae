// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/verus-agent-platform/vap/internal/apperr"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	limit, offset := pagination(r)
	items, err := s.deps.Notify.List(r.Context(), identity, limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list notifications", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleAckNotification(w http.ResponseWriter, r *http.Request) {
	if _, err := s.identityFromCookie(r); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if err := s.deps.Notify.Ack(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "ack notification", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
