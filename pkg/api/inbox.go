// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Server) handleListInbox(w http.ResponseWriter, r *http.Request) {
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	limit, offset := pagination(r)
	items, err := s.deps.Store.ListInboxForRecipient(r.Context(), identity, limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list inbox", err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) inboxSetStatus(w http.ResponseWriter, r *http.Request, status storage.InboxStatus) {
	identity, err := s.identityFromCookie(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	id := r.PathValue("id")
	item, err := s.deps.Store.GetInboxItem(r.Context(), id)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "inbox item not found"))
		return
	}
	if item.Recipient != identity {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this item's recipient"))
		return
	}
	if err := s.deps.Store.UpdateStatus(r.Context(), id, status); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "update inbox status", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleInboxAccept(w http.ResponseWriter, r *http.Request) {
	s.inboxSetStatus(w, r, storage.InboxAccepted)
}

func (s *Server) handleInboxReject(w http.ResponseWriter, r *http.Request) {
	s.inboxSetStatus(w, r, storage.InboxRejected)
}
