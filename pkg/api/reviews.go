// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// envelopeFromReview reconstructs the canonical envelope a review's
// signature was computed over. The client signs
// {verusId, timestamp, nonce, action:"review", data}, same as every other
// generic signed action (spec.md §4.1 step 3) — only the agent identity is
// carried via `data` rather than `verusId`, since the signer is the buyer.
func envelopeFromReview(req submitReviewRequest) sigverify.Envelope {
	var rating interface{}
	if req.Rating != nil {
		rating = *req.Rating
	}
	return sigverify.Envelope{
		VerusID:   req.Buyer,
		Timestamp: req.Timestamp,
		Nonce:     req.Nonce,
		Action:    "review",
		Data: map[string]interface{}{
			"agentId": req.AgentID,
			"jobHash": req.JobHash,
			"message": req.Message,
			"rating":  rating,
		},
		Signature: req.Signature,
	}
}

const inboxItemTTL = 7 * 24 * time.Hour

type submitReviewRequest struct {
	Buyer     string `json:"buyer"`
	AgentID   string `json:"agentId"`
	JobHash   string `json:"jobHash"`
	Message   string `json:"message"`
	Rating    *int   `json:"rating"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// handleSubmitReview verifies the buyer's signature over the review and
// places it in the agent's inbox (spec.md §3 InboxItem type "review")
// pending the agent publishing it on-chain, at which point the indexer
// (C5) picks it up as the authoritative storage.Review record.
func (s *Server) handleSubmitReview(w http.ResponseWriter, r *http.Request) {
	var req submitReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if req.Rating != nil && (*req.Rating < 1 || *req.Rating > 5) {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "rating must be between 1 and 5"))
		return
	}
	env := envelopeFromReview(req)
	res, err := s.verifyEnvelope(r.Context(), env, "review")
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}

	item := &storage.InboxItem{
		ID:        uuid.NewString(),
		Recipient: req.AgentID,
		Sender:    res.IdentityAddress,
		Type:      storage.InboxReview,
		Rating:    req.Rating,
		Message:   req.Message,
		JobHash:   req.JobHash,
		Signature: req.Signature,
		Status:    storage.InboxPending,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(inboxItemTTL),
	}
	if err := s.deps.Store.CreateInboxItem(r.Context(), item); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "create inbox item", err))
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleListReviewsForAgent(w http.ResponseWriter, r *http.Request) {
	reviews, err := s.deps.Store.ListForAgent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list reviews", err))
		return
	}
	writeJSON(w, http.StatusOK, reviews)
}
