// SPDX-License-Identifier: LGPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/pkg/jobs"
	"github.com/verus-agent-platform/vap/pkg/notify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

type createJobRequest struct {
	Seller          string                `json:"seller"`
	ServiceID       string                `json:"serviceId"`
	Description     string                `json:"description"`
	Amount          float64               `json:"amount"`
	Currency        string                `json:"currency"`
	Deadline        *time.Time            `json:"deadline"`
	PaymentTerms    storage.PaymentTerms  `json:"paymentTerms"`
	SafechatEnabled bool                  `json:"safechatEnabled"`
	DataTerms       storage.JobDataTerms  `json:"dataTerms"`
	Timestamp       int64                 `json:"timestamp"`
	Nonce           string                `json:"nonce"`
	Signature       string                `json:"signature"`
	Buyer           string                `json:"buyer"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.CreateJob(r.Context(), jobs.CreateRequest{
		Buyer:           req.Buyer,
		Seller:          req.Seller,
		ServiceID:       req.ServiceID,
		Description:     req.Description,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Deadline:        req.Deadline,
		PaymentTerms:    req.PaymentTerms,
		SafechatEnabled: req.SafechatEnabled,
		DataTerms:       req.DataTerms,
		Timestamp:       req.Timestamp,
		Nonce:           req.Nonce,
		Signature:       req.Signature,
	})
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobRequested, job.Buyer,
			"New job request", "A buyer requested a new job"))
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Store.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "job not found"))
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	identity := r.URL.Query().Get("identity")
	if identity == "" {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeValidation, "identity query parameter is required"))
		return
	}
	limit, offset := pagination(r)
	jobList, err := s.deps.Store.ListJobsForParticipant(r.Context(), identity, limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list jobs", err))
		return
	}
	writeJSON(w, http.StatusOK, jobList)
}

type signedActionRequest struct {
	By        string `json:"by"`
	Timestamp int64  `json:"timestamp"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
	Reason    string `json:"reason,omitempty"`
	Txid      string `json:"txid,omitempty"`
	DeliveryHash    string `json:"deliveryHash,omitempty"`
	DeliveryMessage string `json:"deliveryMessage,omitempty"`
}

func (s *Server) handleAcceptJob(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.Accept(r.Context(), r.PathValue("id"), req.By, req.Timestamp, req.Nonce, req.Signature)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobAccepted, req.By,
			"Job accepted", "The seller accepted your job"))
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.RecordPayment(r.Context(), r.PathValue("id"), req.By, req.Txid)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleRecordPlatformFee(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.RecordPlatformFee(r.Context(), r.PathValue("id"), req.By, req.Txid)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDeliverJob(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.Deliver(r.Context(), r.PathValue("id"), req.By, req.DeliveryHash, req.DeliveryMessage, req.Timestamp, req.Nonce, req.Signature)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobDelivered, req.By,
			"Job delivered", "The seller delivered your job"))
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCompleteJob(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.Complete(r.Context(), r.PathValue("id"), req.By, req.Timestamp, req.Nonce, req.Signature)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobCompleted, req.By,
			"Job completed", "The buyer confirmed completion"))
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.Cancel(r.Context(), r.PathValue("id"), req.By)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobCancelled, req.By,
			"Job cancelled", "The buyer cancelled this job"))
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleDisputeJob(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Jobs.Dispute(r.Context(), r.PathValue("id"), req.By, req.Reason, req.Timestamp, req.Nonce, req.Signature)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	if s.deps.Notify != nil {
		_ = s.deps.Notify.Emit(r.Context(), jobEventEmission(job, notify.EventJobDisputed, req.By,
			"Job disputed", "A dispute was raised on this job"))
	}
	writeJSON(w, http.StatusOK, job)
}

// handleAcceptDataPolicy verifies a generic signed envelope (action
// "data-policy") from the job's seller acknowledging the buyer-posted
// JobDataTerms, per spec.md §6's envelope action list.
func (s *Server) handleAcceptDataPolicy(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	env, err := decodeEnvelope(r)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	res, err := s.verifyEnvelope(r.Context(), env, "data-policy")
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	job, err := s.deps.Store.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeNotFound, "job not found"))
		return
	}
	if res.IdentityAddress != job.Seller {
		writeError(w, s.deps.Log, apperr.New(apperr.CodeForbidden, "not this job's seller"))
		return
	}
	if err := s.deps.Store.AcceptDataTerms(r.Context(), jobID); err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "accept data terms", err))
		return
	}
	terms, err := s.deps.Store.GetDataTerms(r.Context(), jobID)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "get data terms", err))
		return
	}
	writeJSON(w, http.StatusOK, terms)
}

func (s *Server) handleSignAttestation(w http.ResponseWriter, r *http.Request) {
	var req signedActionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	att, err := s.deps.Jobs.SignAttestation(r.Context(), r.PathValue("id"), req.By, req.Timestamp, req.Nonce, req.Signature)
	if err != nil {
		writeError(w, s.deps.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, att)
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	msgs, err := s.deps.Store.ListMessages(r.Context(), r.PathValue("id"), limit, offset)
	if err != nil {
		writeError(w, s.deps.Log, apperr.Wrap(apperr.CodeInternal, "list messages", err))
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
