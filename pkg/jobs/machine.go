// SPDX-License-Identifier: LGPL-3.0-or-later

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/sigverify"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// ChainReader is the subset of chain.Client the machine needs to evaluate
// on-chain payments.
type ChainReader interface {
	GetTransaction(ctx context.Context, txid string) (*chain.Transaction, error)
}

// Machine implements the job lifecycle state machine (spec.md §4.2).
type Machine struct {
	store      storage.JobStore
	chain      ChainReader
	verifier   *sigverify.Verifier
	feeAddress string
	baseRate   float64
	maxDiscount float64
	log        logger.Logger
}

// Config configures a Machine.
type Config struct {
	FeeAddress  string
	BaseRate    float64
	MaxDiscount float64
}

// New builds a Machine.
func New(store storage.JobStore, chainReader ChainReader, verifier *sigverify.Verifier, cfg Config, log logger.Logger) *Machine {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = 0.05
	}
	if cfg.MaxDiscount <= 0 {
		cfg.MaxDiscount = 0.25
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Machine{store: store, chain: chainReader, verifier: verifier, feeAddress: cfg.FeeAddress, baseRate: cfg.BaseRate, maxDiscount: cfg.MaxDiscount, log: log}
}

// CreateRequest is the buyer-submitted job creation payload.
type CreateRequest struct {
	Buyer           string
	Seller          string
	ServiceID       string
	Description     string
	Amount          float64
	Currency        string
	Deadline        *time.Time
	PaymentTerms    storage.PaymentTerms
	SafechatEnabled bool
	DataTerms       storage.JobDataTerms

	Timestamp int64
	Nonce     string
	Signature string
}

func deadlineString(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.UTC().Format(time.RFC3339)
}

// CreateJob verifies the buyer's VAP-JOB signature, computes the job hash
// and platform fee, and persists a new requested job. Returns
// apperr.CodeDuplicateJob if the exact same (buyer, seller, description,
// amount, timestamp) tuple was already submitted (spec.md §8 scenario 2).
func (m *Machine) CreateJob(ctx context.Context, req CreateRequest) (*storage.Job, error) {
	fee := PlatformFee(req.Amount, req.DataTerms, m.baseRate, m.maxDiscount)
	tmpl := requestTemplate(req.Seller, req.Description, req.Amount, req.Currency, fee, req.SafechatEnabled, deadlineString(req.Deadline), req.Timestamp)

	res, err := m.verifier.VerifyTemplate(ctx, req.Buyer, req.Timestamp, req.Nonce, "job_request", tmpl, req.Signature)
	if err != nil {
		return nil, err
	}

	jobHash := ComputeHash(req.Buyer, req.Seller, req.Description, req.Amount, req.Timestamp)
	if existing, err := m.store.GetJobByHash(ctx, jobHash); err == nil && existing != nil {
		return nil, apperr.New(apperr.CodeDuplicateJob, "job already requested")
	}

	now := time.Now()
	job := &storage.Job{
		ID:              uuid.NewString(),
		JobHash:         jobHash,
		Buyer:           res.IdentityAddress,
		Seller:          req.Seller,
		ServiceID:       req.ServiceID,
		Description:     req.Description,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Deadline:        req.Deadline,
		PaymentTerms:    req.PaymentTerms,
		SafechatEnabled: req.SafechatEnabled,
		Status:          storage.JobRequested,
		Signatures:      storage.JobSignatures{Request: req.Signature},
		RequestedAt:     now,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "create job", err)
	}

	terms := req.DataTerms
	terms.JobID = job.ID
	if err := m.store.CreateDataTerms(ctx, &terms); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "create data terms", err)
	}

	metrics.JobTransitions.WithLabelValues(string(storage.JobRequested)).Inc()
	return job, nil
}

// mustParticipant returns apperr.CodeForbidden unless identity is the named
// party.
func mustParticipant(identity, expected, verb string) error {
	if identity != expected {
		return apperr.New(apperr.CodeForbidden, fmt.Sprintf("not authorized to %s this job", verb))
	}
	return nil
}

// casOrConflict maps storage.ErrCASConflict to the external STATE_CONFLICT
// code; any other error is wrapped as internal.
func (m *Machine) casOrConflict(err error, from, to storage.JobStatus) error {
	if err == nil {
		return nil
	}
	if err == storage.ErrCASConflict {
		metrics.JobTransitionConflicts.WithLabelValues(string(from), string(to)).Inc()
		return apperr.New(apperr.CodeStateConflict, "job is not in the expected state")
	}
	return apperr.Wrap(apperr.CodeInternal, "job transition", err)
}

// Accept verifies by's VAP-ACCEPT signature and transitions
// requested -> accepted. by is the verusID (friendly name or identity
// address) the caller claims to be signing as; it is resolved and checked
// against job.Seller so a signature that merely verifies under some
// identity can't be passed off as the seller's.
func (m *Machine) Accept(ctx context.Context, jobID, by string, timestamp int64, nonceValue, signature string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}

	tmpl := acceptTemplate(job.JobHash, job.Buyer, job.Amount, job.Currency, timestamp)
	res, err := m.verifier.VerifyTemplate(ctx, by, timestamp, nonceValue, "job_accept", tmpl, signature)
	if err != nil {
		return nil, err
	}
	if err := mustParticipant(res.IdentityAddress, job.Seller, "accept"); err != nil {
		return nil, err
	}

	err = m.store.CASJobStatus(ctx, jobID, storage.JobRequested, storage.JobAccepted, func(j *storage.Job) error {
		j.Signatures.Acceptance = signature
		now := time.Now()
		j.AcceptedAt = &now
		return nil
	})
	if err := m.casOrConflict(err, storage.JobRequested, storage.JobAccepted); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(storage.JobAccepted)).Inc()
	return m.store.GetJob(ctx, jobID)
}

// PaymentEvaluation is the outcome of checking a txid against chain state.
type PaymentEvaluation struct {
	Verified      bool
	Confirmations int64
	Note          string
}

// evaluatePayment implements spec.md §4.2 "Payment verification policy".
func (m *Machine) evaluatePayment(ctx context.Context, txid, payToAddress string, minAmount float64) (PaymentEvaluation, error) {
	tx, err := m.chain.GetTransaction(ctx, txid)
	if err != nil {
		return PaymentEvaluation{}, apperr.Wrap(apperr.CodeTxNotFound, "transaction lookup failed", err)
	}

	eval := PaymentEvaluation{Confirmations: tx.Confirmations}
	switch {
	case tx.Confirmations == 0:
		eval.Note = "transaction has no confirmations yet"
	case tx.Confirmations < 6:
		eval.Note = "transaction has fewer than 6 confirmations"
	}

	paysRecipient := false
	for _, out := range tx.Vout {
		for _, addr := range out.ScriptPubKey.Addresses {
			if addr == payToAddress && out.Value >= minAmount*0.99 {
				paysRecipient = true
			}
		}
	}
	if !paysRecipient {
		if eval.Note == "" {
			eval.Note = "transaction does not pay the expected recipient/amount"
		}
		return eval, nil
	}

	eval.Verified = tx.Confirmations >= 6
	return eval, nil
}

// RecordPayment records the buyer's job-payment txid. If the platform fee
// txid is already recorded and the job is still `accepted`, this call's
// transaction also transitions the job to `in_progress` (spec.md §4.2: "the
// same durable transaction that records the second txid").
func (m *Machine) RecordPayment(ctx context.Context, jobID, by, txid string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}
	if err := mustParticipant(by, job.Buyer, "record payment for"); err != nil {
		return nil, err
	}
	if job.Status != storage.JobAccepted && job.Status != storage.JobInProgress {
		return nil, apperr.New(apperr.CodeInvalidStatus, "job is not awaiting payment")
	}

	payTo := job.Seller
	eval, err := m.evaluatePayment(ctx, txid, payTo, job.Amount)
	if err != nil {
		return nil, err
	}
	metrics.JobPaymentVerifications.WithLabelValues("payment", fmt.Sprintf("%v", eval.Verified)).Inc()

	err = m.store.CASJobStatus(ctx, jobID, job.Status, job.Status, func(j *storage.Job) error {
		j.PaymentTxid = txid
		if eval.Verified {
			j.PaymentVerified = true
		}
		maybeEnterInProgress(j)
		return nil
	})
	if err := m.casOrConflict(err, job.Status, job.Status); err != nil {
		return nil, err
	}
	return m.store.GetJob(ctx, jobID)
}

// RecordPlatformFee mirrors RecordPayment for the platform's own fee
// transaction.
func (m *Machine) RecordPlatformFee(ctx context.Context, jobID, by, txid string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}
	if err := mustParticipant(by, job.Buyer, "record the platform fee for"); err != nil {
		return nil, err
	}
	if job.Status != storage.JobAccepted && job.Status != storage.JobInProgress {
		return nil, apperr.New(apperr.CodeInvalidStatus, "job is not awaiting payment")
	}

	terms, err := m.store.GetDataTerms(ctx, jobID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "load data terms", err)
	}
	expectedFee := PlatformFee(job.Amount, *terms, m.baseRate, m.maxDiscount)

	eval, err := m.evaluatePayment(ctx, txid, m.feeAddress, expectedFee)
	if err != nil {
		return nil, err
	}
	metrics.JobPaymentVerifications.WithLabelValues("platform_fee", fmt.Sprintf("%v", eval.Verified)).Inc()

	err = m.store.CASJobStatus(ctx, jobID, job.Status, job.Status, func(j *storage.Job) error {
		j.PlatformFeeTxid = txid
		if eval.Verified {
			j.PlatformFeeVerified = true
		}
		maybeEnterInProgress(j)
		return nil
	})
	if err := m.casOrConflict(err, job.Status, job.Status); err != nil {
		return nil, err
	}
	return m.store.GetJob(ctx, jobID)
}

// maybeEnterInProgress transitions j from accepted to in_progress once both
// txids are recorded, within the same mutate callback that records the
// second one (spec.md §4.2, invariant in spec.md §8).
func maybeEnterInProgress(j *storage.Job) {
	if j.Status == storage.JobAccepted && j.PaymentTxid != "" && j.PlatformFeeTxid != "" {
		now := time.Now()
		j.Status = storage.JobInProgress
		j.InProgressAt = &now
		metrics.JobTransitions.WithLabelValues(string(storage.JobInProgress)).Inc()
	}
}

// Deliver verifies by's VAP-DELIVER signature and transitions
// in_progress -> delivered.
func (m *Machine) Deliver(ctx context.Context, jobID, by string, deliveryHash, deliveryMessage string, timestamp int64, nonceValue, signature string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}

	tmpl := deliverTemplate(job.JobHash, deliveryHash, timestamp)
	res, err := m.verifier.VerifyTemplate(ctx, by, timestamp, nonceValue, "job_deliver", tmpl, signature)
	if err != nil {
		return nil, err
	}
	if err := mustParticipant(res.IdentityAddress, job.Seller, "deliver"); err != nil {
		return nil, err
	}

	err = m.store.CASJobStatus(ctx, jobID, storage.JobInProgress, storage.JobDelivered, func(j *storage.Job) error {
		j.Signatures.Delivery = signature
		j.DeliveryHash = deliveryHash
		j.DeliveryMessage = deliveryMessage
		now := time.Now()
		j.DeliveredAt = &now
		return nil
	})
	if err := m.casOrConflict(err, storage.JobInProgress, storage.JobDelivered); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(storage.JobDelivered)).Inc()
	return m.store.GetJob(ctx, jobID)
}

// Complete verifies by's VAP-COMPLETE signature and transitions
// delivered -> completed.
func (m *Machine) Complete(ctx context.Context, jobID, by string, timestamp int64, nonceValue, signature string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}

	tmpl := completeTemplate(job.JobHash, timestamp)
	res, err := m.verifier.VerifyTemplate(ctx, by, timestamp, nonceValue, "job_complete", tmpl, signature)
	if err != nil {
		return nil, err
	}
	if err := mustParticipant(res.IdentityAddress, job.Buyer, "complete"); err != nil {
		return nil, err
	}

	err = m.store.CASJobStatus(ctx, jobID, storage.JobDelivered, storage.JobCompleted, func(j *storage.Job) error {
		j.Signatures.Completion = signature
		now := time.Now()
		j.CompletedAt = &now
		return nil
	})
	if err := m.casOrConflict(err, storage.JobDelivered, storage.JobCompleted); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(storage.JobCompleted)).Inc()
	return m.store.GetJob(ctx, jobID)
}

// Cancel verifies the buyer's cancellation; only callable from `requested`,
// and idempotent once cancelled (spec.md §4.2).
func (m *Machine) Cancel(ctx context.Context, jobID, by string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}
	if job.Status == storage.JobCancelled {
		return job, nil
	}
	if err := mustParticipant(by, job.Buyer, "cancel"); err != nil {
		return nil, err
	}
	if job.Status != storage.JobRequested {
		return nil, apperr.New(apperr.CodeInvalidStatus, "job can only be cancelled while requested")
	}

	err = m.store.CASJobStatus(ctx, jobID, storage.JobRequested, storage.JobCancelled, func(j *storage.Job) error {
		now := time.Now()
		j.CancelledAt = &now
		return nil
	})
	if err := m.casOrConflict(err, storage.JobRequested, storage.JobCancelled); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(storage.JobCancelled)).Inc()
	return m.store.GetJob(ctx, jobID)
}

// Dispute verifies by's VAP-DISPUTE signature and may be raised by either
// party from any non-terminal state; it is idempotent once disputed.
func (m *Machine) Dispute(ctx context.Context, jobID, by, reason string, timestamp int64, nonceValue, signature string) (*storage.Job, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}
	if job.Status == storage.JobDisputed {
		return job, nil
	}

	tmpl := disputeTemplate(job.JobHash, reason, timestamp)
	res, err := m.verifier.VerifyTemplate(ctx, by, timestamp, nonceValue, "job_dispute", tmpl, signature)
	if err != nil {
		return nil, err
	}
	if res.IdentityAddress != job.Buyer && res.IdentityAddress != job.Seller {
		return nil, apperr.New(apperr.CodeForbidden, "only a job participant may raise a dispute")
	}
	if job.Status == storage.JobCompleted || job.Status == storage.JobCancelled {
		return nil, apperr.New(apperr.CodeInvalidStatus, "job is already in a terminal state")
	}

	from := job.Status
	err = m.store.CASJobStatus(ctx, jobID, from, storage.JobDisputed, func(j *storage.Job) error {
		now := time.Now()
		j.DisputedAt = &now
		return nil
	})
	if err := m.casOrConflict(err, from, storage.JobDisputed); err != nil {
		return nil, err
	}
	metrics.JobTransitions.WithLabelValues(string(storage.JobDisputed)).Inc()
	return m.store.GetJob(ctx, jobID)
}

// SignAttestation records the seller's deletion attestation; only valid
// once the job is completed, and only the verifying variant is implemented
// (spec.md §9 open question: the non-verifying route is stale).
func (m *Machine) SignAttestation(ctx context.Context, jobID, by string, timestamp int64, nonceValue, signature string) (*storage.DeletionAttestation, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, apperr.New(apperr.CodeNotFound, "job not found")
	}
	if job.Status != storage.JobCompleted {
		return nil, apperr.New(apperr.CodeInvalidStatus, "attestation is only valid after job completion")
	}

	tmpl := deleteTemplate(job.JobHash, timestamp)
	res, err := m.verifier.VerifyTemplate(ctx, by, timestamp, nonceValue, "attestation", tmpl, signature)
	if err != nil {
		return nil, err
	}
	if err := mustParticipant(res.IdentityAddress, job.Seller, "sign a deletion attestation for"); err != nil {
		return nil, err
	}

	att := &storage.DeletionAttestation{
		JobID:             jobID,
		SellerSignature:   signature,
		SignatureVerified: true,
		CreatedAt:         time.Now(),
	}
	if err := m.store.CreateAttestation(ctx, att); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "create attestation", err)
	}
	return att, nil
}
