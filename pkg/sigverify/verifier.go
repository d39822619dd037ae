// SPDX-License-Identifier: LGPL-3.0-or-later

// Package sigverify implements the signature verifier (spec.md component
// C4): timestamp window, single-use nonce claim, RFC 8785 canonicalization,
// friendly-name resolution, and the chain verifyMessage call. It never
// discloses which check failed (spec.md §7): every failure surfaces as
// either apperr.CodeReplay (nonce already claimed) or
// apperr.CodeInvalidSignature (everything else).
package sigverify

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/jcs"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/internal/metrics"
	"github.com/verus-agent-platform/vap/pkg/chain"
	"github.com/verus-agent-platform/vap/pkg/nonce"
)

// Envelope is the signed-request wire shape (spec.md §6).
type Envelope struct {
	VerusID   string                 `json:"verusId"`
	Timestamp int64                  `json:"timestamp"`
	Nonce     string                 `json:"nonce"`
	Action    string                 `json:"action"`
	Data      map[string]interface{} `json:"data"`
	Signature string                 `json:"signature"`
}

// ChainVerifier is the subset of chain.Client the verifier depends on,
// narrowed for testability.
type ChainVerifier interface {
	GetIdentity(ctx context.Context, verusID string) (*chain.IdentityResponse, error)
	VerifyMessage(ctx context.Context, identityAddress, messageText, signatureBase64 string) (bool, error)
}

// Verifier implements spec.md §4.1.
type Verifier struct {
	chain      ChainVerifier
	nonces     *nonce.Store
	clockSkew  time.Duration
	log        logger.Logger
}

// New builds a Verifier. clockSkew is the maximum allowed |now-timestamp|
// (300s per spec.md §4.1 step 1).
func New(chainClient ChainVerifier, nonces *nonce.Store, clockSkew time.Duration, log logger.Logger) *Verifier {
	if clockSkew <= 0 {
		clockSkew = 300 * time.Second
	}
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Verifier{chain: chainClient, nonces: nonces, clockSkew: clockSkew, log: log}
}

// Result carries the resolved identity address of a successfully verified
// envelope.
type Result struct {
	IdentityAddress string
}

// Verify runs the full §4.1 pipeline. messageOverride, when non-nil,
// replaces the JCS-canonicalized envelope object as the bytes checked
// against the signature — this is how job-lifecycle template verification
// (§4.1 "Per-action verification") reuses the same timestamp/nonce/identity
// machinery while signing a fixed human-readable template instead of
// canonical JSON.
func (v *Verifier) Verify(ctx context.Context, env Envelope, messageOverride []byte) (*Result, error) {
	now := time.Now()
	action := env.Action
	start := time.Now()

	record := func(outcome string) {
		metrics.VerifyDuration.WithLabelValues(action, outcome).Observe(time.Since(start).Seconds())
	}

	ts := time.Unix(env.Timestamp, 0)
	skew := now.Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > v.clockSkew {
		record("expired")
		return nil, apperr.New(apperr.CodeInvalidSignature, "signature verification failed")
	}

	claimed, err := v.nonces.Claim(ctx, env.Nonce)
	if err != nil {
		record("nonce-store-error")
		return nil, apperr.Wrap(apperr.CodeInvalidSignature, "signature verification failed", err)
	}
	if !claimed {
		record("replay")
		return nil, apperr.New(apperr.CodeReplay, "nonce already used")
	}

	messageBytes := messageOverride
	if messageBytes == nil {
		canon, err := jcs.Canonicalize(map[string]interface{}{
			"verusId":   env.VerusID,
			"timestamp": float64(env.Timestamp),
			"nonce":     env.Nonce,
			"action":    env.Action,
			"data":      env.Data,
		})
		if err != nil {
			record("canonicalize-error")
			return nil, apperr.Wrap(apperr.CodeInvalidSignature, "signature verification failed", err)
		}
		messageBytes = canon
	}

	identity, err := v.chain.GetIdentity(ctx, env.VerusID)
	if err != nil {
		record("identity-unresolvable")
		return nil, apperr.Wrap(apperr.CodeInvalidSignature, "signature verification failed", err)
	}
	identityAddress := identity.Identity.IdentityAddress
	if identityAddress == "" {
		record("identity-unresolvable")
		return nil, apperr.New(apperr.CodeInvalidSignature, "signature verification failed")
	}

	ok, err := v.chain.VerifyMessage(ctx, identityAddress, string(messageBytes), env.Signature)
	if err != nil {
		// Transport/RPC failure: the nonce stays claimed regardless — it is
		// single-use no matter how the request resolves (spec.md §4.1 step 5).
		record("verify-error")
		return nil, apperr.Wrap(apperr.CodeInvalidSignature, "signature verification failed", err)
	}
	if !ok {
		record("bad-signature")
		return nil, apperr.New(apperr.CodeInvalidSignature, "signature verification failed")
	}

	record("ok")
	return &Result{IdentityAddress: identityAddress}, nil
}

// VerifyTemplate is a convenience wrapper for job-lifecycle actions: it
// builds a synthetic Envelope carrying only the fields needed for the
// replay/timestamp/identity checks and verifies signature against the
// exact template bytes.
func (v *Verifier) VerifyTemplate(ctx context.Context, verusID string, timestamp int64, nonceValue, action string, template string, signature string) (*Result, error) {
	env := Envelope{
		VerusID:   verusID,
		Timestamp: timestamp,
		Nonce:     nonceValue,
		Action:    action,
		Signature: signature,
	}
	return v.Verify(ctx, env, []byte(template))
}
