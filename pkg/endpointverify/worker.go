// SPDX-License-Identifier: LGPL-3.0-or-later

package endpointverify

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

const (
	challengeDelay  = 5 * time.Minute
	verifiedTTL     = 24 * time.Hour
	maxFailures     = 3
	maxMissedReverify = 3

	defaultTimeout = 10 * time.Second
)

var backoffSchedule = []time.Duration{60 * time.Second, 300 * time.Second, 1800 * time.Second}

// Config configures a Worker.
type Config struct {
	Timeout      time.Duration
	AllowPrivate bool // test-only; never set true in production
}

// Worker runs the two-phase endpoint challenge/response protocol
// (spec.md §4.5) off a schedule, never from a request handler.
type Worker struct {
	store  storage.AgentStore
	client *http.Client
	log    logger.Logger
}

// New builds a Worker.
func New(store storage.AgentStore, cfg Config, log logger.Logger) *Worker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Worker{store: store, client: newSafeClient(timeout, cfg.AllowPrivate), log: log}
}

type challengePayload struct {
	Action    string `json:"action"`
	Token     string `json:"token"`
	VerusID   string `json:"verusId"`
	Timestamp int64  `json:"timestamp"`
	ExpiresAt int64  `json:"expiresAt"`
}

type verifyResponse struct {
	Token   string `json:"token"`
	VerusID string `json:"verusId"`
}

// Challenge sends phase A: the endpoint is notified of a fresh challenge
// token. A pending EndpointVerification is recorded; phase B is not
// attempted until challengeDelay has elapsed.
func (w *Worker) Challenge(ctx context.Context, ep *storage.Endpoint, verusID string) (*storage.EndpointVerification, error) {
	if err := validateOrigin(ep.URL); err != nil {
		return nil, err
	}

	token := newToken()
	now := time.Now()
	payload := challengePayload{
		Action:    "challenge",
		Token:     token,
		VerusID:   verusID,
		Timestamp: now.Unix(),
		ExpiresAt: now.Add(challengeDelay * 6).Unix(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal challenge: %w", err)
	}

	target := ep.URL + "/.well-known/verus-agent"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build challenge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "challenge delivery failed", err)
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxReadBytes)); err != nil {
		return nil, fmt.Errorf("drain challenge response: %w", err)
	}

	v := &storage.EndpointVerification{
		ID:          uuid.NewString(),
		EndpointID:  ep.ID,
		Challenge:   token,
		Status:      storage.VerificationPending,
		RetryCount:  0,
		NextAttempt: now.Add(challengeDelay),
		CreatedAt:   now,
	}
	if err := w.store.CreateVerification(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Verify runs phase B for a pending verification whose NextAttempt has
// arrived: GET the endpoint and confirm the returned token matches.
func (w *Worker) Verify(ctx context.Context, v *storage.EndpointVerification, ep *storage.Endpoint) error {
	if err := validateOrigin(ep.URL); err != nil {
		return w.fail(ctx, v, ep)
	}

	target := ep.URL + "/.well-known/verus-agent"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build verify request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return w.fail(ctx, v, ep)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return w.fail(ctx, v, ep)
	}

	var vr verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReadBytes)).Decode(&vr); err != nil {
		return w.fail(ctx, v, ep)
	}

	if vr.Token != v.Challenge {
		return w.fail(ctx, v, ep)
	}

	now := time.Now()
	v.Status = storage.VerificationVerified
	if err := w.store.UpdateVerification(ctx, v); err != nil {
		return err
	}
	return w.store.MarkEndpointVerified(ctx, ep.ID, now.Add(verifiedTTL))
}

func (w *Worker) fail(ctx context.Context, v *storage.EndpointVerification, ep *storage.Endpoint) error {
	v.RetryCount++
	if v.RetryCount >= maxFailures {
		v.Status = storage.VerificationFailed
	} else {
		delay := backoffSchedule[len(backoffSchedule)-1]
		if v.RetryCount-1 < len(backoffSchedule) {
			delay = backoffSchedule[v.RetryCount-1]
		}
		v.NextAttempt = time.Now().Add(delay)
	}
	if w.log != nil {
		w.log.Warn("endpoint verification attempt failed", logger.String("endpoint", ep.ID), logger.Int("retry", v.RetryCount))
	}
	return w.store.UpdateVerification(ctx, v)
}

// MarkStaleIfMissed clears a previously verified endpoint's Verified flag
// once it has missed maxMissedReverify consecutive scheduled
// re-verifications. Only the endpoint row changes; no EndpointVerification
// record is set to VerificationStale.
func (w *Worker) MarkStaleIfMissed(ctx context.Context, ep *storage.Endpoint, missedCount int) error {
	if missedCount < maxMissedReverify {
		return nil
	}
	ep.Verified = false
	return w.store.UpsertEndpoint(ctx, ep)
}

func validateOrigin(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "invalid endpoint URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return apperr.New(apperr.CodeSSRFBlocked, "unsupported URL scheme")
	}
	if u.Hostname() == "" {
		return apperr.New(apperr.CodeValidation, "endpoint URL missing host")
	}
	return nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
