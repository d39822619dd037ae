// SPDX-License-Identifier: LGPL-3.0-or-later

package endpointverify

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/internal/logger"
)

// pollInterval is how often the background scheduler checks for pending
// verifications and endpoints due for re-verification.
const pollInterval = 15 * time.Second

// Run polls the store for verifications whose NextAttempt has arrived and
// drives them through phase B, plus endpoints due for a fresh phase-A
// challenge. It blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *Worker) tick(ctx context.Context) {
	now := time.Now()

	pending, err := w.store.ListPendingVerifications(ctx, now)
	if err != nil {
		if w.log != nil {
			w.log.Error("list pending verifications failed", logger.Error(err))
		}
		return
	}
	for _, v := range pending {
		ep, err := w.store.GetEndpoint(ctx, v.EndpointID)
		if err != nil {
			continue
		}
		if err := w.Verify(ctx, v, ep); err != nil && w.log != nil {
			w.log.Error("endpoint verify attempt errored", logger.String("endpoint", ep.ID), logger.Error(err))
		}
	}

	due, err := w.store.ListEndpointsDueForVerification(ctx, now)
	if err != nil {
		if w.log != nil {
			w.log.Error("list endpoints due for verification failed", logger.Error(err))
		}
		return
	}
	for _, ep := range due {
		if _, err := w.Challenge(ctx, ep, ep.AgentID); err != nil && w.log != nil {
			w.log.Error("endpoint challenge failed", logger.String("endpoint", ep.ID), logger.Error(err))
		}
	}
}
