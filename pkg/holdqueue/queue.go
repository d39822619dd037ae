// SPDX-License-Identifier: LGPL-3.0-or-later

package holdqueue

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

const autoReleaseAge = 24 * time.Hour

// ReleaseFunc inserts a released message into the job's message history and
// broadcasts it to the room; supplied by the chat package to avoid an
// import cycle (holdqueue has no notion of rooms or sockets).
type ReleaseFunc func(ctx context.Context, entry *storage.HoldQueueEntry) error

// Queue wraps the durable hold queue store with the buyer-only
// release/reject workflow and a background auto-release sweeper
// (spec.md §4.3 "Hold queue review").
type Queue struct {
	store   storage.HoldQueueStore
	release ReleaseFunc
	log     logger.Logger
}

// New builds a Queue. release is invoked whenever a message is released,
// either by the buyer or by the auto-release sweeper.
func New(store storage.HoldQueueStore, release ReleaseFunc, log logger.Logger) *Queue {
	return &Queue{store: store, release: release, log: log}
}

// Hold persists a blocked outbound message for human review.
func (q *Queue) Hold(ctx context.Context, entry *storage.HoldQueueEntry) error {
	entry.Status = storage.HoldHeld
	return q.store.CreateHold(ctx, entry)
}

// List returns held entries paginated, for the reviewing buyer's UI.
func (q *Queue) List(ctx context.Context, status storage.HoldStatus, limit, offset int) ([]*storage.HoldQueueEntry, error) {
	return q.store.ListByStatus(ctx, status, limit, offset)
}

// Release is called by the job's buyer to approve a held message for
// delivery. It is idempotent against an already-resolved entry.
func (q *Queue) Release(ctx context.Context, id, buyer string, isBuyer func(jobID, identity string) bool) error {
	entry, err := q.store.GetHold(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.CodeNotFound, "hold entry not found", err)
	}
	if entry.Status != storage.HoldHeld {
		return nil
	}
	if !isBuyer(entry.JobID, buyer) {
		return apperr.New(apperr.CodeForbidden, "only the job's buyer may review held messages")
	}
	if err := q.store.Resolve(ctx, id, storage.HoldReleased); err != nil {
		return err
	}
	if q.release != nil {
		return q.release(ctx, entry)
	}
	return nil
}

// Reject is called by the job's buyer to permanently discard a held
// message. The store records only the new status and resolution time;
// reason is not persisted.
func (q *Queue) Reject(ctx context.Context, id, buyer, reason string, isBuyer func(jobID, identity string) bool) error {
	entry, err := q.store.GetHold(ctx, id)
	if err != nil {
		return apperr.Wrap(apperr.CodeNotFound, "hold entry not found", err)
	}
	if entry.Status != storage.HoldHeld {
		return nil
	}
	if !isBuyer(entry.JobID, buyer) {
		return apperr.New(apperr.CodeForbidden, "only the job's buyer may review held messages")
	}
	entry.AppealReason = reason
	return q.store.Resolve(ctx, id, storage.HoldRejected)
}

// SweepExpired auto-releases any message held longer than 24h, marking a
// releasedFromHold broadcast via release. It is meant to run off a ticker,
// never from a request handler.
func (q *Queue) SweepExpired(ctx context.Context) (int, error) {
	stale, err := q.store.ListHeldOlderThan(ctx, autoReleaseAge)
	if err != nil {
		return 0, err
	}
	released := 0
	for _, entry := range stale {
		if err := q.store.Resolve(ctx, entry.ID, storage.HoldReleased); err != nil {
			if q.log != nil {
				q.log.Error("hold queue auto-release failed", logger.String("id", entry.ID), logger.Error(err))
			}
			continue
		}
		if q.release != nil {
			if err := q.release(ctx, entry); err != nil && q.log != nil {
				q.log.Error("hold queue auto-release broadcast failed", logger.String("id", entry.ID), logger.Error(err))
			}
		}
		released++
	}
	return released, nil
}

// StartSweeper runs SweepExpired on a ticker until ctx is cancelled.
func (q *Queue) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := q.SweepExpired(ctx); err != nil && q.log != nil {
					q.log.Error("hold queue sweep failed", logger.Error(err))
				}
			}
		}
	}()
}
