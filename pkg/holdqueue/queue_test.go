// SPDX-License-Identifier: LGPL-3.0-or-later

package holdqueue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

func TestQueue_ReleaseRequiresBuyer(t *testing.T) {
	store := memory.NewStore()
	var released *storage.HoldQueueEntry
	q := New(store, func(ctx context.Context, e *storage.HoldQueueEntry) error {
		released = e
		return nil
	}, nil)
	ctx := context.Background()

	entry := &storage.HoldQueueEntry{ID: "h1", JobID: "job1", Sender: "alice@", Content: "hi", CreatedAt: time.Now()}
	require.NoError(t, q.Hold(ctx, entry))

	isBuyer := func(jobID, identity string) bool { return jobID == "job1" && identity == "buyer@" }

	err := q.Release(ctx, "h1", "notbuyer@", isBuyer)
	require.Error(t, err)

	require.NoError(t, q.Release(ctx, "h1", "buyer@", isBuyer))
	require.NotNil(t, released)
	require.Equal(t, "h1", released.ID)

	got, err := store.GetHold(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, storage.HoldReleased, got.Status)
}

func TestQueue_RejectMarksEntryRejected(t *testing.T) {
	store := memory.NewStore()
	q := New(store, nil, nil)
	ctx := context.Background()

	entry := &storage.HoldQueueEntry{ID: "h1", JobID: "job1", Sender: "alice@", Content: "hi", CreatedAt: time.Now()}
	require.NoError(t, q.Hold(ctx, entry))

	isBuyer := func(jobID, identity string) bool { return true }
	require.NoError(t, q.Reject(ctx, "h1", "buyer@", "unsafe", isBuyer))

	got, err := store.GetHold(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, storage.HoldRejected, got.Status)
}

func TestQueue_SweepExpiredAutoReleases(t *testing.T) {
	store := memory.NewStore()
	var releasedIDs []string
	q := New(store, func(ctx context.Context, e *storage.HoldQueueEntry) error {
		releasedIDs = append(releasedIDs, e.ID)
		return nil
	}, nil)
	ctx := context.Background()

	old := &storage.HoldQueueEntry{ID: "old", JobID: "job1", Sender: "a@", Content: "x", CreatedAt: time.Now().Add(-25 * time.Hour)}
	fresh := &storage.HoldQueueEntry{ID: "fresh", JobID: "job1", Sender: "a@", Content: "y", CreatedAt: time.Now()}
	require.NoError(t, q.Hold(ctx, old))
	require.NoError(t, q.Hold(ctx, fresh))

	n, err := q.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []string{"old"}, releasedIDs)

	got, err := store.GetHold(ctx, "fresh")
	require.NoError(t, err)
	require.Equal(t, storage.HoldHeld, got.Status)
}
