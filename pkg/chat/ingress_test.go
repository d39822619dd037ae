// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/holdqueue"
	"github.com/verus-agent-platform/vap/pkg/safechat"
	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

type stubScanner struct {
	score float64
	class safechat.Classification
}

func (s stubScanner) Inbound(ctx context.Context, content string) (safechat.Result, error) {
	return safechat.Result{Score: s.score, Classification: s.class}, nil
}

func (s stubScanner) Outbound(ctx context.Context, content string) (safechat.Result, error) {
	return safechat.Result{Score: s.score, Classification: s.class}, nil
}

func newTestPipeline(t *testing.T, store *memory.Store, scanner safechat.Scanner) *Pipeline {
	t.Helper()
	scorer := holdqueue.NewScorer()
	q := holdqueue.New(store, nil, nil)
	return NewPipeline(store, store, scanner, scorer, q, nil, nil)
}

func seedJob(t *testing.T, store *memory.Store) *storage.Job {
	t.Helper()
	job := &storage.Job{ID: "job1", Buyer: "buyer@", Seller: "seller@", Status: storage.JobInProgress, SafechatEnabled: true, RequestedAt: time.Now()}
	require.NoError(t, store.CreateJob(context.Background(), job))
	return job
}

func TestPipeline_SafeMessageIsDeliveredAndPersisted(t *testing.T) {
	store := memory.NewStore()
	seedJob(t, store)
	p := newTestPipeline(t, store, stubScanner{score: 0, class: safechat.ClassSafe})

	room := newRoom("job1", time.Hour)
	conn := newTestConn("buyer@")
	room.Join(conn)

	p.Process(context.Background(), room, conn, "hello there")

	msgs, err := store.ListMessages(context.Background(), "job1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "hello there", msgs[0].Content)
}

func TestPipeline_UnsafeMessageIsHeldNotBroadcast(t *testing.T) {
	store := memory.NewStore()
	seedJob(t, store)
	p := newTestPipeline(t, store, stubScanner{score: 1, class: safechat.ClassUnsafe})

	room := newRoom("job1", time.Hour)
	conn := newTestConn("seller@")
	room.Join(conn)

	p.Process(context.Background(), room, conn, "malicious content")

	msgs, err := store.ListMessages(context.Background(), "job1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)

	held, err := store.ListByStatus(context.Background(), storage.HoldHeld, 10, 0)
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Equal(t, "seller@", held[0].Sender)
}

func TestPipeline_SafechatDisabledSkipsScanAndHold(t *testing.T) {
	store := memory.NewStore()
	job := &storage.Job{ID: "job1", Buyer: "buyer@", Seller: "seller@", Status: storage.JobInProgress, SafechatEnabled: false, RequestedAt: time.Now()}
	require.NoError(t, store.CreateJob(context.Background(), job))
	p := newTestPipeline(t, store, stubScanner{score: 1, class: safechat.ClassUnsafe})

	room := newRoom("job1", time.Hour)
	conn := newTestConn("seller@")
	room.Join(conn)

	p.Process(context.Background(), room, conn, "would be flagged if scanned")

	msgs, err := store.ListMessages(context.Background(), "job1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	held, err := store.ListByStatus(context.Background(), storage.HoldHeld, 10, 0)
	require.NoError(t, err)
	require.Empty(t, held)
}

func TestPipeline_CanaryHitForcesHoldForSeller(t *testing.T) {
	store := memory.NewStore()
	seedJob(t, store)
	require.NoError(t, store.CreateCanary(context.Background(), &storage.AgentCanary{ID: "c1", AgentID: "seller@", Value: "zz-canary-zz"}))
	p := newTestPipeline(t, store, stubScanner{score: 0, class: safechat.ClassSafe})

	room := newRoom("job1", time.Hour)
	conn := newTestConn("seller@")
	room.Join(conn)

	p.Process(context.Background(), room, conn, "here is zz-canary-zz leaking")

	held, err := store.ListByStatus(context.Background(), storage.HoldHeld, 10, 0)
	require.NoError(t, err)
	require.Len(t, held, 1)
	require.Equal(t, 1.0, held[0].Score)
}

func TestPipeline_EmptyAfterSanitizeIsRejected(t *testing.T) {
	store := memory.NewStore()
	seedJob(t, store)
	p := newTestPipeline(t, store, stubScanner{score: 0, class: safechat.ClassSafe})

	room := newRoom("job1", time.Hour)
	conn := newTestConn("buyer@")
	room.Join(conn)

	p.Process(context.Background(), room, conn, "​​")

	msgs, err := store.ListMessages(context.Background(), "job1", 10, 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
}

func TestPipeline_ReleaseBroadcastsAndPersists(t *testing.T) {
	store := memory.NewStore()
	seedJob(t, store)
	p := newTestPipeline(t, store, stubScanner{score: 1, class: safechat.ClassUnsafe})
	registry := NewRegistry()
	room := registry.GetOrCreate("job1", time.Hour)
	conn := newTestConn("buyer@")
	room.Join(conn)

	entry := &storage.HoldQueueEntry{ID: "h1", JobID: "job1", Sender: "seller@", Content: "approved text", CreatedAt: time.Now()}
	require.NoError(t, p.Release(registry)(context.Background(), entry))

	msgs, err := store.ListMessages(context.Background(), "job1", 10, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.True(t, msgs[0].ReleasedFromHold)
}
