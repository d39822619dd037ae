// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func TestAgentUpsertAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	a := &storage.Agent{IdentityAddress: "i-abc", Name: "agent-1", Owner: "i-owner", Status: storage.AgentActive}
	require.NoError(t, s.UpsertAgent(ctx, a))

	got, err := s.GetAgent(ctx, "i-abc")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", got.Name)

	got.Name = "mutated"
	again, err := s.GetAgent(ctx, "i-abc")
	require.NoError(t, err)
	assert.Equal(t, "agent-1", again.Name, "caller mutation of returned copy must not affect store state")
}

func TestJobCreateRejectsDuplicateHash(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	j1 := &storage.Job{ID: "job-1", JobHash: "hash-1", Status: storage.JobRequested}
	require.NoError(t, s.CreateJob(ctx, j1))

	j2 := &storage.Job{ID: "job-2", JobHash: "hash-1", Status: storage.JobRequested}
	err := s.CreateJob(ctx, j2)
	require.Error(t, err)
}

func TestCASJobStatusSucceedsAndAppliesMutation(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	j := &storage.Job{ID: "job-1", JobHash: "hash-1", Status: storage.JobRequested}
	require.NoError(t, s.CreateJob(ctx, j))

	err := s.CASJobStatus(ctx, "job-1", storage.JobRequested, storage.JobAccepted, func(job *storage.Job) error {
		job.Signatures.Acceptance = "sig-accept"
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, storage.JobAccepted, got.Status)
	assert.Equal(t, "sig-accept", got.Signatures.Acceptance)
}

func TestCASJobStatusConflict(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	j := &storage.Job{ID: "job-1", JobHash: "hash-1", Status: storage.JobAccepted}
	require.NoError(t, s.CreateJob(ctx, j))

	err := s.CASJobStatus(ctx, "job-1", storage.JobRequested, storage.JobAccepted, nil)
	require.ErrorIs(t, err, storage.ErrCASConflict)
}

func TestNonceClaimIsInsertOrFail(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	exp := time.Now().Add(time.Minute)

	claimed, err := s.Claim(ctx, "nonce-1", exp)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = s.Claim(ctx, "nonce-1", exp)
	require.NoError(t, err)
	assert.False(t, claimed, "a second claim of the same nonce must fail even before expiry reaping runs")
}

func TestConsumeChatTokenIsSingleUse(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	tok := &storage.ChatToken{ID: "tok-1", Identity: "i-abc", JobID: "job-1", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, s.CreateChatToken(ctx, tok))

	_, err := s.ConsumeChatToken(ctx, "tok-1")
	require.NoError(t, err)

	_, err = s.ConsumeChatToken(ctx, "tok-1")
	require.Error(t, err)
}

func TestHoldQueueListByStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	require.NoError(t, s.CreateHold(ctx, &storage.HoldQueueEntry{ID: "h1", JobID: "job-1", Status: storage.HoldHeld, CreatedAt: time.Now()}))
	require.NoError(t, s.CreateHold(ctx, &storage.HoldQueueEntry{ID: "h2", JobID: "job-1", Status: storage.HoldReleased, CreatedAt: time.Now()}))

	held, err := s.ListByStatus(ctx, storage.HoldHeld, 10, 0)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "h1", held[0].ID)
}

func TestNotificationPaginationAndMarkRead(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.CreateNotification(ctx, &storage.Notification{
			ID: "n" + string(rune('0'+i)), Recipient: "i-abc", CreatedAt: time.Now(),
		}))
	}

	page, err := s.ListNotificationsForRecipient(ctx, "i-abc", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	require.NoError(t, s.MarkRead(ctx, "n0"))
}
