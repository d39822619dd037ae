// SPDX-License-Identifier: LGPL-3.0-or-later

package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

func newTestWebhookServer(t *testing.T, received *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*received = body
		w.WriteHeader(http.StatusOK)
	}))
}

func subscriptionFixture(url string, secret []byte) storage.WebhookSubscription {
	return storage.WebhookSubscription{
		ID:              uuid.NewString(),
		AgentID:         "agent1@",
		URL:             url,
		Events:          []string{EventMessageNew},
		EncryptedSecret: secret,
		Active:          true,
		CreatedAt:       time.Now(),
	}
}

func TestService_EmitPersistsNotification(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, nil)
	ctx := context.Background()

	err := svc.Emit(ctx, Emission{
		Recipient: "alice@",
		Event:     EventJobAccepted,
		Title:     "Job accepted",
		Body:      "Your job was accepted",
		JobID:     "job1",
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, "alice@", 20, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, EventJobAccepted, list[0].Type)
	require.False(t, list[0].Read)

	require.NoError(t, svc.Ack(ctx, list[0].ID))
	list, err = svc.List(ctx, "alice@", 20, 0)
	require.NoError(t, err)
	require.True(t, list[0].Read)
}

func TestWebhookDispatcher_EnqueueAndDeliver(t *testing.T) {
	store := memory.NewStore()
	svc := New(store, nil, nil)
	ctx := context.Background()

	var received []byte
	srv := newTestWebhookServer(t, &received)
	defer srv.Close()

	secret, _, err := GenerateSecret()
	require.NoError(t, err)
	fixture := subscriptionFixture(srv.URL, secret)
	require.NoError(t, store.CreateSubscription(ctx, &fixture))

	disp := NewWebhookDispatcher(store, nil, 3, 0, 0, nil)
	svc.webhooks = disp

	require.NoError(t, svc.Emit(ctx, Emission{Recipient: "agent1@", Event: EventMessageNew, Data: map[string]interface{}{"jobId": "job1"}}))

	n, err := disp.DeliverPending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Contains(t, string(received), "message.new")
}
