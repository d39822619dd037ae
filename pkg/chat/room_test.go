// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestConn(identity string) *Conn {
	return &Conn{
		identity: identity,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
	}
}

func TestRoom_JoinLeaveTracksMembership(t *testing.T) {
	r := newRoom("job1", time.Hour)
	a := newTestConn("alice@")
	b := newTestConn("bob@")

	members := r.Join(a)
	require.Empty(t, members)
	members = r.Join(b)
	require.ElementsMatch(t, []string{"alice@"}, members)
	require.Equal(t, 2, r.MemberCount())

	require.False(t, r.Leave(a))
	require.True(t, r.Leave(b))
}

func TestRoom_BroadcastSkipsSender(t *testing.T) {
	r := newRoom("job1", time.Hour)
	a := newTestConn("alice@")
	b := newTestConn("bob@")
	r.Join(a)
	r.Join(b)

	r.Broadcast(newServerEvent(ServerMessage, "job1", "hi"), a)

	select {
	case data := <-b.send:
		var ev ServerEvent
		require.NoError(t, json.Unmarshal(data, &ev))
		require.Equal(t, ServerMessage, ev.Type)
	default:
		t.Fatal("expected bob to receive the broadcast")
	}

	select {
	case <-a.send:
		t.Fatal("sender should not receive its own broadcast")
	default:
	}
}

func TestRoom_AllowMessageEnforcesPerUserWindow(t *testing.T) {
	r := newRoom("job1", time.Hour)
	now := time.Now()
	for i := 0; i < perUserMsgLimit; i++ {
		require.True(t, r.AllowMessage("alice@", now.Add(time.Duration(i)*time.Millisecond)))
	}
	require.False(t, r.AllowMessage("alice@", now.Add(time.Millisecond)))
	// A different identity has its own independent window.
	require.True(t, r.AllowMessage("bob@", now))
}

func TestRoom_AllowTypingThrottles(t *testing.T) {
	r := newRoom("job1", time.Hour)
	now := time.Now()
	require.True(t, r.AllowTyping("alice@", now))
	require.False(t, r.AllowTyping("alice@", now.Add(100*time.Millisecond)))
	require.True(t, r.AllowTyping("alice@", now.Add(time.Second)))
}

func TestRoom_ShouldWarnOnlyOnceNearExpiry(t *testing.T) {
	r := newRoom("job1", 10*time.Minute)
	now := r.createdAt

	require.False(t, r.ShouldWarn(now))
	near := r.ExpiresAt().Add(-warningLeadTime)
	require.True(t, r.ShouldWarn(near))
	require.False(t, r.ShouldWarn(near.Add(time.Second)))
}

func TestRoom_ShouldWarnNeverFiresForShortSessions(t *testing.T) {
	r := newRoom("job1", 90*time.Second)
	require.False(t, r.ShouldWarn(r.ExpiresAt().Add(-time.Second)))
}

func TestRegistry_GetOrCreateAndDrop(t *testing.T) {
	reg := NewRegistry()
	r1 := reg.GetOrCreate("job1", time.Hour)
	r2 := reg.GetOrCreate("job1", time.Hour)
	require.Same(t, r1, r2)

	reg.Drop("job1")
	_, ok := reg.Get("job1")
	require.False(t, ok)
}
