// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoomBreaker_PausesAtThresholdWithFewSenders(t *testing.T) {
	var b RoomBreaker
	now := time.Now()

	for i := 0; i < breakerMessageThreshold-1; i++ {
		paused := b.Record("alice@", now.Add(time.Duration(i)*time.Millisecond))
		require.False(t, paused)
	}
	paused := b.Record("bob@", now.Add(time.Duration(breakerMessageThreshold)*time.Millisecond))
	require.True(t, paused)
}

func TestRoomBreaker_DoesNotPauseWithManySenders(t *testing.T) {
	var b RoomBreaker
	now := time.Now()
	var paused bool
	for i := 0; i < breakerMessageThreshold+5; i++ {
		sender := []string{"a@", "b@", "c@"}[i%3]
		paused = b.Record(sender, now.Add(time.Duration(i)*time.Millisecond))
	}
	require.False(t, paused)
}

func TestRoomBreaker_UnpausesAfterCeiling(t *testing.T) {
	var b RoomBreaker
	now := time.Now()
	for i := 0; i < breakerMessageThreshold; i++ {
		b.Record("alice@", now.Add(time.Duration(i)*time.Millisecond))
	}
	require.True(t, b.Paused(now.Add(time.Second)))
	require.False(t, b.Paused(now.Add(breakerPauseCeiling+time.Second)))
}

func TestRoomBreaker_ShouldNotifyOncePerPause(t *testing.T) {
	var b RoomBreaker
	now := time.Now()
	for i := 0; i < breakerMessageThreshold; i++ {
		b.Record("alice@", now.Add(time.Duration(i)*time.Millisecond))
	}
	require.True(t, b.ShouldNotify())
	require.False(t, b.ShouldNotify())
}
