// SPDX-License-Identifier: LGPL-3.0-or-later

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWindow_AllowsUpToLimit(t *testing.T) {
	w := NewWindow(3, time.Minute)
	now := time.Now()
	require.True(t, w.Allow(now))
	require.True(t, w.Allow(now))
	require.True(t, w.Allow(now))
	require.False(t, w.Allow(now))
}

func TestWindow_PrunesOldEvents(t *testing.T) {
	w := NewWindow(1, 10*time.Millisecond)
	now := time.Now()
	require.True(t, w.Allow(now))
	require.False(t, w.Allow(now))
	require.True(t, w.Allow(now.Add(20*time.Millisecond)))
}

func TestKeyed_IsolatesPerKey(t *testing.T) {
	k := NewKeyed(1, time.Minute)
	now := time.Now()
	require.True(t, k.Allow("ip-a", now))
	require.False(t, k.Allow("ip-a", now))
	require.True(t, k.Allow("ip-b", now))
}
