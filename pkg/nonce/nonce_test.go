// SPDX-License-Identifier: LGPL-3.0-or-later

package nonce

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage/memory"
)

func TestClaim_SingleUse(t *testing.T) {
	backing := memory.NewStore()
	s := New(backing, time.Minute)

	ok1, err := s.Claim(context.Background(), "n1")
	require.NoError(t, err)
	require.True(t, ok1)

	ok2, err := s.Claim(context.Background(), "n1")
	require.NoError(t, err)
	require.False(t, ok2, "replayed nonce must be rejected")
}

func TestClaim_ConcurrentSingleWinner(t *testing.T) {
	backing := memory.NewStore()
	s := New(backing, time.Minute)

	const workers = 50
	var wg sync.WaitGroup
	wins := make([]bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.Claim(context.Background(), "shared-nonce")
			require.NoError(t, err)
			wins[i] = ok
		}(i)
	}
	wg.Wait()

	won := 0
	for _, w := range wins {
		if w {
			won++
		}
	}
	require.Equal(t, 1, won, "exactly one concurrent claimant must win")
}

func TestReap_RemovesExpired(t *testing.T) {
	backing := memory.NewStore()
	s := New(backing, time.Millisecond)

	ok, err := s.Claim(context.Background(), "n1")
	require.NoError(t, err)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	s.reap(context.Background())
	require.Equal(t, 0, s.Len())
}
