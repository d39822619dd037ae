// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Claim is a single mutex-guarded lookup-then-insert. Since the whole store
// shares one lock, this is insert-or-fail: no other goroutine can observe
// the map between the check and the write.
func (s *Store) Claim(ctx context.Context, nonce string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nonces[nonce]; ok {
		return false, nil
	}
	s.nonces[nonce] = &storage.Nonce{
		Value:     nonce,
		ExpiresAt: expiresAt,
		ClaimedAt: time.Now(),
	}
	return true, nil
}

func (s *Store) CountNonces(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.nonces)), nil
}

func (s *Store) DeleteExpiredNonces(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for v, nonce := range s.nonces {
		if nonce.ExpiresAt.Before(now) {
			delete(s.nonces, v)
			n++
		}
	}
	return n, nil
}
