// SPDX-License-Identifier: LGPL-3.0-or-later

// Package nonce implements the atomic claim-or-reject nonce store (spec.md
// component C3): correctness lives in the durable storage.NonceStore
// (insert-or-fail), fronted by an in-memory set that only accelerates reads
// and is never consulted as the source of truth for a claim decision.
package nonce

import (
	"context"
	"sync"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Store wraps a storage.NonceStore with an in-memory claimed-set
// accelerator and a periodic reaper.
type Store struct {
	backing storage.NonceStore
	ttl     time.Duration

	mu      sync.RWMutex
	claimed map[string]time.Time // nonce -> expiresAt, read accelerator only

	stop chan struct{}
	once sync.Once
}

// New builds a Store. ttl is the default nonce lifetime (10 minutes per
// spec.md §3 "Nonce").
func New(backing storage.NonceStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Store{
		backing: backing,
		ttl:     ttl,
		claimed: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
}

// Claim attempts to atomically claim nonceValue. The in-memory set is
// consulted first only as a fast-reject short-circuit for obviously-seen
// nonces within this process; the actual claim is always delegated to the
// durable insert-or-fail store, which is the sole source of truth across
// replicas/restarts.
func (s *Store) Claim(ctx context.Context, nonceValue string) (bool, error) {
	s.mu.RLock()
	if exp, ok := s.claimed[nonceValue]; ok && time.Now().Before(exp) {
		s.mu.RUnlock()
		return false, nil
	}
	s.mu.RUnlock()

	expiresAt := time.Now().Add(s.ttl)
	ok, err := s.backing.Claim(ctx, nonceValue, expiresAt)
	if err != nil {
		return false, err
	}
	if ok {
		s.mu.Lock()
		s.claimed[nonceValue] = expiresAt
		s.mu.Unlock()
	}
	return ok, nil
}

// StartReaper launches the periodic durable + in-memory reaper (spec.md §5:
// "periodic reaper every 5 min"). Never invoked from a request handler.
func (s *Store) StartReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-ticker.C:
				s.reap(ctx)
			}
		}
	}()
}

func (s *Store) reap(ctx context.Context) {
	_, _ = s.backing.DeleteExpiredNonces(ctx)

	now := time.Now()
	s.mu.Lock()
	for n, exp := range s.claimed {
		if now.After(exp) {
			delete(s.claimed, n)
		}
	}
	s.mu.Unlock()
}

// Stop halts the reaper goroutine started by StartReaper.
func (s *Store) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// Len reports the in-memory accelerator's current size (diagnostics/tests).
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.claimed)
}
