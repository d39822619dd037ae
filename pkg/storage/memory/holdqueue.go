// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateHold(ctx context.Context, h *storage.HoldQueueEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.holdQueue[h.ID] = &cp
	return nil
}

func (s *Store) GetHold(ctx context.Context, id string) (*storage.HoldQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holdQueue[id]
	if !ok {
		return nil, fmt.Errorf("hold queue entry not found: %s", id)
	}
	cp := *h
	return &cp, nil
}

func (s *Store) ListByStatus(ctx context.Context, status storage.HoldStatus, limit, offset int) ([]*storage.HoldQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.HoldQueueEntry
	for _, h := range s.holdQueue {
		if h.Status == status {
			cp := *h
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *Store) ListHeldOlderThan(ctx context.Context, age time.Duration) ([]*storage.HoldQueueEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := time.Now().Add(-age)
	var out []*storage.HoldQueueEntry
	for _, h := range s.holdQueue {
		if h.Status == storage.HoldHeld && h.CreatedAt.Before(cutoff) {
			cp := *h
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) Resolve(ctx context.Context, id string, status storage.HoldStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.holdQueue[id]
	if !ok {
		return fmt.Errorf("hold queue entry not found: %s", id)
	}
	now := time.Now()
	h.Status = status
	h.ResolvedAt = &now
	return nil
}

func (s *Store) CountHold(ctx context.Context, status storage.HoldStatus) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, h := range s.holdQueue {
		if h.Status == status {
			n++
		}
	}
	return n, nil
}
