// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"sort"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) Upsert(ctx context.Context, r *storage.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.reviews[r.ID] = &cp
	return nil
}

func (s *Store) ListForAgent(ctx context.Context, agentID string) ([]*storage.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Review
	for _, r := range s.reviews {
		if r.AgentID == agentID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListForBuyer(ctx context.Context, buyer string) ([]*storage.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Review
	for _, r := range s.reviews {
		if r.Buyer == buyer {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
