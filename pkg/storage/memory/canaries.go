// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateCanary(ctx context.Context, c *storage.AgentCanary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.canaries[c.ID] = &cp
	return nil
}

func (s *Store) ListCanariesForAgent(ctx context.Context, agentID string) ([]*storage.AgentCanary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.AgentCanary
	for _, c := range s.canaries {
		if c.AgentID == agentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}
