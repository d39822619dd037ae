// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateCanary(ctx context.Context, c *storage.AgentCanary) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_canaries (id, agent_id, value, created_at) VALUES ($1,$2,$3,$4)
	`, c.ID, c.AgentID, c.Value, c.CreatedAt)
	return err
}

func (s *Store) ListCanariesForAgent(ctx context.Context, agentID string) ([]*storage.AgentCanary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, value, created_at FROM agent_canaries WHERE agent_id = $1
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.AgentCanary
	for rows.Next() {
		c := &storage.AgentCanary{}
		if err := rows.Scan(&c.ID, &c.AgentID, &c.Value, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
