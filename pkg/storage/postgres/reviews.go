// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Upsert keys on (agent_id, job_hash): a replayed indexer pass over the
// same block range must produce the same review row rather than a
// duplicate (spec.md §8 "Indexer: replaying the same block range yields
// the same ... review set").
func (s *Store) Upsert(ctx context.Context, r *storage.Review) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reviews (id, agent_id, buyer, job_hash, message, rating, signature, verified, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (agent_id, job_hash) DO UPDATE SET
			buyer = EXCLUDED.buyer, message = EXCLUDED.message, rating = EXCLUDED.rating,
			signature = EXCLUDED.signature, verified = EXCLUDED.verified
	`, r.ID, r.AgentID, r.Buyer, r.JobHash, r.Message, r.Rating, r.Signature, r.Verified, r.CreatedAt)
	return err
}

func (s *Store) ListForAgent(ctx context.Context, agentID string) ([]*storage.Review, error) {
	rows, err := s.pool.Query(ctx, reviewSelectColumns+`WHERE agent_id = $1 ORDER BY created_at DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

func (s *Store) ListForBuyer(ctx context.Context, buyer string) ([]*storage.Review, error) {
	rows, err := s.pool.Query(ctx, reviewSelectColumns+`WHERE buyer = $1 ORDER BY created_at DESC`, buyer)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReviews(rows)
}

const reviewSelectColumns = `
	SELECT id, agent_id, buyer, job_hash, message, rating, signature, verified, created_at
	FROM reviews
`

func scanReviews(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*storage.Review, error) {
	var out []*storage.Review
	for rows.Next() {
		r := &storage.Review{}
		if err := rows.Scan(&r.ID, &r.AgentID, &r.Buyer, &r.JobHash, &r.Message, &r.Rating, &r.Signature, &r.Verified, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
