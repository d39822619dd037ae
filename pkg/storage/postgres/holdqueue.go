// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateHold(ctx context.Context, h *storage.HoldQueueEntry) error {
	flags, err := json.Marshal(h.Flags)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO hold_queue (id, job_id, sender, content, score, flags, status, appeal_reason, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, h.ID, h.JobID, h.Sender, h.Content, h.Score, flags, h.Status, h.AppealReason, h.CreatedAt, h.ResolvedAt)
	return err
}

func (s *Store) GetHold(ctx context.Context, id string) (*storage.HoldQueueEntry, error) {
	row := s.pool.QueryRow(ctx, holdSelectColumns+` WHERE id = $1`, id)
	return scanHold(row)
}

func (s *Store) ListByStatus(ctx context.Context, status storage.HoldStatus, limit, offset int) ([]*storage.HoldQueueEntry, error) {
	rows, err := s.pool.Query(ctx, holdSelectColumns+`
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolds(rows)
}

func (s *Store) ListHeldOlderThan(ctx context.Context, age time.Duration) ([]*storage.HoldQueueEntry, error) {
	cutoff := time.Now().Add(-age)
	rows, err := s.pool.Query(ctx, holdSelectColumns+`
		WHERE status = $1 AND created_at < $2
	`, storage.HoldHeld, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanHolds(rows)
}

func (s *Store) Resolve(ctx context.Context, id string, status storage.HoldStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE hold_queue SET status = $2, resolved_at = now() WHERE id = $1`, id, status)
	return err
}

func (s *Store) CountHold(ctx context.Context, status storage.HoldStatus) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM hold_queue WHERE status = $1`, status).Scan(&n)
	return n, err
}

const holdSelectColumns = `
	SELECT id, job_id, sender, content, score, flags, status, appeal_reason, created_at, resolved_at
	FROM hold_queue
`

func scanHold(row rowScanner) (*storage.HoldQueueEntry, error) {
	h := &storage.HoldQueueEntry{}
	var flags []byte
	err := row.Scan(&h.ID, &h.JobID, &h.Sender, &h.Content, &h.Score, &flags, &h.Status, &h.AppealReason, &h.CreatedAt, &h.ResolvedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(flags, &h.Flags); err != nil {
		return nil, err
	}
	return h, nil
}

func scanHolds(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*storage.HoldQueueEntry, error) {
	var out []*storage.HoldQueueEntry
	for rows.Next() {
		h := &storage.HoldQueueEntry{}
		var flags []byte
		if err := rows.Scan(&h.ID, &h.JobID, &h.Sender, &h.Content, &h.Score, &flags, &h.Status, &h.AppealReason, &h.CreatedAt, &h.ResolvedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(flags, &h.Flags); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
