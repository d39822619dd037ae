// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateNotification(ctx context.Context, n *storage.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient, type, title, body, job_id, read, data, created_at, read_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, n.ID, n.Recipient, n.Type, n.Title, n.Body, n.JobID, n.Read, data, n.CreatedAt, n.ReadAt)
	return err
}

func (s *Store) ListNotificationsForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*storage.Notification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, recipient, type, title, body, job_id, read, data, created_at, read_at
		FROM notifications WHERE recipient = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, recipient, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Notification
	for rows.Next() {
		n := &storage.Notification{}
		var data []byte
		if err := rows.Scan(&n.ID, &n.Recipient, &n.Type, &n.Title, &n.Body, &n.JobID, &n.Read, &data, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE notifications SET read = true, read_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) DeleteOld(ctx context.Context, readRetention, absoluteRetention time.Duration) (int64, error) {
	now := time.Now()
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE created_at < $1
		   OR (read AND read_at IS NOT NULL AND read_at < $2)
	`, now.Add(-absoluteRetention), now.Add(-readRetention))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
