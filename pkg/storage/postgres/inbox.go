// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateInboxItem(ctx context.Context, item *storage.InboxItem) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inbox_items (id, recipient, sender, type, rating, message, job_hash, signature, status, payload, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, item.ID, item.Recipient, item.Sender, item.Type, item.Rating, item.Message, item.JobHash,
		item.Signature, item.Status, item.Payload, item.CreatedAt, item.ExpiresAt)
	return err
}

func (s *Store) GetInboxItem(ctx context.Context, id string) (*storage.InboxItem, error) {
	row := s.pool.QueryRow(ctx, inboxSelectColumns+`WHERE id = $1`, id)
	return scanInboxItem(row)
}

func (s *Store) ListInboxForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*storage.InboxItem, error) {
	rows, err := s.pool.Query(ctx, inboxSelectColumns+`
		WHERE recipient = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, recipient, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.InboxItem
	for rows.Next() {
		item, err := scanInboxItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status storage.InboxStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE inbox_items SET status = $2 WHERE id = $1`, id, status)
	return err
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM inbox_items WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const inboxSelectColumns = `
	SELECT id, recipient, sender, type, rating, message, job_hash, signature, status, payload, created_at, expires_at
	FROM inbox_items
`

func scanInboxItem(row rowScanner) (*storage.InboxItem, error) {
	item := &storage.InboxItem{}
	err := row.Scan(&item.ID, &item.Recipient, &item.Sender, &item.Type, &item.Rating, &item.Message,
		&item.JobHash, &item.Signature, &item.Status, &item.Payload, &item.CreatedAt, &item.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}
