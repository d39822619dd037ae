// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateSession(ctx context.Context, sess *storage.Session) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (id, identity, expires_at, created_at, last_used_at)
		VALUES ($1,$2,$3,$4,$5)
	`, sess.ID, sess.Identity, sess.ExpiresAt, sess.CreatedAt, sess.LastUsedAt)
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	sess := &storage.Session{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, identity, expires_at, created_at, last_used_at FROM sessions WHERE id = $1
	`, id).Scan(&sess.ID, &sess.Identity, &sess.ExpiresAt, &sess.CreatedAt, &sess.LastUsedAt)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `UPDATE sessions SET last_used_at = now() WHERE id = $1`, id)
	return err
}

func (s *Store) CreateChatToken(ctx context.Context, t *storage.ChatToken) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO chat_tokens (id, identity, job_id, used, expires_at) VALUES ($1,$2,$3,$4,$5)
	`, t.ID, t.Identity, t.JobID, t.Used, t.ExpiresAt)
	return err
}

// ConsumeChatToken marks a token used in a single statement guarded by
// `NOT used`, so two concurrent handshakes presenting the same token race
// on the database row instead of a read-then-write gap (mirrors nonces.go's
// insert-or-fail pattern for single-use consumption).
func (s *Store) ConsumeChatToken(ctx context.Context, id string) (*storage.ChatToken, error) {
	t := &storage.ChatToken{}
	err := s.pool.QueryRow(ctx, `
		UPDATE chat_tokens SET used = true
		WHERE id = $1 AND NOT used AND expires_at > now()
		RETURNING id, identity, job_id, used, expires_at
	`, id).Scan(&t.ID, &t.Identity, &t.JobID, &t.Used, &t.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) DeleteExpiredChatTokens(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chat_tokens WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
