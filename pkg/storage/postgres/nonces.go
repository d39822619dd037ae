// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"time"
)

// Claim performs a single statement insert-or-fail. ON CONFLICT DO NOTHING
// plus checking rows affected is atomic at the database level: two
// concurrent claims of the same nonce can never both report success, unlike
// a SELECT-then-INSERT pair run in separate statements.
func (s *Store) Claim(ctx context.Context, nonce string, expiresAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO nonces (value, expires_at, claimed_at)
		VALUES ($1, $2, now())
		ON CONFLICT (value) DO NOTHING
	`, nonce, expiresAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteExpiredNonces(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM nonces WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *Store) CountNonces(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM nonces`).Scan(&n)
	return n, err
}
