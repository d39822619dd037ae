// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) UpsertAgent(ctx context.Context, a *storage.Agent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO agents (identity_address, name, type, status, owner, watermark, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (identity_address) DO UPDATE SET
			name = EXCLUDED.name, type = EXCLUDED.type, status = EXCLUDED.status,
			owner = EXCLUDED.owner, watermark = EXCLUDED.watermark, updated_at = EXCLUDED.updated_at
	`, a.IdentityAddress, a.Name, a.Type, a.Status, a.Owner, a.Watermark, a.CreatedAt, a.UpdatedAt)
	return err
}

func (s *Store) GetAgent(ctx context.Context, identityAddress string) (*storage.Agent, error) {
	a := &storage.Agent{}
	err := s.pool.QueryRow(ctx, `
		SELECT identity_address, name, type, status, owner, watermark, created_at, updated_at
		FROM agents WHERE identity_address = $1
	`, identityAddress).Scan(&a.IdentityAddress, &a.Name, &a.Type, &a.Status, &a.Owner, &a.Watermark, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) ListAgentsByOwner(ctx context.Context, owner string) ([]*storage.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity_address, name, type, status, owner, watermark, created_at, updated_at
		FROM agents WHERE owner = $1 ORDER BY identity_address
	`, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Agent
	for rows.Next() {
		a := &storage.Agent{}
		if err := rows.Scan(&a.IdentityAddress, &a.Name, &a.Type, &a.Status, &a.Owner, &a.Watermark, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) SearchAgents(ctx context.Context, query string, limit, offset int) ([]*storage.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT identity_address, name, type, status, owner, watermark, created_at, updated_at
		FROM agents WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY identity_address LIMIT $2 OFFSET $3
	`, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Agent
	for rows.Next() {
		a := &storage.Agent{}
		if err := rows.Scan(&a.IdentityAddress, &a.Name, &a.Type, &a.Status, &a.Owner, &a.Watermark, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeactivateAgent(ctx context.Context, identityAddress string) error {
	_, err := s.pool.Exec(ctx, `UPDATE agents SET status = $2, updated_at = now() WHERE identity_address = $1`,
		identityAddress, storage.AgentInactive)
	return err
}

func (s *Store) UpsertEndpoint(ctx context.Context, e *storage.Endpoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endpoints (id, agent_id, url, protocol, public, verified, last_verify, next_verify)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url, protocol = EXCLUDED.protocol, public = EXCLUDED.public,
			verified = EXCLUDED.verified, last_verify = EXCLUDED.last_verify, next_verify = EXCLUDED.next_verify
	`, e.ID, e.AgentID, e.URL, e.Protocol, e.Public, e.Verified, e.LastVerify, e.NextVerify)
	return err
}

func (s *Store) GetEndpoint(ctx context.Context, id string) (*storage.Endpoint, error) {
	e := &storage.Endpoint{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, url, protocol, public, verified, last_verify, next_verify
		FROM endpoints WHERE id = $1
	`, id).Scan(&e.ID, &e.AgentID, &e.URL, &e.Protocol, &e.Public, &e.Verified, &e.LastVerify, &e.NextVerify)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) ListEndpoints(ctx context.Context, agentID string) ([]*storage.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, url, protocol, public, verified, last_verify, next_verify
		FROM endpoints WHERE agent_id = $1 ORDER BY id
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Endpoint
	for rows.Next() {
		e := &storage.Endpoint{}
		if err := rows.Scan(&e.ID, &e.AgentID, &e.URL, &e.Protocol, &e.Public, &e.Verified, &e.LastVerify, &e.NextVerify); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListEndpointsDueForVerification(ctx context.Context, before time.Time) ([]*storage.Endpoint, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, url, protocol, public, verified, last_verify, next_verify
		FROM endpoints WHERE next_verify IS NOT NULL AND next_verify < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Endpoint
	for rows.Next() {
		e := &storage.Endpoint{}
		if err := rows.Scan(&e.ID, &e.AgentID, &e.URL, &e.Protocol, &e.Public, &e.Verified, &e.LastVerify, &e.NextVerify); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkEndpointVerified(ctx context.Context, id string, nextVerify time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE endpoints SET verified = true, last_verify = now(), next_verify = $2 WHERE id = $1
	`, id, nextVerify)
	return err
}

func (s *Store) CreateVerification(ctx context.Context, v *storage.EndpointVerification) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO endpoint_verifications (id, endpoint_id, challenge, status, retry_count, next_attempt, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, v.ID, v.EndpointID, v.Challenge, v.Status, v.RetryCount, v.NextAttempt, v.CreatedAt)
	return err
}

func (s *Store) GetVerification(ctx context.Context, id string) (*storage.EndpointVerification, error) {
	v := &storage.EndpointVerification{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, endpoint_id, challenge, status, retry_count, next_attempt, created_at
		FROM endpoint_verifications WHERE id = $1
	`, id).Scan(&v.ID, &v.EndpointID, &v.Challenge, &v.Status, &v.RetryCount, &v.NextAttempt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Store) UpdateVerification(ctx context.Context, v *storage.EndpointVerification) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE endpoint_verifications SET status = $2, retry_count = $3, next_attempt = $4 WHERE id = $1
	`, v.ID, v.Status, v.RetryCount, v.NextAttempt)
	return err
}

func (s *Store) ListPendingVerifications(ctx context.Context, before time.Time) ([]*storage.EndpointVerification, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, endpoint_id, challenge, status, retry_count, next_attempt, created_at
		FROM endpoint_verifications WHERE status = $1 AND next_attempt <= $2
	`, storage.VerificationPending, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.EndpointVerification
	for rows.Next() {
		v := &storage.EndpointVerification{}
		if err := rows.Scan(&v.ID, &v.EndpointID, &v.Challenge, &v.Status, &v.RetryCount, &v.NextAttempt, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) UpsertService(ctx context.Context, svc *storage.Service) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO services (id, agent_id, name, price, currency, category, turnaround,
			session_duration_seconds, session_max_tokens, session_max_images, session_max_messages,
			session_max_file_size_mb, session_allowed_mime)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, price = EXCLUDED.price, currency = EXCLUDED.currency,
			category = EXCLUDED.category, turnaround = EXCLUDED.turnaround,
			session_duration_seconds = EXCLUDED.session_duration_seconds,
			session_max_tokens = EXCLUDED.session_max_tokens, session_max_images = EXCLUDED.session_max_images,
			session_max_messages = EXCLUDED.session_max_messages,
			session_max_file_size_mb = EXCLUDED.session_max_file_size_mb,
			session_allowed_mime = EXCLUDED.session_allowed_mime
	`, svc.ID, svc.AgentID, svc.Name, svc.Price, svc.Currency, svc.Category, svc.Turnaround,
		svc.Session.DurationSeconds, svc.Session.MaxTokens, svc.Session.MaxImages, svc.Session.MaxMessages,
		svc.Session.MaxFileSizeMB, svc.Session.AllowedMIME)
	return err
}

// ReplaceServices atomically drops every service owned by agentID and
// re-inserts the given set, mirroring how the indexer (C5) treats a
// decoded `services` VDXF entry as the agent's full current snapshot
// rather than an incremental patch (spec.md §4.4 "idempotent").
func (s *Store) ReplaceServices(ctx context.Context, agentID string, services []*storage.Service) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM services WHERE agent_id = $1`, agentID); err != nil {
		return err
	}
	for _, svc := range services {
		if _, err := tx.Exec(ctx, `
			INSERT INTO services (id, agent_id, name, price, currency, category, turnaround,
				session_duration_seconds, session_max_tokens, session_max_images, session_max_messages,
				session_max_file_size_mb, session_allowed_mime)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		`, svc.ID, agentID, svc.Name, svc.Price, svc.Currency, svc.Category, svc.Turnaround,
			svc.Session.DurationSeconds, svc.Session.MaxTokens, svc.Session.MaxImages, svc.Session.MaxMessages,
			svc.Session.MaxFileSizeMB, svc.Session.AllowedMIME); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) ListServices(ctx context.Context, agentID string) ([]*storage.Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, agent_id, name, price, currency, category, turnaround,
			session_duration_seconds, session_max_tokens, session_max_images, session_max_messages,
			session_max_file_size_mb, session_allowed_mime
		FROM services WHERE agent_id = $1 ORDER BY id
	`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, svc)
	}
	return out, rows.Err()
}

func (s *Store) GetService(ctx context.Context, id string) (*storage.Service, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, agent_id, name, price, currency, category, turnaround,
			session_duration_seconds, session_max_tokens, session_max_images, session_max_messages,
			session_max_file_size_mb, session_allowed_mime
		FROM services WHERE id = $1
	`, id)
	return scanService(row)
}

func scanService(row rowScanner) (*storage.Service, error) {
	svc := &storage.Service{}
	err := row.Scan(&svc.ID, &svc.AgentID, &svc.Name, &svc.Price, &svc.Currency, &svc.Category, &svc.Turnaround,
		&svc.Session.DurationSeconds, &svc.Session.MaxTokens, &svc.Session.MaxImages, &svc.Session.MaxMessages,
		&svc.Session.MaxFileSizeMB, &svc.Session.AllowedMIME)
	if err != nil {
		return nil, err
	}
	return svc, nil
}
