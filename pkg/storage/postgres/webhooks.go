// SPDX-License-Identifier: LGPL-3.0-or-later

package postgres

import (
	"context"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *storage.WebhookSubscription) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_subscriptions (id, agent_id, url, events, encrypted_secret, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sub.ID, sub.AgentID, sub.URL, sub.Events, sub.EncryptedSecret, sub.Active, sub.CreatedAt)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*storage.WebhookSubscription, error) {
	row := s.pool.QueryRow(ctx, subSelectColumns+`WHERE id = $1`, id)
	return scanSub(row)
}

func (s *Store) ListSubscriptionsForEvent(ctx context.Context, agentID, event string) ([]*storage.WebhookSubscription, error) {
	rows, err := s.pool.Query(ctx, subSelectColumns+`
		WHERE agent_id = $1 AND active AND $2 = ANY(events)
	`, agentID, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubs(rows)
}

func (s *Store) ListSubscriptions(ctx context.Context, agentID string) ([]*storage.WebhookSubscription, error) {
	rows, err := s.pool.Query(ctx, subSelectColumns+`WHERE agent_id = $1 ORDER BY id`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSubs(rows)
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM webhook_subscriptions WHERE id = $1`, id)
	return err
}

func (s *Store) CreateDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, subscription_id, event_id, event_type, payload, attempts, next_attempt, delivered, gave_up, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, d.ID, d.SubscriptionID, d.EventID, d.EventType, d.Payload, d.Attempts, d.NextAttempt, d.Delivered, d.GaveUp, d.CreatedAt)
	return err
}

func (s *Store) ListPendingDeliveries(ctx context.Context, before time.Time) ([]*storage.WebhookDelivery, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, subscription_id, event_id, event_type, payload, attempts, next_attempt, delivered, gave_up, created_at
		FROM webhook_deliveries WHERE NOT delivered AND NOT gave_up AND next_attempt <= $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*storage.WebhookDelivery
	for rows.Next() {
		d := &storage.WebhookDelivery{}
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.EventID, &d.EventType, &d.Payload, &d.Attempts, &d.NextAttempt, &d.Delivered, &d.GaveUp, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpdateDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE webhook_deliveries SET attempts = $2, next_attempt = $3, delivered = $4, gave_up = $5 WHERE id = $1
	`, d.ID, d.Attempts, d.NextAttempt, d.Delivered, d.GaveUp)
	return err
}

const subSelectColumns = `
	SELECT id, agent_id, url, events, encrypted_secret, active, created_at
	FROM webhook_subscriptions
`

func scanSub(row rowScanner) (*storage.WebhookSubscription, error) {
	sub := &storage.WebhookSubscription{}
	err := row.Scan(&sub.ID, &sub.AgentID, &sub.URL, &sub.Events, &sub.EncryptedSecret, &sub.Active, &sub.CreatedAt)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

func scanSubs(rows interface {
	Next() bool
	Scan(...interface{}) error
	Err() error
}) ([]*storage.WebhookSubscription, error) {
	var out []*storage.WebhookSubscription
	for rows.Next() {
		sub, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
