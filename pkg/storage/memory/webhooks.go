// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateSubscription(ctx context.Context, sub *storage.WebhookSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.webhookSubs[sub.ID] = &cp
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, id string) (*storage.WebhookSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.webhookSubs[id]
	if !ok {
		return nil, fmt.Errorf("webhook subscription not found: %s", id)
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) ListSubscriptionsForEvent(ctx context.Context, agentID, event string) ([]*storage.WebhookSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.WebhookSubscription
	for _, sub := range s.webhookSubs {
		if sub.AgentID != agentID || !sub.Active {
			continue
		}
		for _, e := range sub.Events {
			if e == event {
				cp := *sub
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) ListSubscriptions(ctx context.Context, agentID string) ([]*storage.WebhookSubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.WebhookSubscription
	for _, sub := range s.webhookSubs {
		if sub.AgentID == agentID {
			cp := *sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) DeleteSubscription(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.webhookSubs, id)
	return nil
}

func (s *Store) CreateDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *d
	s.webhookDeliveries[d.ID] = &cp
	return nil
}

func (s *Store) ListPendingDeliveries(ctx context.Context, before time.Time) ([]*storage.WebhookDelivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.WebhookDelivery
	for _, d := range s.webhookDeliveries {
		if !d.Delivered && !d.NextAttempt.After(before) {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpdateDelivery(ctx context.Context, d *storage.WebhookDelivery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhookDeliveries[d.ID]; !ok {
		return fmt.Errorf("webhook delivery not found: %s", d.ID)
	}
	cp := *d
	s.webhookDeliveries[d.ID] = &cp
	return nil
}
