// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateInboxItem(ctx context.Context, item *storage.InboxItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.inbox[item.ID] = &cp
	return nil
}

func (s *Store) GetInboxItem(ctx context.Context, id string) (*storage.InboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.inbox[id]
	if !ok {
		return nil, fmt.Errorf("inbox item not found: %s", id)
	}
	cp := *item
	return &cp, nil
}

func (s *Store) ListInboxForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*storage.InboxItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.InboxItem
	for _, item := range s.inbox {
		if item.Recipient == recipient {
			cp := *item
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status storage.InboxStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.inbox[id]
	if !ok {
		return fmt.Errorf("inbox item not found: %s", id)
	}
	item.Status = status
	return nil
}

func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for id, item := range s.inbox {
		if item.ExpiresAt.Before(now) {
			delete(s.inbox, id)
			n++
		}
	}
	return n, nil
}
