// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateNotification(ctx context.Context, n *storage.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notifications[n.ID] = &cp
	return nil
}

func (s *Store) ListNotificationsForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*storage.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Notification
	for _, n := range s.notifications {
		if n.Recipient == recipient {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (s *Store) MarkRead(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return nil
	}
	now := time.Now()
	n.Read = true
	n.ReadAt = &now
	return nil
}

func (s *Store) DeleteOld(ctx context.Context, readRetention, absoluteRetention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for id, notif := range s.notifications {
		if notif.CreatedAt.Before(now.Add(-absoluteRetention)) {
			delete(s.notifications, id)
			n++
			continue
		}
		if notif.Read && notif.ReadAt != nil && notif.ReadAt.Before(now.Add(-readRetention)) {
			delete(s.notifications, id)
			n++
		}
	}
	return n, nil
}
