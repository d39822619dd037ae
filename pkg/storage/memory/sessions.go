// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateSession(ctx context.Context, sess *storage.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (*storage.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	cp := *sess
	return &cp, nil
}

func (s *Store) DeleteSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for id, sess := range s.sessions {
		if sess.ExpiresAt.Before(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) TouchSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("session not found: %s", id)
	}
	sess.LastUsedAt = time.Now()
	return nil
}

func (s *Store) CreateChatToken(ctx context.Context, t *storage.ChatToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.chatTokens[t.ID] = &cp
	return nil
}

// ConsumeChatToken atomically checks Used and sets it under the store lock,
// so a token can only ever be redeemed by one websocket handshake.
func (s *Store) ConsumeChatToken(ctx context.Context, id string) (*storage.ChatToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.chatTokens[id]
	if !ok {
		return nil, fmt.Errorf("chat token not found: %s", id)
	}
	if t.Used {
		return nil, fmt.Errorf("chat token already used: %s", id)
	}
	if t.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("chat token expired: %s", id)
	}
	t.Used = true
	cp := *t
	return &cp, nil
}

func (s *Store) DeleteExpiredChatTokens(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var n int64
	for id, t := range s.chatTokens {
		if t.ExpiresAt.Before(now) {
			delete(s.chatTokens, id)
			n++
		}
	}
	return n, nil
}
