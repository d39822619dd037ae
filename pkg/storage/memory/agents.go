// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) UpsertAgent(ctx context.Context, a *storage.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.agents[a.IdentityAddress] = &cp
	return nil
}

func (s *Store) GetAgent(ctx context.Context, identityAddress string) (*storage.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[identityAddress]
	if !ok {
		return nil, fmt.Errorf("agent not found: %s", identityAddress)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) ListAgentsByOwner(ctx context.Context, owner string) ([]*storage.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Agent
	for _, a := range s.agents {
		if a.Owner == owner {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IdentityAddress < out[j].IdentityAddress })
	return out, nil
}

func (s *Store) SearchAgents(ctx context.Context, query string, limit, offset int) ([]*storage.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*storage.Agent
	q := strings.ToLower(query)
	for _, a := range s.agents {
		if q == "" || strings.Contains(strings.ToLower(a.Name), q) {
			cp := *a
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].IdentityAddress < matched[j].IdentityAddress })
	return paginate(matched, limit, offset), nil
}

func (s *Store) DeactivateAgent(ctx context.Context, identityAddress string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[identityAddress]
	if !ok {
		return fmt.Errorf("agent not found: %s", identityAddress)
	}
	a.Status = storage.AgentInactive
	a.UpdatedAt = time.Now()
	return nil
}

func (s *Store) UpsertEndpoint(ctx context.Context, e *storage.Endpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.endpoints[e.ID] = &cp
	return nil
}

func (s *Store) GetEndpoint(ctx context.Context, id string) (*storage.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("endpoint not found: %s", id)
	}
	cp := *e
	return &cp, nil
}

func (s *Store) ListEndpoints(ctx context.Context, agentID string) ([]*storage.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Endpoint
	for _, e := range s.endpoints {
		if e.AgentID == agentID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListEndpointsDueForVerification(ctx context.Context, before time.Time) ([]*storage.Endpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Endpoint
	for _, e := range s.endpoints {
		if e.NextVerify != nil && e.NextVerify.Before(before) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) MarkEndpointVerified(ctx context.Context, id string, nextVerify time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.endpoints[id]
	if !ok {
		return fmt.Errorf("endpoint not found: %s", id)
	}
	now := time.Now()
	e.Verified = true
	e.LastVerify = &now
	e.NextVerify = &nextVerify
	return nil
}

func (s *Store) CreateVerification(ctx context.Context, v *storage.EndpointVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.verifications[v.ID] = &cp
	return nil
}

func (s *Store) GetVerification(ctx context.Context, id string) (*storage.EndpointVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.verifications[id]
	if !ok {
		return nil, fmt.Errorf("verification not found: %s", id)
	}
	cp := *v
	return &cp, nil
}

func (s *Store) UpdateVerification(ctx context.Context, v *storage.EndpointVerification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.verifications[v.ID]; !ok {
		return fmt.Errorf("verification not found: %s", v.ID)
	}
	cp := *v
	s.verifications[v.ID] = &cp
	return nil
}

func (s *Store) ListPendingVerifications(ctx context.Context, before time.Time) ([]*storage.EndpointVerification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.EndpointVerification
	for _, v := range s.verifications {
		if v.Status == storage.VerificationPending && !v.NextAttempt.After(before) {
			cp := *v
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) UpsertService(ctx context.Context, svc *storage.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *svc
	s.services[svc.ID] = &cp
	return nil
}

func (s *Store) ReplaceServices(ctx context.Context, agentID string, services []*storage.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, svc := range s.services {
		if svc.AgentID == agentID {
			delete(s.services, id)
		}
	}
	for _, svc := range services {
		cp := *svc
		s.services[svc.ID] = &cp
	}
	return nil
}

func (s *Store) ListServices(ctx context.Context, agentID string) ([]*storage.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Service
	for _, svc := range s.services {
		if svc.AgentID == agentID {
			cp := *svc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetService(ctx context.Context, id string) (*storage.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("service not found: %s", id)
	}
	cp := *svc
	return &cp, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end > len(items) || limit <= 0 {
		end = len(items)
	}
	return items[offset:end]
}
