// SPDX-License-Identifier: LGPL-3.0-or-later

package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func (s *Store) CreateJob(ctx context.Context, j *storage.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobsByHash[j.JobHash]; ok {
		return fmt.Errorf("duplicate job hash: %s", j.JobHash)
	}
	cp := *j
	s.jobs[j.ID] = &cp
	s.jobsByHash[j.JobHash] = j.ID
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*storage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	cp := *j
	return &cp, nil
}

func (s *Store) GetJobByHash(ctx context.Context, jobHash string) (*storage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.jobsByHash[jobHash]
	if !ok {
		return nil, fmt.Errorf("job not found for hash: %s", jobHash)
	}
	cp := *s.jobs[id]
	return &cp, nil
}

func (s *Store) ListJobsForParticipant(ctx context.Context, identity string, limit, offset int) ([]*storage.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.Job
	for _, j := range s.jobs {
		if j.Buyer == identity || j.Seller == identity {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return paginate(out, limit, offset), nil
}

// CASJobStatus locks the whole store for the duration of the check, mutate
// and status write, which is the in-memory analogue of wrapping the same
// operations in a single database transaction.
func (s *Store) CASJobStatus(ctx context.Context, id string, expectedStatus, newStatus storage.JobStatus, mutate func(j *storage.Job) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	if j.Status != expectedStatus {
		return storage.ErrCASConflict
	}
	if mutate != nil {
		if err := mutate(j); err != nil {
			return err
		}
	}
	// When newStatus == expectedStatus, the caller isn't asserting a
	// transition — trust whatever status mutate already left on j (e.g.
	// maybeEnterInProgress flipping accepted -> in_progress inside the same
	// transaction that records the second payment txid).
	if newStatus != expectedStatus {
		j.Status = newStatus
	}
	return nil
}

func (s *Store) CreateDataTerms(ctx context.Context, t *storage.JobDataTerms) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.dataTerms[t.JobID] = &cp
	return nil
}

func (s *Store) GetDataTerms(ctx context.Context, jobID string) (*storage.JobDataTerms, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.dataTerms[jobID]
	if !ok {
		return nil, fmt.Errorf("data terms not found: %s", jobID)
	}
	cp := *t
	return &cp, nil
}

func (s *Store) AcceptDataTerms(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.dataTerms[jobID]
	if !ok {
		return fmt.Errorf("data terms not found: %s", jobID)
	}
	t.AcceptedBySeller = true
	return nil
}

func (s *Store) CreateAttestation(ctx context.Context, a *storage.DeletionAttestation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attestations[a.JobID]; ok {
		return fmt.Errorf("attestation already exists: %s", a.JobID)
	}
	cp := *a
	s.attestations[a.JobID] = &cp
	return nil
}

func (s *Store) GetAttestation(ctx context.Context, jobID string) (*storage.DeletionAttestation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attestations[jobID]
	if !ok {
		return nil, fmt.Errorf("attestation not found: %s", jobID)
	}
	cp := *a
	return &cp, nil
}

func (s *Store) AppendMessage(ctx context.Context, m *storage.JobMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.messages[m.JobID] = append(s.messages[m.JobID], &cp)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, jobID string, limit, offset int) ([]*storage.JobMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[jobID]
	out := make([]*storage.JobMessage, len(all))
	for i, m := range all {
		cp := *m
		out[i] = &cp
	}
	return paginate(out, limit, offset), nil
}

func (s *Store) CreateFile(ctx context.Context, f *storage.JobFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *f
	s.files[f.ID] = &cp
	return nil
}

func (s *Store) GetFile(ctx context.Context, id string) (*storage.JobFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", id)
	}
	cp := *f
	return &cp, nil
}

func (s *Store) DeleteFile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

func (s *Store) ListFiles(ctx context.Context, jobID string) ([]*storage.JobFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.JobFile
	for _, f := range s.files {
		if f.JobID == jobID {
			cp := *f
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListFilesForCleanup(ctx context.Context, completedBefore time.Time) ([]*storage.JobFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*storage.JobFile
	for _, f := range s.files {
		j, ok := s.jobs[f.JobID]
		if !ok || j.CompletedAt == nil {
			continue
		}
		if j.CompletedAt.Before(completedBefore) {
			cp := *f
			out = append(out, &cp)
		}
	}
	return out, nil
}
