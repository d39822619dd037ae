// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"context"
	"time"
)

// AgentStore persists agents, endpoints and services (upserted by C5, read
// and mutated by C7).
type AgentStore interface {
	UpsertAgent(ctx context.Context, a *Agent) error
	GetAgent(ctx context.Context, identityAddress string) (*Agent, error)
	ListAgentsByOwner(ctx context.Context, owner string) ([]*Agent, error)
	SearchAgents(ctx context.Context, query string, limit, offset int) ([]*Agent, error)
	DeactivateAgent(ctx context.Context, identityAddress string) error

	UpsertEndpoint(ctx context.Context, e *Endpoint) error
	GetEndpoint(ctx context.Context, id string) (*Endpoint, error)
	ListEndpoints(ctx context.Context, agentID string) ([]*Endpoint, error)
	ListEndpointsDueForVerification(ctx context.Context, before time.Time) ([]*Endpoint, error)
	MarkEndpointVerified(ctx context.Context, id string, nextVerify time.Time) error

	CreateVerification(ctx context.Context, v *EndpointVerification) error
	GetVerification(ctx context.Context, id string) (*EndpointVerification, error)
	UpdateVerification(ctx context.Context, v *EndpointVerification) error
	ListPendingVerifications(ctx context.Context, before time.Time) ([]*EndpointVerification, error)

	UpsertService(ctx context.Context, s *Service) error
	ReplaceServices(ctx context.Context, agentID string, services []*Service) error
	ListServices(ctx context.Context, agentID string) ([]*Service, error)
	GetService(ctx context.Context, id string) (*Service, error)
}

// JobStore persists jobs and their associated terms/attestations/messages/files.
type JobStore interface {
	CreateJob(ctx context.Context, j *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	GetJobByHash(ctx context.Context, jobHash string) (*Job, error)
	ListJobsForParticipant(ctx context.Context, identity string, limit, offset int) ([]*Job, error)

	// CASJobStatus atomically transitions a job from expectedStatus to
	// newStatus, applying mutate within the same transaction. It returns
	// ErrCASConflict if the job's current status does not match expectedStatus.
	CASJobStatus(ctx context.Context, id string, expectedStatus, newStatus JobStatus, mutate func(j *Job) error) error

	CreateDataTerms(ctx context.Context, t *JobDataTerms) error
	GetDataTerms(ctx context.Context, jobID string) (*JobDataTerms, error)
	AcceptDataTerms(ctx context.Context, jobID string) error

	CreateAttestation(ctx context.Context, a *DeletionAttestation) error
	GetAttestation(ctx context.Context, jobID string) (*DeletionAttestation, error)

	AppendMessage(ctx context.Context, m *JobMessage) error
	ListMessages(ctx context.Context, jobID string, limit, offset int) ([]*JobMessage, error)

	CreateFile(ctx context.Context, f *JobFile) error
	GetFile(ctx context.Context, id string) (*JobFile, error)
	DeleteFile(ctx context.Context, id string) error
	ListFiles(ctx context.Context, jobID string) ([]*JobFile, error)
	ListFilesForCleanup(ctx context.Context, completedBefore time.Time) ([]*JobFile, error)
}

// ErrCASConflict is returned by CASJobStatus when the expected status does
// not match the job's current status.
var ErrCASConflict = &casConflictError{}

type casConflictError struct{}

func (*casConflictError) Error() string { return "state-conflict" }

// HoldQueueStore persists SafeChat-withheld outbound messages.
type HoldQueueStore interface {
	CreateHold(ctx context.Context, h *HoldQueueEntry) error
	GetHold(ctx context.Context, id string) (*HoldQueueEntry, error)
	ListByStatus(ctx context.Context, status HoldStatus, limit, offset int) ([]*HoldQueueEntry, error)
	ListHeldOlderThan(ctx context.Context, age time.Duration) ([]*HoldQueueEntry, error)
	Resolve(ctx context.Context, id string, status HoldStatus) error
	CountHold(ctx context.Context, status HoldStatus) (int64, error)
}

// ReviewStore persists reviews indexed from the chain.
type ReviewStore interface {
	Upsert(ctx context.Context, r *Review) error
	ListForAgent(ctx context.Context, agentID string) ([]*Review, error)
	ListForBuyer(ctx context.Context, buyer string) ([]*Review, error)
}

// InboxStore persists pending signed artifacts awaiting recipient action.
type InboxStore interface {
	CreateInboxItem(ctx context.Context, item *InboxItem) error
	GetInboxItem(ctx context.Context, id string) (*InboxItem, error)
	ListInboxForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*InboxItem, error)
	UpdateStatus(ctx context.Context, id string, status InboxStatus) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotificationsForRecipient(ctx context.Context, recipient string, limit, offset int) ([]*Notification, error)
	MarkRead(ctx context.Context, id string) error
	DeleteOld(ctx context.Context, readRetention, absoluteRetention time.Duration) (int64, error)
}

// WebhookStore persists webhook subscriptions and delivery state.
type WebhookStore interface {
	CreateSubscription(ctx context.Context, s *WebhookSubscription) error
	GetSubscription(ctx context.Context, id string) (*WebhookSubscription, error)
	ListSubscriptionsForEvent(ctx context.Context, agentID, event string) ([]*WebhookSubscription, error)
	ListSubscriptions(ctx context.Context, agentID string) ([]*WebhookSubscription, error)
	DeleteSubscription(ctx context.Context, id string) error

	CreateDelivery(ctx context.Context, d *WebhookDelivery) error
	ListPendingDeliveries(ctx context.Context, before time.Time) ([]*WebhookDelivery, error)
	UpdateDelivery(ctx context.Context, d *WebhookDelivery) error
}

// NonceStore implements atomic claim-or-reject semantics (C3). Claim MUST be
// insert-or-fail, never check-then-insert.
type NonceStore interface {
	// Claim attempts to atomically insert nonce with the given expiry.
	// Returns (true, nil) if this call claimed it, (false, nil) if it was
	// already claimed (by any caller, including expired-but-not-yet-reaped
	// entries), and a non-nil error only for a storage failure.
	Claim(ctx context.Context, nonce string, expiresAt time.Time) (bool, error)
	DeleteExpiredNonces(ctx context.Context) (int64, error)
	CountNonces(ctx context.Context) (int64, error)
}

// SessionStore persists cookie-bound sessions and one-shot chat tokens.
type SessionStore interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context) (int64, error)
	TouchSession(ctx context.Context, id string) error

	CreateChatToken(ctx context.Context, t *ChatToken) error
	ConsumeChatToken(ctx context.Context, id string) (*ChatToken, error)
	DeleteExpiredChatTokens(ctx context.Context) (int64, error)
}

// CanaryStore persists per-agent leak-detection canaries.
type CanaryStore interface {
	CreateCanary(ctx context.Context, c *AgentCanary) error
	ListCanariesForAgent(ctx context.Context, agentID string) ([]*AgentCanary, error)
}

// Store aggregates every sub-store behind one transactional backend.
type Store interface {
	AgentStore
	JobStore
	HoldQueueStore
	ReviewStore
	InboxStore
	NotificationStore
	WebhookStore
	NonceStore
	SessionStore
	CanaryStore

	Close() error
	Ping(ctx context.Context) error
}
