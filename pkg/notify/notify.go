// SPDX-License-Identifier: LGPL-3.0-or-later

// Package notify implements the unified in-app notification feed and the
// per-agent webhook subscription/delivery pipeline (spec.md component
// C13): every job/chat/file event funnels through Service.Emit, which
// fans out to both a persisted Notification and any matching
// WebhookSubscription.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/verus-agent-platform/vap/internal/apperr"
	"github.com/verus-agent-platform/vap/internal/logger"
	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Event names (spec.md §4.8).
const (
	EventJobRequested    = "job.requested"
	EventJobAccepted     = "job.accepted"
	EventJobPayment      = "job.payment"
	EventJobStarted      = "job.started"
	EventJobDelivered    = "job.delivered"
	EventJobCompleted    = "job.completed"
	EventJobDisputed     = "job.disputed"
	EventJobCancelled    = "job.cancelled"
	EventMessageNew      = "message.new"
	EventFileUploaded    = "file.uploaded"
	EventAttestationDone = "job.deletion_attested"
)

const (
	readRetention     = 7 * 24 * time.Hour
	absoluteRetention = 90 * 24 * time.Hour
)

// Emission describes one event for one recipient, enough to build both a
// Notification row and a webhook payload.
type Emission struct {
	Recipient string
	Event     string
	Title     string
	Body      string
	JobID     string
	Data      map[string]interface{}
}

// Service is the C13 facade used by every other component to raise events.
type Service struct {
	store    storage.NotificationStore
	webhooks *WebhookDispatcher
	log      logger.Logger
}

// New builds a Service. webhooks may be nil if no webhook subscriptions
// exist yet (e.g. early-boot smoke tests); Emit degrades to in-app only.
func New(store storage.NotificationStore, webhooks *WebhookDispatcher, log logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	return &Service{store: store, webhooks: webhooks, log: log}
}

// Emit persists an in-app notification and, if the recipient is an agent
// with matching webhook subscriptions, enqueues deliveries. Failures to
// enqueue a webhook never fail the call — in-app delivery is the
// authoritative side-effect (spec.md §4.8, §9 "never fired from request
// handlers" applies to the retry sweep, not this enqueue step).
func (s *Service) Emit(ctx context.Context, e Emission) error {
	n := &storage.Notification{
		ID:        uuid.NewString(),
		Recipient: e.Recipient,
		Type:      e.Event,
		Title:     e.Title,
		Body:      e.Body,
		JobID:     e.JobID,
		Data:      e.Data,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "create notification", err)
	}

	if s.webhooks != nil {
		if err := s.webhooks.Enqueue(ctx, e.Recipient, e.Event, e.Data); err != nil {
			s.log.Warn("webhook enqueue failed", logger.String("event", e.Event), logger.Error(err))
		}
	}
	return nil
}

// List returns a recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipient string, limit, offset int) ([]*storage.Notification, error) {
	return s.store.ListNotificationsForRecipient(ctx, recipient, limit, offset)
}

// Ack marks a single notification read.
func (s *Service) Ack(ctx context.Context, id string) error {
	return s.store.MarkRead(ctx, id)
}

// Sweep deletes notifications older than the retention policy (spec.md
// §3: "7 days after read, 90 days absolute"). Run off a ticker.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	return s.store.DeleteOld(ctx, readRetention, absoluteRetention)
}

// StartSweeper runs Sweep on a ticker until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.log.Error("notification sweep failed", logger.Error(err))
				}
			}
		}
	}()
}
