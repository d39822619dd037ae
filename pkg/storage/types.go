// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package storage defines the persistence contracts for every entity in the
// data model (spec.md §3) and is implemented by both pkg/storage/postgres
// and pkg/storage/memory.
package storage

import "time"

type AgentType string

const (
	AgentAutonomous AgentType = "autonomous"
	AgentAssisted   AgentType = "assisted"
	AgentHybrid     AgentType = "hybrid"
	AgentTool       AgentType = "tool"
)

type AgentStatus string

const (
	AgentActive     AgentStatus = "active"
	AgentInactive   AgentStatus = "inactive"
	AgentDeprecated AgentStatus = "deprecated"
)

// Agent is a registered identity on the platform.
type Agent struct {
	IdentityAddress string
	Name            string
	Type            AgentType
	Status          AgentStatus
	Owner           string
	Watermark       uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type EndpointVerificationStatus string

const (
	VerificationPending  EndpointVerificationStatus = "pending"
	VerificationVerified EndpointVerificationStatus = "verified"
	VerificationFailed   EndpointVerificationStatus = "failed"
	VerificationStale    EndpointVerificationStatus = "stale"
)

// Endpoint is an agent-owned HTTP origin claim.
type Endpoint struct {
	ID          string
	AgentID     string
	URL         string
	Protocol    string
	Public      bool
	Verified    bool
	LastVerify  *time.Time
	NextVerify  *time.Time
}

// EndpointVerification tracks a single challenge/response attempt.
type EndpointVerification struct {
	ID          string
	EndpointID  string
	Challenge   string
	Status      EndpointVerificationStatus
	RetryCount  int
	NextAttempt time.Time
	CreatedAt   time.Time
}

// SessionParams are the duration/quota limits for a chat room.
type SessionParams struct {
	DurationSeconds int
	MaxTokens       int
	MaxImages       int
	MaxMessages     int
	MaxFileSizeMB   int
	AllowedMIME     []string
}

// Service is an agent-offered listing.
type Service struct {
	ID        string
	AgentID   string
	Name      string
	Price     float64
	Currency  string
	Category  string
	Turnaround string
	Session   SessionParams
}

type PaymentTerms string

const (
	TermsPrepay  PaymentTerms = "prepay"
	TermsPostpay PaymentTerms = "postpay"
	TermsSplit   PaymentTerms = "split"
)

type JobStatus string

const (
	JobRequested  JobStatus = "requested"
	JobAccepted   JobStatus = "accepted"
	JobInProgress JobStatus = "in_progress"
	JobDelivered  JobStatus = "delivered"
	JobCompleted  JobStatus = "completed"
	JobDisputed   JobStatus = "disputed"
	JobCancelled  JobStatus = "cancelled"
)

// JobSignatures holds the four append-only signature slots of a job.
type JobSignatures struct {
	Request    string
	Acceptance string
	Delivery   string
	Completion string
}

// Job is the central unit of commerce between a buyer and seller agent.
type Job struct {
	ID                   string
	JobHash              string
	Buyer                string
	Seller               string
	ServiceID            string
	Description          string
	Amount               float64
	Currency             string
	Deadline             *time.Time
	PaymentTerms         PaymentTerms
	PaymentTxid          string
	PaymentVerified      bool
	PlatformFeeTxid      string
	PlatformFeeVerified  bool
	Signatures           JobSignatures
	Status               JobStatus
	DeliveryHash         string
	DeliveryMessage      string
	SafechatEnabled      bool
	RequestedAt          time.Time
	AcceptedAt           *time.Time
	InProgressAt         *time.Time
	DeliveredAt          *time.Time
	CompletedAt          *time.Time
	DisputedAt           *time.Time
	CancelledAt          *time.Time
}

type DataRetention string

const (
	RetentionNone        DataRetention = "none"
	RetentionJobDuration DataRetention = "job-duration"
	Retention30Days      DataRetention = "30-days"
)

// JobDataTerms is 1:1 with a Job.
type JobDataTerms struct {
	JobID                     string
	Retention                 DataRetention
	AllowTraining             bool
	AllowThirdParty           bool
	RequireDeletionAttestation bool
	AcceptedBySeller          bool
}

// DeletionAttestation is at most one per job.
type DeletionAttestation struct {
	JobID              string
	SellerSignature    string
	SignatureVerified  bool
	CreatedAt          time.Time
}

// JobMessage is an append-only chat message scoped to a job.
type JobMessage struct {
	ID               string
	JobID            string
	Sender           string // identity address or "system"
	Content          string
	Signed           bool
	Signature        string
	SafetyScore      *float64
	ReleasedFromHold bool
	CreatedAt        time.Time
}

// JobFile is an uploaded attachment, the only mutable content type.
type JobFile struct {
	ID        string
	JobID     string
	MessageID string
	Uploader  string
	Filename  string
	MIME      string
	Size      int64
	Checksum  string
	Handle    string
	CreatedAt time.Time
}

type HoldStatus string

const (
	HoldHeld     HoldStatus = "held"
	HoldReleased HoldStatus = "released"
	HoldRejected HoldStatus = "rejected"
	HoldExpired  HoldStatus = "expired"
)

// SafetyFlag is a typed classification attached to a scanned message.
type SafetyFlag struct {
	Type     string
	Severity string
	Detail   string
}

// HoldQueueEntry is an outbound message withheld by SafeChat pending review.
type HoldQueueEntry struct {
	ID          string
	JobID       string
	Sender      string
	Content     string
	Score       float64
	Flags       []SafetyFlag
	Status      HoldStatus
	AppealReason string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Review is a buyer-authored, signed rating of an agent.
type Review struct {
	ID        string
	AgentID   string
	Buyer     string
	JobHash   string
	Message   string
	Rating    *int
	Signature string
	Verified  bool
	CreatedAt time.Time
}

type InboxType string

const (
	InboxReview        InboxType = "review"
	InboxJobRequest    InboxType = "job_request"
	InboxJobAccepted   InboxType = "job_accepted"
	InboxJobDelivered  InboxType = "job_delivered"
	InboxJobCompleted  InboxType = "job_completed"
	InboxMessage       InboxType = "message"
)

type InboxStatus string

const (
	InboxPending  InboxStatus = "pending"
	InboxAccepted InboxStatus = "accepted"
	InboxRejected InboxStatus = "rejected"
	InboxExpired  InboxStatus = "expired"
)

// InboxItem is a platform-side pending signed artifact.
type InboxItem struct {
	ID        string
	Recipient string
	Sender    string
	Type      InboxType
	Rating    *int
	Message   string
	JobHash   string
	Signature string
	Status    InboxStatus
	Payload   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Notification is an in-app user-facing event.
type Notification struct {
	ID        string
	Recipient string
	Type      string
	Title     string
	Body      string
	JobID     string
	Read      bool
	Data      map[string]interface{}
	CreatedAt time.Time
	ReadAt    *time.Time
}

// WebhookSubscription is an agent-owned delivery target.
type WebhookSubscription struct {
	ID              string
	AgentID         string
	URL             string
	Events          []string
	EncryptedSecret []byte
	Active          bool
	CreatedAt       time.Time
}

// WebhookDelivery tracks a single attempt at delivering an event. Payload
// is the exact JSON body to (re)send, captured at enqueue time so retries
// across restarts resend byte-identical bytes (spec.md §8 "Round-trips").
type WebhookDelivery struct {
	ID             string
	SubscriptionID string
	EventID        string
	EventType      string
	Payload        []byte
	Attempts       int
	NextAttempt    time.Time
	Delivered      bool
	GaveUp         bool
	CreatedAt      time.Time
}

// Nonce is claimed atomically by the signature verifier (C3/C4).
type Nonce struct {
	Value     string
	ExpiresAt time.Time
	ClaimedAt time.Time
}

// Session is a cookie-bound HTTP/websocket session.
type Session struct {
	ID         string
	Identity   string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// ChatToken is a one-shot bearer for a websocket handshake.
type ChatToken struct {
	ID        string
	Identity  string
	JobID     string
	Used      bool
	ExpiresAt time.Time
}

// AgentCanary is a tiny bearer string an agent embeds in its own system
// prompt; its appearance in outbound chat content implies a prompt leak
// (spec.md §3 "AgentCanary", §4.3 step 5).
type AgentCanary struct {
	ID        string
	AgentID   string
	Value     string
	CreatedAt time.Time
}
