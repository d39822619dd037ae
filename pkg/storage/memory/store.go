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

// Package memory is an in-process implementation of storage.Store, used as
// the fixture store for component tests and as a standalone backend for
// local development without Postgres.
package memory

import (
	"context"
	"sync"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Store implements storage.Store entirely in memory, guarded by a single
// RWMutex. Every getter returns a copy of the stored struct, so callers
// cannot change its fields behind the store's back. The copy is shallow:
// slices, maps and pointers inside it are still shared with the store.
type Store struct {
	mu sync.RWMutex

	agents      map[string]*storage.Agent
	endpoints   map[string]*storage.Endpoint
	verifications map[string]*storage.EndpointVerification
	services    map[string]*storage.Service

	jobs       map[string]*storage.Job
	jobsByHash map[string]string
	dataTerms  map[string]*storage.JobDataTerms
	attestations map[string]*storage.DeletionAttestation
	messages   map[string][]*storage.JobMessage
	files      map[string]*storage.JobFile

	holdQueue map[string]*storage.HoldQueueEntry
	reviews   map[string]*storage.Review
	inbox     map[string]*storage.InboxItem
	notifications map[string]*storage.Notification
	webhookSubs map[string]*storage.WebhookSubscription
	webhookDeliveries map[string]*storage.WebhookDelivery

	nonces   map[string]*storage.Nonce
	sessions map[string]*storage.Session
	chatTokens map[string]*storage.ChatToken
	canaries map[string]*storage.AgentCanary
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		agents:        make(map[string]*storage.Agent),
		endpoints:     make(map[string]*storage.Endpoint),
		verifications: make(map[string]*storage.EndpointVerification),
		services:      make(map[string]*storage.Service),
		jobs:          make(map[string]*storage.Job),
		jobsByHash:    make(map[string]string),
		dataTerms:     make(map[string]*storage.JobDataTerms),
		attestations:  make(map[string]*storage.DeletionAttestation),
		messages:      make(map[string][]*storage.JobMessage),
		files:         make(map[string]*storage.JobFile),
		holdQueue:     make(map[string]*storage.HoldQueueEntry),
		reviews:       make(map[string]*storage.Review),
		inbox:         make(map[string]*storage.InboxItem),
		notifications: make(map[string]*storage.Notification),
		webhookSubs:   make(map[string]*storage.WebhookSubscription),
		webhookDeliveries: make(map[string]*storage.WebhookDelivery),
		nonces:        make(map[string]*storage.Nonce),
		sessions:      make(map[string]*storage.Session),
		chatTokens:    make(map[string]*storage.ChatToken),
		canaries:      make(map[string]*storage.AgentCanary),
	}
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(ctx context.Context) error { return nil }
