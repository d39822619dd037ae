// SPDX-License-Identifier: LGPL-3.0-or-later

// Package chat implements the real-time chat runtime (spec.md component
// C9): a websocket server with one room per job, dual authentication
// (cookie or one-shot token), per-socket and per-room rate limits, a room
// circuit breaker, SafeChat scanning on both directions, and the hold-queue
// escalation path. Mirrors the teacher's
// pkg/agent/transport/websocket server shape (upgrader, per-connection
// read/write pump) generalized to a room registry instead of a flat
// connection set.
package chat

import (
	"encoding/json"
	"time"
)

// ClientEventType is an inbound websocket event name (spec.md §6).
type ClientEventType string

const (
	ClientJoinJob  ClientEventType = "join_job"
	ClientLeaveJob ClientEventType = "leave_job"
	ClientMessage  ClientEventType = "message"
	ClientTyping   ClientEventType = "typing"
	ClientRead     ClientEventType = "read"
)

// ServerEventType is an outbound websocket event name (spec.md §6).
type ServerEventType string

const (
	ServerJoined         ServerEventType = "joined"
	ServerUserJoined     ServerEventType = "user_joined"
	ServerUserLeft       ServerEventType = "user_left"
	ServerMessage        ServerEventType = "message"
	ServerTyping         ServerEventType = "typing"
	ServerRead           ServerEventType = "read"
	ServerMessageHeld    ServerEventType = "message_held"
	ServerSessionExpiring ServerEventType = "session_expiring"
	ServerFileUploaded   ServerEventType = "file_uploaded"
	ServerError          ServerEventType = "error"
)

// ClientEvent is the envelope for every inbound frame.
type ClientEvent struct {
	Type    ClientEventType `json:"type"`
	JobID   string          `json:"jobId,omitempty"`
	Content string          `json:"content,omitempty"`
}

// ServerEvent is the envelope for every outbound frame.
type ServerEvent struct {
	Type      ServerEventType `json:"type"`
	JobID     string          `json:"jobId,omitempty"`
	Payload   interface{}     `json:"payload,omitempty"`
	Message   string          `json:"message,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func newServerEvent(t ServerEventType, jobID string, payload interface{}) ServerEvent {
	return ServerEvent{Type: t, JobID: jobID, Payload: payload, Timestamp: time.Now().Unix()}
}

func errorEvent(message string) ServerEvent {
	return ServerEvent{Type: ServerError, Message: message, Timestamp: time.Now().Unix()}
}

// MaxFrameSize bounds every websocket frame at 16 KiB (spec.md §4.3
// "Websocket frames are bounded at 16 KiB").
const MaxFrameSize = 16 * 1024

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{"type":"error","message":"internal encoding error"}`)
	}
	return b
}

func decodeClientEvent(data []byte, ev *ClientEvent) error {
	return json.Unmarshal(data, ev)
}
