// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	"github.com/verus-agent-platform/vap/internal/ratelimit"
)

const (
	defaultRoomDuration = 1800 * time.Second
	minRoomDuration     = 60 * time.Second
	maxRoomDuration     = 86400 * time.Second
	warningLeadTime     = 120 * time.Second
	warningMinDuration  = 180 * time.Second

	typingThrottle = 500 * time.Millisecond
	readThrottle   = time.Second

	roomMessageLimit  = 60
	perUserMsgLimit   = 30
	perUserMsgWindow  = 60 * time.Second
)

// Room is the per-job broadcast domain: one registry entry, one breaker,
// one set of connected sockets. All writes to a room are serialized by mu
// (spec.md §4.3 "a per-room lock or single-consumer mailbox"); RPCs are
// never called while mu is held (spec.md §5 locking discipline).
type Room struct {
	JobID   string
	mu      sync.Mutex
	members map[*Conn]struct{}

	breaker     RoomBreaker
	roomWindow  *ratelimit.Window
	userWindows map[string]*ratelimit.Window

	lastTyping map[string]time.Time
	lastRead   map[string]time.Time
	readMarks  map[string]time.Time // identity -> last read timestamp

	expiresAt time.Time
	warned    bool

	createdAt time.Time
}

func newRoom(jobID string, duration time.Duration) *Room {
	if duration < minRoomDuration {
		duration = minRoomDuration
	}
	if duration > maxRoomDuration {
		duration = maxRoomDuration
	}
	now := time.Now()
	return &Room{
		JobID:       jobID,
		members:     make(map[*Conn]struct{}),
		roomWindow:  ratelimit.NewWindow(roomMessageLimit, time.Minute),
		userWindows: make(map[string]*ratelimit.Window),
		lastTyping:  make(map[string]time.Time),
		lastRead:    make(map[string]time.Time),
		readMarks:   make(map[string]time.Time),
		expiresAt:   now.Add(duration),
		createdAt:   now,
	}
}

// Join adds a connection under the room lock and returns the identities of
// the members that were already present, for the "joined" ack.
func (r *Room) Join(c *Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.identitiesLocked()
	r.members[c] = struct{}{}
	return members
}

// Leave removes a connection and reports whether the room is now empty.
func (r *Room) Leave(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, c)
	return len(r.members) == 0
}

func (r *Room) identitiesLocked() []string {
	out := make([]string, 0, len(r.members))
	for c := range r.members {
		out = append(out, c.identity)
	}
	return out
}

// Broadcast sends event to every member except skip (if non-nil), holding
// the room lock for the duration — this is what gives the room its FIFO
// broadcast order (spec.md §8 "its broadcast to the room respects the
// ingest order per room").
func (r *Room) Broadcast(event ServerEvent, skip *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data := mustMarshal(event)
	for c := range r.members {
		if c == skip {
			continue
		}
		c.enqueue(data)
	}
}

// AllowMessage checks per-room and per-user-room sliding windows (spec.md
// §4.2 "per-room max 60/min", per-user cap 30/min).
func (r *Room) AllowMessage(identity string, now time.Time) bool {
	r.mu.Lock()
	w, ok := r.userWindows[identity]
	if !ok {
		w = ratelimit.NewWindow(perUserMsgLimit, perUserMsgWindow)
		r.userWindows[identity] = w
	}
	r.mu.Unlock()
	return r.roomWindow.Allow(now) && w.Allow(now)
}

// AllowTyping throttles typing events to one per 500ms per identity.
func (r *Room) AllowTyping(identity string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastTyping[identity]
	if ok && now.Sub(last) < typingThrottle {
		return false
	}
	r.lastTyping[identity] = now
	return true
}

// AllowRead throttles read-receipt events to one per second per identity
// and records the new read mark.
func (r *Room) AllowRead(identity string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	last, ok := r.lastRead[identity]
	if ok && now.Sub(last) < readThrottle {
		return false
	}
	r.lastRead[identity] = now
	r.readMarks[identity] = now
	return true
}

// MemberCount reports the current connection count (diagnostics/tests).
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// ExpiresAt and ShouldWarn support the session-expiry timer pair (spec.md
// §4.3 "Room membership": a warning 120s before expiry, only if total
// duration > 180s, and a forced disconnect at expiry).
func (r *Room) ExpiresAt() time.Time { return r.expiresAt }

func (r *Room) ShouldWarn(now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.warned {
		return false
	}
	if r.expiresAt.Sub(r.createdAt) <= warningMinDuration {
		return false
	}
	if now.Before(r.expiresAt.Add(-warningLeadTime)) {
		return false
	}
	r.warned = true
	return true
}

// Registry is the process-wide job-id -> Room map (spec.md §5 "Room
// registry: one lock or mailbox per room"). It is the global mutable state
// explicitly called out in spec.md §9 — it has no durable counterpart and
// does not survive restart.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry builds an empty room registry.
func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// GetOrCreate returns the room for jobID, creating it with the given
// session duration if this is the first join.
func (reg *Registry) GetOrCreate(jobID string, duration time.Duration) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[jobID]
	if !ok {
		r = newRoom(jobID, duration)
		reg.rooms[jobID] = r
	}
	return r
}

// Get returns the room for jobID if it already exists.
func (reg *Registry) Get(jobID string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[jobID]
	return r, ok
}

// Drop removes an empty room from the registry.
func (reg *Registry) Drop(jobID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, jobID)
}

// ListExpired returns rooms whose expiry has passed, for the expiry sweep.
func (reg *Registry) ListExpired(now time.Time) []*Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var out []*Room
	for _, r := range reg.rooms {
		if !r.expiresAt.After(now) {
			out = append(out, r)
		}
	}
	return out
}
