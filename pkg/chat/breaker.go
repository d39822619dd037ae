// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"sync"
	"time"
)

const (
	breakerWindow          = 60 * time.Second
	breakerMessageThreshold = 20
	breakerMaxSenders      = 2
	breakerPauseCeiling    = 5 * time.Minute
)

type senderEvent struct {
	sender string
	at     time.Time
}

// RoomBreaker implements the per-room circuit breaker (spec.md §4.3 step 2,
// §5 "per-room; pause has absolute 5 min ceiling"): a room pauses once a
// sliding 60s window holds >=20 messages from a sender set of cardinality
// <=2, and auto-unpauses when the window drains or after 5 minutes,
// whichever comes first.
type RoomBreaker struct {
	mu       sync.Mutex
	events   []senderEvent
	pausedAt time.Time
	notified bool
}

// Record appends (sender, now) and reports whether the room should be
// considered paused after this observation.
func (b *RoomBreaker) Record(sender string, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-breakerWindow)
	kept := b.events[:0]
	for _, e := range b.events {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, senderEvent{sender: sender, at: now})
	b.events = kept

	paused := b.isPausedLocked(now)
	if paused {
		if b.pausedAt.IsZero() {
			b.pausedAt = now
		}
	} else {
		b.pausedAt = time.Time{}
		b.notified = false
	}
	return paused
}

func (b *RoomBreaker) isPausedLocked(now time.Time) bool {
	if !b.pausedAt.IsZero() && now.Sub(b.pausedAt) >= breakerPauseCeiling {
		return false
	}
	if len(b.events) < breakerMessageThreshold {
		return false
	}
	senders := make(map[string]struct{}, breakerMaxSenders+1)
	for _, e := range b.events {
		senders[e.sender] = struct{}{}
		if len(senders) > breakerMaxSenders {
			return false
		}
	}
	return len(senders) <= breakerMaxSenders
}

// Paused reports the current pause state without recording an event.
func (b *RoomBreaker) Paused(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.isPausedLocked(now)
}

// ShouldNotify reports whether the room's single pause-notice system
// message still needs to be sent, marking it sent if so (spec.md §4.3 step
// 2 "a single system message is inserted once to inform participants";
// §9 resolves the repeat-on-each-attempt open question as "once per
// pause").
func (b *RoomBreaker) ShouldNotify() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.notified {
		return false
	}
	b.notified = true
	return true
}
