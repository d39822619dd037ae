// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import (
	"context"
	"sync"
	"time"

	"github.com/verus-agent-platform/vap/internal/metrics"
)

const (
	breakerFailureThreshold = 3
	breakerFailureWindow    = 60 * time.Second
	breakerOpenDuration     = 30 * time.Second
)

// BreakerProvider wraps a primary Scanner (normally an HTTPProvider) with a
// circuit breaker: 3 failures within 60s opens the breaker for 30s, during
// which every call is served by the fallback without attempting the
// primary (spec.md §5, §9 "SafeChat failures never bubble").
type BreakerProvider struct {
	primary  Scanner
	fallback Scanner

	mu        sync.Mutex
	failures  []time.Time
	openUntil time.Time
}

// NewBreakerProvider builds a BreakerProvider.
func NewBreakerProvider(primary, fallback Scanner) *BreakerProvider {
	return &BreakerProvider{primary: primary, fallback: fallback}
}

func (b *BreakerProvider) isOpen(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Before(b.openUntil)
}

func (b *BreakerProvider) recordFailure(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := now.Add(-breakerFailureWindow)
	kept := b.failures[:0]
	for _, f := range b.failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	kept = append(kept, now)
	b.failures = kept

	if len(b.failures) >= breakerFailureThreshold {
		b.openUntil = now.Add(breakerOpenDuration)
		b.failures = nil
		metrics.SafeChatBreakerOpen.Set(1)
	}
}

func (b *BreakerProvider) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = nil
	if time.Now().After(b.openUntil) {
		metrics.SafeChatBreakerOpen.Set(0)
	}
}

func (b *BreakerProvider) scan(ctx context.Context, direction string, content string) (Result, error) {
	now := time.Now()
	if b.isOpen(now) {
		return b.fallbackScan(ctx, direction, content)
	}

	res, err := b.invoke(ctx, direction, content)
	if err != nil {
		b.recordFailure(now)
		return b.fallbackScan(ctx, direction, content)
	}
	b.recordSuccess()
	return res, nil
}

func (b *BreakerProvider) invoke(ctx context.Context, direction, content string) (Result, error) {
	if direction == "inbound" {
		return b.primary.Inbound(ctx, content)
	}
	return b.primary.Outbound(ctx, content)
}

func (b *BreakerProvider) fallbackScan(ctx context.Context, direction, content string) (Result, error) {
	if direction == "inbound" {
		return b.fallback.Inbound(ctx, content)
	}
	return b.fallback.Outbound(ctx, content)
}

// Inbound implements Scanner.
func (b *BreakerProvider) Inbound(ctx context.Context, content string) (Result, error) {
	return b.scan(ctx, "inbound", content)
}

// Outbound implements Scanner.
func (b *BreakerProvider) Outbound(ctx context.Context, content string) (Result, error) {
	return b.scan(ctx, "outbound", content)
}
