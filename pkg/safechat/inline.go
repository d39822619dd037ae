// SPDX-License-Identifier: LGPL-3.0-or-later

package safechat

import (
	"context"
	"regexp"
	"strings"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// InlineProvider is the zero-dependency regex-based scanner used as the
// fallback while the HTTP provider's circuit breaker is open (spec.md §9
// "SafeChat failures never bubble"). It trades recall for availability:
// a fixed set of heuristics over known-bad patterns.
type InlineProvider struct {
	patterns []inlinePattern
}

type inlinePattern struct {
	re       *regexp.Regexp
	score    float64
	flagType string
	severity string
}

// NewInlineProvider builds the fallback scanner with a fixed heuristic set.
func NewInlineProvider() *InlineProvider {
	return &InlineProvider{
		patterns: []inlinePattern{
			{regexp.MustCompile(`(?i)\b(ignore (all|previous) instructions|system prompt|you are now)\b`), 0.85, "prompt-injection", "high"},
			{regexp.MustCompile(`(?i)\b(private key|seed phrase|wallet\.dat)\b`), 0.9, "key-exfiltration", "high"},
			{regexp.MustCompile(`(?i)\b(wire transfer|send (crypto|btc|eth) to|gift card)\b`), 0.6, "payment-redirect", "medium"},
			{regexp.MustCompile(`(?i)\b(fuck|shit|bitch)\b`), 0.3, "profanity", "low"},
		},
	}
}

func (p *InlineProvider) scan(content string) Result {
	var maxScore float64
	var flags []storage.SafetyFlag
	for _, pat := range p.patterns {
		if pat.re.MatchString(content) {
			flags = append(flags, storage.SafetyFlag{Type: pat.flagType, Severity: pat.severity, Detail: "matched inline fallback pattern"})
			if pat.score > maxScore {
				maxScore = pat.score
			}
		}
	}
	return Result{Score: maxScore, Classification: classify(maxScore), Flags: flags}
}

func classify(score float64) Classification {
	switch {
	case score >= 0.8:
		return ClassUnsafe
	case score >= 0.3:
		return ClassSuspicious
	default:
		return ClassSafe
	}
}

// Inbound implements Scanner.
func (p *InlineProvider) Inbound(ctx context.Context, content string) (Result, error) {
	return p.scan(strings.TrimSpace(content)), nil
}

// Outbound implements Scanner.
func (p *InlineProvider) Outbound(ctx context.Context, content string) (Result, error) {
	return p.scan(strings.TrimSpace(content)), nil
}
