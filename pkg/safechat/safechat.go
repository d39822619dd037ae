// SPDX-License-Identifier: LGPL-3.0-or-later

// Package safechat models the duck-typed content-safety capability used by
// the chat runtime (spec.md component C10): two directional scan
// operations, each returning a score/classification/flags triple, backed
// by one of three interchangeable providers chosen purely by
// configuration.
package safechat

import (
	"context"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Classification is the scanner's coarse verdict.
type Classification string

const (
	ClassSafe       Classification = "safe"
	ClassSuspicious Classification = "suspicious"
	ClassUnsafe     Classification = "unsafe"
)

// Result is the outcome of a single scan.
type Result struct {
	Score          float64
	Classification Classification
	Flags          []storage.SafetyFlag
}

// Scanner is the capability both chat directions call through. Inbound
// scans buyer→agent traffic; Outbound scans agent→buyer traffic. Providers
// never need to know which direction produced the call beyond what they're
// told here — the asymmetry in thresholds lives in the chat runtime, not
// here.
type Scanner interface {
	Inbound(ctx context.Context, content string) (Result, error)
	Outbound(ctx context.Context, content string) (Result, error)
}
