// SPDX-License-Identifier: LGPL-3.0-or-later

// Package jobs implements the signed job lifecycle state machine (spec.md
// component C8): CAS-guarded status transitions, dual-payment gating,
// fee-rate computation, and the fixed VAP-* signature templates (spec.md
// §6) reconstructed byte-for-byte during verification.
package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeHash derives the content-addressed jobHash: the first 128 bits
// (16 bytes) of SHA-256 over "buyer|seller|description|amount|timestamp"
// (spec.md §3, GLOSSARY).
func ComputeHash(buyer, seller, description string, amount float64, timestamp int64) string {
	msg := fmt.Sprintf("%s|%s|%s|%.8f|%d", buyer, seller, description, amount, timestamp)
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:16])
}
