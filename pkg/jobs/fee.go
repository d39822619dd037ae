// SPDX-License-Identifier: LGPL-3.0-or-later

package jobs

import "github.com/verus-agent-platform/vap/pkg/storage"

// FeeRate computes the platform fee rate for a job's data terms (spec.md
// §4.2 "Fee rate policy"). It is a pure function over the binary discount
// triple {allowTraining, allowThirdParty, requireDeletionAttestation}, with
// exactly 8 possible outcomes (spec.md §8).
func FeeRate(terms storage.JobDataTerms, baseRate, maxDiscount float64) float64 {
	discount := 0.0
	if terms.AllowTraining {
		discount += 0.10
	}
	if terms.AllowThirdParty {
		discount += 0.10
	}
	if !terms.RequireDeletionAttestation {
		discount += 0.05
	}
	if discount > maxDiscount {
		discount = maxDiscount
	}
	return baseRate * (1 - discount)
}

// PlatformFee computes the fee amount owed on top of a job's base amount.
func PlatformFee(amount float64, terms storage.JobDataTerms, baseRate, maxDiscount float64) float64 {
	return amount * FeeRate(terms, baseRate, maxDiscount)
}
