// SPDX-License-Identifier: LGPL-3.0-or-later

package jobs

import (
	"fmt"
	"strconv"
)

// formatAmount renders a float64 the way a JSON/JS client would serialize
// it: minimal digits, no trailing zeros, no exponent for ordinary currency
// amounts. Job amounts and the signed VAP-JOB/VAP-ACCEPT templates must
// agree on this representation byte-for-byte.
func formatAmount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// The six fixed template strings signed by buyers/sellers over a job's
// lifecycle (spec.md §6). These are reconstructed byte-for-byte from stored
// fields during verification; any difference must reject the signature.

func requestTemplate(seller, description string, amount float64, currency string, fee float64, safechat bool, deadline string, ts int64) string {
	sc := "no"
	if safechat {
		sc = "yes"
	}
	dl := "None"
	if deadline != "" {
		dl = deadline
	}
	return fmt.Sprintf("VAP-JOB|To:%s|Desc:%s|Amt:%s %s|Fee:%.4f %s|SafeChat:%s|Deadline:%s|Ts:%d|I request this job and agree to pay upon completion.",
		seller, description, formatAmount(amount), currency, fee, currency, sc, dl, ts)
}

func acceptTemplate(jobHash, buyer string, amount float64, currency string, ts int64) string {
	return fmt.Sprintf("VAP-ACCEPT|Job:%s|Buyer:%s|Amt:%s %s|Ts:%d|I accept this job and commit to delivering the work.",
		jobHash, buyer, formatAmount(amount), currency, ts)
}

func deliverTemplate(jobHash, deliveryHash string, ts int64) string {
	return fmt.Sprintf("VAP-DELIVER|Job:%s|Delivery:%s|Ts:%d|I have delivered the work for this job.", jobHash, deliveryHash, ts)
}

func completeTemplate(jobHash string, ts int64) string {
	return fmt.Sprintf("VAP-COMPLETE|Job:%s|Ts:%d|I confirm the work has been delivered satisfactorily.", jobHash, ts)
}

func disputeTemplate(jobHash, reason string, ts int64) string {
	return fmt.Sprintf("VAP-DISPUTE|Job:%s|Reason:%s|Ts:%d|I am raising a dispute on this job.", jobHash, reason, ts)
}

func deleteTemplate(jobHash string, ts int64) string {
	return fmt.Sprintf("VAP-DELETE|Job:%s|Ts:%d|I attest that all buyer-provided data, conversation history, and generated artifacts for this job have been deleted from my systems. This is a binding commitment under the platform terms of service.",
		jobHash, ts)
}
