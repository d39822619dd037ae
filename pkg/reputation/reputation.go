// SPDX-License-Identifier: LGPL-3.0-or-later

// Package reputation implements the read-only reputation engine (spec.md
// component C12): recency-decay weighted scoring, confidence levels, trend,
// and Sybil-pattern flags over an agent's review set.
package reputation

import (
	"math"
	"sort"
	"time"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

// Confidence is the reliability tier of a computed score.
type Confidence string

const (
	ConfidenceNone   Confidence = "none"
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Trend summarizes the last 30 vs. prior 30 day rating movement.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// SybilFlag is a single detected suspicious-pattern.
type SybilFlag struct {
	Type     string
	Severity string
	Detail   string
}

// Report is the full computed reputation for one agent.
type Report struct {
	AgentID       string
	WeightedScore float64
	TotalReviews  int
	Confidence    Confidence
	Trend         Trend
	SybilFlags    []SybilFlag
}

// Compute derives a Report for agentID over reviews, evaluated as of now.
// buyerReviewCounts maps each buyer identity to their total review count
// across every agent on the platform (not just agentID); it is needed to
// evaluate the single-target-reviewer Sybil flag, which only fires for a
// buyer with zero reviews left for any other agent. Compute is otherwise
// pure: the same inputs always yield the same Report.
func Compute(agentID string, reviews []*storage.Review, buyerReviewCounts map[string]int, now time.Time) Report {
	rep := Report{AgentID: agentID, TotalReviews: len(reviews)}

	if len(reviews) == 0 {
		rep.Confidence = ConfidenceNone
		rep.Trend = TrendStable
		return rep
	}

	rep.WeightedScore = weightedScore(reviews, now)
	rep.Confidence = confidence(reviews)
	rep.Trend = trend(reviews, now)
	rep.SybilFlags = sybilFlags(agentID, reviews, buyerReviewCounts, now)
	return rep
}

func weightedScore(reviews []*storage.Review, now time.Time) float64 {
	var num, den float64
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		ageDays := now.Sub(r.CreatedAt).Hours() / 24
		recencyWeight := math.Pow(0.5, ageDays/90)
		verifiedBoost := 1.0
		if r.Verified {
			verifiedBoost = 1.1
		}
		w := recencyWeight * verifiedBoost
		num += float64(*r.Rating) * w
		den += w
	}
	if den == 0 {
		return 0
	}
	return math.Round(num/den*100) / 100
}

func confidence(reviews []*storage.Review) Confidence {
	n := len(reviews)
	uniqueBuyers := make(map[string]struct{}, n)
	verified := 0
	for _, r := range reviews {
		uniqueBuyers[r.Buyer] = struct{}{}
		if r.Verified {
			verified++
		}
	}
	uniqueRatio := float64(len(uniqueBuyers)) / float64(n)
	verifiedRatio := float64(verified) / float64(n)

	if n >= 10 && uniqueRatio >= 0.70 && verifiedRatio >= 0.80 {
		return ConfidenceHigh
	}
	if n >= 5 && uniqueRatio >= 0.50 {
		return ConfidenceMedium
	}
	if n < 3 {
		return ConfidenceLow
	}
	return ConfidenceLow
}

func trend(reviews []*storage.Review, now time.Time) Trend {
	last30, prior30 := 0.0, 0.0
	last30n, prior30n := 0, 0
	for _, r := range reviews {
		if r.Rating == nil {
			continue
		}
		age := now.Sub(r.CreatedAt)
		switch {
		case age <= 30*24*time.Hour:
			last30 += float64(*r.Rating)
			last30n++
		case age <= 60*24*time.Hour:
			prior30 += float64(*r.Rating)
			prior30n++
		}
	}
	if last30n == 0 || prior30n == 0 {
		return TrendStable
	}
	delta := last30/float64(last30n) - prior30/float64(prior30n)
	switch {
	case delta > 0.3:
		return TrendUp
	case delta < -0.3:
		return TrendDown
	default:
		return TrendStable
	}
}

func sybilFlags(agentID string, reviews []*storage.Review, buyerReviewCounts map[string]int, now time.Time) []SybilFlag {
	var flags []SybilFlag

	byBuyer := make(map[string][]*storage.Review)
	uniqueBuyers := make(map[string]struct{})
	for _, r := range reviews {
		byBuyer[r.Buyer] = append(byBuyer[r.Buyer], r)
		uniqueBuyers[r.Buyer] = struct{}{}

		if r.Buyer == agentID {
			flags = append(flags, SybilFlag{Type: "self-review", Severity: "high", Detail: "agent reviewed itself"})
		}
	}

	for buyer, brs := range byBuyer {
		if len(brs) >= 3 && buyerReviewCounts[buyer] == len(brs) {
			severity := "medium"
			if len(brs) >= 5 {
				severity = "high"
			}
			flags = append(flags, SybilFlag{
				Type: "single-target-reviewer", Severity: severity,
				Detail: buyer + " left " + itoa(len(brs)) + " reviews, all for this agent",
			})
		}
	}

	flags = append(flags, burstFlags(reviews)...)

	n := len(reviews)
	if n >= 5 {
		diversity := float64(len(uniqueBuyers)) / float64(n)
		if diversity < 0.3 {
			flags = append(flags, SybilFlag{Type: "low-diversity", Severity: "medium", Detail: "reviewer pool is concentrated"})
		}
	}

	return flags
}

func burstFlags(reviews []*storage.Review) []SybilFlag {
	times := make([]time.Time, 0, len(reviews))
	for _, r := range reviews {
		times = append(times, r.CreatedAt)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	var flags []SybilFlag
	for i := range times {
		count := 1
		for j := i + 1; j < len(times) && times[j].Sub(times[i]) <= time.Hour; j++ {
			count++
		}
		if count >= 5 {
			severity := "medium"
			if count >= 10 {
				severity = "high"
			}
			flags = append(flags, SybilFlag{Type: "review-burst", Severity: severity, Detail: "reviews clustered within a 1 hour window"})
			break // one burst flag is enough; avoid one per overlapping window
		}
	}
	return flags
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
