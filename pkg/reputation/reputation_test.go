// SPDX-License-Identifier: LGPL-3.0-or-later

package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/verus-agent-platform/vap/pkg/storage"
)

func rating(v int) *int { return &v }

func review(buyer string, r int, age time.Duration, now time.Time, verified bool) *storage.Review {
	return &storage.Review{Buyer: buyer, Rating: rating(r), CreatedAt: now.Add(-age), Verified: verified}
}

// buyerCounts assumes every review in the slice is this buyer's only
// activity on the platform, matching the single-target-reviewer scenarios
// under test.
func buyerCounts(reviews []*storage.Review) map[string]int {
	counts := make(map[string]int)
	for _, r := range reviews {
		counts[r.Buyer]++
	}
	return counts
}

func TestCompute_NoReviews(t *testing.T) {
	rep := Compute("agent1", nil, nil, time.Now())
	require.Equal(t, ConfidenceNone, rep.Confidence)
	require.Equal(t, 0, rep.TotalReviews)
}

func TestCompute_RecencyWeighting(t *testing.T) {
	now := time.Now()
	reviews := []*storage.Review{
		review("b1", 5, 0, now, true),
		review("b2", 1, 365*24*time.Hour, now, true), // a year old: decayed to near nothing
	}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	require.Greater(t, rep.WeightedScore, 4.5)
}

func TestCompute_SelfReviewFlag(t *testing.T) {
	now := time.Now()
	reviews := []*storage.Review{review("agent1", 5, time.Hour, now, false)}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	require.Len(t, rep.SybilFlags, 1)
	require.Equal(t, "self-review", rep.SybilFlags[0].Type)
}

func TestCompute_SingleTargetReviewer(t *testing.T) {
	now := time.Now()
	var reviews []*storage.Review
	for i := 0; i < 4; i++ {
		reviews = append(reviews, review("sameBuyer", 5, time.Duration(i)*time.Hour*48, now, true))
	}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	found := false
	for _, f := range rep.SybilFlags {
		if f.Type == "single-target-reviewer" {
			found = true
		}
	}
	require.True(t, found)
}

func TestCompute_ReviewBurst(t *testing.T) {
	now := time.Now()
	var reviews []*storage.Review
	for i := 0; i < 6; i++ {
		reviews = append(reviews, review("buyer"+string(rune('a'+i)), 5, time.Duration(i)*time.Minute, now, false))
	}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	found := false
	for _, f := range rep.SybilFlags {
		if f.Type == "review-burst" {
			found = true
		}
	}
	require.True(t, found)
}

func TestCompute_ConfidenceHigh(t *testing.T) {
	now := time.Now()
	var reviews []*storage.Review
	for i := 0; i < 12; i++ {
		reviews = append(reviews, review("buyer"+string(rune('a'+i)), 5, time.Duration(i)*24*time.Hour, now, true))
	}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	require.Equal(t, ConfidenceHigh, rep.Confidence)
}

func TestCompute_TrendUp(t *testing.T) {
	now := time.Now()
	reviews := []*storage.Review{
		review("b1", 5, 5*24*time.Hour, now, true),
		review("b2", 5, 10*24*time.Hour, now, true),
		review("b3", 1, 45*24*time.Hour, now, true),
		review("b4", 1, 50*24*time.Hour, now, true),
	}
	rep := Compute("agent1", reviews, buyerCounts(reviews), now)
	require.Equal(t, TrendUp, rep.Trend)
}
