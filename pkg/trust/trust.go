// SPDX-License-Identifier: LGPL-3.0-or-later

// Package trust computes the public transparency/trust level and 0-100
// trust score for an agent (spec.md component C14) from job statistics,
// identity age, and rating evidence.
package trust

import "math"

// Level is a coarse, publicly displayed trust tier.
type Level string

const (
	LevelNew          Level = "new"
	LevelEstablishing Level = "establishing"
	LevelEstablished  Level = "established"
	LevelTrusted      Level = "trusted"
)

// Stats is the raw input feeding both the level and the numeric score.
type Stats struct {
	CompletedJobs    int
	DisputedJobs     int
	TotalJobs        int
	AverageRating    float64
	VerifiedReviews  int
	IdentityAgeDays  float64
	ActiveDays       float64
}

func (s Stats) disputeRate() float64 {
	if s.TotalJobs == 0 {
		return 0
	}
	return float64(s.DisputedJobs) / float64(s.TotalJobs)
}

type threshold struct {
	level           Level
	minCompleted    int
	maxDisputeRate  float64
	minAvgRating    float64 // 0 means "not required"
	minActiveDays   float64
}

var thresholds = []threshold{
	{LevelTrusted, 50, 0.02, 4.0, 90},
	{LevelEstablished, 20, 0.03, 0, 60},
	{LevelEstablishing, 5, 0.05, 0, 0},
	{LevelNew, 0, 1.0, 0, 0},
}

// Classify returns the highest trust level whose thresholds are all met,
// evaluated in descending order (spec.md §4.7).
func Classify(s Stats) Level {
	rate := s.disputeRate()
	for _, th := range thresholds {
		if s.CompletedJobs < th.minCompleted {
			continue
		}
		if rate > th.maxDisputeRate {
			continue
		}
		if th.minAvgRating > 0 && s.AverageRating < th.minAvgRating {
			continue
		}
		if s.ActiveDays < th.minActiveDays {
			continue
		}
		return th.level
	}
	return LevelNew
}

// Score computes the 0-100 trust score as the sum of five capped
// components (spec.md §4.7).
func Score(s Stats) float64 {
	completion := linearCap(float64(s.CompletedJobs), 50, 30)
	lowDispute := math.Max(0, 1-s.disputeRate()*10) * 20
	rating := s.AverageRating / 5 * 25
	if rating < 0 {
		rating = 0
	}
	if rating > 25 {
		rating = 25
	}
	identityAge := linearCap(s.IdentityAgeDays, 180, 15)
	verifiedReviews := linearCap(float64(s.VerifiedReviews), 10, 10)

	total := completion + lowDispute + rating + identityAge + verifiedReviews
	return math.Round(total*100) / 100
}

// linearCap scales value linearly from 0 at x=0 to max at x=atValue,
// capping at max beyond that point.
func linearCap(value, atValue, max float64) float64 {
	if atValue <= 0 {
		return 0
	}
	v := value / atValue * max
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}
