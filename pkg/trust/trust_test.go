// SPDX-License-Identifier: LGPL-3.0-or-later

package trust

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassify_Trusted(t *testing.T) {
	s := Stats{CompletedJobs: 60, TotalJobs: 60, DisputedJobs: 1, AverageRating: 4.5, ActiveDays: 100}
	require.Equal(t, LevelTrusted, Classify(s))
}

func TestClassify_FallsBackWhenRatingTooLow(t *testing.T) {
	s := Stats{CompletedJobs: 60, TotalJobs: 60, DisputedJobs: 0, AverageRating: 3.0, ActiveDays: 100}
	require.Equal(t, LevelEstablished, Classify(s))
}

func TestClassify_New(t *testing.T) {
	s := Stats{CompletedJobs: 1, TotalJobs: 1, DisputedJobs: 1}
	require.Equal(t, LevelNew, Classify(s))
}

func TestScore_CapsAtComponentMax(t *testing.T) {
	s := Stats{
		CompletedJobs: 500, TotalJobs: 500, DisputedJobs: 0,
		AverageRating: 5.0, VerifiedReviews: 100, IdentityAgeDays: 1000,
	}
	require.Equal(t, 100.0, Score(s))
}

func TestScore_ZeroStats(t *testing.T) {
	// With no jobs the dispute rate is 0, so only the low-dispute
	// component scores, at its full 20.
	s := Stats{}
	require.Equal(t, 20.0, Score(s))
}

func TestScore_Partial(t *testing.T) {
	s := Stats{CompletedJobs: 25, TotalJobs: 25, AverageRating: 2.5, IdentityAgeDays: 90, VerifiedReviews: 5}
	score := Score(s)
	require.InDelta(t, 15+20+12.5+7.5+5, score, 0.01)
}
