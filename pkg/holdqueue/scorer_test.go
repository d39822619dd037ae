// SPDX-License-Identifier: LGPL-3.0-or-later

package holdqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestScorer_CrescendoEscalation(t *testing.T) {
	s := NewScorer()
	now := time.Now()
	scores := []float64{0.35, 0.4, 0.45, 0.5, 0.5}
	var escalated bool
	for i, sc := range scores {
		escalated = s.Record("seller@", "job1", sc, now.Add(time.Duration(i)*5*time.Minute))
	}
	require.True(t, escalated, "rolling sum 2.2 over 5 flagged items should escalate")
}

func TestScorer_BelowThresholdDoesNotEscalate(t *testing.T) {
	s := NewScorer()
	now := time.Now()
	escalated := s.Record("seller@", "job1", 0.2, now)
	require.False(t, escalated)
}

func TestScorer_WindowExpiry(t *testing.T) {
	s := NewScorer()
	now := time.Now()
	s.Record("seller@", "job1", 0.9, now)
	// an hour and a half later, the first event should have aged out
	escalated := s.Record("seller@", "job1", 0.9, now.Add(90*time.Minute))
	require.False(t, escalated)
}

func TestScorer_IsolatesPerSession(t *testing.T) {
	s := NewScorer()
	now := time.Now()
	s.Record("seller@", "job1", 0.9, now)
	escalated := s.Record("seller@", "job2", 0.9, now)
	require.False(t, escalated)
}

func TestScorer_EvictsOldestOnOverflow(t *testing.T) {
	s := NewScorer()
	s.capacity = 3
	now := time.Now()
	s.Record("a", "j", 0.1, now)
	s.Record("b", "j", 0.1, now)
	s.Record("c", "j", 0.1, now)
	s.Record("d", "j", 0.1, now)
	require.Equal(t, 3, s.Len())
}
