// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "transitions_total",
			Help:      "Job state machine transitions by resulting status",
		},
		[]string{"status"},
	)

	JobTransitionConflicts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "cas_conflicts_total",
			Help:      "Compare-and-swap conflicts on job status transitions",
		},
		[]string{"from_status", "attempted_status"},
	)

	JobPaymentVerifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "payment_verifications_total",
			Help:      "Payment txid verification outcomes",
		},
		[]string{"kind", "verified"}, // kind: payment|platform_fee
	)

	VerifyDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sigverify",
			Name:      "duration_seconds",
			Help:      "Signed-envelope verification latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"action", "outcome"},
	)
)
