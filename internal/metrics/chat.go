// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatConnections = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "connections",
			Help:      "Currently open websocket connections",
		},
	)

	ChatMessages = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_total",
			Help:      "Chat messages processed by outcome",
		},
		[]string{"outcome"}, // delivered|held|rejected|escalation_rejected
	)

	ChatRoomPauses = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "room_circuit_pauses_total",
			Help:      "Times the room circuit breaker paused a room",
		},
	)

	SafeChatScanDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "safechat",
			Name:      "scan_duration_seconds",
			Help:      "SafeChat provider scan latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "direction"},
	)

	SafeChatBreakerOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "safechat",
			Name:      "circuit_breaker_open",
			Help:      "1 if the SafeChat HTTP circuit breaker is currently open",
		},
	)

	HoldQueueSize = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "holdqueue",
			Name:      "held_messages",
			Help:      "Outbound messages currently awaiting human review",
		},
	)
)
