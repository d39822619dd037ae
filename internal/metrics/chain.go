// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChainRPCCalls = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_calls_total",
			Help:      "Calls issued to the external blockchain node, by method and outcome",
		},
		[]string{"method", "outcome"},
	)

	ChainRPCDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_duration_seconds",
			Help:      "Blockchain node RPC latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	IdentityCacheHits = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "identity_cache_total",
			Help:      "Identity resolution cache hits vs misses",
		},
		[]string{"result"}, // hit|miss
	)

	IndexerLastBlock = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "last_indexed_block",
			Help:      "Watermark of the last block height fully indexed",
		},
	)

	IndexerErrors = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "errors_total",
			Help:      "Indexer poll errors, triggers backoff",
		},
	)

	EndpointVerifications = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "endpointverify",
			Name:      "attempts_total",
			Help:      "Endpoint verification attempts by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	WebhookDeliveries = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "deliveries_total",
			Help:      "Webhook delivery attempts by event type and outcome",
		},
		[]string{"event", "outcome"},
	)
)
