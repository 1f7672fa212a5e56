// Package telemetry holds the Prometheus collectors shared by the ingestion
// pipeline and the chat API. Everything registers on the default registry and
// is exposed via /metrics on the serve binary.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsrag_chat_requests_total",
		Help: "Chat requests handled, REST and websocket combined.",
	})

	ChatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsrag_chat_duration_seconds",
		Help:    "End-to-end latency of one chat answer (embed, search, generate).",
		Buckets: prometheus.DefBuckets,
	})

	ArticlesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsrag_articles_ingested_total",
		Help: "Articles that survived fetch, extraction and dedup.",
	})

	ChunksEmbedded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsrag_chunks_embedded_total",
		Help: "Chunks for which the embedding API returned a vector.",
	})

	PointsUpserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsrag_points_upserted_total",
		Help: "Points written to the vector index.",
	})

	ItemsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsrag_items_skipped_total",
		Help: "Items dropped during ingestion, by pipeline stage.",
	}, []string{"stage"})
)
