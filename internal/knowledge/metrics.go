package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus指标
var (
	searchTierCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_search_requests_total",
			Help: "Number of search requests by the tier that served them",
		},
		[]string{"tier", "degraded"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "docsearch_search_duration_seconds",
			Help:    "Duration of search requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	tierFallbackCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_search_tier_fallbacks_total",
			Help: "Number of times a search tier was skipped",
		},
		[]string{"tier", "reason"}, // reason: unavailable, empty
	)

	embeddingItemFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_embedding_item_failures_total",
			Help: "Number of texts that failed to embed",
		},
		[]string{"policy"},
	)

	answerFallbackCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docsearch_answer_fallbacks_total",
			Help: "Number of answers served by the extractive fallback",
		},
	)

	ingestedDocuments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "docsearch_ingested_documents_total",
			Help: "Number of documents ingested",
		},
	)

	ingestedChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "docsearch_ingested_chunks_total",
			Help: "Number of chunks written, by whether a vector was stored",
		},
		[]string{"vector"},
	)
)

// 外部索引写入失败计数
var indexWriteFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "docsearch_index_write_failures_total",
		Help: "Number of chunk writes rejected by an external index",
	},
	[]string{"index"}, // index: vector, lexical
)
