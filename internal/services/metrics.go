package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var searchCacheHits = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "docsearch_search_cache_hits_total",
		Help: "Number of search requests answered from the cache",
	},
)
