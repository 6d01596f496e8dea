package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RecommendationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discover_recommendation_duration_seconds",
			Help:    "Recommendation computation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"mode"},
	)

	RecommendationsServed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_recommendations_served_total",
			Help: "Total recommendations served",
		},
		[]string{"mode"},
	)

	DiversityInjections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "discover_diversity_injections_total",
			Help: "Total documents injected for source diversity",
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "discover_search_duration_seconds",
			Help:    "Search processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_search_total",
			Help: "Total number of searches processed",
		},
		[]string{"status"},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	DocumentsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_documents_ingested_total",
			Help: "Total documents ingested",
		},
		[]string{"source"},
	)

	IngestionRowsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "discover_ingestion_rows_skipped_total",
			Help: "Total ingestion rows skipped due to bad records",
		},
		[]string{"sheet"},
	)
)

func Init() {
	prometheus.MustRegister(RecommendationDuration)
	prometheus.MustRegister(RecommendationsServed)
	prometheus.MustRegister(DiversityInjections)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(DocumentsIngested)
	prometheus.MustRegister(IngestionRowsSkipped)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
