package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat pipeline Prometheus metrics.
var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "turns_total",
			Help:      "Total number of chat turns by outcome",
		},
		[]string{"outcome"}, // "ok" / "error"
	)

	TurnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "chatepstein",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end chat turn duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 60},
		},
	)

	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "llm_requests_total",
			Help:      "Total number of LLM completion requests",
		},
		[]string{"model", "op", "status"}, // op: "reformulate" / "answer"
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chatepstein",
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		},
		[]string{"model", "op"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "llm_tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "type"}, // type: "prompt" / "completion"
	)

	CitationsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "citations_dropped_total",
			Help:      "Citation markers emitted by the generator that matched no retrieved document",
		},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chatepstein",
			Name:      "sessions_active",
			Help:      "Sessions currently held in the conversation store",
		},
	)

	SessionEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "session_evictions_total",
			Help:      "Sessions evicted under capacity pressure",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "embedding_cache_total",
			Help:      "Query embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	LinkResolutionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chatepstein",
			Name:      "link_resolution_failures_total",
			Help:      "Presigned link resolution failures (non-fatal)",
		},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers chat pipeline metrics. Must be called once from main.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(TurnsTotal)
	prometheus.MustRegister(TurnDuration)
	prometheus.MustRegister(LLMRequestsTotal)
	prometheus.MustRegister(LLMRequestDuration)
	prometheus.MustRegister(LLMTokensTotal)
	prometheus.MustRegister(CitationsDroppedTotal)
	prometheus.MustRegister(SessionsActive)
	prometheus.MustRegister(SessionEvictionsTotal)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(LinkResolutionFailuresTotal)
	chatMetricsRegistered = true
}
