package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_messages_processed_total",
			Help: "Total number of messages that went through the pipeline (count)",
		},
		[]string{"decision", "status"},
	)

	PipelineStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "triage_pipeline_stage_duration_ms",
			Help:    "Duration of each pipeline stage in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
		[]string{"stage"},
	)

	ClassifierAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_classifier_attempts_total",
			Help: "Total number of reasoning service calls by outcome (count)",
		},
		[]string{"provider", "outcome"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	ClassifierCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_classifier_cache_total",
			Help: "Classification cache lookups by result (count)",
		},
		[]string{"result"},
	)

	IntakeMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_intake_messages_total",
			Help: "Messages checked by the intake filter by result (count)",
		},
		[]string{"result"},
	)

	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_alerts_total",
			Help: "Total number of alert deliveries by notifier and status (count)",
		},
		[]string{"notifier", "status"},
	)

	RecordsPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_records_persisted_total",
			Help: "Total number of record persistence attempts (count)",
		},
		[]string{"store", "status"},
	)

	SyncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_sync_runs_total",
			Help: "Total number of sync runs (count)",
		},
		[]string{"trigger", "status"},
	)

	SyncMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "triage_sync_messages_total",
			Help: "Messages handled by sync runs by outcome (count)",
		},
		[]string{"outcome"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesProcessedTotal,
			PipelineStageDuration,
			ClassifierAttemptsTotal,
			FallbackUsageTotal,
			ClassifierCacheTotal,
			IntakeMessagesTotal,
			AlertsTotal,
			RecordsPersistedTotal,
			SyncRunsTotal,
			SyncMessagesTotal,
			RetryAttemptsTotal,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
			RateLimitRequestsTotal,
			KafkaMessagesReadTotal,
			KafkaMessagesWrittenTotal,
			KafkaWriteDuration,
			DatabaseQueriesTotal,
			DatabaseQueryDuration,
		)
	})
}

func IncMessagesProcessed(decision, status string) {
	MessagesProcessedTotal.WithLabelValues(decision, status).Inc()
}

func ObserveStageDuration(stage string, duration time.Duration) {
	PipelineStageDuration.WithLabelValues(stage).Observe(float64(duration.Milliseconds()))
}

func IncClassifierAttempt(provider, outcome string) {
	ClassifierAttemptsTotal.WithLabelValues(provider, outcome).Inc()
}

func IncFallbackUsage(service, strategy, reason string) {
	FallbackUsageTotal.WithLabelValues(service, strategy, reason).Inc()
}

func IncClassifierCache(result string) {
	ClassifierCacheTotal.WithLabelValues(result).Inc()
}

func IncIntakeMessage(result string) {
	IntakeMessagesTotal.WithLabelValues(result).Inc()
}

func IncAlert(notifier, status string) {
	AlertsTotal.WithLabelValues(notifier, status).Inc()
}

func IncRecordsPersisted(store, status string) {
	RecordsPersistedTotal.WithLabelValues(store, status).Inc()
}

func IncSyncRun(trigger, status string) {
	SyncRunsTotal.WithLabelValues(trigger, status).Inc()
}

func IncSyncMessage(outcome string) {
	SyncMessagesTotal.WithLabelValues(outcome).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
