package constants

import "time"

const (
	ServiceName = "triage-service"
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
	KafkaFetchWait    = 2 * time.Second
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	DefaultMaxTokens         = 1024
	DefaultCallTimeout       = 60 * time.Second
	DefaultMaxAttempts       = 3
	DefaultRateLimitCooldown = 30 * time.Second
	DefaultBodyLimit         = 5000
)

const (
	CacheKeyPrefixClassify = "classify:"
)

const (
	StoreTypePostgres = "postgres"
	StoreTypeMongoDB  = "mongodb"
	StoreTypeMemory   = "memory"
)

const (
	DefaultMongoDBName      = "triage"
	MongoMessagesCollection = "messages"
	MongoCountersCollection = "counters"
)

const (
	DefaultSyncBatchSize   = 5
	DefaultSyncConcurrency = 1
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

const (
	DatabaseHealthTimeout = 5 * time.Second
)
