package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"

	"triage/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateStore(cfg.Store, cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateReasoning(cfg.Reasoning); err != nil {
		errors = append(errors, err)
	}

	if err := validateAlert(cfg.Alert, cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateSync(cfg.Sync); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	if cfg.RateLimit.Enabled && (cfg.RateLimit.RPS <= 0 || cfg.RateLimit.Burst <= 0) {
		return &ValidationError{
			Field:   "server.rate_limit",
			Message: "rps and burst must be positive when rate limiting is enabled",
		}
	}

	return nil
}

func validateStore(cfg StoreConfig, db DatabaseConfig) error {
	switch cfg.Type {
	case constants.StoreTypeMemory:
		return nil
	case constants.StoreTypePostgres:
		if db.Postgres.Host == "" {
			return &ValidationError{
				Field:   "database.postgres.host",
				Message: "PostgreSQL host is required for the postgres store",
			}
		}
		return nil
	case constants.StoreTypeMongoDB:
		if db.MongoDB.URI == "" {
			return &ValidationError{
				Field:   "database.mongodb.uri",
				Message: "MongoDB URI is required for the mongodb store",
			}
		}
		return nil
	default:
		return &ValidationError{
			Field:   "store.type",
			Message: fmt.Sprintf("unknown store type: %s (supported: postgres, mongodb, memory)", cfg.Type),
		}
	}
}

func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.InputTopic != "" && cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required when an input topic is set",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	if cfg.MongoDB.URI != "" {
		if err := validateMongoDB(cfg.MongoDB); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

func validateMongoDB(cfg MongoDBConfig) error {
	if !strings.HasPrefix(cfg.URI, "mongodb://") && !strings.HasPrefix(cfg.URI, "mongodb+srv://") {
		return &ValidationError{
			Field:   "database.mongodb.uri",
			Message: "MongoDB URI must start with mongodb:// or mongodb+srv://",
		}
	}

	if cfg.Database == "" {
		return &ValidationError{
			Field:   "database.mongodb.database",
			Message: "MongoDB database name is required",
		}
	}

	return nil
}

func validateReasoning(cfg ReasoningConfig) error {
	switch cfg.Provider {
	case constants.ProviderOpenAI, constants.ProviderAnthropic:
	default:
		return &ValidationError{
			Field:   "reasoning.provider",
			Message: fmt.Sprintf("unknown reasoning provider: %s (supported: openai, anthropic)", cfg.Provider),
		}
	}

	if cfg.CallTimeout <= 0 {
		return &ValidationError{
			Field:   "reasoning.call_timeout",
			Message: "call timeout must be positive",
		}
	}

	if cfg.MaxAttempts < 1 {
		return &ValidationError{
			Field:   "reasoning.max_attempts",
			Message: "max_attempts must be at least 1",
		}
	}

	if cfg.RateLimitCooldown < 0 {
		return &ValidationError{
			Field:   "reasoning.rate_limit_cooldown",
			Message: "rate_limit_cooldown must be non-negative",
		}
	}

	if cfg.BodyLimit < 0 {
		return &ValidationError{
			Field:   "reasoning.body_limit",
			Message: "body_limit must be non-negative",
		}
	}

	if cfg.CacheTTLSeconds < 0 {
		return &ValidationError{
			Field:   "reasoning.cache_ttl_seconds",
			Message: "cache TTL must be non-negative",
		}
	}

	return nil
}

func validateAlert(cfg AlertConfig, broker BrokerConfig) error {
	if cfg.Telegram.Enabled {
		if cfg.Telegram.Token == "" {
			return &ValidationError{
				Field:   "alert.telegram.token",
				Message: "Telegram bot token is required when telegram alerts are enabled",
			}
		}
		if cfg.Telegram.ChatID == 0 {
			return &ValidationError{
				Field:   "alert.telegram.chat_id",
				Message: "Telegram chat ID is required when telegram alerts are enabled",
			}
		}
	}

	if cfg.KafkaTopic != "" && broker.Type != "kafka" {
		return &ValidationError{
			Field:   "alert.kafka_topic",
			Message: "kafka alerts require broker.type to be kafka",
		}
	}

	return nil
}

func validateSync(cfg SyncConfig) error {
	if cfg.BatchSize < 1 {
		return &ValidationError{
			Field:   "sync.batch_size",
			Message: "batch_size must be at least 1",
		}
	}

	if cfg.Concurrency < 1 {
		return &ValidationError{
			Field:   "sync.concurrency",
			Message: "concurrency must be at least 1",
		}
	}

	if cfg.Schedule != "" {
		if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
			return &ValidationError{
				Field:   "sync.schedule",
				Message: fmt.Sprintf("invalid cron schedule %q: %v", cfg.Schedule, err),
			}
		}
	}

	return nil
}
