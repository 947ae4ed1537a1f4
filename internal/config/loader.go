package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"triage/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("server.read_timeout_seconds", 15*time.Second)
	viper.SetDefault("server.write_timeout_seconds", 15*time.Second)

	viper.SetDefault("store.type", constants.StoreTypeMemory)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("reasoning.provider", constants.ProviderOpenAI)
	viper.SetDefault("reasoning.max_tokens", constants.DefaultMaxTokens)
	viper.SetDefault("reasoning.call_timeout", constants.DefaultCallTimeout)
	viper.SetDefault("reasoning.max_attempts", constants.DefaultMaxAttempts)
	viper.SetDefault("reasoning.rate_limit_cooldown", constants.DefaultRateLimitCooldown)
	viper.SetDefault("reasoning.body_limit", constants.DefaultBodyLimit)

	viper.SetDefault("sync.batch_size", constants.DefaultSyncBatchSize)
	viper.SetDefault("sync.concurrency", constants.DefaultSyncConcurrency)
}

func bindEnvVariables() {
	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.input_topic", "BROKER_KAFKA_INPUT_TOPIC")
	viper.BindEnv("broker.kafka.alert_topic", "BROKER_KAFKA_ALERT_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("database.mongodb.uri", "DATABASE_MONGODB_URI")
	viper.BindEnv("database.mongodb.database", "DATABASE_MONGODB_DATABASE")

	viper.BindEnv("store.type", "STORE_TYPE")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("reasoning.provider", "REASONING_PROVIDER")
	viper.BindEnv("reasoning.model", "REASONING_MODEL")
	viper.BindEnv("reasoning.api_key", "REASONING_API_KEY")
	viper.BindEnv("reasoning.base_url", "REASONING_BASE_URL")

	viper.BindEnv("alert.telegram.token", "ALERT_TELEGRAM_TOKEN")
	viper.BindEnv("alert.telegram.chat_id", "ALERT_TELEGRAM_CHAT_ID")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	// Provider SDK conventions are honoured when no explicit key is configured.
	if cfg.Reasoning.APIKey == "" {
		switch cfg.Reasoning.Provider {
		case constants.ProviderOpenAI:
			cfg.Reasoning.APIKey = viper.GetString("OPENAI_API_KEY")
		case constants.ProviderAnthropic:
			cfg.Reasoning.APIKey = viper.GetString("ANTHROPIC_API_KEY")
		}
	}

	return nil
}
