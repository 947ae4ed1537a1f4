package classifier

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/logger"
	"triage/pkg/circuitbreaker"
)

// ReasoningService is a text-in/text-out model endpoint. Implementations
// return *Error so the classifier can tell rate limits and timeouts apart
// from hard failures.
type ReasoningService interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Name() string
}

// NewService builds the configured provider and stacks the optional circuit
// breaker and response cache around it. rdb may be nil.
func NewService(cfg *config.Config, rdb *redis.Client, log logger.Logger) (ReasoningService, error) {
	var svc ReasoningService
	switch cfg.Reasoning.Provider {
	case constants.ProviderOpenAI, "":
		svc = NewOpenAIService(cfg.Reasoning)
	case constants.ProviderAnthropic:
		svc = NewAnthropicService(cfg.Reasoning)
	default:
		return nil, fmt.Errorf("unknown reasoning provider: %s", cfg.Reasoning.Provider)
	}

	if cfg.CircuitBreaker.Enabled {
		svc = NewBreakerService(svc, circuitbreaker.FromSettings("reasoning-"+svc.Name(), cfg.CircuitBreaker))
	}

	if rdb != nil && cfg.Reasoning.CacheTTLSeconds > 0 {
		svc = NewCachedService(svc, rdb, cfg.Reasoning.CacheTTLSeconds, log)
	}

	return svc, nil
}
