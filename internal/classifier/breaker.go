package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"

	"triage/pkg/circuitbreaker"
)

// BreakerService stops calling a failing provider for a while. Open circuit
// rejections are fatal so the classifier falls back without a cooldown.
// Rate limit and timeout errors do not count against the breaker; the retry
// loop already handles them.
type BreakerService struct {
	next ReasoningService
	cb   *circuitbreaker.Wrapper
}

func NewBreakerService(next ReasoningService, cfg circuitbreaker.Config) *BreakerService {
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = breakerSuccess
	}
	return &BreakerService{
		next: next,
		cb:   circuitbreaker.NewWrapper(cfg),
	}
}

func (s *BreakerService) Name() string {
	return s.next.Name()
}

func (s *BreakerService) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := s.cb.ExecuteWithContext(ctx, func() (interface{}, error) {
		return s.next.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", NewError(KindFatal, fmt.Errorf("circuit breaker %s: %w", s.cb.Name(), err))
		}
		return "", err
	}

	text, _ := out.(string)
	return text, nil
}

func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	switch KindOf(err) {
	case KindRateLimited, KindTimeout:
		return true
	default:
		return false
	}
}
