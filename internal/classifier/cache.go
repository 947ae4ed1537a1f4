package classifier

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"triage/internal/constants"
	"triage/internal/logger"
	"triage/pkg/metrics"
)

// CachedService remembers raw responses that parse as a classification, so a
// message that is re-run after a store failure does not pay for a second
// reasoning call. Redis failures degrade to a cache miss.
type CachedService struct {
	next   ReasoningService
	rdb    redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedService(next ReasoningService, rdb redis.Cmdable, ttlSeconds int, log logger.Logger) *CachedService {
	return &CachedService{
		next:   next,
		rdb:    rdb,
		ttl:    time.Duration(ttlSeconds) * time.Second,
		logger: log,
	}
}

func (s *CachedService) Name() string {
	return s.next.Name()
}

func (s *CachedService) Generate(ctx context.Context, prompt string) (string, error) {
	key := CacheKey(s.next.Name(), prompt)

	cached, err := s.rdb.Get(ctx, key).Result()
	switch {
	case err == nil:
		metrics.IncClassifierCache("hit")
		return cached, nil
	case errors.Is(err, redis.Nil):
		metrics.IncClassifierCache("miss")
	default:
		metrics.IncClassifierCache("error")
		s.logger.WarnwCtx(ctx, "Classification cache read failed", "error", err)
	}

	text, err := s.next.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	if _, parseErr := ParseResponse(text, ""); parseErr == nil {
		if setErr := s.rdb.Set(ctx, key, text, s.ttl).Err(); setErr != nil {
			s.logger.WarnwCtx(ctx, "Classification cache write failed", "error", setErr)
		}
	}

	return text, nil
}

// CacheKey derives the Redis key for a provider and prompt pair.
func CacheKey(provider, prompt string) string {
	sum := sha256.Sum256([]byte(provider + "|" + prompt))
	return constants.CacheKeyPrefixClassify + hex.EncodeToString(sum[:])
}
