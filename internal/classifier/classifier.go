// Package classifier turns a message subject and body into a
// ClassificationResult by asking an external reasoning service. It never
// fails outward: exhausted or aborted attempts produce triage.Fallback.
package classifier

import (
	"context"
	"errors"
	"time"

	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/logger"
	"triage/internal/triage"
	"triage/pkg/metrics"
	"triage/pkg/retry"
)

type Options struct {
	MaxAttempts       int
	CallTimeout       time.Duration
	RateLimitCooldown time.Duration
	BodyLimit         int
}

func DefaultOptions() Options {
	return Options{
		MaxAttempts:       constants.DefaultMaxAttempts,
		CallTimeout:       constants.DefaultCallTimeout,
		RateLimitCooldown: constants.DefaultRateLimitCooldown,
		BodyLimit:         constants.DefaultBodyLimit,
	}
}

// WithReasoningConfig copies the attempt policy out of the service configuration.
func WithReasoningConfig(cfg config.ReasoningConfig) func(o *Options) {
	return func(o *Options) {
		if cfg.MaxAttempts > 0 {
			o.MaxAttempts = cfg.MaxAttempts
		}
		if cfg.CallTimeout > 0 {
			o.CallTimeout = cfg.CallTimeout
		}
		if cfg.RateLimitCooldown > 0 {
			o.RateLimitCooldown = cfg.RateLimitCooldown
		}
		if cfg.BodyLimit > 0 {
			o.BodyLimit = cfg.BodyLimit
		}
	}
}

// Outcome describes how a classification was obtained.
type Outcome struct {
	Result   triage.ClassificationResult
	Attempts int
	Fallback bool
	// Err is the last error seen when Fallback is set.
	Err error
}

type Classifier struct {
	svc    ReasoningService
	opts   Options
	logger logger.Logger
}

func New(svc ReasoningService, log logger.Logger, optFns ...func(o *Options)) *Classifier {
	opts := DefaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Classifier{svc: svc, opts: opts, logger: log}
}

func (c *Classifier) Classify(ctx context.Context, subject, body string) triage.ClassificationResult {
	return c.ClassifyOutcome(ctx, subject, body).Result
}

// ClassifyOutcome is Classify with attempt accounting.
func (c *Classifier) ClassifyOutcome(ctx context.Context, subject, body string) Outcome {
	prompt := BuildPrompt(subject, triage.TruncateBody(body, c.opts.BodyLimit))
	provider := c.svc.Name()

	var (
		result   triage.ClassificationResult
		attempts int
	)

	err := retry.Attempts(ctx, c.opts.MaxAttempts,
		func(attempt int) error {
			attempts = attempt
			parsed, err := c.attempt(ctx, prompt, subject)
			if err != nil {
				metrics.IncClassifierAttempt(provider, KindOf(err).String())
				c.logger.WarnwCtx(ctx, "Classification attempt failed",
					"attempt", attempt,
					"max_attempts", c.opts.MaxAttempts,
					"kind", KindOf(err).String(),
					"error", err,
				)
				return err
			}
			metrics.IncClassifierAttempt(provider, "success")
			result = parsed
			return nil
		},
		c.delayFor,
		func(attempt int, err error, next time.Duration) {
			metrics.RetryAttemptsTotal.WithLabelValues(constants.ServiceName, "classify").Inc()
			if next > 0 {
				c.logger.InfowCtx(ctx, "Reasoning service rate limited, cooling down",
					"attempt", attempt,
					"cooldown", next,
				)
			}
		},
	)
	if err == nil {
		return Outcome{Result: result, Attempts: attempts}
	}

	reason := KindOf(err).String()
	if errors.Is(err, context.Canceled) {
		reason = "canceled"
	}
	metrics.IncFallbackUsage(constants.ServiceName, "default_classification", reason)
	c.logger.WarnwCtx(ctx, "Using fallback classification",
		"attempts", attempts,
		"reason", reason,
		"error", err,
	)

	return Outcome{
		Result:   triage.Fallback(subject),
		Attempts: attempts,
		Fallback: true,
		Err:      err,
	}
}

func (c *Classifier) attempt(ctx context.Context, prompt, subject string) (triage.ClassificationResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	raw, err := c.svc.Generate(callCtx, prompt)
	if err != nil {
		if KindOf(err) == KindFatal && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return triage.ClassificationResult{}, NewError(KindTimeout, err)
		}
		return triage.ClassificationResult{}, err
	}

	return ParseResponse(raw, subject)
}

// delayFor is the retry policy: rate limits wait out the cooldown, timeouts
// retry at once, everything else aborts.
func (c *Classifier) delayFor(err error) (time.Duration, bool) {
	switch KindOf(err) {
	case KindRateLimited:
		return c.opts.RateLimitCooldown, true
	case KindTimeout:
		return 0, true
	default:
		return 0, false
	}
}
