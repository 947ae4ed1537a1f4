package classifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"triage/internal/logger"
	"triage/internal/triage"
)

type mockService struct{ mock.Mock }

func (m *mockService) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *mockService) Name() string { return "mock" }

func fastOptions(o *Options) {
	o.RateLimitCooldown = 5 * time.Millisecond
	o.CallTimeout = time.Second
}

const highJSON = `{"summary":"Google wants to schedule an interview","category":"job","priority":"high","action_required":"Reply with availability","dynamic_metadata":{"Company":"Google"}}`

func TestClassify_RateLimitedTwiceThenSuccess(t *testing.T) {
	svc := &mockService{}
	rateErr := NewError(KindRateLimited, errors.New("429 Too Many Requests"))
	svc.On("Generate", mock.Anything, mock.Anything).Return("", rateErr).Twice()
	svc.On("Generate", mock.Anything, mock.Anything).Return(highJSON, nil).Once()

	c := New(svc, logger.NopLogger(), fastOptions)
	out := c.ClassifyOutcome(context.Background(), "Interview with Google", "Let's talk")

	svc.AssertNumberOfCalls(t, "Generate", 3)
	assert.False(t, out.Fallback)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, triage.PriorityHigh, out.Result.Priority)
	assert.Equal(t, triage.CategoryJob, out.Result.Category)
	assert.Equal(t, "Google wants to schedule an interview", out.Result.Summary)
	require.NotNil(t, out.Result.ActionRequired)
	assert.Equal(t, "Reply with availability", *out.Result.ActionRequired)
	company, ok := out.Result.Metadata.Get("Company")
	assert.True(t, ok)
	assert.Equal(t, "Google", company)
}

func TestClassify_RateLimitWaitsCooldown(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).Return("", NewError(KindRateLimited, nil)).Once()
	svc.On("Generate", mock.Anything, mock.Anything).Return(highJSON, nil).Once()

	c := New(svc, logger.NopLogger(), func(o *Options) {
		o.RateLimitCooldown = 50 * time.Millisecond
		o.CallTimeout = time.Second
	})

	start := time.Now()
	out := c.ClassifyOutcome(context.Background(), "s", "b")

	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	assert.False(t, out.Fallback)
	assert.Equal(t, 2, out.Attempts)
}

func TestClassify_NonRateLimitErrorAbortsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "fatal", err: NewError(KindFatal, errors.New("401 unauthorized"))},
		{name: "transient", err: NewError(KindTransient, errors.New("502 bad gateway"))},
		{name: "plain error", err: errors.New("connection reset by peer")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockService{}
			svc.On("Generate", mock.Anything, mock.Anything).Return("", tt.err)

			c := New(svc, logger.NopLogger(), fastOptions)
			out := c.ClassifyOutcome(context.Background(), "Weekly digest", "body")

			svc.AssertNumberOfCalls(t, "Generate", 1)
			assert.True(t, out.Fallback)
			assert.Equal(t, triage.Fallback("Weekly digest"), out.Result)
		})
	}
}

func TestClassify_MalformedResponseFallsBack(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).Return("I cannot help with that.", nil)

	c := New(svc, logger.NopLogger(), fastOptions)
	out := c.ClassifyOutcome(context.Background(), "Hello", "body")

	svc.AssertNumberOfCalls(t, "Generate", 1)
	assert.True(t, out.Fallback)
	assert.Equal(t, KindMalformed, KindOf(out.Err))
	assert.Equal(t, "Hello", out.Result.Summary)
	assert.Equal(t, triage.CategoryInfo, out.Result.Category)
	assert.Equal(t, triage.PriorityMedium, out.Result.Priority)
	assert.Nil(t, out.Result.ActionRequired)
	assert.Equal(t, 0, out.Result.Metadata.Len())
}

func TestClassify_ExhaustedRateLimitFallsBack(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).Return("", NewError(KindRateLimited, nil))

	c := New(svc, logger.NopLogger(), fastOptions)
	out := c.ClassifyOutcome(context.Background(), "Promo", "body")

	svc.AssertNumberOfCalls(t, "Generate", 3)
	assert.True(t, out.Fallback)
	assert.Equal(t, triage.Fallback("Promo"), out.Result)
}

func TestClassify_TimeoutRetriesWithoutCooldown(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).Return("", NewError(KindTimeout, context.DeadlineExceeded)).Once()
	svc.On("Generate", mock.Anything, mock.Anything).Return(highJSON, nil).Once()

	c := New(svc, logger.NopLogger(), func(o *Options) {
		o.RateLimitCooldown = time.Hour
		o.CallTimeout = time.Second
	})

	start := time.Now()
	out := c.ClassifyOutcome(context.Background(), "s", "b")

	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, out.Fallback)
	assert.Equal(t, 2, out.Attempts)
}

func TestClassify_CallTimeoutBecomesTimeout(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return("", errors.New("request aborted"))

	c := New(svc, logger.NopLogger(), func(o *Options) {
		o.CallTimeout = 10 * time.Millisecond
		o.MaxAttempts = 2
	})
	out := c.ClassifyOutcome(context.Background(), "Slow", "body")

	svc.AssertNumberOfCalls(t, "Generate", 2)
	assert.True(t, out.Fallback)
	assert.Equal(t, KindTimeout, KindOf(out.Err))
}

func TestClassify_CancelledDuringCooldown(t *testing.T) {
	svc := &mockService{}
	svc.On("Generate", mock.Anything, mock.Anything).Return("", NewError(KindRateLimited, nil))

	c := New(svc, logger.NopLogger(), func(o *Options) {
		o.RateLimitCooldown = time.Hour
		o.CallTimeout = time.Second
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	out := c.ClassifyOutcome(ctx, "Urgent", "body")

	assert.Less(t, time.Since(start), 5*time.Second)
	svc.AssertNumberOfCalls(t, "Generate", 1)
	assert.True(t, out.Fallback)
	assert.Equal(t, triage.Fallback("Urgent"), out.Result)
}

func TestClassify_TruncatesBodyInPrompt(t *testing.T) {
	svc := &mockService{}
	var prompt string
	svc.On("Generate", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return(highJSON, nil)

	c := New(svc, logger.NopLogger(), fastOptions, func(o *Options) { o.BodyLimit = 10 })
	c.Classify(context.Background(), "Subject line", "0123456789abcdef")

	assert.Contains(t, prompt, "Subject: Subject line")
	assert.Contains(t, prompt, "Body: 0123456789")
	assert.NotContains(t, prompt, "abcdef")
}
