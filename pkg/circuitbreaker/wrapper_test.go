package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/config"
)

func TestFromSettings(t *testing.T) {
	cfg := FromSettings("reasoning", config.CircuitBreakerConfig{Timeout: 5 * time.Second, MinRequests: 2, FailureRatio: 1})
	assert.Equal(t, "reasoning", cfg.Name)
	assert.Equal(t, uint32(3), cfg.MaxRequests)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	assert.False(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 2, TotalFailures: 1}))
	assert.True(t, cfg.ReadyToTrip(gobreaker.Counts{Requests: 2, TotalFailures: 2}))
}

func TestWrapper_OpensAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	cfg := DefaultConfig("test")
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) { transitions = append(transitions, to) }
	w := NewWrapper(cfg)
	ctx := context.Background()
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, err, boom)
	}

	assert.True(t, w.IsOpen())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) { return "never", nil })
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestWrapper_CancelledContextSkipsBreaker(t *testing.T) {
	w := NewWrapper(DefaultConfig("cancelled"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := w.ExecuteWithContext(ctx, func() (interface{}, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.Equal(t, gobreaker.StateClosed, w.State())
	assert.Equal(t, "cancelled", w.Name())
}

func TestWrapper_IsSuccessfulErrorsDoNotTrip(t *testing.T) {
	busy := errors.New("busy")
	cfg := DefaultConfig("tolerant")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, busy) }
	w := NewWrapper(cfg)

	for i := 0; i < 5; i++ {
		_, err := w.ExecuteWithContext(context.Background(), func() (interface{}, error) { return nil, busy })
		assert.ErrorIs(t, err, busy)
	}

	assert.Equal(t, gobreaker.StateClosed, w.State())
}
