//go:build integration

package classifier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"triage/internal/logger"
	"triage/internal/testinfra"
)

func TestCachedService_Integration(t *testing.T) {
	rdb := testinfra.Redis(t)
	ctx := context.Background()

	svc := &mockService{}
	svc.On("Generate", mock.Anything, "prompt-a").
		Return(`{"summary":"s","category":"job","priority":"high"}`, nil).Once()
	svc.On("Generate", mock.Anything, "prompt-b").Return("not json", nil).Twice()

	cached := NewCachedService(svc, rdb, 60, logger.NopLogger())

	for i := 0; i < 2; i++ {
		out, err := cached.Generate(ctx, "prompt-a")
		require.NoError(t, err)
		assert.Contains(t, out, `"priority":"high"`)
	}

	ttl, err := rdb.TTL(ctx, CacheKey("mock", "prompt-a")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	for i := 0; i < 2; i++ {
		_, err := cached.Generate(ctx, "prompt-b")
		require.NoError(t, err)
	}
	exists, err := rdb.Exists(ctx, CacheKey("mock", "prompt-b")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	svc.AssertExpectations(t)
}
