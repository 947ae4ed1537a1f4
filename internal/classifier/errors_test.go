package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "typed", err: NewError(KindTransient, nil), want: KindTransient},
		{name: "wrapped typed", err: fmt.Errorf("call: %w", NewError(KindRateLimited, nil)), want: KindRateLimited},
		{name: "deadline", err: fmt.Errorf("post: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "quota text", err: errors.New("Resource has been exhausted (e.g. check quota)."), want: KindRateLimited},
		{name: "429 text", err: errors.New("status 429"), want: KindRateLimited},
		{name: "other", err: errors.New("boom"), want: KindFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKindFromStatus(t *testing.T) {
	assert.Equal(t, KindRateLimited, kindFromStatus(http.StatusTooManyRequests, ""))
	assert.Equal(t, KindTimeout, kindFromStatus(http.StatusGatewayTimeout, ""))
	assert.Equal(t, KindTransient, kindFromStatus(http.StatusBadGateway, ""))
	assert.Equal(t, KindTransient, kindFromStatus(529, "overloaded"))
	assert.Equal(t, KindRateLimited, kindFromStatus(http.StatusForbidden, "insufficient_quota"))
	assert.Equal(t, KindFatal, kindFromStatus(http.StatusUnauthorized, "invalid api key"))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root")
	err := NewError(KindTimeout, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "reasoning call failed: timeout: root", err.Error())
	assert.Equal(t, "timeout", KindTimeout.String())
}
