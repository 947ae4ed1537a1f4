package classifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the closed set of failure classes a reasoning call can end in.
type ErrorKind int

const (
	KindFatal ErrorKind = iota
	KindRateLimited
	KindTimeout
	KindMalformed
	KindTransient
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindMalformed:
		return "malformed"
	case KindTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Error is returned by ReasoningService implementations and by the parser.
type Error struct {
	Kind  ErrorKind
	Cause error
}

func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("reasoning call failed: %s", e.Kind)
	}
	return fmt.Sprintf("reasoning call failed: %s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf reports the kind of err. Errors that were not produced by this
// package are classified by deadline and by the "429"/"quota" markers that
// rate limit responses carry in their text; anything else is fatal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindFatal
	}

	var cErr *Error
	if errors.As(err, &cErr) {
		return cErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") {
		return KindRateLimited
	}

	return KindFatal
}

// kindFromStatus maps a provider HTTP status onto an ErrorKind.
func kindFromStatus(status int, message string) ErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return KindTimeout
	case status >= 500:
		return KindTransient
	case strings.Contains(strings.ToLower(message), "quota"):
		return KindRateLimited
	default:
		return KindFatal
	}
}
