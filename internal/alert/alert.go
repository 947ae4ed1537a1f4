// Package alert raises an attention signal for high priority messages.
package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"triage/internal/logger"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
	"triage/pkg/metrics"
)

// Alert is what a notifier delivers. Sender and Subject are always set.
type Alert struct {
	MessageID      string
	Source         string
	Sender         string
	Subject        string
	Summary        string
	Category       triage.Category
	Priority       triage.Priority
	ActionRequired *string
	Details        triage.Metadata
	RaisedAt       time.Time
}

func NewAlert(msg triage.RawMessage, result triage.ClassificationResult) Alert {
	return Alert{
		MessageID:      msg.ID,
		Source:         msg.Source,
		Sender:         msg.Sender,
		Subject:        msg.Subject,
		Summary:        result.Summary,
		Category:       result.Category,
		Priority:       result.Priority,
		ActionRequired: result.ActionRequired,
		Details:        result.Metadata.Clone(),
		RaisedAt:       time.Now().UTC(),
	}
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
	Name() string
}

// Signal decides whether an alert is due and hands it to the notifier.
type Signal struct {
	notifier Notifier
	logger   logger.Logger
}

func NewSignal(notifier Notifier, log logger.Logger) *Signal {
	if notifier == nil {
		notifier = NewLogNotifier(log)
	}
	return &Signal{notifier: notifier, logger: log}
}

// MaybeAlert fires only for high priority results and reports whether it did.
// Delivery failures, panics included, are logged and never returned.
func (s *Signal) MaybeAlert(ctx context.Context, msg triage.RawMessage, result triage.ClassificationResult) bool {
	if result.Priority != triage.PriorityHigh {
		return false
	}

	a := NewAlert(msg, result)
	if err := notify(ctx, s.notifier, a); err != nil {
		metrics.IncAlert(s.notifier.Name(), "failed")
		s.logger.ErrorwCtx(ctx, "Failed to deliver alert",
			"notifier", s.notifier.Name(),
			"sender", msg.Sender,
			"subject", msg.Subject,
			"error", err,
		)
		return true
	}

	metrics.IncAlert(s.notifier.Name(), "delivered")
	return true
}

// MultiNotifier delivers to every notifier and joins their errors.
type MultiNotifier []Notifier

func (m MultiNotifier) Name() string {
	return "multi"
}

func (m MultiNotifier) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := notify(ctx, n, a); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// notify calls n, turning a panic into an error.
func notify(ctx context.Context, n Notifier, a Alert) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.RecoverPanic(r)
		}
	}()
	return n.Notify(ctx, a)
}
