package alert

import (
	"context"

	"triage/internal/logger"
)

// LogNotifier writes the alert as a structured log line.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Name() string {
	return "log"
}

func (n *LogNotifier) Notify(ctx context.Context, a Alert) error {
	fields := []interface{}{
		"sender", a.Sender,
		"subject", a.Subject,
		"summary", a.Summary,
		"category", string(a.Category),
	}
	if a.ActionRequired != nil {
		fields = append(fields, "action_required", *a.ActionRequired)
	}
	n.logger.WarnwCtx(ctx, "High priority message", fields...)
	return nil
}
