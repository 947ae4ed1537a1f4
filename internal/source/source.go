package source

import (
	"context"

	"triage/internal/triage"
)

// Source delivers inbound messages to a sync cycle. A fetched message stays
// pending until it is acknowledged; unacknowledged messages are redelivered
// by the next Fetch or after a restart, depending on the implementation.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]triage.RawMessage, error)
	Acknowledge(ctx context.Context, id string) error
	Name() string
	Close() error
}
