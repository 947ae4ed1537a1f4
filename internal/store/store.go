// Package store persists classified messages as records.
package store

import (
	"context"
	"fmt"
	"time"

	"triage/internal/triage"
	apperrors "triage/pkg/errors"
)

// Store is a transactional record sink. Insert either commits the record
// and returns its new id, or leaves nothing behind.
type Store interface {
	Insert(ctx context.Context, rec triage.PersistedRecord) (triage.RecordID, error)
	List(ctx context.Context, limit int) ([]triage.PersistedRecord, error)
	Get(ctx context.Context, id triage.RecordID) (triage.PersistedRecord, error)
	Name() string
}

// BuildRecord assembles the record for a message and its classification.
// The body is stored in full; only the copy sent for classification is cut.
func BuildRecord(msg triage.RawMessage, result triage.ClassificationResult) (triage.PersistedRecord, error) {
	metadataJSON, err := result.Metadata.Encode()
	if err != nil {
		return triage.PersistedRecord{}, fmt.Errorf("encode metadata: %w", err)
	}

	var action *string
	if result.ActionRequired != nil {
		a := *result.ActionRequired
		action = &a
	}

	return triage.PersistedRecord{
		Source:         msg.Source,
		Sender:         msg.Sender,
		Subject:        msg.Subject,
		Body:           msg.Body,
		Summary:        result.Summary,
		Category:       result.Category,
		Priority:       result.Priority,
		ActionRequired: action,
		MetadataJSON:   metadataJSON,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

func notFound(id triage.RecordID) error {
	return apperrors.ErrNotFound.
		WithDetail("message", fmt.Sprintf("message %d not found", id)).
		WithDetail("id", int64(id))
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
