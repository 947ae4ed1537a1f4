package store

import (
	"context"
	"errors"
	"time"

	"triage/internal/logger"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
	"triage/pkg/metrics"
)

type Persister struct {
	store  Store
	logger logger.Logger
}

func NewPersister(s Store, log logger.Logger) *Persister {
	return &Persister{store: s, logger: log}
}

// Persist writes one record and returns its id. Failures are wrapped as
// PERSISTENCE_FAILED unless the store already produced an application error.
func (p *Persister) Persist(ctx context.Context, msg triage.RawMessage, result triage.ClassificationResult) (triage.RecordID, error) {
	rec, err := BuildRecord(msg, result)
	if err != nil {
		metrics.IncRecordsPersisted(p.store.Name(), "encode_failed")
		return 0, apperrors.ErrPersistence.WithCause(err)
	}

	start := time.Now()
	id, err := p.store.Insert(ctx, rec)
	if err != nil {
		metrics.IncRecordsPersisted(p.store.Name(), "failed")
		p.logger.ErrorwCtx(ctx, "Failed to persist message record",
			"store", p.store.Name(),
			"error", err,
		)
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return 0, err
		}
		return 0, apperrors.ErrPersistence.WithCause(err)
	}

	metrics.IncRecordsPersisted(p.store.Name(), "ok")
	p.logger.DebugwCtx(ctx, "Message record persisted",
		"store", p.store.Name(),
		"record_id", int64(id),
		"duration", time.Since(start),
	)
	return id, nil
}

func (p *Persister) List(ctx context.Context, limit int) ([]triage.PersistedRecord, error) {
	return p.store.List(ctx, limit)
}

func (p *Persister) Get(ctx context.Context, id triage.RecordID) (triage.PersistedRecord, error) {
	return p.store.Get(ctx, id)
}
