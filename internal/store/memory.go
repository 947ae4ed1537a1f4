package store

import (
	"context"
	"sync"

	"triage/internal/constants"
	"triage/internal/triage"
)

// MemoryStore keeps records in process. Ids start at 1.
type MemoryStore struct {
	mu      sync.RWMutex
	records []triage.PersistedRecord
	nextID  triage.RecordID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Name() string {
	return constants.StoreTypeMemory
}

func (s *MemoryStore) Insert(ctx context.Context, rec triage.PersistedRecord) (triage.RecordID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	s.records = append(s.records, rec)
	return rec.ID, nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]triage.PersistedRecord, error) {
	limit = clampLimit(limit, constants.DefaultLimit, constants.MaxLimit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]triage.PersistedRecord, 0, min(limit, len(s.records)))
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id triage.RecordID) (triage.PersistedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return triage.PersistedRecord{}, notFound(id)
}
