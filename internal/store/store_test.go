package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"triage/internal/logger"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
)

func sampleMessage() (triage.RawMessage, triage.ClassificationResult) {
	action := "Reply by Friday"
	msg := triage.RawMessage{ID: "abc", Source: "gmail", Sender: "hr@google.com", Subject: "Interview with Google", Body: "Full body text"}
	md := triage.NewMetadata()
	md.Set("Date", "Monday")
	md.Set("Time", "10:00")
	res := triage.ClassificationResult{
		Summary:        "Interview invite",
		Category:       triage.CategoryJob,
		Priority:       triage.PriorityHigh,
		ActionRequired: &action,
		Metadata:       md,
	}
	return msg, res
}

func TestBuildRecord(t *testing.T) {
	msg, res := sampleMessage()

	rec, err := BuildRecord(msg, res)
	require.NoError(t, err)

	assert.Equal(t, "gmail", rec.Source)
	assert.Equal(t, "hr@google.com", rec.Sender)
	assert.Equal(t, "Full body text", rec.Body)
	assert.Equal(t, triage.PriorityHigh, rec.Priority)
	assert.Equal(t, `{"Date":"Monday","Time":"10:00"}`, rec.MetadataJSON)
	require.NotNil(t, rec.ActionRequired)
	assert.Equal(t, "Reply by Friday", *rec.ActionRequired)
	assert.False(t, rec.CreatedAt.IsZero())

	decoded, err := triage.DecodeMetadata(rec.MetadataJSON)
	require.NoError(t, err)
	assert.Equal(t, res.Metadata.Map(), decoded.Map())
}

func TestBuildRecord_EmptyMetadata(t *testing.T) {
	msg, res := sampleMessage()
	res.Metadata = triage.Metadata{}
	res.ActionRequired = nil

	rec, err := BuildRecord(msg, res)
	require.NoError(t, err)
	assert.Equal(t, "{}", rec.MetadataJSON)
	assert.Nil(t, rec.ActionRequired)
}

func TestMemoryStore_InsertListGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for _, subject := range []string{"first", "second", "third"} {
		_, err := s.Insert(ctx, triage.PersistedRecord{Subject: subject})
		require.NoError(t, err)
	}

	records, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "third", records[0].Subject)
	assert.Equal(t, triage.RecordID(3), records[0].ID)
	assert.Equal(t, "second", records[1].Subject)

	rec, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "first", rec.Subject)

	_, err = s.Get(ctx, 99)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMemoryStore_ConcurrentInsertsGetDistinctIDs(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	ids := make(chan triage.RecordID, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := s.Insert(context.Background(), triage.PersistedRecord{})
			if err == nil {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[triage.RecordID]bool{}
	for id := range ids {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, 50)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (s *failingStore) Insert(context.Context, triage.PersistedRecord) (triage.RecordID, error) {
	return 0, s.err
}

func TestPersister_WrapsStoreErrors(t *testing.T) {
	msg, res := sampleMessage()

	p := NewPersister(&failingStore{MemoryStore: NewMemoryStore(), err: errors.New("connection refused")}, logger.NopLogger())
	_, err := p.Persist(context.Background(), msg, res)
	require.Error(t, err)
	assert.True(t, apperrors.IsPersistence(err))
	assert.ErrorContains(t, err, "connection refused")

	conflict := apperrors.ErrConflict.WithCause(errors.New("duplicate"))
	p = NewPersister(&failingStore{MemoryStore: NewMemoryStore(), err: conflict}, logger.NopLogger())
	_, err = p.Persist(context.Background(), msg, res)
	assert.True(t, apperrors.IsConflict(err))
}

func TestPersister_Persist(t *testing.T) {
	msg, res := sampleMessage()
	mem := NewMemoryStore()
	p := NewPersister(mem, logger.NopLogger())

	id, err := p.Persist(context.Background(), msg, res)
	require.NoError(t, err)
	assert.Equal(t, triage.RecordID(1), id)

	rec, err := p.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Interview with Google", rec.Subject)
	assert.Equal(t, "Interview invite", rec.Summary)
}

func TestNew(t *testing.T) {
	s, err := New("memory", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "memory", s.Name())

	_, err = New("postgres", nil, nil)
	assert.Error(t, err)

	_, err = New("sqlite", nil, nil)
	assert.Error(t, err)
}
