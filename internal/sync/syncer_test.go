package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"triage/internal/config"
	"triage/internal/intake"
	"triage/internal/logger"
	"triage/internal/pipeline"
	"triage/internal/source"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(pipeline.Result), args.Error(1)
}

func newGate(t *testing.T, rules ...config.SkipRule) *intake.Filter {
	t.Helper()
	f, err := intake.NewFilter(config.IntakeConfig{SkipRules: rules}, logger.NopLogger())
	require.NoError(t, err)
	return f
}

func highResult(id triage.RecordID) pipeline.Result {
	c := triage.Fallback("x")
	c.Priority = triage.PriorityHigh
	return pipeline.Result{ID: id, Decision: triage.DecisionNotify, Classification: c}
}

func TestSyncer_Run(t *testing.T) {
	src := source.NewMemorySource(
		triage.RawMessage{ID: "ok", Source: "gmail", Sender: "hr@google.com", Subject: "Interview with Google"},
		triage.RawMessage{ID: "news", Source: "gmail", Sender: "bot@noreply.example.com", Subject: "Digest"},
		triage.RawMessage{ID: "bad", Source: "gmail", Subject: "No sender"},
		triage.RawMessage{ID: "down", Source: "gmail", Sender: "a@b.c", Subject: "Store is down"},
	)
	gate := newGate(t, config.SkipRule{Name: "noreply", Expression: `sender.endsWith("@noreply.example.com")`})

	proc := &mockProcessor{}
	proc.On("Process", mock.Anything, mock.MatchedBy(func(m triage.RawMessage) bool { return m.ID == "ok" })).
		Return(highResult(11), nil)

	failed := triage.NewPipelineContext(triage.RawMessage{ID: "down"}).
		WithClassification(triage.Fallback("Store is down")).
		WithDecision(triage.DecisionStoreOnly)
	proc.On("Process", mock.Anything, mock.MatchedBy(func(m triage.RawMessage) bool { return m.ID == "down" })).
		Return(pipeline.Result{}, &pipeline.PersistError{Context: failed, Err: errors.New("db gone")})

	s := NewSyncer(src, gate, proc, config.SyncConfig{BatchSize: 10, Concurrency: 2}, logger.NopLogger())

	report, err := s.Run(context.Background(), TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, "memory", report.Source)
	assert.Equal(t, 4, report.Fetched)
	require.Len(t, report.Outcomes, 4)

	ok := report.Outcomes[0]
	assert.Equal(t, StatusProcessed, ok.Status)
	assert.Equal(t, triage.RecordID(11), ok.RecordID)
	assert.Equal(t, triage.DecisionNotify, ok.Decision)
	assert.Equal(t, triage.PriorityHigh, ok.Priority)
	assert.Equal(t, "Interview with Google", ok.Subject)

	assert.Equal(t, StatusSkipped, report.Outcomes[1].Status)
	assert.Equal(t, "noreply", report.Outcomes[1].Rule)
	assert.Equal(t, StatusInvalid, report.Outcomes[2].Status)

	down := report.Outcomes[3]
	assert.Equal(t, StatusFailed, down.Status)
	assert.Equal(t, triage.DecisionStoreOnly, down.Decision)
	assert.Equal(t, triage.PriorityMedium, down.Priority)
	assert.Contains(t, down.Error, "db gone")

	assert.ElementsMatch(t, []string{"ok", "news", "bad"}, src.Acknowledged())
	assert.Equal(t, 1, src.Len())
	assert.Equal(t, 1, report.Count(StatusFailed))
	proc.AssertNumberOfCalls(t, "Process", 2)
}

func TestSyncer_RespectsBatchSize(t *testing.T) {
	src := source.NewMemorySource(
		triage.RawMessage{Source: "gmail", Sender: "a@b.c", Subject: "1"},
		triage.RawMessage{Source: "gmail", Sender: "a@b.c", Subject: "2"},
		triage.RawMessage{Source: "gmail", Sender: "a@b.c", Subject: "3"},
	)
	proc := &mockProcessor{}
	proc.On("Process", mock.Anything, mock.Anything).Return(highResult(1), nil)

	s := NewSyncer(src, newGate(t), proc, config.SyncConfig{BatchSize: 2}, logger.NopLogger())
	report, err := s.Run(context.Background(), TriggerCLI)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Fetched)
	assert.Equal(t, 1, src.Len())
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
	once    gosync.Once
}

func (b *blockingProcessor) Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return highResult(1), nil
}

func TestSyncer_RejectsOverlappingRuns(t *testing.T) {
	src := source.NewMemorySource(triage.RawMessage{Source: "gmail", Sender: "a@b.c", Subject: "slow"})
	proc := &blockingProcessor{started: make(chan struct{}), release: make(chan struct{})}
	s := NewSyncer(src, newGate(t), proc, config.SyncConfig{BatchSize: 1}, logger.NopLogger())

	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), TriggerSchedule)
		done <- err
	}()

	select {
	case <-proc.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first run did not start")
	}

	_, err := s.Run(context.Background(), TriggerManual)
	assert.ErrorIs(t, err, ErrSyncInProgress)
	assert.True(t, apperrors.IsConflict(err))

	close(proc.release)
	require.NoError(t, <-done)
}

type panicProcessor struct{}

func (panicProcessor) Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error) {
	panic("boom")
}

func TestSyncer_RecoversPanics(t *testing.T) {
	src := source.NewMemorySource(triage.RawMessage{ID: "p", Source: "gmail", Sender: "a@b.c", Subject: "panic"})
	s := NewSyncer(src, newGate(t), panicProcessor{}, config.SyncConfig{}, logger.NopLogger())

	report, err := s.Run(context.Background(), TriggerManual)
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, StatusFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Error, "boom")
	assert.Empty(t, src.Acknowledged())
}

func TestNewScheduler_InvalidSchedule(t *testing.T) {
	s := NewSyncer(source.NewMemorySource(), newGate(t), &mockProcessor{}, config.SyncConfig{}, logger.NopLogger())
	_, err := NewScheduler("not a schedule", s, logger.NopLogger())
	assert.Error(t, err)

	sched, err := NewScheduler("@every 1h", s, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sched.Run(ctx))
}

type ctxProcessor struct {
	started chan struct{}
	once    gosync.Once
}

func (p *ctxProcessor) Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error) {
	p.once.Do(func() { close(p.started) })
	<-ctx.Done()
	return pipeline.Result{}, ctx.Err()
}

func TestScheduler_CancelStopsRunningCycle(t *testing.T) {
	src := source.NewMemorySource(triage.RawMessage{ID: "slow", Source: "gmail", Sender: "a@b.c", Subject: "slow"})
	proc := &ctxProcessor{started: make(chan struct{})}
	s := NewSyncer(src, newGate(t), proc, config.SyncConfig{BatchSize: 1}, logger.NopLogger())

	sched, err := NewScheduler("@every 1s", s, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	select {
	case <-proc.started:
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatal("scheduled cycle did not start")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}

	assert.Empty(t, src.Acknowledged())
}

func TestScheduler_TickSkipsCancelledContext(t *testing.T) {
	proc := &mockProcessor{}
	src := source.NewMemorySource(triage.RawMessage{Source: "gmail", Sender: "a@b.c", Subject: "x"})
	s := NewSyncer(src, newGate(t), proc, config.SyncConfig{}, logger.NopLogger())
	sched, err := NewScheduler("@every 1h", s, logger.NopLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sched.tick(ctx)

	proc.AssertNotCalled(t, "Process", mock.Anything, mock.Anything)
	assert.Equal(t, 1, src.Len())
}
