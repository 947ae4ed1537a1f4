package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/intake"
	"triage/internal/logger"
	"triage/internal/pipeline"
	"triage/internal/source"
	"triage/internal/triage"
	apperrors "triage/pkg/errors"
	"triage/pkg/logging"
	"triage/pkg/metrics"
)

// Outcome statuses.
const (
	StatusProcessed = "processed"
	StatusSkipped   = "skipped"
	StatusInvalid   = "invalid"
	StatusFailed    = "failed"
)

// Trigger names.
const (
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// ErrSyncInProgress is returned by Run while another cycle is still running.
var ErrSyncInProgress = apperrors.ErrConflict.WithDetail("message", "a sync cycle is already running")

type Processor interface {
	Process(ctx context.Context, msg triage.RawMessage) (pipeline.Result, error)
}

type Gate interface {
	Check(ctx context.Context, msg triage.RawMessage) (intake.Verdict, error)
}

type Outcome struct {
	MessageID string          `json:"message_id"`
	RecordID  triage.RecordID `json:"record_id,omitempty"`
	Subject   string          `json:"subject"`
	Decision  triage.Decision `json:"decision,omitempty"`
	Priority  triage.Priority `json:"priority,omitempty"`
	Status    string          `json:"status"`
	Rule      string          `json:"rule,omitempty"`
	Error     string          `json:"error,omitempty"`
}

type Report struct {
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Fetched    int       `json:"fetched"`
	Outcomes   []Outcome `json:"results"`
}

// Count returns the number of outcomes with the given status.
func (r Report) Count(status string) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Syncer runs sync cycles: fetch a batch from the source, filter it, run the
// accepted messages through the pipeline and acknowledge what was handled.
// A message whose record could not be persisted is left unacknowledged.
type Syncer struct {
	source      source.Source
	gate        Gate
	processor   Processor
	batchSize   int
	concurrency int
	logger      logger.Logger

	running gosync.Mutex
}

func NewSyncer(src source.Source, gate Gate, proc Processor, cfg config.SyncConfig, log logger.Logger) *Syncer {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = constants.DefaultSyncBatchSize
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = constants.DefaultSyncConcurrency
	}

	return &Syncer{
		source:      src,
		gate:        gate,
		processor:   proc,
		batchSize:   batch,
		concurrency: conc,
		logger:      log,
	}
}

func (s *Syncer) Run(ctx context.Context, trigger string) (Report, error) {
	if !s.running.TryLock() {
		metrics.IncSyncRun(trigger, "busy")
		return Report{}, ErrSyncInProgress
	}
	defer s.running.Unlock()

	ctx = logging.WithServiceName(ctx, constants.ServiceName)
	report := Report{
		Trigger:   trigger,
		Source:    s.source.Name(),
		StartedAt: time.Now().UTC(),
	}

	msgs, err := s.source.Fetch(ctx, s.batchSize)
	if err != nil && len(msgs) == 0 {
		metrics.IncSyncRun(trigger, "error")
		s.logger.ErrorwCtx(ctx, "Failed to fetch messages",
			"source", report.Source,
			"error", err,
		)
		return report, fmt.Errorf("fetch from %s: %w", report.Source, err)
	}
	if err != nil {
		s.logger.WarnwCtx(ctx, "Fetch ended early, processing partial batch",
			"source", report.Source,
			"fetched", len(msgs),
			"error", err,
		)
	}
	report.Fetched = len(msgs)

	outcomes := make([]Outcome, len(msgs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, msg := range msgs {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					perr := apperrors.RecoverPanic(r)
					s.logger.ErrorwCtx(ctx, "Panic while handling message",
						"message_id", msg.ID,
						"error", perr,
					)
					outcomes[i] = Outcome{MessageID: msg.ID, Subject: msg.Subject, Status: StatusFailed, Error: perr.Error()}
				}
			}()
			outcomes[i] = s.handle(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()

	report.Outcomes = outcomes
	report.FinishedAt = time.Now().UTC()

	metrics.IncSyncRun(trigger, "ok")
	s.logger.InfowCtx(ctx, "Sync cycle finished",
		"trigger", trigger,
		"source", report.Source,
		"fetched", report.Fetched,
		"processed", report.Count(StatusProcessed),
		"skipped", report.Count(StatusSkipped),
		"invalid", report.Count(StatusInvalid),
		"failed", report.Count(StatusFailed),
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

func (s *Syncer) handle(ctx context.Context, msg triage.RawMessage) Outcome {
	out := Outcome{MessageID: msg.ID, Subject: msg.Subject}
	msgCtx := logging.WithMessageID(ctx, msg.ID)

	verdict, err := s.gate.Check(msgCtx, msg)
	switch {
	case err != nil && apperrors.IsInvalidMessage(err):
		out.Status = StatusInvalid
		out.Error = err.Error()
		s.acknowledge(msgCtx, &out)
		return s.record(out)
	case err != nil:
		out.Status = StatusFailed
		out.Error = err.Error()
		return s.record(out)
	case !verdict.Accepted:
		out.Status = StatusSkipped
		out.Rule = verdict.Rule
		s.acknowledge(msgCtx, &out)
		return s.record(out)
	}

	res, err := s.processor.Process(msgCtx, msg)
	if err != nil {
		out.Status = StatusFailed
		out.Error = err.Error()
		var perr *pipeline.PersistError
		if errors.As(err, &perr) {
			out.Decision = perr.Context.Decision
			out.Priority = perr.Context.Classification.Priority
		}
		return s.record(out)
	}

	out.Status = StatusProcessed
	out.RecordID = res.ID
	out.Decision = res.Decision
	out.Priority = res.Classification.Priority
	s.acknowledge(msgCtx, &out)
	return s.record(out)
}

// acknowledge marks the message handled at the source. Failure to acknowledge
// does not undo the record; the message may be redelivered.
func (s *Syncer) acknowledge(ctx context.Context, out *Outcome) {
	if err := s.source.Acknowledge(ctx, out.MessageID); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to acknowledge message",
			"error", err,
		)
		out.Error = fmt.Sprintf("acknowledge: %v", err)
	}
}

func (s *Syncer) record(out Outcome) Outcome {
	metrics.IncSyncMessage(out.Status)
	return out
}
