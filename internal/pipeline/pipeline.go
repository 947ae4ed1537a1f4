// Package pipeline runs a message through classify, route, alert and persist.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"triage/internal/logger"
	"triage/internal/routing"
	"triage/internal/triage"
	"triage/pkg/logging"
	"triage/pkg/metrics"
	"triage/pkg/tracing"
)

type Classifier interface {
	Classify(ctx context.Context, subject, body string) triage.ClassificationResult
}

type Alerter interface {
	MaybeAlert(ctx context.Context, msg triage.RawMessage, result triage.ClassificationResult) bool
}

type Persister interface {
	Persist(ctx context.Context, msg triage.RawMessage, result triage.ClassificationResult) (triage.RecordID, error)
}

// Result is the outcome of a successful run. A fallback classification that
// was stored is still a success.
type Result struct {
	ID             triage.RecordID             `json:"id"`
	Decision       triage.Decision             `json:"decision"`
	Classification triage.ClassificationResult `json:"ai_result"`
}

// PersistError reports a failed persist stage. Context holds the computed
// classification and decision so the caller can retry with Pipeline.Persist
// instead of classifying again.
type PersistError struct {
	Context triage.PipelineContext
	Err     error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist message %q: %v", e.Context.Message.Subject, e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// StageFunc is one step of the pipeline.
type StageFunc func(ctx context.Context, pc triage.PipelineContext) (triage.PipelineContext, error)

type stage struct {
	name triage.Stage
	run  StageFunc
}

// Pipeline is safe for concurrent use; it holds no per-message state.
type Pipeline struct {
	classifier Classifier
	alerter    Alerter
	persister  Persister
	logger     logger.Logger
	stages     []stage
}

func New(c Classifier, a Alerter, p Persister, log logger.Logger) *Pipeline {
	pl := &Pipeline{
		classifier: c,
		alerter:    a,
		persister:  p,
		logger:     log,
	}
	pl.stages = []stage{
		{name: triage.StageClassify, run: pl.classify},
		{name: triage.StageRoute, run: pl.route},
		{name: triage.StageAlert, run: pl.alert},
		{name: triage.StagePersist, run: pl.persist},
	}
	return pl
}

func (p *Pipeline) Process(ctx context.Context, msg triage.RawMessage) (Result, error) {
	ctx = withMessageFields(ctx, msg)
	pc := triage.NewPipelineContext(msg)

	for _, st := range p.stages {
		next, err := p.runStage(ctx, st, pc)
		if err != nil {
			return Result{}, p.fail(ctx, pc, err)
		}
		pc = next
	}

	return p.complete(ctx, pc), nil
}

// Persist re-runs only the persist stage for a context whose classification
// is already known, typically PersistError.Context.
func (p *Pipeline) Persist(ctx context.Context, pc triage.PipelineContext) (Result, error) {
	if !pc.Classified() {
		return Result{}, fmt.Errorf("pipeline context for %q has not been classified", pc.Message.Subject)
	}
	ctx = withMessageFields(ctx, pc.Message)

	if pc.Decision == "" {
		pc = pc.WithDecision(routing.Route(pc.Classification))
	}

	next, err := p.runStage(ctx, p.stages[len(p.stages)-1], pc)
	if err != nil {
		return Result{}, p.fail(ctx, pc, err)
	}
	return p.complete(ctx, next), nil
}

func (p *Pipeline) runStage(ctx context.Context, st stage, pc triage.PipelineContext) (triage.PipelineContext, error) {
	ctx, span := tracing.StartStage(ctx, st.name, pc.Message)
	defer span.End()

	start := time.Now()
	next, err := st.run(ctx, pc)
	metrics.ObserveStageDuration(string(st.name), time.Since(start))

	if err != nil {
		tracing.RecordOutcome(span, pc)
		tracing.Fail(span, err)
		return pc, err
	}
	tracing.RecordOutcome(span, next)
	return next, nil
}

func (p *Pipeline) classify(ctx context.Context, pc triage.PipelineContext) (triage.PipelineContext, error) {
	result := p.classifier.Classify(ctx, pc.Message.Subject, pc.Message.Body)
	return pc.WithClassification(result), nil
}

func (p *Pipeline) route(_ context.Context, pc triage.PipelineContext) (triage.PipelineContext, error) {
	return pc.WithDecision(routing.Route(pc.Classification)), nil
}

func (p *Pipeline) alert(ctx context.Context, pc triage.PipelineContext) (triage.PipelineContext, error) {
	p.alerter.MaybeAlert(ctx, pc.Message, pc.Classification)
	return pc.Alerted(), nil
}

func (p *Pipeline) persist(ctx context.Context, pc triage.PipelineContext) (triage.PipelineContext, error) {
	id, err := p.persister.Persist(ctx, pc.Message, pc.Classification)
	if err != nil {
		return pc, &PersistError{Context: pc, Err: err}
	}
	return pc.WithRecordID(id), nil
}

func (p *Pipeline) fail(ctx context.Context, pc triage.PipelineContext, err error) error {
	metrics.IncMessagesProcessed(string(pc.Decision), "persist_failed")
	p.logger.ErrorwCtx(ctx, "Message processing failed",
		"stage", string(pc.Stage),
		"priority", string(pc.Classification.Priority),
		"error", err,
	)
	return err
}

func (p *Pipeline) complete(ctx context.Context, pc triage.PipelineContext) Result {
	pc = pc.Done()
	metrics.IncMessagesProcessed(string(pc.Decision), "ok")
	p.logger.InfowCtx(ctx, "Message processed",
		"record_id", int64(pc.RecordID),
		"decision", string(pc.Decision),
		"priority", string(pc.Classification.Priority),
		"category", string(pc.Classification.Category),
	)
	return Result{
		ID:             pc.RecordID,
		Decision:       pc.Decision,
		Classification: pc.Classification,
	}
}

func withMessageFields(ctx context.Context, msg triage.RawMessage) context.Context {
	if logging.GetTraceID(ctx) == "" {
		ctx = logging.WithTraceID(ctx, uuid.NewString())
	}
	if msg.ID != "" {
		ctx = logging.WithMessageID(ctx, msg.ID)
	}
	if msg.Source != "" {
		ctx = logging.WithSource(ctx, msg.Source)
	}
	return ctx
}
