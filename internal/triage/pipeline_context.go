package triage

// Stage names the last pipeline stage that completed for a PipelineContext.
type Stage string

const (
	StageStart     Stage = "start"
	StageClassify  Stage = "classify"
	StageRoute     Stage = "route"
	StageAlert     Stage = "alert"
	StagePersist   Stage = "persist"
	StageCompleted Stage = "done"
)

// PipelineContext is the per-invocation aggregate threaded through the
// pipeline stages. It is a value: every stage returns a new context rather
// than mutating the one it received.
type PipelineContext struct {
	Message        RawMessage
	Classification ClassificationResult
	Decision       Decision
	RecordID       RecordID
	Stage          Stage
}

func NewPipelineContext(msg RawMessage) PipelineContext {
	return PipelineContext{
		Message: msg,
		Stage:   StageStart,
	}
}

func (c PipelineContext) WithClassification(result ClassificationResult) PipelineContext {
	result.Metadata = result.Metadata.Clone()
	c.Classification = result
	c.Stage = StageClassify
	return c
}

func (c PipelineContext) WithDecision(d Decision) PipelineContext {
	c.Decision = d
	c.Stage = StageRoute
	return c
}

func (c PipelineContext) Alerted() PipelineContext {
	c.Stage = StageAlert
	return c
}

func (c PipelineContext) WithRecordID(id RecordID) PipelineContext {
	c.RecordID = id
	c.Stage = StagePersist
	return c
}

func (c PipelineContext) Done() PipelineContext {
	c.Stage = StageCompleted
	return c
}

// Classified reports whether the classify stage has run.
func (c PipelineContext) Classified() bool {
	return c.Stage != StageStart && c.Stage != ""
}
