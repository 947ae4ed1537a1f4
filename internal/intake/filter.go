package intake

import (
	"context"
	"fmt"
	"strings"

	celgo "github.com/google/cel-go/cel"

	"triage/internal/config"
	"triage/internal/logger"
	"triage/internal/triage"
	"triage/pkg/cel"
	apperrors "triage/pkg/errors"
	"triage/pkg/metrics"
	"triage/pkg/tracing"
)

// Verdict is the outcome of checking a well-formed message against the skip rules.
type Verdict struct {
	Accepted bool   `json:"accepted"`
	Rule     string `json:"rule,omitempty"`
}

type rule struct {
	name    string
	program celgo.Program
}

// Filter decides which inbound messages enter the pipeline. Rules are
// compiled once at construction and are read-only afterwards.
type Filter struct {
	evaluator *cel.Evaluator
	rules     []rule
	logger    logger.Logger
}

func NewFilter(cfg config.IntakeConfig, log logger.Logger) (*Filter, error) {
	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	rules := make([]rule, 0, len(cfg.SkipRules))
	for i, r := range cfg.SkipRules {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		program, err := evaluator.CompileFilter(r.Expression)
		if err != nil {
			return nil, fmt.Errorf("skip rule %q: %w", name, err)
		}
		rules = append(rules, rule{name: name, program: program})
	}

	return &Filter{
		evaluator: evaluator,
		rules:     rules,
		logger:    log,
	}, nil
}

// Validate rejects messages that are missing a sender, subject or source.
func Validate(msg triage.RawMessage) error {
	var missing []string
	if strings.TrimSpace(msg.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(msg.Sender) == "" {
		missing = append(missing, "sender")
	}
	if strings.TrimSpace(msg.Subject) == "" {
		missing = append(missing, "subject")
	}
	if len(missing) == 0 {
		return nil
	}

	return apperrors.ErrInvalidMessage.
		WithDetail("message", "missing required fields: "+strings.Join(missing, ", ")).
		WithDetail("fields", missing)
}

// Check validates msg and evaluates the skip rules in order. A rule that
// fails to evaluate is logged and ignored.
func (f *Filter) Check(ctx context.Context, msg triage.RawMessage) (Verdict, error) {
	ctx, span := tracing.StartIntake(ctx, msg)
	defer span.End()

	if err := Validate(msg); err != nil {
		metrics.IncIntakeMessage("invalid")
		tracing.Fail(span, err)
		return Verdict{}, err
	}

	for _, r := range f.rules {
		if err := ctx.Err(); err != nil {
			return Verdict{}, err
		}

		skip, err := f.evaluator.Evaluate(ctx, r.program, msg)
		if err != nil {
			f.logger.WarnwCtx(ctx, "Skip rule evaluation error",
				"rule_name", r.name,
				"error", err,
			)
			continue
		}
		if skip {
			f.logger.DebugwCtx(ctx, "Message skipped by rule",
				"rule_name", r.name,
				"sender", msg.Sender,
			)
			metrics.IncIntakeMessage("skipped")
			tracing.RecordSkip(span, r.name)
			return Verdict{Rule: r.name}, nil
		}
	}

	metrics.IncIntakeMessage("accepted")
	return Verdict{Accepted: true}, nil
}

func (f *Filter) RuleCount() int {
	return len(f.rules)
}
