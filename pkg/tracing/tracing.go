// Package tracing configures OpenTelemetry for the triage service and owns the
// span names and attributes emitted while a message moves through intake and
// the pipeline.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"triage/internal/config"
	"triage/internal/constants"
	"triage/internal/triage"
)

const (
	pipelineTracer = "triage/pipeline"
	intakeTracer   = "triage/intake"
	kafkaTracer    = "triage/kafka"
)

const (
	StageKey     = attribute.Key("triage.stage")
	MessageIDKey = attribute.Key("triage.message.id")
	SourceKey    = attribute.Key("triage.message.source")
	DecisionKey  = attribute.Key("triage.decision")
	PriorityKey  = attribute.Key("triage.priority")
	CategoryKey  = attribute.Key("triage.category")
	RecordIDKey  = attribute.Key("triage.record.id")
	RuleKey      = attribute.Key("triage.intake.rule")
)

// Provider owns the SDK tracer provider so the service can flush it on exit.
type Provider struct {
	tp *sdktrace.TracerProvider
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Setup exports spans over OTLP/gRPC when tracing is enabled. When it is not,
// the global no-op provider stays in place and spans cost nothing.
func Setup(cfg config.TracingConfig) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = constants.ServiceName
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLP.Endpoint)}
	if cfg.OTLP.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(newSampler(cfg.Sampler)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{tp: tp}, nil
}

func newSampler(cfg config.SamplerConfig) sdktrace.Sampler {
	switch cfg.Type {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(cfg.Param)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.Param))
	default:
		return sdktrace.AlwaysSample()
	}
}

// MessageAttributes identifies msg on a span. Subject and body are left out.
func MessageAttributes(msg triage.RawMessage) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if msg.ID != "" {
		attrs = append(attrs, MessageIDKey.String(msg.ID))
	}
	if msg.Source != "" {
		attrs = append(attrs, SourceKey.String(msg.Source))
	}
	return attrs
}

// StartStage opens the span for one pipeline stage of msg.
func StartStage(ctx context.Context, stage triage.Stage, msg triage.RawMessage) (context.Context, trace.Span) {
	attrs := append(MessageAttributes(msg), StageKey.String(string(stage)))
	return otel.Tracer(pipelineTracer).Start(ctx, "pipeline."+string(stage),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// StartIntake opens the span covering validation and skip rules for msg.
func StartIntake(ctx context.Context, msg triage.RawMessage) (context.Context, trace.Span) {
	return otel.Tracer(intakeTracer).Start(ctx, "intake.check",
		trace.WithAttributes(MessageAttributes(msg)...),
	)
}

// RecordOutcome tags span with what pc has established so far.
func RecordOutcome(span trace.Span, pc triage.PipelineContext) {
	if pc.Classified() {
		span.SetAttributes(
			PriorityKey.String(string(pc.Classification.Priority)),
			CategoryKey.String(string(pc.Classification.Category)),
		)
	}
	if pc.Decision != "" {
		span.SetAttributes(DecisionKey.String(string(pc.Decision)))
	}
	if pc.RecordID != 0 {
		span.SetAttributes(RecordIDKey.Int64(int64(pc.RecordID)))
	}
}

// RecordSkip tags an intake span with the rule that dropped the message.
func RecordSkip(span trace.Span, rule string) {
	span.SetAttributes(RuleKey.String(rule))
}

// Fail marks span as failed with err.
func Fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
