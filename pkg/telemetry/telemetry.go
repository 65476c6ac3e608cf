// Package telemetry wires OpenTelemetry tracing into the actor tree: one
// span per stage execution and per task execution, correlated by session,
// batch, stage, and task IDs as span attributes. Mirrors the
// resource-plus-tracer-provider setup gomind's telemetry package uses,
// trimmed to the parts this core needs — no exporter is wired by default,
// since shipping spans to a collector is an operator concern outside this
// core's boundary.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/certdirectory/crawlcore"

// Provider owns the TracerProvider for a crawl session's lifetime.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider with no exporter registered: spans are
// created and ended (so propagation and attribute plumbing are exercised
// and testable) but are not shipped anywhere until the caller registers a
// real span processor via RegisterProcessor.
func NewProvider() *Provider {
	tp := sdktrace.NewTracerProvider()
	return &Provider{tp: tp, tracer: tp.Tracer(instrumentationName)}
}

// RegisterProcessor attaches a span processor (e.g. a batch span processor
// wrapping an OTLP exporter) to the underlying provider.
func (p *Provider) RegisterProcessor(sp sdktrace.SpanProcessor) {
	if p.tp == nil {
		return
	}
	p.tp.RegisterSpanProcessor(sp)
}

// Shutdown flushes and releases the underlying TracerProvider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// StartStageSpan starts a span for one stage execution.
func (p *Provider) StartStageSpan(ctx context.Context, sessionID, batchID, stageID, stageName string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "stage."+stageName,
		trace.WithAttributes(
			attribute.String("crawl.session_id", sessionID),
			attribute.String("crawl.batch_id", batchID),
			attribute.String("crawl.stage_id", stageID),
			attribute.String("crawl.stage", stageName),
		),
	)
}

// StartTaskSpan starts a span for one task execution within a stage.
func (p *Provider) StartTaskSpan(ctx context.Context, stageID, taskID string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "task.execute",
		trace.WithAttributes(
			attribute.String("crawl.stage_id", stageID),
			attribute.String("crawl.task_id", taskID),
		),
	)
}

// Noop returns a Provider backed by the global no-op tracer, for tests and
// code paths that don't care about tracing.
func Noop() *Provider {
	return &Provider{tracer: otel.Tracer(instrumentationName)}
}
