package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartStageSpanSetsAttributes(t *testing.T) {
	p := NewProvider()
	defer p.Shutdown(context.Background())

	ctx, span := p.StartStageSpan(context.Background(), "sess_1", "batch_1", "stage_1", "list_collection")
	assert.NotNil(t, ctx)
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestStartTaskSpan(t *testing.T) {
	p := NewProvider()
	defer p.Shutdown(context.Background())

	_, span := p.StartTaskSpan(context.Background(), "stage_1", "task_1")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestNoopProviderDoesNotPanic(t *testing.T) {
	p := Noop()
	_, span := p.StartStageSpan(context.Background(), "s", "b", "st", "list_collection")
	span.End()
	assert.NoError(t, p.Shutdown(context.Background()))
	p.RegisterProcessor(nil)
}
