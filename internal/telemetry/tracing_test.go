package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestStartSpanWithoutProvider(t *testing.T) {
	t.Parallel()

	ctx, span := StartSpan(context.Background(), "test", attribute.String("doc_id", "doc-1"))
	assert.NotNil(t, ctx)
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, errors.New("boom"))
	EndSpan(trace.SpanFromContext(ctx), nil)
}

func TestInitPropagator(t *testing.T) {
	InitPropagator()

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(context.Background(), carrier)
	assert.Empty(t, carrier.Get("traceparent"))
}
