package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	recorder := useRecorder(t)

	_, span := StartServiceSpan(context.Background(), "payment_return", "complete",
		WithAttribute(SpanAttrGatewayID, "recurly"))
	SetAttributes(span,
		SpanAttrItemCount, 3,
		SpanAttrPattern, "plan",
		42, "ignored",
	)
	AddEvent(span, "account_resolved", SpanAttrAccountCode, "user-42")
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "payment_return.complete", spans[0].Name())

	attrs := attrMap(spans[0].Attributes())
	assert.Equal(t, "recurly", attrs[SpanAttrGatewayID].AsString())
	assert.EqualValues(t, 3, attrs[SpanAttrItemCount].AsInt64())
	assert.Equal(t, "plan", attrs[SpanAttrPattern].AsString())
	assert.Len(t, attrs, 3)

	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "account_resolved", spans[0].Events()[0].Name)
}

func TestRecordError(t *testing.T) {
	recorder := useRecorder(t)

	_, span := StartSpan(context.Background(), "failing")
	RecordError(span, errors.New("card declined"))
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "card declined", spans[0].Status().Description)
}

func TestToAttribute(t *testing.T) {
	assert.Equal(t, attribute.StringValue("x"), toAttribute("k", "x").Value)
	assert.Equal(t, attribute.Int64Value(7), toAttribute("k", int64(7)).Value)
	assert.Equal(t, attribute.BoolValue(true), toAttribute("k", true).Value)
	assert.Equal(t, attribute.StringValue("[1 2]"), toAttribute("k", [2]int{1, 2}).Value)
}
