package observability

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
	"go.opentelemetry.io/otel/trace"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartProviderSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartProviderSpan(context.Background(), "gemini", "sdk")
	assert.NotEmpty(t, GetTraceID(ctx))
	SetSpanError(span, errors.New("boom"))
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "compose.gemini.sdk", spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String(SpanAttrProvider, "gemini"))
	assert.Contains(t, spans[0].Attributes(), attribute.String(SpanAttrPath, "sdk"))
}

func TestStartSpan_Success(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "compose", attribute.String(SpanAttrRequestID, "req-1"))
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestSetSpanError_Nil(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "noop")
	SetSpanError(span, nil)
	span.End()

	assert.Equal(t, codes.Unset, recorder.Ended()[0].Status().Code)
}
