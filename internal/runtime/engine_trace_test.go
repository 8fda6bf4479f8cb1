package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	messagepkg "github.com/drblury/fixflow/internal/runtime/message"
	sessionpkg "github.com/drblury/fixflow/internal/runtime/session"
)

func newTracedEngine(t *testing.T) (*Engine, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	base := newTestEngine(t)
	e := NewEngine(newTestLogger(), WithMetrics(base.Metrics()), WithTracer(tp.Tracer("fixflow/engine")))
	return e, rec
}

func TestEngineRecordsNotifySpan(t *testing.T) {
	e, rec := newTracedEngine(t)
	require.NoError(t, e.AddListener(ListenerFuncs{Name: "audit"}))

	sid := testSession(t)
	require.NoError(t, e.NotifySend(context.Background(), sid, newOrder("1")))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "fixflow.notify.sent", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, sid.String(), attrs["fix.session"].AsString())
	assert.Equal(t, int64(3), attrs["fix.fields"].AsInt64())
	assert.Equal(t, int64(1), attrs["fixflow.listeners"].AsInt64())
}

func TestEngineMarksSpanOnPanic(t *testing.T) {
	e, rec := newTracedEngine(t)
	require.NoError(t, e.AddListener(ListenerFuncs{Name: "broken", Receive: func(sessionpkg.ID, *messagepkg.Message) {
		panic("boom")
	}}))

	require.Error(t, e.NotifyReceive(context.Background(), testSession(t), newOrder("1")))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "fixflow.notify.received", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}
