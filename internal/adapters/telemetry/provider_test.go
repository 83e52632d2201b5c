package telemetry_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.kiln.dev/kiln/internal/adapters/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupRecorder() (*tracetest.SpanRecorder, *trace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	tp := trace.NewTracerProvider(trace.WithSpanProcessor(sr))
	otel.SetTracerProvider(tp)
	return sr, tp
}

// recordingRenderer is a counting test double for ports.Renderer. Batcher
// flushes arrive asynchronously, so a plain mutex-guarded counter is easier
// to reason about than mock expectations here.
type recordingRenderer struct {
	mu            sync.Mutex
	planCalls     int
	planCommands  []string
	startCalls    int
	logCalls      int
	completeCalls int
}

func (r *recordingRenderer) Start(_ context.Context) error { return nil }
func (r *recordingRenderer) Stop() error                   { return nil }
func (r *recordingRenderer) Wait() error                   { return nil }

func (r *recordingRenderer) OnPlanEmit(commands []string, _ map[string][]string, _ []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.planCalls++
	r.planCommands = commands
}

func (r *recordingRenderer) OnBuildStart(_, _, _ string, _ time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.startCalls++
}

func (r *recordingRenderer) OnBuildLog(_ string, _ []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logCalls++
}

func (r *recordingRenderer) OnBuildComplete(_ string, _ time.Time, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeCalls++
}

func TestOTelTracer_EmitPlan(t *testing.T) {
	sr, tp := setupRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	renderer := &recordingRenderer{}
	tracer := telemetry.NewOTelTracer("test-tracer").WithRenderer(renderer)

	ctx, span := tp.Tracer("test").Start(context.Background(), "root")
	tracer.EmitPlan(ctx, []string{"cmd1", "cmd2"}, map[string][]string{"cmd1": {"cmd2"}}, []string{"pkg"})
	span.End()

	_ = tp.ForceFlush(ctx)
	spans := sr.Ended()
	require.Len(t, spans, 1)

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "plan_emitted", events[0].Name)

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.Equal(t, 1, renderer.planCalls)
	assert.Equal(t, []string{"cmd1", "cmd2"}, renderer.planCommands)
}

func TestOTelTracer_EmitPlanWithoutSpan(t *testing.T) {
	sr, tp := setupRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	renderer := &recordingRenderer{}
	tracer := telemetry.NewOTelTracer("test-tracer").WithRenderer(renderer)

	// No recording span in the context, the plan still reaches the renderer.
	tracer.EmitPlan(context.Background(), []string{"cmd1"}, map[string][]string{}, nil)

	_ = tp.ForceFlush(context.Background())
	assert.Empty(t, sr.Ended())

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.Equal(t, 1, renderer.planCalls)
}

func TestOTelTracer_StartAttachesBatcher(t *testing.T) {
	tracer := telemetry.NewOTelTracer("test-tracer").WithRenderer(&recordingRenderer{})
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	_, span := tracer.Start(context.Background(), "test-span")
	otelSpan, ok := span.(*telemetry.OTelSpan)
	require.True(t, ok)
	assert.NotNil(t, otelSpan.Batcher())
	span.End()

	bare := telemetry.NewOTelTracer("test-tracer")
	_, span = bare.Start(context.Background(), "test-span")
	otelSpan, ok = span.(*telemetry.OTelSpan)
	require.True(t, ok)
	assert.Nil(t, otelSpan.Batcher())
	span.End()
}

func TestOTelTracer_LogBatching(t *testing.T) {
	renderer := &recordingRenderer{}
	tracer := telemetry.NewOTelTracer("test-tracer").WithRenderer(renderer)

	_, span := tracer.Start(context.Background(), "test-span")
	for range 10 {
		_, err := span.Write([]byte("log"))
		require.NoError(t, err)
	}
	// End closes the batcher, which flushes everything still buffered.
	span.End()

	renderer.mu.Lock()
	defer renderer.mu.Unlock()
	assert.Positive(t, renderer.logCalls)
}

func TestOTelSpan_SetAttribute(t *testing.T) {
	sr, tp := setupRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracer("test-tracer")
	ctx, span := tracer.Start(context.Background(), "attr-test")

	span.SetAttribute("str", "val")
	span.SetAttribute("int", 123)
	span.SetAttribute("int64", int64(456))
	span.SetAttribute("float", 3.14)
	span.SetAttribute("bool", true)
	span.SetAttribute("slice", []string{"a", "b"})
	span.SetAttribute("unknown", struct{}{})

	span.End()

	_ = tp.ForceFlush(ctx)
	spans := sr.Ended()
	require.Len(t, spans, 1)

	attrMap := make(map[string]any)
	for _, a := range spans[0].Attributes() {
		switch a.Value.Type() {
		case attribute.STRING:
			attrMap[string(a.Key)] = a.Value.AsString()
		case attribute.INT64:
			attrMap[string(a.Key)] = a.Value.AsInt64()
		case attribute.FLOAT64:
			attrMap[string(a.Key)] = a.Value.AsFloat64()
		case attribute.BOOL:
			attrMap[string(a.Key)] = a.Value.AsBool()
		case attribute.STRINGSLICE:
			attrMap[string(a.Key)] = a.Value.AsStringSlice()
		}
	}

	assert.Equal(t, "val", attrMap["str"])
	assert.Equal(t, int64(123), attrMap["int"])
	assert.Equal(t, int64(456), attrMap["int64"])
	assert.InEpsilon(t, 3.14, attrMap["float"], 0.001)
	assert.Equal(t, true, attrMap["bool"])
	assert.Equal(t, []string{"a", "b"}, attrMap["slice"])
	assert.Equal(t, "{}", attrMap["unknown"])
}

func TestOTelSpan_WriteWithoutRenderer(t *testing.T) {
	sr, tp := setupRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracer("test-tracer")

	ctx, span := tracer.Start(context.Background(), "log-test")
	n, err := span.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	span.End()

	_ = tp.ForceFlush(ctx)
	spans := sr.Ended()
	require.Len(t, spans, 1)

	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "log", events[0].Name)
	assert.Equal(t, "hello", events[0].Attributes[0].Value.AsString())
}

func TestOTelSpan_RecordError(t *testing.T) {
	sr, tp := setupRecorder()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	tracer := telemetry.NewOTelTracer("test-tracer")
	ctx, span := tracer.Start(context.Background(), "error-test")
	span.RecordError(assert.AnError)
	span.End()

	_ = tp.ForceFlush(ctx)
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, assert.AnError.Error(), spans[0].Status().Description)
}

func TestOTelTracer_Shutdown(t *testing.T) {
	tracer := telemetry.NewOTelTracer("test-tracer")
	require.NoError(t, tracer.Shutdown(context.Background()))
}
