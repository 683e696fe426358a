package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dshills/taskflow-go/flow"
)

func TestTrace(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	errBoom := errors.New("boom")
	ok := flow.NewNode("ok", func(context.Context, flow.Args) (any, error) { return 1, nil }).Use(Trace(tracer))
	failing := flow.NewNode("failing", func(context.Context, flow.Args) (any, error) { return nil, errBoom }).Use(Trace(tracer))

	h := newHarness(t)
	_, err := h.run(context.Background(), "trace-run", ok, failing)
	require.ErrorIs(t, err, errBoom)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	require.Equal(t, "taskflow.node ok", spans[0].Name)
	require.Equal(t, codes.Ok, spans[0].Status.Code)
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes {
		attrs[kv.Key] = kv.Value
	}
	require.Equal(t, "trace-run", attrs["taskflow.run_id"].AsString())
	require.Equal(t, "ok", attrs["taskflow.node_id"].AsString())
	require.Equal(t, int64(1), attrs["taskflow.step"].AsInt64())

	require.Equal(t, "taskflow.node failing", spans[1].Name)
	require.Equal(t, codes.Error, spans[1].Status.Code)
	require.Equal(t, "boom", spans[1].Status.Description)
	require.Len(t, spans[1].Events, 1)
}

func TestTrace_BodySeesSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = tp.Shutdown(context.Background()) }()
	tracer := tp.Tracer("test")

	node := flow.NewNode("parent", func(ctx context.Context, _ flow.Args) (any, error) {
		_, child := tracer.Start(ctx, "child")
		child.End()
		return nil, nil
	}).Use(Trace(tracer))

	h := newHarness(t)
	_, err := h.run(context.Background(), "nested", node)
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	require.Equal(t, "child", spans[0].Name)
	require.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}
