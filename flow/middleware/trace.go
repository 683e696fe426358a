package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/taskflow-go/flow"
)

const tracerName = "github.com/dshills/taskflow-go/flow/middleware"

// Trace wraps each invocation in a span named "taskflow.node <id>". The span context is
// passed down, so spans started by the body nest under it. A nil tracer uses the global
// tracer provider.
func Trace(tracer trace.Tracer) flow.Middleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return flow.MiddlewareFunc(func(ctx context.Context, next flow.Handler, _ *flow.Results, node *flow.Node) (any, error) {
		ctx, span := tracer.Start(ctx, "taskflow.node "+node.ID(),
			trace.WithAttributes(
				attribute.String("taskflow.run_id", flow.RunIDFrom(ctx)),
				attribute.String("taskflow.node_id", node.ID()),
				attribute.Int("taskflow.step", flow.StepFrom(ctx)),
			),
		)
		defer span.End()

		value, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return value, err
		}
		span.SetStatus(codes.Ok, "")
		return value, nil
	})
}
