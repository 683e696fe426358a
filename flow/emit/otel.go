package emit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns every event into a zero-duration OpenTelemetry span named after
// event.Msg. Event fields become "taskflow.*" attributes and Meta entries become span
// attributes. Events carrying an "error" entry get an error status.
//
//	tracer := otel.Tracer("taskflow")
//	f, _ := flow.New(entry, flow.WithEmitter(emit.NewOTelEmitter(tracer)))
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter creates an OTelEmitter that starts spans on tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit records event as a span.
func (o *OTelEmitter) Emit(event Event) {
	o.record(context.Background(), event)
}

// EmitBatch records every event as a span parented by ctx. It stops early when ctx is done.
func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.record(ctx, event)
	}
	return nil
}

func (o *OTelEmitter) record(ctx context.Context, event Event) {
	_, span := o.tracer.Start(ctx, event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("taskflow.run_id", event.RunID),
		attribute.Int("taskflow.step", event.Step),
		attribute.String("taskflow.node_id", event.NodeID),
	)
	for key, value := range event.Meta {
		span.SetAttributes(metaAttribute("taskflow."+key, value))
	}

	if msg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, msg)
		span.RecordError(errors.New(msg))
	}
}

func metaAttribute(key string, value interface{}) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case time.Duration:
		return attribute.Int64(key, v.Milliseconds())
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}
