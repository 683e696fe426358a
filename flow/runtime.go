package flow

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// runtime is the per-run state shared by every step of a run through the context.
type runtime struct {
	runID   string
	emitter emit.Emitter
	metrics *PrometheusMetrics
	logger  *zap.Logger
	steps   atomic.Int64
}

type runtimeKey struct{}

type stepKey struct{}

var detached = &runtime{
	emitter: emit.NewNullEmitter(),
	logger:  zap.NewNop(),
}

func withRuntime(ctx context.Context, rt *runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// runtimeFrom returns the run state of ctx. Steps executed outside Flow.Run get a shared
// detached runtime that discards events and metrics.
func runtimeFrom(ctx context.Context) *runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*runtime); ok {
		return rt
	}
	return detached
}

func (rt *runtime) emit(step int, nodeID, msg string, meta map[string]interface{}) {
	rt.emitter.Emit(emit.Event{
		RunID:  rt.runID,
		Step:   step,
		NodeID: nodeID,
		Msg:    msg,
		Meta:   meta,
	})
}

// RunIDFrom returns the id of the run ctx belongs to, or "" outside a run.
func RunIDFrom(ctx context.Context) string {
	return runtimeFrom(ctx).runID
}

// LoggerFrom returns the run's logger. It never returns nil.
func LoggerFrom(ctx context.Context) *zap.Logger {
	return runtimeFrom(ctx).logger
}

// MetricsFrom returns the run's metrics collector. The result may be nil; its methods are
// nil-safe.
func MetricsFrom(ctx context.Context) *PrometheusMetrics {
	return runtimeFrom(ctx).metrics
}

// StepFrom returns the step number of the node invocation ctx belongs to.
func StepFrom(ctx context.Context) int {
	step, _ := ctx.Value(stepKey{}).(int)
	return step
}

// Emit sends an event for nodeID on the run's emitter, stamped with the run id and the
// current step.
func Emit(ctx context.Context, nodeID, msg string, meta map[string]interface{}) {
	runtimeFrom(ctx).emit(StepFrom(ctx), nodeID, msg, meta)
}

func withStep(ctx context.Context, step int) context.Context {
	return context.WithValue(ctx, stepKey{}, step)
}

func durationMeta(d time.Duration) map[string]interface{} {
	return map[string]interface{}{"duration_ms": d.Milliseconds()}
}
