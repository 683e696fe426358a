package flow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// Flow owns the entry step of a chain and drives runs of it.
//
// A Flow holds no run state; Run may be called repeatedly and concurrently, each call
// getting its own Results.
type Flow struct {
	entry Step
	cfg   flowConfig
}

// New validates the graph reachable from entry and returns a Flow for it. It fails with an
// *EngineError when entry is nil, when two steps share an id, when a chain loops back on
// itself or when a node carries invalid middleware.
func New(entry Step, opts ...Option) (*Flow, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validate(entry); err != nil {
		return nil, err
	}
	return &Flow{entry: entry, cfg: cfg}, nil
}

// FromSequence links steps into a single chain, in order, and returns a Flow for it.
func FromSequence(steps []Step, opts ...Option) (*Flow, error) {
	return New(Chain(steps...), opts...)
}

// Entry returns the first step of the chain.
func (f *Flow) Entry() Step { return f.entry }

// Run executes the flow with a generated run id. See RunWithID.
func (f *Flow) Run(ctx context.Context) (*Results, error) {
	return f.RunWithID(ctx, uuid.NewString())
}

// RunWithID executes the flow from an empty Results and returns the final Results. On
// failure the results accumulated so far are returned along with the error.
func (f *Flow) RunWithID(ctx context.Context, runID string) (*Results, error) {
	rt := &runtime{
		runID:   runID,
		emitter: f.cfg.emitter,
		metrics: f.cfg.metrics,
		logger:  f.cfg.logger.With(zap.String("run_id", runID)),
	}
	ctx = withRuntime(ctx, rt)
	results := NewResults()

	rt.emit(0, "", emit.MsgRunStart, nil)
	rt.logger.Debug("run start")
	start := time.Now()

	err := runChain(ctx, f.entry, results)

	elapsed := time.Since(start)
	meta := durationMeta(elapsed)
	meta["steps"] = rt.steps.Load()
	status := "success"
	if err != nil {
		status = "error"
		meta["error"] = err.Error()
		rt.logger.Error("run failed", zap.Error(err), zap.Duration("duration", elapsed))
	} else {
		rt.logger.Debug("run end", zap.Duration("duration", elapsed))
	}
	rt.metrics.RecordRun(status)
	rt.emit(0, "", emit.MsgRunEnd, meta)

	return results, err
}
