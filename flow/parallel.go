package flow

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// Parallel runs its children concurrently, each against its own fork of the results, and
// merges the forks back in declared order once every child's sub-chain has finished.
//
// A tag written by several children ends up with the value of the last one in declared
// order. Such overwrites are counted, logged and emitted as merge_overwrite events.
//
// Only what each child wrote after the fork is merged. Values a child merely inherited from
// the parent never overwrite a sibling's write, unlike Results.Merge of each child's whole
// store, where a later child's stale copy of an inherited tag would win.
//
// If any child fails, Parallel still waits for the others, then fails with every child
// error joined. Nothing is merged in that case.
type Parallel struct {
	link

	id       string
	children []Step
}

// NewParallel creates a Parallel over children. Nil children are ignored.
func NewParallel(children ...Step) *Parallel {
	p := &Parallel{}
	for _, c := range children {
		if c != nil {
			p.children = append(p.children, c)
		}
	}
	return p
}

// WithID sets the step identifier used in events and logs.
func (p *Parallel) WithID(id string) *Parallel {
	p.id = id
	return p
}

// ID returns the step identifier.
func (p *Parallel) ID() string { return p.id }

// Kind returns KindParallel.
func (p *Parallel) Kind() Kind { return KindParallel }

// Children returns the branch heads in declared order.
func (p *Parallel) Children() []Step { return append([]Step(nil), p.children...) }

func (p *Parallel) run(ctx context.Context, results *Results) error {
	rt := runtimeFrom(ctx)
	step := int(rt.steps.Load())

	forks := make([]*Results, len(p.children))
	for i := range p.children {
		forks[i] = results.Fork()
	}

	rt.emit(step, p.id, emit.MsgParallelFork, map[string]interface{}{"branches": len(p.children)})
	start := time.Now()

	workers := pool.New().WithErrors().WithContext(ctx)
	for i, child := range p.children {
		i, child := i, child
		workers.Go(func(ctx context.Context) error {
			rt.metrics.AddInflightBranches(1)
			defer rt.metrics.AddInflightBranches(-1)
			return runChain(ctx, child, forks[i])
		})
	}
	err := workers.Wait()

	meta := durationMeta(time.Since(start))
	if err != nil {
		meta["error"] = err.Error()
	}
	rt.emit(step, p.id, emit.MsgParallelJoin, meta)
	if err != nil {
		return err
	}

	p.merge(rt, step, results, forks)
	return nil
}

func (p *Parallel) merge(rt *runtime, step int, results *Results, forks []*Results) {
	writer := make(map[Tag]int)

	for i, fork := range forks {
		for _, tag := range results.mergeForked(fork) {
			if prev, ok := writer[tag]; ok {
				rt.metrics.IncrementMergeOverwrites(tag)
				rt.logger.Warn("parallel branches wrote the same tag",
					zap.String("parallel_id", p.id),
					zap.String("tag", string(tag)),
					zap.Int("overwritten_branch", prev),
					zap.Int("winning_branch", i),
				)
				rt.emit(step, p.id, emit.MsgMergeOverwrite, map[string]interface{}{
					"tag":                string(tag),
					"overwritten_branch": prev,
					"winning_branch":     i,
				})
			}
			writer[tag] = i
		}
	}
}
