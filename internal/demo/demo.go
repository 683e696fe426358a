// Package demo holds the node bodies and graphs run by the taskflow command and the
// examples.
package demo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/taskflow-go/flow"
)

// Tags of the statistics graph.
const (
	TagNumbers flow.Tag = "numbers"
	TagSum     flow.Tag = "sum"
	TagMax     flow.Tag = "max"
	TagEven    flow.Tag = "even"
	TagReport  flow.Tag = "report"
	TagStatus  flow.Tag = "status"
)

// Tags of the processing pipeline.
const (
	TagInputData     flow.Tag = "input_data"
	TagProcessedData flow.Tag = "processed_data"
	TagFinalResult   flow.Tag = "final_result"
	TagOutput        flow.Tag = "output"
)

var errNoNumbers = errors.New("no numbers")

// Report is the result of the Build node.
type Report struct {
	Sum  int `json:"sum"`
	Max  int `json:"max"`
	Even int `json:"even"`
}

type numbersIn struct {
	Numbers []int `arg:"numbers"`
}

// Seed returns its first positional argument.
func Seed(_ context.Context, args flow.Args) (any, error) {
	v, ok := args.At(0)
	if !ok {
		return nil, errors.New("seed: no input")
	}
	return v, nil
}

// Sum adds the numbers.
var Sum = flow.Typed(func(_ context.Context, in numbersIn) (any, error) {
	total := 0
	for _, n := range in.Numbers {
		total += n
	}
	return total, nil
})

// Max returns the largest number.
var Max = flow.Typed(func(_ context.Context, in numbersIn) (any, error) {
	if len(in.Numbers) == 0 {
		return nil, errNoNumbers
	}
	best := in.Numbers[0]
	for _, n := range in.Numbers[1:] {
		best = max(best, n)
	}
	return best, nil
})

// EvenCount counts the even numbers.
var EvenCount = flow.Typed(func(_ context.Context, in numbersIn) (any, error) {
	count := 0
	for _, n := range in.Numbers {
		if n%2 == 0 {
			count++
		}
	}
	return count, nil
})

// Build assembles a Report from the sum, max and even count passed positionally.
func Build(_ context.Context, args flow.Args) (any, error) {
	var (
		r   Report
		err error
	)
	if r.Sum, err = flow.Pos[int](args, 0); err != nil {
		return nil, err
	}
	if r.Max, err = flow.Pos[int](args, 1); err != nil {
		return nil, err
	}
	if r.Even, err = flow.Pos[int](args, 2); err != nil {
		return nil, err
	}
	return r, nil
}

// Alert reports a sum above the threshold.
func Alert(_ context.Context, args flow.Args) (any, error) {
	sum, err := flow.Arg[int](args, string(TagSum))
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("ALERT: sum %d is high", sum), nil
}

// Normal reports a sum at or below the threshold.
func Normal(_ context.Context, args flow.Args) (any, error) {
	sum, err := flow.Arg[int](args, string(TagSum))
	if err != nil {
		return nil, err
	}
	return fmt.Sprintf("normal: sum %d", sum), nil
}

// SumAbove is true once the "sum" node result exceeds threshold.
func SumAbove(threshold int) flow.Predicate {
	return func(results *flow.Results) bool {
		v, ok := results.NodeResult("sum")
		if !ok {
			return false
		}
		sum, ok := v.(int)
		return ok && sum > threshold
	}
}

// StatisticsOptions configures Statistics.
type StatisticsOptions struct {
	Values    []int
	Threshold int
	// Middleware is applied to the sum, max and even nodes.
	Middleware []any
}

// Statistics builds the statistics graph:
//
//	seed -> parallel(sum -> max, even) -> b -> if sum > threshold: alert else normal
func Statistics(opts StatisticsOptions) flow.Step {
	seed := flow.NewNode("seed", Seed).Produces(TagNumbers).Input(opts.Values)
	sum := flow.NewNode("sum", Sum).Consumes(TagNumbers).Produces(TagSum).Use(opts.Middleware...)
	maxNode := flow.NewNode("max", Max).Consumes(TagNumbers).Produces(TagMax).Use(opts.Middleware...)
	even := flow.NewNode("even", EvenCount).Consumes(TagNumbers).Produces(TagEven).Use(opts.Middleware...)
	build := flow.NewNode("b", Build).Produces(TagReport).
		Input(flow.ResultRef("sum"), flow.ResultRef("max"), flow.ResultRef("even"))

	check := flow.NewIf(SumAbove(opts.Threshold),
		flow.NewNode("alert", Alert).Consumes(TagSum).Produces(TagStatus),
		flow.NewNode("normal", Normal).Consumes(TagSum).Produces(TagStatus),
	).WithID("check")

	return flow.Chain(
		seed,
		flow.NewParallel(flow.Chain(sum, maxNode), even).WithID("stats"),
		build,
		check,
	)
}

type processIn struct {
	Data  []int         `arg:"input_data"`
	Delay time.Duration `arg:"delay"`
}

type summarizeIn struct {
	Data   []int         `arg:"processed_data"`
	Method string        `arg:"method"`
	Delay  time.Duration `arg:"delay"`
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Generator produces the pipeline input.
func Generator(ctx context.Context, args flow.Args) (any, error) {
	delay, _ := flow.Arg[time.Duration](args, "delay")
	if err := pause(ctx, delay); err != nil {
		return nil, err
	}
	return []int{1, 2, 3, 4, 5}, nil
}

// Processor doubles every input value.
var Processor = flow.Typed(func(ctx context.Context, in processIn) (any, error) {
	if err := pause(ctx, in.Delay); err != nil {
		return nil, err
	}
	out := make([]int, len(in.Data))
	for i, v := range in.Data {
		out[i] = v * 2
	}
	return out, nil
})

// Summarizer reduces the processed data with method "sum" or "max"; any other method
// passes the data through.
var Summarizer = flow.Typed(func(ctx context.Context, in summarizeIn) (any, error) {
	if err := pause(ctx, in.Delay); err != nil {
		return nil, err
	}
	switch in.Method {
	case "sum":
		total := 0
		for _, v := range in.Data {
			total += v
		}
		return total, nil
	case "max":
		if len(in.Data) == 0 {
			return nil, errNoNumbers
		}
		best := in.Data[0]
		for _, v := range in.Data[1:] {
			best = max(best, v)
		}
		return best, nil
	default:
		return in.Data, nil
	}
})

// Output formats its first positional argument.
func Output(_ context.Context, args flow.Args) (any, error) {
	v, _ := args.At(0)
	method, _ := flow.Arg[string](args, "method")
	return fmt.Sprintf("Output (%s): %v", method, v), nil
}

// PipelineOptions configures Pipeline.
type PipelineOptions struct {
	// Delay is slept by every node body before it works.
	Delay time.Duration
	// GeneratorMiddleware is applied to the generator node.
	GeneratorMiddleware []any
	// Middleware is applied to the processor and summarizer nodes.
	Middleware []any
}

// Pipeline builds the processing pipeline:
//
//	gen -> parallel(proc1 -> sum1[sum], proc2 -> sum2[max]) -> out(sum1)
//
// Both branches write processed_data and final_result; the second branch wins the merge.
func Pipeline(opts PipelineOptions) flow.Step {
	gen := flow.NewNode("gen", Generator).Produces(TagInputData).Param("delay", opts.Delay).
		Use(opts.GeneratorMiddleware...)

	branch := func(n int, method string) flow.Step {
		proc := flow.NewNode(fmt.Sprintf("proc%d", n), Processor).
			Consumes(TagInputData).Produces(TagProcessedData).
			Param("delay", opts.Delay).Use(opts.Middleware...)
		summary := flow.NewNode(fmt.Sprintf("sum%d", n), Summarizer).
			Consumes(TagProcessedData).Produces(TagFinalResult).
			Params(map[string]any{"method": method, "delay": opts.Delay}).Use(opts.Middleware...)
		return flow.Chain(proc, summary)
	}

	out := flow.NewNode("out", Output).Produces(TagOutput).
		Input(flow.ResultRef("sum1")).Bind("method", "sum")

	return flow.Chain(
		gen,
		flow.NewParallel(branch(1, "sum"), branch(2, "max")).WithID("branches"),
		out,
	)
}
