package flow

import (
	"context"
	"fmt"
	"sync/atomic"
)

const (
	tagNumbers Tag = "numbers"
	tagSum     Tag = "sum"
	tagMax     Tag = "max"
	tagEven    Tag = "even"
	tagReport  Tag = "report"
)

// constant returns a body that always returns v.
func constant(v any) Body {
	return func(context.Context, Args) (any, error) { return v, nil }
}

// firstArg returns positional argument 0.
func firstArg(_ context.Context, args Args) (any, error) {
	v, _ := args.At(0)
	return v, nil
}

func sumBody(_ context.Context, args Args) (any, error) {
	nums, err := Arg[[]int](args, string(tagNumbers))
	if err != nil {
		return nil, err
	}
	total := 0
	for _, n := range nums {
		total += n
	}
	return total, nil
}

func maxBody(_ context.Context, args Args) (any, error) {
	nums, err := Arg[[]int](args, string(tagNumbers))
	if err != nil {
		return nil, err
	}
	if len(nums) == 0 {
		return nil, fmt.Errorf("no numbers")
	}
	best := nums[0]
	for _, n := range nums[1:] {
		if n > best {
			best = n
		}
	}
	return best, nil
}

func evenBody(_ context.Context, args Args) (any, error) {
	nums, err := Arg[[]int](args, string(tagNumbers))
	if err != nil {
		return nil, err
	}
	count := 0
	for _, n := range nums {
		if n%2 == 0 {
			count++
		}
	}
	return count, nil
}

// recorder captures the positional args a body was called with.
type recorder struct {
	calls atomic.Int32
	args  atomic.Value
}

func (r *recorder) body(_ context.Context, args Args) (any, error) {
	r.calls.Add(1)
	r.args.Store(args.Positional())
	return args.Positional(), nil
}

func (r *recorder) positional() []any {
	v, _ := r.args.Load().([]any)
	return v
}

// scenario builds seed -> parallel(sum -> max, even) -> build.
func scenario(build *recorder) Step {
	seed := NewNode("seed", firstArg).Produces(tagNumbers).Input([]int{2, 5, 8, 13, 21})
	sum := NewNode("sum", sumBody).Consumes(tagNumbers).Produces(tagSum)
	sum.Then(NewNode("max", maxBody).Consumes(tagNumbers).Produces(tagMax))
	even := NewNode("even", evenBody).Consumes(tagNumbers).Produces(tagEven)
	b := NewNode("b", build.body).Produces(tagReport).
		Input(ResultRef("sum"), ResultRef("max"), ResultRef("even"))

	return Chain(seed, NewParallel(sum, even).WithID("fan"), b)
}
