package flow

import "context"

// Kind identifies the variant of a Step.
type Kind int

const (
	// KindTask is a Node running a body.
	KindTask Kind = iota
	// KindParallel forks the results and runs its children concurrently.
	KindParallel
	// KindIf runs one of two branches chosen by a predicate.
	KindIf
	// KindSwitch runs the case selected by a key.
	KindSwitch
)

func (k Kind) String() string {
	switch k {
	case KindTask:
		return "task"
	case KindParallel:
		return "parallel"
	case KindIf:
		return "if"
	case KindSwitch:
		return "switch"
	default:
		return "unknown"
	}
}

// Step is an element of a flow graph: a Node, a Parallel, an If or a Switch. Steps are
// linked into chains with Then; branch constructs expose their branch heads through
// Children.
//
// The set of implementations is closed.
type Step interface {
	// ID returns the step identifier. It may be empty for steps nobody references.
	ID() string

	// Kind returns the step variant.
	Kind() Kind

	// Next returns the step that runs after this one, or nil at the end of a chain.
	Next() Step

	// Then links next after this step and returns next, so chains read left to right:
	//
	//	a.Then(b).Then(c)
	Then(next Step) Step

	// Children returns the heads of the sub-chains owned by a branch construct, in
	// declared order. Tasks have none.
	Children() []Step

	run(ctx context.Context, results *Results) error
}

// link holds the next pointer shared by every step type.
type link struct {
	next Step
}

func (l *link) Next() Step { return l.next }

func (l *link) Then(next Step) Step {
	l.next = next
	return next
}

// Chain links steps in order and returns the first one. Each step is appended after the
// tail of the chain built so far, so an element that is itself a chain keeps its links.
// Nil steps and steps already linked into the chain are skipped.
func Chain(steps ...Step) Step {
	var head, tail Step
	linked := map[Step]bool{}
	for _, s := range steps {
		if s == nil || linked[s] {
			continue
		}
		if head == nil {
			head = s
		} else {
			tail.Then(s)
		}
		tail = s
		linked[s] = true
		for next := s.Next(); next != nil && !linked[next]; next = next.Next() {
			linked[next] = true
			tail = next
		}
	}
	return head
}

// runChain executes the chain starting at step, strictly in order. It stops at the first
// error or when ctx is done.
func runChain(ctx context.Context, step Step, results *Results) error {
	for cur := step; cur != nil; cur = cur.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := cur.run(ctx, results); err != nil {
			return err
		}
	}
	return nil
}

// Execute runs the chain starting at step against results, outside of a Flow. No events or
// metrics are recorded. Flow.Run is the usual entry point.
func Execute(ctx context.Context, step Step, results *Results) error {
	return runChain(ctx, step, results)
}
