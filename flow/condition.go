package flow

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// Predicate decides a branch from the current results.
type Predicate func(results *Results) bool

// Selector picks a Switch case from the current results. The key must be comparable.
type Selector func(results *Results) any

// Or returns a predicate that is true if any of preds is. Predicates are evaluated in
// declared order and evaluation stops at the first true one. Or() is always false.
func Or(preds ...Predicate) Predicate {
	return func(results *Results) bool {
		for _, p := range preds {
			if p(results) {
				return true
			}
		}
		return false
	}
}

// And returns a predicate that is true if every one of preds is. Evaluation stops at the
// first false one. And() is always true.
func And(preds ...Predicate) Predicate {
	return func(results *Results) bool {
		for _, p := range preds {
			if !p(results) {
				return false
			}
		}
		return true
	}
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(results *Results) bool { return !p(results) }
}

// If runs its then branch when the predicate holds and its else branch otherwise. A nil
// branch runs nothing. Either way the chain continues with the If's own next step.
type If struct {
	link

	id   string
	cond Predicate
	then Step
	els  Step
}

// NewIf creates an If. els may be nil.
func NewIf(cond Predicate, then, els Step) *If {
	return &If{cond: cond, then: then, els: els}
}

// WithID sets the step identifier used in events and logs.
func (c *If) WithID(id string) *If {
	c.id = id
	return c
}

// ID returns the step identifier.
func (c *If) ID() string { return c.id }

// Kind returns KindIf.
func (c *If) Kind() Kind { return KindIf }

// Children returns the non-nil branches, then before else.
func (c *If) Children() []Step {
	var out []Step
	if c.then != nil {
		out = append(out, c.then)
	}
	if c.els != nil {
		out = append(out, c.els)
	}
	return out
}

func (c *If) run(ctx context.Context, results *Results) error {
	target, branch := c.els, "else"
	if c.cond != nil && c.cond(results) {
		target, branch = c.then, "then"
	}
	if target == nil {
		branch = "none"
	}
	selected(ctx, c.id, branch)
	return runChain(ctx, target, results)
}

// Switch runs the case whose key equals the selector result, or the default when no case
// matches. A missing default runs nothing. The chain then continues with the Switch's own
// next step.
type Switch struct {
	link

	id       string
	selector Selector
	keys     []any
	cases    map[any]Step
	def      Step
}

// NewSwitch creates a Switch with no cases. def may be nil.
func NewSwitch(selector Selector, def Step) *Switch {
	return &Switch{selector: selector, cases: map[any]Step{}, def: def}
}

// Case adds a case. key must be comparable; adding an existing key replaces its step.
func (s *Switch) Case(key any, step Step) *Switch {
	if _, ok := s.cases[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.cases[key] = step
	return s
}

// WithID sets the step identifier used in events and logs.
func (s *Switch) WithID(id string) *Switch {
	s.id = id
	return s
}

// ID returns the step identifier.
func (s *Switch) ID() string { return s.id }

// Kind returns KindSwitch.
func (s *Switch) Kind() Kind { return KindSwitch }

// Children returns the case steps in the order their keys were added, then the default.
func (s *Switch) Children() []Step {
	var out []Step
	for _, k := range s.keys {
		if step := s.cases[k]; step != nil {
			out = append(out, step)
		}
	}
	if s.def != nil {
		out = append(out, s.def)
	}
	return out
}

// Keys returns the case keys in the order they were added.
func (s *Switch) Keys() []any { return append([]any(nil), s.keys...) }

func (s *Switch) run(ctx context.Context, results *Results) error {
	var key any
	if s.selector != nil {
		key = s.selector(results)
	}
	target, ok, err := s.lookup(key)
	if err != nil {
		return err
	}
	branch := fmt.Sprintf("case %v", key)
	if !ok {
		target, branch = s.def, "default"
	}
	if target == nil {
		branch = "none"
	}
	selected(ctx, s.id, branch)
	return runChain(ctx, target, results)
}

// lookup finds the case for key. Keys whose dynamic value is not hashable, such as a struct
// holding a slice in an interface field, are reported instead of panicking.
func (s *Switch) lookup(key any) (target Step, ok bool, err error) {
	invalid := &NodeError{
		Message: fmt.Sprintf("selector returned non-comparable key of type %T", key),
		Code:    CodeInvalidKey,
		NodeID:  s.id,
	}
	if key != nil && !reflect.TypeOf(key).Comparable() {
		return nil, false, invalid
	}
	defer func() {
		if r := recover(); r != nil {
			target, ok, err = nil, false, invalid
		}
	}()
	target, ok = s.cases[key]
	return target, ok, nil
}

func selected(ctx context.Context, id, branch string) {
	rt := runtimeFrom(ctx)
	rt.logger.Debug("branch selected", zap.String("step_id", id), zap.String("branch", branch))
	rt.emit(int(rt.steps.Load()), id, emit.MsgBranchSelected, map[string]interface{}{"branch": branch})
}
