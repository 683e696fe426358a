package flow

import (
	"errors"
	"fmt"
)

// SkipChildren may be returned by a Walk callback to skip the children of the current step.
// Its next steps are still visited.
var SkipChildren = errors.New("skip children")

// Walk visits every step reachable from entry, depth first: a step, then its children's
// sub-chains one level deeper, then its next step at the same depth. fn must not modify
// the graph. A step reached a second time is not visited again. A non-nil error from fn,
// other than SkipChildren, stops the walk and is returned.
//
//	flow.Walk(f.Entry(), func(s flow.Step, depth int) error {
//	    fmt.Printf("%s- %s %s\n", strings.Repeat("  ", depth), s.Kind(), s.ID())
//	    return nil
//	})
func Walk(entry Step, fn func(step Step, depth int) error) error {
	return walk(entry, 0, map[Step]bool{}, fn)
}

func walk(start Step, depth int, seen map[Step]bool, fn func(Step, int) error) error {
	for cur := start; cur != nil && !seen[cur]; cur = cur.Next() {
		seen[cur] = true

		err := fn(cur, depth)
		if errors.Is(err, SkipChildren) {
			continue
		}
		if err != nil {
			return err
		}
		for _, child := range cur.Children() {
			if err := walk(child, depth+1, seen, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// validate rejects graphs that cannot run: duplicate non-empty ids, next-pointer cycles,
// steps shared between places in the graph and middleware that failed AsMiddleware.
func validate(entry Step) error {
	if entry == nil {
		return &EngineError{Message: "flow has no entry step", Code: CodeNoEntry}
	}

	ids := map[string]Step{}
	seen := map[Step]bool{}
	return validateChain(entry, ids, seen)
}

func validateChain(start Step, ids map[string]Step, seen map[Step]bool) error {
	for cur := start; cur != nil; cur = cur.Next() {
		if seen[cur] {
			return &EngineError{
				Message: fmt.Sprintf("step %s is reached twice; chains must not loop or share steps", describe(cur)),
				Code:    CodeCycle,
			}
		}
		seen[cur] = true

		if id := cur.ID(); id != "" {
			if _, dup := ids[id]; dup {
				return &EngineError{Message: fmt.Sprintf("duplicate step id %q", id), Code: CodeDuplicateNode}
			}
			ids[id] = cur
		}

		if node, ok := cur.(*Node); ok {
			for _, mw := range node.middleware {
				if broken, ok := mw.(brokenMiddleware); ok {
					return &EngineError{Message: fmt.Sprintf("%s: %v", describe(cur), broken.err), Code: CodePluginContract}
				}
			}
		}

		// several Switch keys may lead to the same branch
		branches := map[Step]bool{}
		for _, child := range cur.Children() {
			if branches[child] {
				continue
			}
			branches[child] = true
			if err := validateChain(child, ids, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func describe(s Step) string {
	if s.ID() == "" {
		return fmt.Sprintf("<anonymous %s>", s.Kind())
	}
	return fmt.Sprintf("%q", s.ID())
}
