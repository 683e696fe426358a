package flow

import (
	"fmt"
	"reflect"
)

// Transform is a pure function applied to a resolved reference value.
type Transform func(v any) (any, error)

// Ref is a deferred reference to another node's output. It is placed in a node's input
// bindings at build time and resolved against the result store when that node executes.
//
// Refs are values; every builder method returns a modified copy.
//
//	build := flow.NewNode("b", buildBody).
//	    Input(flow.ResultRef("sum"), flow.ResultRef("max").Map(double))
type Ref struct {
	target     string
	tag        Tag
	index      int
	hasIndex   bool
	key        string
	hasKey     bool
	transforms []Transform
}

// ResultRef returns a reference to the output of the node identified by nodeID.
func ResultRef(nodeID string) Ref {
	return Ref{target: nodeID}
}

// Target returns the referenced node id.
func (r Ref) Target() string { return r.target }

// Output narrows the reference to the value nodeID produced under tag.
func (r Ref) Output(tag Tag) Ref {
	r.tag = tag
	return r
}

// Index selects element i of a sequence value.
func (r Ref) Index(i int) Ref {
	r.index = i
	r.hasIndex = true
	return r
}

// Key selects an entry of a string-keyed map value.
func (r Ref) Key(k string) Ref {
	r.key = k
	r.hasKey = true
	return r
}

// Map appends a transform. Transforms run left to right after any subscript.
func (r Ref) Map(fn Transform) Ref {
	r.transforms = append(append([]Transform(nil), r.transforms...), fn)
	return r
}

// Pipe composes the transforms of other after those of r. Only other's transforms are
// used; its target and subscripts are ignored.
func (r Ref) Pipe(other Ref) Ref {
	r.transforms = append(append([]Transform(nil), r.transforms...), other.transforms...)
	return r
}

// String implements fmt.Stringer.
func (r Ref) String() string {
	s := "ref(" + r.target
	if r.tag != "" {
		s += "." + string(r.tag)
	}
	if r.hasIndex {
		s += fmt.Sprintf("[%d]", r.index)
	}
	if r.hasKey {
		s += fmt.Sprintf("[%q]", r.key)
	}
	return s + ")"
}

// Resolve looks the reference up in results. Lookup order:
//  1. the raw value last returned by the target node
//  2. the target node's bucket, narrowed to the reference tag if one is set
//  3. the global tag index, when a tag is set
//  4. the first tag whose recorded producer is the target
//
// A subscript, then the transforms, are applied to the value found.
func (r Ref) Resolve(results *Results) (any, error) {
	value, ok := results.NodeResult(r.target)
	if !ok {
		value, ok = results.GetFromNode(r.target, r.tag)
	}
	if !ok && r.tag != "" {
		value, ok = results.Get(r.tag)
	}
	if !ok {
		value, ok = results.findByProducer(r.target)
	}
	if !ok {
		return nil, &ReferenceError{Target: r.target, Cause: ErrReferenceNotFound}
	}

	var err error
	if r.hasIndex {
		if value, err = r.applyIndex(value); err != nil {
			return nil, err
		}
	}
	if r.hasKey {
		if value, err = r.applyKey(value); err != nil {
			return nil, err
		}
	}
	for _, fn := range r.transforms {
		if value, err = fn(value); err != nil {
			return nil, &ReferenceError{Target: r.target, Detail: "transform", Cause: err}
		}
	}
	return value, nil
}

func (r Ref) applyIndex(value any) (any, error) {
	rv := reflect.ValueOf(value)
	if !isSequence(rv) {
		return value, nil
	}
	if r.index < 0 || r.index >= rv.Len() {
		return nil, &ReferenceError{
			Target: r.target,
			Detail: fmt.Sprintf("index %d, length %d", r.index, rv.Len()),
			Cause:  ErrIndexOutOfRange,
		}
	}
	return rv.Index(r.index).Interface(), nil
}

func (r Ref) applyKey(value any) (any, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return value, nil
	}
	elem := rv.MapIndex(reflect.ValueOf(r.key).Convert(rv.Type().Key()))
	if !elem.IsValid() {
		return nil, &ReferenceError{
			Target: r.target,
			Detail: fmt.Sprintf("key %q", r.key),
			Cause:  ErrIndexOutOfRange,
		}
	}
	return elem.Interface(), nil
}

// isSequence reports whether rv is a slice or array. Strings and byte slices are values,
// not sequences.
func isSequence(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

// resolveBinding replaces every Ref nested in v with its resolved value. It recurses
// through []any, []Ref and map[string]any and leaves every other value untouched.
func resolveBinding(v any, results *Results) (any, error) {
	switch b := v.(type) {
	case Ref:
		return b.Resolve(results)
	case *Ref:
		if b == nil {
			return nil, nil
		}
		return b.Resolve(results)
	case []Ref:
		out := make([]any, len(b))
		for i, ref := range b {
			resolved, err := ref.Resolve(results)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(b))
		for i, item := range b {
			resolved, err := resolveBinding(item, results)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(b))
		for k, item := range b {
			resolved, err := resolveBinding(item, results)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}
