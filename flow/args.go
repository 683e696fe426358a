package flow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Args holds the arguments a node body is invoked with: named values assembled from
// declared inputs, static params and named bindings, plus resolved positional bindings.
type Args struct {
	named      map[string]any
	positional []any
}

// NewArgs builds an Args value. It is mostly useful for calling bodies directly in tests.
func NewArgs(named map[string]any, positional ...any) Args {
	if named == nil {
		named = map[string]any{}
	}
	return Args{named: named, positional: positional}
}

// Get returns the named argument.
func (a Args) Get(name string) (any, bool) {
	v, ok := a.named[name]
	return v, ok
}

// At returns positional argument i.
func (a Args) At(i int) (any, bool) {
	if i < 0 || i >= len(a.positional) {
		return nil, false
	}
	return a.positional[i], true
}

// Len returns the number of positional arguments.
func (a Args) Len() int { return len(a.positional) }

// Named returns a copy of the named arguments.
func (a Args) Named() map[string]any {
	out := make(map[string]any, len(a.named))
	for k, v := range a.named {
		out[k] = v
	}
	return out
}

// Positional returns a copy of the positional arguments.
func (a Args) Positional() []any {
	return append([]any(nil), a.positional...)
}

// MarshalJSON encodes the arguments with sorted names, so equal arguments always encode to
// the same bytes.
func (a Args) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Named      map[string]any `json:"named,omitempty"`
		Positional []any          `json:"positional,omitempty"`
	}{a.named, a.positional})
}

// Arg returns the named argument as a T.
func Arg[T any](a Args, name string) (T, error) {
	var zero T
	v, ok := a.Get(name)
	if !ok {
		return zero, fmt.Errorf("argument %q not provided", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("argument %q is %T, not %T", name, v, zero)
	}
	return t, nil
}

// Pos returns positional argument i as a T.
func Pos[T any](a Args, i int) (T, error) {
	var zero T
	v, ok := a.At(i)
	if !ok {
		return zero, fmt.Errorf("positional argument %d not provided (have %d)", i, a.Len())
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("positional argument %d is %T, not %T", i, v, zero)
	}
	return t, nil
}

// Decode decodes the named arguments into a T. Struct fields are matched by their `arg`
// tag, or case-insensitively by field name.
//
//	type sumIn struct {
//	    Values []int `arg:"values"`
//	}
//	in, err := flow.Decode[sumIn](args)
func Decode[T any](a Args) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "arg",
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(a.named); err != nil {
		return out, fmt.Errorf("decode arguments: %w", err)
	}
	return out, nil
}

// Typed adapts a body that takes a typed input struct. The named arguments are decoded
// into In with Decode before fn is called.
func Typed[In any](fn func(ctx context.Context, in In) (any, error)) Body {
	return func(ctx context.Context, args Args) (any, error) {
		in, err := Decode[In](args)
		if err != nil {
			return nil, err
		}
		return fn(ctx, in)
	}
}

type argsKey struct{}

// ArgsFrom returns the resolved arguments of the node currently being invoked. It is
// available to middleware and bodies.
func ArgsFrom(ctx context.Context) (Args, bool) {
	a, ok := ctx.Value(argsKey{}).(Args)
	return a, ok
}

func withArgs(ctx context.Context, a Args) context.Context {
	return context.WithValue(ctx, argsKey{}, a)
}
