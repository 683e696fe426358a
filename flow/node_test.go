package flow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestNode_SingleOutput(t *testing.T) {
	r := NewResults()
	n := NewNode("n", constant([]string{"whole"})).Produces("out")

	if err := Execute(context.Background(), n, r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v, _ := r.Get("out"); !reflect.DeepEqual(v, []string{"whole"}) {
		t.Errorf("out = %v, want the whole value", v)
	}
	if v, _ := r.NodeResult("n"); !reflect.DeepEqual(v, []string{"whole"}) {
		t.Errorf("node result = %v", v)
	}
	if id, _ := r.Producer("out"); id != "n" {
		t.Errorf("producer = %q, want n", id)
	}
}

func TestNode_MultipleOutputs(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		wantT1 any
		wantT2 any
		arity  bool
	}{
		{name: "slice of any", value: []any{"v1", 2}, wantT1: "v1", wantT2: 2},
		{name: "typed slice", value: []int{7, 8}, wantT1: 7, wantT2: 8},
		{name: "array", value: [2]string{"x", "y"}, wantT1: "x", wantT2: "y"},
		{name: "one element", value: []any{"only"}, arity: true},
		{name: "three elements", value: []any{1, 2, 3}, arity: true},
		{name: "not a sequence", value: 5, arity: true},
		{name: "string is not a sequence", value: "ab", arity: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResults()
			n := NewNode("n", constant(tt.value)).Produces("T1", "T2")
			err := Execute(context.Background(), n, r)

			if tt.arity {
				if !errors.Is(err, ErrOutputArity) {
					t.Fatalf("err = %v, want ErrOutputArity", err)
				}
				if r.Len() != 0 {
					t.Errorf("arity failure wrote %v", r.Tags())
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if v, _ := r.Get("T1"); v != tt.wantT1 {
				t.Errorf("T1 = %v, want %v", v, tt.wantT1)
			}
			if v, _ := r.Get("T2"); v != tt.wantT2 {
				t.Errorf("T2 = %v, want %v", v, tt.wantT2)
			}
		})
	}
}

func TestNode_ExplicitOutputsIgnoreDeclaration(t *testing.T) {
	r := NewResults()
	n := NewNode("n", constant(Outputs{"b": 2, "a": 1})).Produces("declared", "ignored")

	if err := Execute(context.Background(), n, r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got, want := r.Tags(), []Tag{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Tags() = %v, want %v", got, want)
	}
	if r.Has("declared") {
		t.Error("declared outputs must be ignored for explicit outputs")
	}
}

func TestNode_NilAndUndeclaredResults(t *testing.T) {
	r := NewResults()
	nilNode := NewNode("nil", constant(nil)).Produces("out")
	bare := NewNode("bare", constant(5))

	if err := Execute(context.Background(), Chain(nilNode, bare), r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("no tags expected, got %v", r.Tags())
	}
	if _, ok := r.NodeResult("nil"); ok {
		t.Error("nil return must not be recorded")
	}
	if v, ok := r.NodeResult("bare"); !ok || v != 5 {
		t.Errorf("node result of node without outputs = %v, %v", v, ok)
	}
}

func TestNode_MissingInputs(t *testing.T) {
	r := NewResults()
	r.Set("present", 1, "")
	called := false
	n := NewNode("needy", func(context.Context, Args) (any, error) {
		called = true
		return 1, nil
	}).Consumes("TypeX", "present", "TypeY").Produces("out")

	err := Execute(context.Background(), n, r)

	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("err = %v, want *MissingInputError", err)
	}
	if !reflect.DeepEqual(missing.Missing, []Tag{"TypeX", "TypeY"}) {
		t.Errorf("Missing = %v", missing.Missing)
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Error("errors.Is(err, ErrMissingInput) should hold")
	}
	if want := "node needy missing inputs: [TypeX, TypeY]"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if called {
		t.Error("body must not run")
	}
	if r.Has("out") || r.Len() != 1 {
		t.Error("no partial write expected")
	}
}

func TestNode_ArgumentPrecedence(t *testing.T) {
	r := NewResults()
	r.Set("x", "from input", "")
	r.Set("y", "from input", "")
	r.SetNodeResult("src", "from ref")

	var got map[string]any
	n := NewNode("n", func(_ context.Context, args Args) (any, error) {
		got = args.Named()
		return nil, nil
	}).
		Consumes("x", "y").
		Param("y", "from param").
		Param("z", "from param").
		Bind("z", ResultRef("src"))

	if err := Execute(context.Background(), n, r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := map[string]any{"x": "from input", "y": "from param", "z": "from ref"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("args = %v, want %v", got, want)
	}
}

func TestNode_ReferenceFailureIsReported(t *testing.T) {
	n := NewNode("consumer", constant(1)).Input(ResultRef("ghost"))
	err := Execute(context.Background(), n, NewResults())

	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("err = %v, want ErrReferenceNotFound", err)
	}
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.NodeID != "consumer" || nodeErr.Code != CodeReferenceNotFound {
		t.Errorf("want NodeError for consumer with code %s, got %#v", CodeReferenceNotFound, nodeErr)
	}
	if !strings.Contains(err.Error(), "ghost") {
		t.Errorf("error should name the target: %v", err)
	}
}

func TestNode_BodyErrorWrapped(t *testing.T) {
	sentinel := errors.New("boom")
	n := NewNode("bad", func(context.Context, Args) (any, error) { return nil, sentinel })

	err := Execute(context.Background(), n, NewResults())
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want to wrap sentinel", err)
	}
	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) || nodeErr.NodeID != "bad" || nodeErr.Code != CodeNodeFailed {
		t.Errorf("NodeError = %#v", nodeErr)
	}
}

func TestNode_PanicRecovered(t *testing.T) {
	n := NewNode("p", func(context.Context, Args) (any, error) { panic("kaboom") })

	err := Execute(context.Background(), n, NewResults())
	if err == nil || !strings.Contains(err.Error(), "kaboom") {
		t.Errorf("err = %v, want panic message", err)
	}
}

func TestNode_ChainStopsAtFirstError(t *testing.T) {
	r := NewResults()
	after := &recorder{}
	chain := Chain(
		NewNode("ok", constant(1)).Produces("one"),
		NewNode("fail", func(context.Context, Args) (any, error) { return nil, errors.New("stop") }),
		NewNode("after", after.body),
	)

	if err := Execute(context.Background(), chain, r); err == nil {
		t.Fatal("expected error")
	}
	if after.calls.Load() != 0 {
		t.Error("steps after a failure must not run")
	}
	if !r.Has("one") {
		t.Error("writes before the failure are kept")
	}
}

func TestNode_Typed(t *testing.T) {
	type sumIn struct {
		Numbers []int `arg:"numbers"`
		Scale   int
	}
	r := NewResults()
	r.Set(tagNumbers, []int{1, 2}, "")

	n := NewNode("typed", Typed(func(_ context.Context, in sumIn) (any, error) {
		total := 0
		for _, v := range in.Numbers {
			total += v * in.Scale
		}
		return total, nil
	})).Consumes(tagNumbers).Param("scale", 10).Produces(tagSum)

	if err := Execute(context.Background(), n, r); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v, _ := r.Get(tagSum); v != 30 {
		t.Errorf("sum = %v, want 30", v)
	}
}

func TestArgs_Accessors(t *testing.T) {
	args := NewArgs(map[string]any{"n": 3, "s": "x"}, 1.5, "p")

	if v, err := Arg[int](args, "n"); err != nil || v != 3 {
		t.Errorf("Arg[int](n) = %v, %v", v, err)
	}
	if _, err := Arg[int](args, "s"); err == nil {
		t.Error("Arg with wrong type should fail")
	}
	if _, err := Arg[int](args, "missing"); err == nil {
		t.Error("Arg of missing name should fail")
	}
	if v, err := Pos[float64](args, 0); err != nil || v != 1.5 {
		t.Errorf("Pos[float64](0) = %v, %v", v, err)
	}
	if _, err := Pos[string](args, 5); err == nil {
		t.Error("Pos out of range should fail")
	}
	if args.Len() != 2 {
		t.Errorf("Len() = %d", args.Len())
	}

	data, err := args.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON: %v", err)
	}
	if want := `{"named":{"n":3,"s":"x"},"positional":[1.5,"p"]}`; string(data) != want {
		t.Errorf("MarshalJSON = %s, want %s", data, want)
	}
}
