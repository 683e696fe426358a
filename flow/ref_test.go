package flow

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
)

func TestRef_ResolutionOrder(t *testing.T) {
	t.Run("node result wins", func(t *testing.T) {
		r := NewResults()
		r.Set("t", "tagged", "n")
		r.SetNodeResult("n", "raw")

		v, err := ResultRef("n").Output("t").Resolve(r)
		if err != nil || v != "raw" {
			t.Errorf("Resolve = %v, %v; want raw", v, err)
		}
	})

	t.Run("node bucket narrowed by tag", func(t *testing.T) {
		r := NewResults()
		r.Set("a", 1, "n")
		r.Set("b", 2, "n")

		v, err := ResultRef("n").Output("b").Resolve(r)
		if err != nil || v != 2 {
			t.Errorf("Resolve = %v, %v; want 2", v, err)
		}
	})

	t.Run("global tag lookup", func(t *testing.T) {
		r := NewResults()
		r.Set("t", "from other", "other")

		v, err := ResultRef("n").Output("t").Resolve(r)
		if err != nil || v != "from other" {
			t.Errorf("Resolve = %v, %v; want global value", v, err)
		}
	})

	t.Run("producer scan", func(t *testing.T) {
		r := NewResults()
		r.Set("first", 1, "n")
		r.Set("second", 2, "n")
		// remove the node bucket so only the scan can find it
		delete(r.byNode, "n")

		v, err := ResultRef("n").Resolve(r)
		if err != nil || v != 1 {
			t.Errorf("Resolve = %v, %v; want first produced value", v, err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		_, err := ResultRef("ghost").Resolve(NewResults())
		if !errors.Is(err, ErrReferenceNotFound) {
			t.Fatalf("err = %v, want ErrReferenceNotFound", err)
		}
		var refErr *ReferenceError
		if !errors.As(err, &refErr) || refErr.Target != "ghost" {
			t.Errorf("error should name the target: %v", err)
		}
	})
}

func TestRef_Index(t *testing.T) {
	r := NewResults()
	r.SetNodeResult("list", []int{10, 20, 30})
	r.SetNodeResult("scalar", 7)

	if v, err := ResultRef("list").Index(1).Resolve(r); err != nil || v != 20 {
		t.Errorf("Index(1) = %v, %v; want 20", v, err)
	}
	if v, err := ResultRef("scalar").Index(3).Resolve(r); err != nil || v != 7 {
		t.Errorf("Index on non-sequence = %v, %v; want value unchanged", v, err)
	}
	for _, i := range []int{3, -1} {
		if _, err := ResultRef("list").Index(i).Resolve(r); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Index(%d) err = %v, want ErrIndexOutOfRange", i, err)
		}
	}
}

func TestRef_Key(t *testing.T) {
	r := NewResults()
	r.SetNodeResult("m", map[string]int{"a": 1})

	if v, err := ResultRef("m").Key("a").Resolve(r); err != nil || v != 1 {
		t.Errorf("Key(a) = %v, %v; want 1", v, err)
	}
	if _, err := ResultRef("m").Key("b").Resolve(r); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("missing key err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestRef_TransformsComposeLeftToRight(t *testing.T) {
	r := NewResults()
	r.SetNodeResult("n", 3)

	double := func(v any) (any, error) { return v.(int) * 2, nil }
	inc := func(v any) (any, error) { return v.(int) + 1, nil }

	ref := ResultRef("n").Map(double).Pipe(ResultRef("ignored").Map(inc))
	if v, err := ref.Resolve(r); err != nil || v != 7 {
		t.Errorf("(3*2)+1 = %v, %v; want 7", v, err)
	}

	// Map returns a copy; the original ref is unchanged
	base := ResultRef("n")
	_ = base.Map(double)
	if v, _ := base.Resolve(r); v != 3 {
		t.Errorf("base ref was modified: %v", v)
	}

	failing := ResultRef("n").Map(func(any) (any, error) { return nil, fmt.Errorf("bad") })
	if _, err := failing.Resolve(r); err == nil {
		t.Error("transform error should fail resolution")
	}
}

func TestResolveBinding_Nested(t *testing.T) {
	r := NewResults()
	r.SetNodeResult("a", 1)
	r.SetNodeResult("b", 2)

	in := map[string]any{
		"list":   []any{ResultRef("a"), "lit", []any{ResultRef("b")}},
		"refs":   []Ref{ResultRef("b"), ResultRef("a")},
		"plain":  42,
		"ptr":    func() *Ref { ref := ResultRef("a"); return &ref }(),
		"nested": map[string]any{"deep": ResultRef("b")},
	}
	got, err := resolveBinding(in, r)
	if err != nil {
		t.Fatalf("resolveBinding: %v", err)
	}
	want := map[string]any{
		"list":   []any{1, "lit", []any{2}},
		"refs":   []any{2, 1},
		"plain":  42,
		"ptr":    1,
		"nested": map[string]any{"deep": 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("resolveBinding = %#v, want %#v", got, want)
	}

	if _, err := resolveBinding([]any{ResultRef("missing")}, r); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("nested missing ref err = %v", err)
	}
}

func TestRef_String(t *testing.T) {
	if got := ResultRef("n").Output("t").Index(2).String(); got != "ref(n.t[2])" {
		t.Errorf("String() = %q", got)
	}
}
