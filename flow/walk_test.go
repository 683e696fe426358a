package flow

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func render(entry Step) ([]string, error) {
	var lines []string
	err := Walk(entry, func(s Step, depth int) error {
		lines = append(lines, fmt.Sprintf("%s%s %s", strings.Repeat("  ", depth), s.Kind(), s.ID()))
		return nil
	})
	return lines, err
}

func TestWalk_Tree(t *testing.T) {
	build := &recorder{}
	entry := Chain(
		scenario(build),
		NewSwitch(nil, NewNode("fallback", nil)).WithID("sw").Case("a", NewNode("case-a", nil)),
		NewIf(nil, NewNode("then", nil), NewNode("else", nil)).WithID("gate"),
	)

	lines, err := render(entry)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"task seed",
		"parallel fan",
		"  task sum",
		"  task max",
		"  task even",
		"task b",
		"switch sw",
		"  task case-a",
		"  task fallback",
		"if gate",
		"  task then",
		"  task else",
	}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("walk =\n%s\nwant\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}

func TestWalk_SkipChildrenAndStop(t *testing.T) {
	entry := scenario(&recorder{})

	var visited []string
	err := Walk(entry, func(s Step, _ int) error {
		visited = append(visited, s.ID())
		if s.Kind() == KindParallel {
			return SkipChildren
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"seed", "fan", "b"}; !reflect.DeepEqual(visited, want) {
		t.Errorf("visited = %v, want %v", visited, want)
	}

	stop := errors.New("stop")
	err = Walk(entry, func(s Step, _ int) error {
		if s.ID() == "fan" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("err = %v, want stop", err)
	}
}

func TestWalk_DoesNotLoop(t *testing.T) {
	a := NewNode("a", nil)
	b := NewNode("b", nil)
	a.Then(b)
	b.Then(a)

	lines, err := render(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Errorf("walk over a cycle = %v", lines)
	}
}

func TestChain_SkipsNilAndKeepsLinks(t *testing.T) {
	a, b, c := NewNode("a", nil), NewNode("b", nil), NewNode("c", nil)
	a.Then(b)

	head := Chain(nil, a, nil, c)
	if head != a || a.Next() != b || b.Next() != c || c.Next() != nil {
		t.Error("Chain should append c after the existing a -> b chain")
	}
	if Chain() != nil {
		t.Error("empty Chain should be nil")
	}
	if KindSwitch.String() != "switch" || Kind(99).String() != "unknown" {
		t.Error("Kind.String")
	}
}

func TestChain_SkipsStepsAlreadyLinked(t *testing.T) {
	a, b, c := NewNode("a", nil), NewNode("b", nil), NewNode("c", nil)
	a.Then(b)

	head := Chain(a, b, c)
	if head != a || a.Next() != b || b.Next() != c || c.Next() != nil {
		t.Fatalf("Chain(a, b, c) over a -> b: a.next=%v b.next=%v c.next=%v", a.Next(), b.Next(), c.Next())
	}

	x, y := NewNode("x", nil), NewNode("y", nil)
	x.Then(y)
	f, err := FromSequence([]Step{x, y})
	if err != nil {
		t.Fatalf("FromSequence over a linked chain: %v", err)
	}
	if f.Entry() != x || y.Next() != nil {
		t.Errorf("y should stay the tail, got next %v", y.Next())
	}
}
