package flow

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// Body is the user logic of a node. It receives the assembled arguments and returns the
// node's raw result:
//   - nil: nothing is recorded
//   - Outputs: each entry is stored under its tag, declared outputs are ignored
//   - any other value with one declared output: stored whole under that tag
//   - a slice or array with N>1 declared outputs: zipped onto the outputs in order
//   - any other value with no declared outputs: kept only as the node result
type Body func(ctx context.Context, args Args) (any, error)

// Outputs is a body result that assigns values to tags explicitly.
type Outputs map[Tag]any

// Node is the unit of work of a flow. Nodes are configured with chained builder calls at
// build time and must not be modified once a run starts.
//
//	sum := flow.NewNode("sum", sumBody).
//	    Consumes(TagNumbers).
//	    Produces(TagSum).
//	    Use(middleware.Retry(2, 0))
type Node struct {
	link

	id         string
	body       Body
	inputs     []Tag
	outputs    []Tag
	params     map[string]any
	positional []any
	named      map[string]any
	middleware []Middleware
}

// NewNode creates a node. id may be empty when no reference targets the node.
func NewNode(id string, body Body) *Node {
	return &Node{
		id:     id,
		body:   body,
		params: map[string]any{},
		named:  map[string]any{},
	}
}

// ID returns the node identifier.
func (n *Node) ID() string { return n.id }

// Kind returns KindTask.
func (n *Node) Kind() Kind { return KindTask }

// Children returns nil.
func (n *Node) Children() []Step { return nil }

// Inputs returns the declared input tags.
func (n *Node) Inputs() []Tag { return append([]Tag(nil), n.inputs...) }

// Outputs returns the declared output tags.
func (n *Node) Outputs() []Tag { return append([]Tag(nil), n.outputs...) }

// Middleware returns the node's middleware in registration order.
func (n *Node) Middleware() []Middleware { return append([]Middleware(nil), n.middleware...) }

// Consumes declares tags that must be present in the results before the node runs. Each
// one is passed to the body as a named argument under the tag's name.
func (n *Node) Consumes(tags ...Tag) *Node {
	n.inputs = append(n.inputs, tags...)
	return n
}

// Produces declares the tags the body result is stored under.
func (n *Node) Produces(tags ...Tag) *Node {
	n.outputs = append(n.outputs, tags...)
	return n
}

// Param sets a static named argument. It overrides a consumed input of the same name.
func (n *Node) Param(name string, value any) *Node {
	n.params[name] = value
	return n
}

// Params sets several static named arguments.
func (n *Node) Params(params map[string]any) *Node {
	for k, v := range params {
		n.params[k] = v
	}
	return n
}

// Input sets the positional bindings. Values may be, or contain, Refs.
func (n *Node) Input(args ...any) *Node {
	n.positional = args
	return n
}

// Bind sets a named binding. The value may be, or contain, a Ref; it overrides params and
// consumed inputs of the same name.
func (n *Node) Bind(name string, value any) *Node {
	n.named[name] = value
	return n
}

// Use appends middleware. Each entry must be accepted by AsMiddleware; an entry that is
// not makes every invocation of the node fail with ErrPluginContract, and New rejects the
// flow.
func (n *Node) Use(middleware ...any) *Node {
	for _, v := range middleware {
		mw, err := AsMiddleware(v)
		if err != nil {
			n.middleware = append(n.middleware, brokenMiddleware{err: err})
			continue
		}
		n.middleware = append(n.middleware, mw)
	}
	return n
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	if n.id == "" {
		return "node(<anonymous>)"
	}
	return "node(" + n.id + ")"
}

func (n *Node) run(ctx context.Context, results *Results) error {
	rt := runtimeFrom(ctx)
	step := int(rt.steps.Add(1))
	ctx = withStep(ctx, step)
	logger := rt.logger.With(zap.String("node_id", n.id), zap.Int("step", step))

	rt.emit(step, n.id, emit.MsgNodeStart, nil)
	logger.Debug("node start")
	start := time.Now()

	err := n.execute(ctx, results)
	elapsed := time.Since(start)

	if err != nil {
		rt.metrics.RecordNodeLatency(n.id, elapsed, "error")
		meta := durationMeta(elapsed)
		meta["error"] = err.Error()
		meta["code"] = codeOf(err)
		rt.emit(step, n.id, emit.MsgNodeError, meta)
		logger.Error("node failed", zap.Error(err), zap.Duration("duration", elapsed))
		return err
	}

	rt.metrics.RecordNodeLatency(n.id, elapsed, "success")
	rt.emit(step, n.id, emit.MsgNodeEnd, durationMeta(elapsed))
	logger.Debug("node end", zap.Duration("duration", elapsed))
	return nil
}

// execute assembles arguments, invokes the body through the middleware and records the
// result. Nothing is written to results unless the invocation succeeds.
func (n *Node) execute(ctx context.Context, results *Results) error {
	args, err := n.assemble(results)
	if err != nil {
		return err
	}

	call := compose(n.invokeBody(args), n.middleware, results, n)
	value, err := call(withArgs(ctx, args))
	if err != nil {
		return n.wrap(err)
	}
	return n.persist(results, value)
}

func (n *Node) assemble(results *Results) (Args, error) {
	named := make(map[string]any, len(n.inputs)+len(n.params)+len(n.named))

	var missing []Tag
	for _, tag := range n.inputs {
		v, ok := results.Get(tag)
		if !ok {
			missing = append(missing, tag)
			continue
		}
		named[string(tag)] = v
	}
	if len(missing) > 0 {
		return Args{}, &MissingInputError{NodeID: n.id, Missing: missing}
	}

	for k, v := range n.params {
		named[k] = v
	}
	for k, binding := range n.named {
		v, err := resolveBinding(binding, results)
		if err != nil {
			return Args{}, n.wrap(err)
		}
		named[k] = v
	}

	var positional []any
	if len(n.positional) > 0 {
		positional = make([]any, len(n.positional))
		for i, binding := range n.positional {
			v, err := resolveBinding(binding, results)
			if err != nil {
				return Args{}, n.wrap(err)
			}
			positional[i] = v
		}
	}
	return Args{named: named, positional: positional}, nil
}

// invokeBody returns the innermost handler. A panicking body is reported as an error.
func (n *Node) invokeBody(args Args) Handler {
	return func(ctx context.Context) (value any, err error) {
		if n.body == nil {
			return nil, nil
		}
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("body panicked: %v", r)
			}
		}()
		return n.body(ctx, args)
	}
}

// wrap attaches the node id to err, keeping err reachable through errors.Is and errors.As.
func (n *Node) wrap(err error) error {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) && nodeErr.NodeID == n.id {
		return err
	}
	return &NodeError{
		Message: err.Error(),
		Code:    codeOf(err),
		NodeID:  n.id,
		Cause:   err,
	}
}

func (n *Node) persist(results *Results, value any) error {
	if value == nil {
		return nil
	}

	if out, ok := explicitOutputs(value); ok {
		results.SetNodeResult(n.id, value)
		tags := make([]Tag, 0, len(out))
		for tag := range out {
			tags = append(tags, tag)
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
		for _, tag := range tags {
			results.Set(tag, out[tag], n.id)
		}
		return nil
	}

	switch len(n.outputs) {
	case 0:
		results.SetNodeResult(n.id, value)
	case 1:
		results.SetNodeResult(n.id, value)
		results.Set(n.outputs[0], value, n.id)
	default:
		rv := reflect.ValueOf(value)
		if !isSequence(rv) {
			return &OutputArityError{NodeID: n.id, Want: len(n.outputs), Got: -1, Type: fmt.Sprintf("%T", value)}
		}
		if rv.Len() != len(n.outputs) {
			return &OutputArityError{NodeID: n.id, Want: len(n.outputs), Got: rv.Len(), Type: fmt.Sprintf("%T", value)}
		}
		results.SetNodeResult(n.id, value)
		for i, tag := range n.outputs {
			results.Set(tag, rv.Index(i).Interface(), n.id)
		}
	}
	return nil
}

func explicitOutputs(value any) (Outputs, bool) {
	switch v := value.(type) {
	case Outputs:
		return v, true
	case map[Tag]any:
		return Outputs(v), true
	default:
		return nil, false
	}
}
