package flow

import (
	"context"
	"fmt"
)

// Handler is the continuation a middleware wraps: calling it runs the rest of the chain
// and, innermost, the node body. It may be called zero, one or several times.
type Handler func(ctx context.Context) (any, error)

// Middleware wraps the invocation of a node body. Middleware registered first on a node is
// outermost. Implementations that do not need results or node simply ignore them.
type Middleware interface {
	Handle(ctx context.Context, next Handler, results *Results, node *Node) (any, error)
}

// MiddlewareFunc adapts a function to the Middleware interface.
type MiddlewareFunc func(ctx context.Context, next Handler, results *Results, node *Node) (any, error)

// Handle calls f.
func (f MiddlewareFunc) Handle(ctx context.Context, next Handler, results *Results, node *Node) (any, error) {
	return f(ctx, next, results, node)
}

// AsMiddleware converts v to a Middleware. Accepted shapes, continuation first:
//
//	Middleware
//	func(ctx context.Context, next Handler) (any, error)
//	func(ctx context.Context, next Handler, results *Results) (any, error)
//	func(ctx context.Context, next Handler, results *Results, node *Node) (any, error)
//
// Anything else, including nil, fails with ErrPluginContract.
func AsMiddleware(v any) (Middleware, error) {
	switch m := v.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil middleware", ErrPluginContract)
	case MiddlewareFunc:
		if m == nil {
			return nil, fmt.Errorf("%w: nil middleware", ErrPluginContract)
		}
		return m, nil
	case Middleware:
		return m, nil
	case func(context.Context, Handler) (any, error):
		if m == nil {
			break
		}
		return MiddlewareFunc(func(ctx context.Context, next Handler, _ *Results, _ *Node) (any, error) {
			return m(ctx, next)
		}), nil
	case func(context.Context, Handler, *Results) (any, error):
		if m == nil {
			break
		}
		return MiddlewareFunc(func(ctx context.Context, next Handler, results *Results, _ *Node) (any, error) {
			return m(ctx, next, results)
		}), nil
	case func(context.Context, Handler, *Results, *Node) (any, error):
		if m == nil {
			break
		}
		return MiddlewareFunc(m), nil
	}
	return nil, fmt.Errorf("%w: unsupported middleware type %T", ErrPluginContract, v)
}

// brokenMiddleware stands in for a Use entry that failed AsMiddleware. It fails every
// invocation without calling the continuation.
type brokenMiddleware struct {
	err error
}

func (b brokenMiddleware) Handle(context.Context, Handler, *Results, *Node) (any, error) {
	return nil, b.err
}

// compose builds the onion around inner. The first middleware becomes the outermost call.
func compose(inner Handler, middleware []Middleware, results *Results, node *Node) Handler {
	call := inner
	for i := len(middleware) - 1; i >= 0; i-- {
		mw, next := middleware[i], call
		call = func(ctx context.Context) (any, error) {
			return mw.Handle(ctx, next, results, node)
		}
	}
	return call
}
