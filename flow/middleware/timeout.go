package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/flow/emit"
)

// Timeout bounds each invocation of the rest of the chain to d. The body sees a context
// that is cancelled at the deadline; a body that ignores it keeps running in the
// background, but its late result is discarded. An expired invocation fails with an error
// matching flow.ErrDeadlineExceeded. d <= 0 disables the bound.
func Timeout(d time.Duration) flow.Middleware {
	type outcome struct {
		value any
		err   error
	}

	return flow.MiddlewareFunc(func(ctx context.Context, next flow.Handler, _ *flow.Results, node *flow.Node) (any, error) {
		if d <= 0 {
			return next(ctx)
		}

		tctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()

		done := make(chan outcome, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- outcome{err: fmt.Errorf("body panicked: %v", r)}
				}
			}()
			value, err := next(tctx)
			done <- outcome{value: value, err: err}
		}()

		select {
		case out := <-done:
			if !expired(ctx, tctx, out.err) {
				return out.value, out.err
			}
		case <-tctx.Done():
			// finished right at the deadline
			select {
			case out := <-done:
				if !expired(ctx, tctx, out.err) {
					return out.value, out.err
				}
			default:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		flow.MetricsFrom(ctx).IncrementTimeouts(node.ID())
		flow.Emit(ctx, node.ID(), emit.MsgNodeTimeout, map[string]interface{}{"timeout_ms": d.Milliseconds()})
		flow.LoggerFrom(ctx).Warn("node timed out", zap.String("node_id", node.ID()), zap.Duration("timeout", d))
		return nil, fmt.Errorf("%s exceeded timeout of %v: %w", node, d, flow.ErrDeadlineExceeded)
	})
}

// expired reports whether a failed invocation ran into its own deadline rather than a
// cancelled parent.
func expired(parent, tctx context.Context, err error) bool {
	return err != nil && parent.Err() == nil && errors.Is(tctx.Err(), context.DeadlineExceeded)
}
