package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/flow/emit"
)

// RetryOption configures Retry.
type RetryOption func(*retryConfig)

type retryConfig struct {
	retries   int
	delay     time.Duration
	maxDelay  time.Duration
	retryable func(error) bool
}

// WithExponential doubles the wait after every failed attempt, starting at the Retry delay
// and capping at maxDelay, with jitter.
func WithExponential(maxDelay time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxDelay = maxDelay
	}
}

// WithRetryable limits retries to errors for which pred returns true. Other errors are
// returned at once.
func WithRetryable(pred func(error) bool) RetryOption {
	return func(cfg *retryConfig) {
		if pred != nil {
			cfg.retryable = pred
		}
	}
}

func (cfg *retryConfig) schedule(ctx context.Context) backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(cfg.delay)
	if cfg.maxDelay > 0 {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.delay
		exp.MaxInterval = cfg.maxDelay
		exp.Multiplier = 2
		exp.MaxElapsedTime = 0
		b = exp
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(cfg.retries)), ctx)
}

// Retry re-invokes the rest of the chain when it fails, up to retries more times, waiting
// delay between attempts. When every attempt fails the last error is returned unchanged.
// A cancelled run context stops retrying.
//
// Every retry increments the retries metric and emits a retry_attempt event.
func Retry(retries int, delay time.Duration, opts ...RetryOption) flow.Middleware {
	cfg := retryConfig{
		retries:   max(retries, 0),
		delay:     delay,
		retryable: func(error) bool { return true },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return flow.MiddlewareFunc(func(ctx context.Context, next flow.Handler, _ *flow.Results, node *flow.Node) (any, error) {
		var (
			attempt int
			lastErr error
		)
		operation := func() (any, error) {
			attempt++
			value, err := next(ctx)
			if err != nil {
				lastErr = err
				if !cfg.retryable(err) {
					return nil, backoff.Permanent(err)
				}
				return nil, err
			}
			return value, nil
		}
		notify := func(err error, wait time.Duration) {
			reason := "error"
			if errors.Is(err, context.DeadlineExceeded) {
				reason = "deadline"
			}
			flow.MetricsFrom(ctx).IncrementRetries(node.ID(), reason)
			flow.Emit(ctx, node.ID(), emit.MsgRetryAttempt, map[string]interface{}{
				"attempt": attempt,
				"reason":  reason,
				"cause":   err.Error(),
				"wait_ms": wait.Milliseconds(),
			})
			flow.LoggerFrom(ctx).Debug("retrying node",
				zap.String("node_id", node.ID()),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		}

		value, err := backoff.RetryNotifyWithData(operation, cfg.schedule(ctx), notify)
		if err != nil && lastErr != nil && ctx.Err() == nil {
			return nil, lastErr
		}
		return value, err
	})
}
