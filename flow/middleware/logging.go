package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
)

// Logging logs every invocation and its outcome at Info, or Error on failure. A nil
// logger uses the run's logger.
func Logging(logger *zap.Logger) flow.Middleware {
	return flow.MiddlewareFunc(func(ctx context.Context, next flow.Handler, _ *flow.Results, node *flow.Node) (any, error) {
		log := logger
		if log == nil {
			log = flow.LoggerFrom(ctx)
		}
		log = log.With(
			zap.String("run_id", flow.RunIDFrom(ctx)),
			zap.String("node_id", node.ID()),
			zap.Int("step", flow.StepFrom(ctx)),
		)

		log.Info("node invoked")
		start := time.Now()
		value, err := next(ctx)
		if err != nil {
			log.Error("node failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
			return value, err
		}
		log.Info("node completed", zap.Duration("duration", time.Since(start)))
		return value, nil
	})
}
