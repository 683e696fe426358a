package flow

import (
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow/emit"
)

// Option configures a Flow.
//
//	f, err := flow.New(entry,
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    flow.WithMetrics(flow.NewPrometheusMetrics(registry)),
//	    flow.WithLogger(logger),
//	)
type Option func(*flowConfig) error

type flowConfig struct {
	emitter emit.Emitter
	metrics *PrometheusMetrics
	logger  *zap.Logger
}

func defaultConfig() flowConfig {
	return flowConfig{
		emitter: emit.NewNullEmitter(),
		logger:  zap.NewNop(),
	}
}

// WithEmitter sets the event emitter. Default: emit.NullEmitter.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *flowConfig) error {
		if emitter == nil {
			return &EngineError{Message: "emitter must not be nil", Code: CodeInvalidOption}
		}
		cfg.emitter = emitter
		return nil
	}
}

// WithMetrics enables Prometheus metrics. Default: none.
func WithMetrics(metrics *PrometheusMetrics) Option {
	return func(cfg *flowConfig) error {
		cfg.metrics = metrics
		return nil
	}
}

// WithLogger sets the logger used by the engine and exposed to middleware through
// LoggerFrom. Default: zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *flowConfig) error {
		if logger == nil {
			return &EngineError{Message: "logger must not be nil", Code: CodeInvalidOption}
		}
		cfg.logger = logger
		return nil
	}
}
