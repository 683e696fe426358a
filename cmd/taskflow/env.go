package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/flow/cache"
	"github.com/dshills/taskflow-go/flow/emit"
	"github.com/dshills/taskflow-go/flow/middleware"
	"github.com/dshills/taskflow-go/internal/config"
	"github.com/dshills/taskflow-go/internal/logger"
	"github.com/dshills/taskflow-go/internal/telemetry"
)

// env is everything a run needs, built from the configuration.
type env struct {
	logger   *zap.Logger
	registry *prometheus.Registry
	options  []flow.Option
	backend  cache.Backend
	tracing  *telemetry.Provider
	server   *http.Server
	cfg      config.Config

	// listenAddr is the bound metrics address, with the real port when ":0" was asked.
	listenAddr string
}

func newEnv(ctx context.Context, cfg config.Config, out io.Writer) (_ *env, err error) {
	e := &env{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = e.Close(context.Background())
		}
	}()

	if e.logger, err = logger.New(cfg.Log.Format, cfg.Log.Level); err != nil {
		return nil, err
	}

	var emitter emit.Emitter
	switch cfg.Emitter {
	case "text":
		emitter = emit.NewLogEmitter(out, false)
	case "json":
		emitter = emit.NewLogEmitter(out, true)
	case "zap":
		emitter = emit.NewZapEmitter(e.logger, zap.InfoLevel)
	default:
		emitter = emit.NewNullEmitter()
	}

	if e.backend, err = openBackend(cfg.Cache); err != nil {
		return nil, err
	}

	if e.tracing, err = telemetry.NewProvider(ctx, telemetry.Config{
		Exporter:    cfg.Trace.Exporter,
		Endpoint:    cfg.Trace.Endpoint,
		Writer:      out,
		ServiceName: cfg.Trace.ServiceName,
		SampleRate:  cfg.Trace.SampleRate,
	}); err != nil {
		return nil, err
	}
	if e.tracing.Enabled() {
		emitter = emit.Multi(emitter, emit.NewOTelEmitter(e.tracing.Tracer()))
	}

	if cfg.Metrics.Addr != "" {
		if err := e.serveMetrics(cfg.Metrics.Addr); err != nil {
			return nil, err
		}
	}

	e.options = []flow.Option{
		flow.WithLogger(e.logger),
		flow.WithEmitter(emitter),
		flow.WithMetrics(flow.NewPrometheusMetrics(e.registry)),
	}
	return e, nil
}

func openBackend(cfg config.CacheConfig) (cache.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return cache.NewMemory(time.Minute), nil
	case "sqlite":
		backend, err := cache.NewSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "mysql":
		backend, err := cache.NewMySQL(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return backend, nil
	default:
		return nil, nil
	}
}

// cached returns the cache middleware, or nil without a backend. Typed caches return
// ints on a hit; untyped ones return generic JSON values.
func (e *env) cached(typed bool) []any {
	switch {
	case e.backend == nil:
		return nil
	case typed:
		return []any{middleware.CacheAs[int](e.backend, e.cfg.Cache.TTL)}
	default:
		return []any{middleware.Cache(e.backend, e.cfg.Cache.TTL)}
	}
}

// middleware returns the node middleware the configuration asks for, outermost first.
func (e *env) middleware() []any {
	var mws []any
	if e.tracing.Enabled() {
		mws = append(mws, middleware.Trace(e.tracing.Tracer()))
	}
	if e.cfg.Retry.Count > 0 {
		var opts []middleware.RetryOption
		if e.cfg.Retry.MaxDelay > 0 {
			opts = append(opts, middleware.WithExponential(e.cfg.Retry.MaxDelay))
		}
		mws = append(mws, middleware.Retry(e.cfg.Retry.Count, e.cfg.Retry.Delay, opts...))
	}
	if e.cfg.Timeout > 0 {
		mws = append(mws, middleware.Timeout(e.cfg.Timeout))
	}
	return mws
}

func (e *env) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
	e.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	e.listenAddr = ln.Addr().String()

	go func() {
		if err := e.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	e.logger.Info("serving metrics", zap.String("addr", e.listenAddr))
	return nil
}

// Close releases every resource of e. It is safe on a partially built env.
func (e *env) Close(ctx context.Context) error {
	var errs []error
	if e.server != nil {
		errs = append(errs, e.server.Shutdown(ctx))
	}
	if e.tracing != nil {
		errs = append(errs, e.tracing.Shutdown(ctx))
	}
	if e.backend != nil {
		errs = append(errs, e.backend.Close())
	}
	if e.logger != nil {
		_ = e.logger.Sync()
	}
	return errors.Join(errs...)
}
