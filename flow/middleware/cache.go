package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/dshills/taskflow-go/flow"
	"github.com/dshills/taskflow-go/flow/cache"
	"github.com/dshills/taskflow-go/flow/emit"
)

// entry is the stored form of a node result. Explicit Outputs are kept apart so they come
// back as Outputs and are persisted tag by tag again.
type entry struct {
	Outputs flow.Outputs    `json:"outputs,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
}

// Cache skips the rest of the chain when the same node already produced a result for the
// same arguments within ttl. Results are stored as JSON, so a cache hit returns generic
// JSON values (float64 numbers, []any, map[string]any); use CacheAs when the body result
// has a concrete type.
//
// Anonymous nodes, arguments that cannot be encoded and nil results are never cached.
// Backend failures are logged and treated as misses.
func Cache(backend cache.Backend, ttl time.Duration) flow.Middleware {
	return CacheAs[any](backend, ttl)
}

// CacheAs is Cache for bodies whose result is a T. Hits are decoded into a T.
func CacheAs[T any](backend cache.Backend, ttl time.Duration) flow.Middleware {
	return flow.MiddlewareFunc(func(ctx context.Context, next flow.Handler, _ *flow.Results, node *flow.Node) (any, error) {
		id := node.ID()
		metrics := flow.MetricsFrom(ctx)

		key, ok := cacheKey(ctx, id)
		if !ok {
			metrics.RecordCacheRequest(id, "bypass")
			return next(ctx)
		}
		logger := flow.LoggerFrom(ctx).With(zap.String("node_id", id), zap.String("cache_key", key))

		if value, hit := lookup[T](ctx, backend, key, logger); hit {
			metrics.RecordCacheRequest(id, "hit")
			flow.Emit(ctx, id, emit.MsgCacheHit, map[string]interface{}{"key": key})
			return value, nil
		}
		metrics.RecordCacheRequest(id, "miss")
		flow.Emit(ctx, id, emit.MsgCacheMiss, map[string]interface{}{"key": key})

		value, err := next(ctx)
		if err != nil || value == nil {
			return value, err
		}
		data, err := encodeEntry(value)
		if err != nil {
			logger.Warn("node result not cacheable", zap.Error(err))
			return value, nil
		}
		if err := backend.Set(ctx, key, data, ttl); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
		return value, nil
	})
}

func lookup[T any](ctx context.Context, backend cache.Backend, key string, logger *zap.Logger) (any, bool) {
	data, found, err := backend.Get(ctx, key)
	if err != nil {
		logger.Warn("cache read failed", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		logger.Warn("cache entry undecodable", zap.Error(err))
		return nil, false
	}
	if e.Outputs != nil {
		return e.Outputs, true
	}
	var value T
	if err := json.Unmarshal(e.Value, &value); err != nil {
		logger.Warn("cache entry undecodable", zap.Error(err))
		return nil, false
	}
	return value, true
}

func encodeEntry(value any) ([]byte, error) {
	var e entry
	switch v := value.(type) {
	case flow.Outputs:
		e.Outputs = v
	case map[flow.Tag]any:
		e.Outputs = flow.Outputs(v)
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		e.Value = raw
	}
	return json.Marshal(e)
}

// cacheKey derives the key from the node id and a hash of the resolved arguments.
func cacheKey(ctx context.Context, nodeID string) (string, bool) {
	if nodeID == "" {
		return "", false
	}
	args, ok := flow.ArgsFrom(ctx)
	if !ok {
		return "", false
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s:%016x", nodeID, xxhash.Sum64(data)), true
}
