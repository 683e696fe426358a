// Package middleware provides ready-made node middleware: retries, per-invocation
// timeouts, result caching, tracing spans and invocation logging.
//
// Middleware registered first on a node is outermost, so the order of Use matters:
//
//	node.Use(
//	    middleware.Logging(nil),
//	    middleware.Retry(3, 100*time.Millisecond),
//	    middleware.Timeout(2*time.Second), // applies to each attempt
//	)
package middleware
