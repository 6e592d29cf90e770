// Package kit holds the small transport-agnostic plumbing shared by the HTTP
// server and the MCP tool surface: the Endpoint abstraction, middleware
// chaining, and the request-scoped context keys.
package kit

import (
	"context"
	"fmt"
)

// Endpoint is a single transport-agnostic operation. HTTP handlers and MCP
// tools both decode into a typed request, call an Endpoint, and encode the
// response for their wire.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares outermost-first: Chain(a, b, c)(e) runs a,
// then b, then c, then e.
func Chain(mws ...Middleware) Middleware {
	return func(e Endpoint) Endpoint {
		for i := len(mws) - 1; i >= 0; i-- {
			e = mws[i](e)
		}
		return e
	}
}

// Recover converts a panicking endpoint into an error return so transport
// adapters report it as a call failure instead of tearing down the session.
func Recover() Middleware {
	return func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("endpoint panic: %v", r)
				}
			}()
			return next(ctx, req)
		}
	}
}
