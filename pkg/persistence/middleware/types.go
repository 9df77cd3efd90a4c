// Package middleware wraps a ports.StateCache to change how conversation
// stacks are stored at rest.
package middleware

import "github.com/aretw0/parley/pkg/ports"

// Middleware allows wrapping a StateCache to add behavior.
type Middleware func(ports.StateCache) ports.StateCache

// Chain applies middlewares so that the first one listed sees each write
// first.
func Chain(cache ports.StateCache, mws ...Middleware) ports.StateCache {
	for i := len(mws) - 1; i >= 0; i-- {
		cache = mws[i](cache)
	}
	return cache
}
