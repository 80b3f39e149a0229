package auth

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// sharedCallTimeout bounds one deduplicated credential fetch.
const sharedCallTimeout = 30 * time.Second

// shared runs fn once per key for all concurrent callers. fn gets a context
// detached from any single caller's cancellation; each caller stops waiting
// when its own ctx ends while the fetch continues for the others.
func shared(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := g.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		return fn(callCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}
