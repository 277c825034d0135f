package bulk

import (
	"context"
	"sync"
)

// RenderTarget models the shared compositing surface. Only one capture may
// hold it at a time; acquisition is scoped and release is guaranteed even
// when a capture fails, so the sequential constraint is enforced by
// construction instead of convention.
type RenderTarget struct {
	sem chan struct{}
}

// NewRenderTarget constructs an unheld target.
func NewRenderTarget() *RenderTarget {
	return &RenderTarget{sem: make(chan struct{}, 1)}
}

// Acquire blocks until the target is free or the context ends. The
// returned release function is idempotent.
func (t *RenderTarget) Acquire(ctx context.Context) (func(), error) {
	select {
	case t.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-t.sem })
	}, nil
}
