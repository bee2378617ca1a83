// Package groutine starts goroutines carrying a name in both their context and
// their pprof labels, so server loops show up by name in profiles and dumps.
package groutine

import (
	"context"
	"runtime/pprof"
	"sync"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go runs fn on a new goroutine labelled name and returns a channel that is
// closed when fn returns. A nil parent means context.Background().
//
//	done := groutine.Go(ctx, "gattsrv-loop", s.loop)
//	<-done
func Go(parent context.Context, name string, fn func(ctx context.Context)) <-chan struct{} {
	if parent == nil {
		parent = context.Background()
	}
	done := make(chan struct{})
	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		defer close(done)
		fn(context.WithValue(ctx, nameKey, name))
	})
	return done
}

// Name returns the goroutine name stored in ctx by Go.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(nameKey).(string); ok {
		return s
	}
	return ""
}

// Group tracks a set of named goroutines.
type Group struct {
	wg sync.WaitGroup
}

// Go starts fn like the package-level Go and adds it to the group.
func (g *Group) Go(parent context.Context, name string, fn func(ctx context.Context)) {
	g.wg.Add(1)
	Go(parent, name, func(ctx context.Context) {
		defer g.wg.Done()
		fn(ctx)
	})
}

// Wait blocks until every goroutine started through the group has returned.
func (g *Group) Wait() { g.wg.Wait() }
