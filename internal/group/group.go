// package group runs the daemon's long-lived goroutines (gateway consumer, periodic tasks, admin server) under one lifecycle.
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// G manages the lifetime of a set of named goroutines from a common context.
// The first goroutine in the group to return will cause the context to be canceled,
// terminating the remaining goroutines.
type G struct {
	Logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup

	initOnce sync.Once

	errOnce sync.Once
	err     error
}

func New(ctx context.Context, logger *slog.Logger) *G {
	return &G{ctx: ctx, Logger: logger}
}

func (g *G) init() {
	if g.ctx == nil {
		g.ctx = context.Background()
	}
	if g.Logger == nil {
		g.Logger = slog.Default()
	}
	g.ctx, g.cancel = context.WithCancel(g.ctx)
}

// Add starts fn in the group. fn should exit when its context is canceled; doing so with the context's error counts as a clean exit.
func (g *G) Add(name string, fn func(context.Context) error) {
	g.initOnce.Do(g.init)
	g.done.Add(1)
	go func() {
		defer g.done.Done()
		defer g.cancel()
		defer func() {
			if r := recover(); r != nil {
				g.Logger.Error("group member panicked", "member", name, "panic", r)
				g.errOnce.Do(func() {
					g.err = fmt.Errorf("%s: panic: %v", name, r)
				})
			}
		}()
		err := fn(g.ctx)
		if err != nil && g.ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			err = nil
		}
		if err != nil {
			g.Logger.Error("group member failed", "member", name, "err", err)
			g.errOnce.Do(func() { g.err = fmt.Errorf("%s: %w", name, err) })
			return
		}
		g.Logger.Info("group member exited", "member", name)
	}()
}

// Stop cancels the group's context without recording an error.
func (g *G) Stop() {
	g.initOnce.Do(g.init)
	g.cancel()
}

// Wait waits for all goroutines in the group to exit.
// If any of the goroutines fail with an error, Wait will return the first error.
func (g *G) Wait() error {
	g.initOnce.Do(g.init)
	g.done.Wait()
	g.errOnce.Do(func() {
		// noop, required to synchronise on the errOnce mutex.
	})
	return g.err
}
