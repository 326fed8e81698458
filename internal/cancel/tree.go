// Package cancel implements the single root cancellation token each
// process runs under. One Tree is created per process before any other
// subsystem; every background task (signal handler, heartbeat loop,
// per-child supervisor, module Running-phase task) observes either the
// root token or a child derived from it, so a single signal tears
// everything down.
package cancel

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"modkit/pkg/logging"
)

// Tree is the root of the process's cancellation hierarchy.
//
// It intentionally exposes only context.Context/CancelFunc, the
// primitives every Go API already understands, rather than a bespoke
// signalling type.
type Tree struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new root Tree. parent is usually context.Background(); a
// non-background parent is useful in tests that want to bound the tree's
// own lifetime.
func New(parent context.Context) *Tree {
	ctx, cancel := context.WithCancel(parent)
	return &Tree{ctx: ctx, cancel: cancel}
}

// Root returns the root context. It is cancelled exactly once, the first
// time Cancel is called or a hooked signal arrives.
func (t *Tree) Root() context.Context {
	return t.ctx
}

// Cancel cancels the root token. Idempotent: calling it more than once
// (including after a signal already cancelled the tree) is a no-op, since
// context.CancelFunc itself is idempotent.
func (t *Tree) Cancel() {
	t.cancel()
}

// Child derives a child token from the root. The child is cancelled
// whenever the root is cancelled (directly or via a future intermediate
// ancestor), and can also be cancelled independently without affecting the
// root or siblings.
func (t *Tree) Child() (context.Context, context.CancelFunc) {
	return context.WithCancel(t.ctx)
}

// HookSignals spawns the background task that awaits SIGINT/SIGTERM and
// cancels the root on first arrival. It must be called once, early in
// bootstrap, before the runtime is started.
//
// If signal.Notify itself cannot be wired (it cannot fail on supported
// platforms, but the fallback exists so a future platform quirk degrades
// to a plain blocking wait rather than panicking), the handler falls back
// to awaiting os.Interrupt alone.
func (t *Tree) HookSignals() {
	sigCh := make(chan os.Signal, 1)

	func() {
		defer func() {
			if r := recover(); r != nil {
				logging.Warn("CancellationTree", "signal.Notify panicked (%v), falling back to os.Interrupt only", r)
				signal.Notify(sigCh, os.Interrupt)
			}
		}()
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	}()

	go func() {
		select {
		case sig := <-sigCh:
			logging.Info("CancellationTree", "received signal %v, cancelling root token", sig)
			t.cancel()
		case <-t.ctx.Done():
			// Already cancelled by someone else; stop waiting on signals.
		}
		signal.Stop(sigCh)
	}()
}
