// Package engine hosts the embedded JavaScript engine behind a single
// cooperative event loop. The goja runtime is not goroutine-safe; every
// interaction with it is routed through the loop, and results always come
// back on a later loop turn.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"go.uber.org/zap"

	"github.com/hexaflow/graphview/internal/goroutineid"
)

// DefaultSyncTimeout bounds RunOnLoopSync waits.
const DefaultSyncTimeout = 5 * time.Second

// Runtime owns the goja runtime and the event loop that serializes all
// script execution. All goja.Runtime access MUST happen via RunOnLoop,
// RunOnLoopSync or TryRunOnLoopSync; the *goja.Runtime passed to a callback
// must not escape it.
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	logger   *zap.Logger

	// vm is the loop's single runtime, captured at startup. It is only
	// touched from the loop goroutine.
	vm *goja.Runtime

	timeout time.Duration

	// eventLoopGoroutineID is captured once at startup and used to detect
	// calls made from within the loop itself, which must execute directly
	// instead of blocking on a re-post.
	eventLoopGoroutineID atomic.Int64

	mu      sync.RWMutex
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRuntime creates and starts a Runtime. The provided context controls
// the lifecycle: when it is cancelled the runtime shuts down. Close must be
// called when done.
func NewRuntime(ctx context.Context, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := require.NewRegistry()
	loop := eventloop.NewEventLoop(
		eventloop.WithRegistry(registry),
		eventloop.EnableConsole(true),
	)

	// Internal lifecycle context, independent of the parent so shutdown
	// ordering stays deterministic.
	childCtx, cancel := context.WithCancel(context.Background())

	rt := &Runtime{
		loop:     loop,
		registry: registry,
		logger:   logger,
		ctx:      childCtx,
		cancel:   cancel,
		timeout:  DefaultSyncTimeout,
	}

	loop.Start()
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	errCh := make(chan error, 1)
	ok := loop.RunOnLoop(func(vm *goja.Runtime) {
		rt.vm = vm
		rt.eventLoopGoroutineID.Store(goroutineid.Get())
		errCh <- nil
	})
	if !ok {
		cancel()
		return nil, errors.New("failed to initialize: event loop not running")
	}
	if err := <-errCh; err != nil {
		cancel()
		loop.Stop()
		return nil, fmt.Errorf("failed to initialize runtime: %w", err)
	}

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() {
			_ = rt.Close()
		})
	}

	logger.Debug("engine runtime started")
	return rt, nil
}

// Registry returns the require.Registry for native module registration.
func (rt *Runtime) Registry() *require.Registry {
	return rt.registry
}

// Close stops the event loop and releases resources. Safe to call multiple
// times.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	// Unblock Done() waiters before the loop drains.
	rt.cancel()
	rt.loop.Stop()

	rt.logger.Debug("engine runtime stopped")
	return nil
}

// Done returns a channel closed when the runtime has stopped.
func (rt *Runtime) Done() <-chan struct{} {
	return rt.ctx.Done()
}

// IsRunning reports whether the runtime has started and not yet stopped.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// SetSyncTimeout sets the timeout for RunOnLoopSync operations. Zero
// disables the timeout.
func (rt *Runtime) SetSyncTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// RunOnLoop schedules fn on the event loop goroutine. It reports whether
// the function was scheduled; false means the loop is not running.
//
// Posting from within the loop itself is allowed and queues fn for a later
// turn, which is what keeps completion delivery strictly asynchronous.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return false
	}
	rt.mu.RUnlock()

	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync schedules fn on the event loop and waits for it to finish.
// It must not be called from the loop goroutine; use TryRunOnLoopSync when
// the caller may already be on the loop.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return errors.New("event loop not running")
	}
	timeout := rt.timeout
	rt.mu.RUnlock()

	errCh := make(chan error, 1)
	ok := rt.loop.RunOnLoop(func(vm *goja.Runtime) {
		errCh <- fn(vm)
	})
	if !ok {
		return errors.New("event loop not running")
	}

	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case err := <-errCh:
			return err
		case <-rt.Done():
			return errors.New("runtime stopped before completion")
		case <-timer.C:
			return fmt.Errorf("operation timed out after %v", timeout)
		}
	}

	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	}
}

// TryRunOnLoopSync runs fn synchronously. If the caller is already on the
// event loop goroutine the function executes directly against the loop's
// runtime, avoiding the deadlock a blocking re-post would cause; otherwise
// it behaves like RunOnLoopSync.
func (rt *Runtime) TryRunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return errors.New("event loop not running")
	}
	rt.mu.RUnlock()

	if id := rt.eventLoopGoroutineID.Load(); id > 0 && goroutineid.Get() == id {
		return fn(rt.vm)
	}
	return rt.RunOnLoopSync(fn)
}

// OnLoopGoroutine reports whether the caller is executing on the event
// loop goroutine.
func (rt *Runtime) OnLoopGoroutine() bool {
	id := rt.eventLoopGoroutineID.Load()
	return id > 0 && goroutineid.Get() == id
}

// LoadScript compiles and runs code in the runtime.
func (rt *Runtime) LoadScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// SetGlobal sets a global variable in the JavaScript runtime.
func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal retrieves a global variable. Undefined and null both report
// nil.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		val := vm.Get(name)
		if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
			result = nil
			return nil
		}
		result = val.Export()
		return nil
	})
	return result, err
}
