// Package callback provides the completion-composition primitives used to
// wait on asynchronous graph calls: Blocker for single-shot blocking waits
// and Barrier for fanning an arbitrary number of completions into one
// downstream continuation.
//
// Completions are delivered by the engine's event loop goroutine while the
// waiting caller blocks on its own goroutine, so both primitives are safe
// for exactly that two-party handoff; neither is a general-purpose
// concurrency tool.
package callback

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Completion is the single asynchronous delivery of a call's result.
type Completion func(value any)

// DefaultTimeout is the blocking wait budget used when no explicit timeout
// is configured.
const DefaultTimeout = 1 * time.Second

// ErrCalledTwice reports that a completion target was invoked more than
// once. This is always a protocol bug (duplicate delivery), never
// recoverable.
var ErrCalledTwice = errors.New("callback called twice")

// TimeoutError reports that a Blocker's wait elapsed without the callback
// being invoked.
type TimeoutError struct {
	// Timeout is the configured wait duration.
	Timeout time.Duration
	// Msg is the optional diagnostic configured via WithMessage.
	Msg string
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("callback wasn't called after %v", e.Timeout)
	if e.Msg != "" {
		msg += "\n> " + e.Msg
	}
	return msg
}

// Blocker checks that a returned callback gets called, blocking the caller
// until it does (or a timeout elapses). A Blocker is single-shot: invoking
// it a second time after completion fails with ErrCalledTwice.
type Blocker struct {
	timeout   time.Duration
	noTimeout bool
	msg       string

	mu     sync.Mutex
	called bool
	args   []any
	done   chan struct{}
}

// BlockerOption configures a Blocker.
type BlockerOption func(*Blocker)

// WithTimeout sets the maximum time Wait blocks for the callback.
func WithTimeout(d time.Duration) BlockerOption {
	return func(b *Blocker) {
		b.timeout = d
		b.noTimeout = false
	}
}

// WithNoTimeout makes Wait block until the callback is invoked, however
// long that takes.
func WithNoTimeout() BlockerOption {
	return func(b *Blocker) { b.noTimeout = true }
}

// WithMessage attaches a diagnostic included in the timeout error.
func WithMessage(msg string) BlockerOption {
	return func(b *Blocker) { b.msg = msg }
}

// NewBlocker creates a Blocker with DefaultTimeout unless configured
// otherwise.
func NewBlocker(opts ...BlockerOption) *Blocker {
	b := &Blocker{
		timeout: DefaultTimeout,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Invoke delivers the callback. The first invocation records the arguments
// and unblocks Wait; any further invocation fails with ErrCalledTwice. A
// late delivery arriving after Wait already timed out is recorded without
// error (the result is simply discarded by the caller that gave up).
func (b *Blocker) Invoke(args ...any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.called {
		return ErrCalledTwice
	}
	b.called = true
	b.args = args
	close(b.done)
	return nil
}

// Completion adapts the blocker to the gateway's completion signature.
// A duplicate delivery through this adapter panics: a remote completion
// has no error channel and a double delivery is a bridge-layer bug.
func (b *Blocker) Completion() Completion {
	return func(value any) {
		if err := b.Invoke(value); err != nil {
			panic(err)
		}
	}
}

// Called reports whether the callback has been invoked.
func (b *Blocker) Called() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.called
}

// Args returns the arguments of the recorded invocation, or nil if the
// callback was never called.
func (b *Blocker) Args() []any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.args
}

// Arg returns the i-th invocation argument, or nil when out of range.
func (b *Blocker) Arg(i int) any {
	b.mu.Lock()
	defer b.mu.Unlock()
	if i < 0 || i >= len(b.args) {
		return nil
	}
	return b.args[i]
}

// Wait blocks until the callback has been invoked or the timeout elapses,
// in which case it returns a *TimeoutError. Returns immediately if the
// callback already fired. Must not be called from the event loop goroutine
// delivering the completion.
func (b *Blocker) Wait() error {
	if b.noTimeout {
		<-b.done
		return nil
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case <-b.done:
		return nil
	case <-timer.C:
		// Invoke may have won the race right at the deadline.
		b.mu.Lock()
		called := b.called
		b.mu.Unlock()
		if called {
			return nil
		}
		return &TimeoutError{Timeout: b.timeout, Msg: b.msg}
	}
}

// Do runs fn with the blocker in scope and then waits, mirroring
// scoped-resource usage: the wait is skipped when fn itself failed, so the
// original error propagates instead of a confusing timeout.
func (b *Blocker) Do(fn func(*Blocker) error) error {
	if err := fn(b); err != nil {
		return err
	}
	return b.Wait()
}
