package callback

import (
	"errors"
	"fmt"
	"sync"
)

// Barrier protocol violations. All are programming errors caught at the
// point of misuse; none are recoverable.
var (
	ErrIncrementAfterWait   = errors.New("cannot increment barrier after wait")
	ErrNonPositiveIncrement = errors.New("barrier increment must be greater than zero")
	ErrCallAfterCrossed     = errors.New("unexpected call after crossing barrier")
	ErrWaitOnCrossed        = errors.New("cannot wait on crossed barrier")
	ErrAlreadyWaiting       = errors.New("already waiting on barrier")
	ErrTooManyCalls         = errors.New("barrier already called more times than expected")
	ErrDuplicateKey         = errors.New("stored result key already in use")
	ErrUnknownKey           = errors.New("no stored result with that key")
	ErrResultAlreadyStored  = errors.New("stored result can store only one value")
	ErrResultNotReady       = errors.New("stored result not delivered yet")
)

// Barrier collects an expected number of callback-style completions and,
// once all have arrived, runs its registered continuations exactly once,
// in registration order.
//
// A barrier moves through three states:
//
//   - editing: Increment and stored-result creation are legal;
//   - waiting: entered by Wait; completions may still arrive;
//   - crossed: pending count reached zero while waiting; continuations
//     have run; any further Increment or Invoke is an error.
//
// Completions that arrive while still editing are counted; the barrier
// crosses the instant Wait observes (or a later completion brings) the
// pending count at zero.
type Barrier struct {
	mu      sync.Mutex
	waiting bool
	crossed bool
	pending int
	queue   []continuation
	results map[string]*StoredResult
}

type continuation struct {
	run      func()
	withSelf func(*Barrier)
}

// NewBarrier creates a barrier in the editing state with a pending count
// of zero.
func NewBarrier() *Barrier {
	return &Barrier{
		results: make(map[string]*StoredResult),
	}
}

// Increment raises the number of completions the barrier expects before
// crossing. Only legal while editing; n must be at least 1.
func (b *Barrier) Increment(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.waiting || b.crossed {
		return ErrIncrementAfterWait
	}
	if n < 1 {
		return fmt.Errorf("%w: %d", ErrNonPositiveIncrement, n)
	}
	b.pending += n
	return nil
}

// Invoke records one completion. Arguments are accepted for signature
// compatibility with event payloads and discarded; use a stored-result
// slot to keep a specific call's value. Crossing happens here when the
// barrier is waiting and this was the last expected completion.
func (b *Barrier) Invoke(args ...any) error {
	b.mu.Lock()
	if b.crossed {
		b.mu.Unlock()
		return ErrCallAfterCrossed
	}
	b.pending--
	cross := b.waiting && b.pending == 0
	var queue []continuation
	if cross {
		queue = b.beginCrossLocked()
	}
	b.mu.Unlock()

	if cross {
		b.runContinuations(queue)
	}
	return nil
}

// Completion adapts the barrier to the gateway's completion signature,
// panicking on protocol violations (a remote completion has no error
// channel).
func (b *Barrier) Completion() Completion {
	return func(value any) {
		if err := b.Invoke(value); err != nil {
			panic(err)
		}
	}
}

// Register appends a continuation to run once the barrier crosses. If the
// barrier has already crossed, the continuation runs immediately.
func (b *Barrier) Register(fn func()) {
	b.register(continuation{run: fn})
}

// RegisterBarrier is Register for continuations that want the barrier
// itself, typically to read stored results.
func (b *Barrier) RegisterBarrier(fn func(*Barrier)) {
	b.register(continuation{withSelf: fn})
}

func (b *Barrier) register(c continuation) {
	b.mu.Lock()
	if b.crossed {
		b.mu.Unlock()
		b.runContinuations([]continuation{c})
		return
	}
	b.queue = append(b.queue, c)
	b.mu.Unlock()
}

// Wait moves the barrier to the waiting state; if the expected completions
// have all arrived already it crosses right away. Wait never blocks: the
// blocking construct is a downstream Blocker continuation.
func (b *Barrier) Wait() error {
	b.mu.Lock()
	if b.crossed {
		b.mu.Unlock()
		return ErrWaitOnCrossed
	}
	if b.waiting {
		b.mu.Unlock()
		return ErrAlreadyWaiting
	}
	if b.pending < 0 {
		b.mu.Unlock()
		return ErrTooManyCalls
	}
	b.waiting = true
	cross := b.pending == 0
	var queue []continuation
	if cross {
		queue = b.beginCrossLocked()
	}
	b.mu.Unlock()

	if cross {
		b.runContinuations(queue)
	}
	return nil
}

// Do runs fn with the barrier in scope and then waits unconditionally. A
// barrier typically fans out calls whose results are awaited through a
// nested Blocker, so the wait happens even when fn failed; both errors are
// reported.
func (b *Barrier) Do(fn func(*Barrier) error) error {
	ferr := fn(b)
	werr := b.Wait()
	return errors.Join(ferr, werr)
}

// Crossed reports whether the barrier has crossed.
func (b *Barrier) Crossed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.crossed
}

// Pending returns the number of completions still expected.
func (b *Barrier) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// CreateStoredResult creates a completion slot that both counts toward the
// pending count and stores the value it is invoked with. Keys must be
// unique.
func (b *Barrier) CreateStoredResult(key string) (*StoredResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.results[key]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, key)
	}
	if b.waiting || b.crossed {
		return nil, ErrIncrementAfterWait
	}
	b.pending++
	slot := &StoredResult{barrier: b, key: key}
	b.results[key] = slot
	return slot, nil
}

// StoredResult returns the slot for key, creating it on first access.
func (b *Barrier) StoredResult(key string) (*StoredResult, error) {
	b.mu.Lock()
	if slot, exists := b.results[key]; exists {
		b.mu.Unlock()
		return slot, nil
	}
	b.mu.Unlock()
	return b.CreateStoredResult(key)
}

// Result returns the value delivered to the named slot. Retrieving a value
// before its delivery is a programming error.
func (b *Barrier) Result(key string) (any, error) {
	b.mu.Lock()
	slot, exists := b.results[key]
	b.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return slot.Value()
}

// beginCrossLocked flips the state and hands back the queued continuations.
// Caller must hold the lock and run the continuations after releasing it.
func (b *Barrier) beginCrossLocked() []continuation {
	b.crossed = true
	b.waiting = false
	queue := b.queue
	b.queue = nil
	return queue
}

func (b *Barrier) runContinuations(queue []continuation) {
	for _, c := range queue {
		if c.withSelf != nil {
			c.withSelf(b)
		} else if c.run != nil {
			c.run()
		}
	}
}

// StoredResult is a completion slot owned by a Barrier: it stores the one
// value it is invoked with and counts as one pending completion.
type StoredResult struct {
	barrier *Barrier
	key     string
	called  bool
	value   any
}

// Invoke stores value and records the completion on the owning barrier.
// Invoking the slot a second time is an error.
func (s *StoredResult) Invoke(value any) error {
	b := s.barrier
	b.mu.Lock()
	if s.called {
		b.mu.Unlock()
		return fmt.Errorf("%w (key %q)", ErrResultAlreadyStored, s.key)
	}
	s.called = true
	s.value = value
	b.mu.Unlock()
	return b.Invoke(value)
}

// Completion adapts the slot to the gateway's completion signature,
// panicking on protocol violations.
func (s *StoredResult) Completion() Completion {
	return func(value any) {
		if err := s.Invoke(value); err != nil {
			panic(err)
		}
	}
}

// Value returns the stored value; an error before delivery indicates a
// misordered read.
func (s *StoredResult) Value() (any, error) {
	s.barrier.mu.Lock()
	defer s.barrier.mu.Unlock()
	if !s.called {
		return nil, fmt.Errorf("%w (key %q)", ErrResultNotReady, s.key)
	}
	return s.value, nil
}
