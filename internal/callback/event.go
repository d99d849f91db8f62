package callback

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// DefaultMaxRaiseDepth bounds how many times an event may re-raise itself
// from its own handlers on one goroutine.
const DefaultMaxRaiseDepth = 32

// Event is a subscription point backed by a callback chain.
//
// Subscribe and Unsubscribe swap the chain with compare-and-swap, so they
// are safe from any goroutine and never block Raise. Raise runs against the
// chain as it was when the raise started; handlers added during a raise
// fire from the next raise on.
//
// The zero value is ready to use.
type Event struct {
	head     atomic.Pointer[Handle]
	maxDepth int

	// depth counts active raises per goroutine id.
	depth sync.Map
}

// EventOption configures an Event.
type EventOption func(*Event)

// WithMaxRaiseDepth sets the re-entrancy limit. Values below 1 keep the
// default.
func WithMaxRaiseDepth(n int) EventOption {
	return func(e *Event) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// NewEvent creates an Event with the given options.
func NewEvent(opts ...EventOption) *Event {
	e := &Event{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle returns the current chain.
func (e *Event) Handle() *Handle {
	return e.head.Load()
}

// Subscribe appends h to the end of the invocation order.
func (e *Event) Subscribe(h *Handle) {
	if h == nil {
		return
	}
	for {
		old := e.head.Load()
		if e.head.CompareAndSwap(old, Combine(old, h)) {
			return
		}
	}
}

// Unsubscribe removes the first occurrence of h and reports whether
// anything was removed.
func (e *Event) Unsubscribe(h *Handle) bool {
	for {
		old := e.head.Load()
		next, changed := Remove(old, h)
		if !changed {
			return false
		}
		if e.head.CompareAndSwap(old, next) {
			return true
		}
	}
}

// Raise invokes the current chain. Errors from handlers are returned
// unwrapped. A handler that raises the same event again on the same
// goroutine more than the configured depth gets a RAISE_DEPTH_EXCEEDED
// error instead of recursing.
func (e *Event) Raise(ctx context.Context, args ...any) (any, error) {
	h := e.head.Load()
	if h == nil {
		return nil, nil
	}

	gid := goid.Get()
	v, _ := e.depth.LoadOrStore(gid, new(int))
	depth := v.(*int)

	limit := e.maxDepth
	if limit <= 0 {
		limit = DefaultMaxRaiseDepth
	}
	if *depth >= limit {
		return nil, NewError(ErrCodeRaiseDepthExceeded, "event raised %d times re-entrantly", *depth)
	}

	*depth++
	defer func() {
		*depth--
		if *depth == 0 {
			e.depth.Delete(gid)
		}
	}()

	return h.Invoke(ctx, args...)
}
