package callback

import (
	"context"
	"iter"
	"strings"
)

// Handle is a callback chain. Each Handle is both a node (its own bound
// callback) and the entry point of the chain behind it: prev is the node
// invoked before this one, so the head is the last callback to run.
//
// A nil *Handle is the empty chain. Handles are immutable once returned:
// every structural operation builds new nodes bottom-up and shares the
// untouched tail, so a Handle is safe for concurrent use without locking.
type Handle struct {
	cb   BoundCallback
	prev *Handle
	n    int // nodes from here to the oldest, inclusive
}

// Construct creates a length-1 chain binding m to receiver.
//
// Returns an INVALID_CALLBACK error when m is nil or has no Fn, when an
// instance method gets no receiver, when a static method gets one, when
// the receiver does not provide m, or when the receiver cannot be compared
// by identity (see ReceiverKey).
func Construct(receiver any, m *Method) (*Handle, error) {
	if m == nil {
		return nil, NewError(ErrCodeInvalidCallback, "method does not resolve")
	}
	if m.Fn == nil {
		return nil, NewError(ErrCodeInvalidCallback, "method has no implementation").WithMethod(m.ID)
	}

	if m.Static {
		if receiver != nil {
			return nil, NewError(ErrCodeInvalidCallback, "static method bound to a receiver of type %T", receiver).WithMethod(m.ID)
		}
	} else {
		if receiver == nil {
			return nil, NewError(ErrCodeInvalidCallback, "instance method requires a receiver").WithMethod(m.ID)
		}
		if !m.accepts(receiver) {
			return nil, NewError(ErrCodeInvalidCallback, "receiver of type %T does not provide method", receiver).WithMethod(m.ID)
		}
		if _, ok := ReceiverKey(receiver); !ok {
			return nil, NewError(ErrCodeInvalidCallback, "receiver of type %T has no identity", receiver).WithMethod(m.ID)
		}
	}

	return &Handle{cb: BoundCallback{Receiver: receiver, Method: m}, n: 1}, nil
}

// MustConstruct is like Construct but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustConstruct(receiver any, m *Method) *Handle {
	h, err := Construct(receiver, m)
	if err != nil {
		panic(err)
	}
	return h
}

// Len returns the number of callbacks in the chain.
func (h *Handle) Len() int {
	if h == nil {
		return 0
	}
	return h.n
}

// Callback returns the head callback, the last one to run.
// Returns the zero BoundCallback for the empty chain.
func (h *Handle) Callback() BoundCallback {
	if h == nil {
		return BoundCallback{}
	}
	return h.cb
}

// Combine returns a chain that runs a's callbacks and then b's.
//
// b is cloned node by node and its oldest clone is hung below a's head; a
// itself is shared, not copied. If either operand is empty the other is
// returned unchanged. Cost is O(b.Len()); neither input is modified.
func Combine(a, b *Handle) *Handle {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return graft(b, b.n, a)
}

// CombineAll folds Combine over hs from left to right.
func CombineAll(hs ...*Handle) *Handle {
	var out *Handle
	for _, h := range hs {
		out = Combine(out, h)
	}
	return out
}

// CombineStrict is Combine for chains that must stay persistable as one
// record: it fails with CHAIN_MISMATCH when the head callbacks of a and b
// come from different callback types.
func CombineStrict(a, b *Handle) (*Handle, error) {
	if a != nil && b != nil {
		ka, kb := a.cb.Method.Kind, b.cb.Method.Kind
		if ka != kb {
			return nil, NewError(ErrCodeChainMismatch, "cannot combine %s with %s", ka, kb)
		}
	}
	return Combine(a, b), nil
}

// Remove removes the first occurrence, in invocation order, of target's
// sequence from list.
//
// The scan walks from the head and keeps the deepest match, since the
// deepest node is the earliest to run. Nodes above the match are cloned and
// re-linked past the matched segment; nodes below it are shared as is.
//
// When nothing matches, Remove returns list itself and false.
func Remove(list, target *Handle) (*Handle, bool) {
	if list == nil || target == nil || target.n > list.n {
		return list, false
	}

	depth := -1
	var match *Handle
	i := 0
	for n := list; n != nil && n.n >= target.n; n = n.prev {
		if matchAt(n, target) {
			depth = i
			match = n
		}
		i++
	}
	if match == nil {
		return list, false
	}

	return graft(list, depth, skip(match, target.n)), true
}

// RemoveAll removes every occurrence of target's sequence from list,
// repeating Remove on the stripped chain until no occurrence is left.
//
// Returns (nil, true) when the whole chain was removed and (list, false)
// when target did not occur.
func RemoveAll(list, target *Handle) (*Handle, bool) {
	changed := false
	for list != nil {
		next, ok := Remove(list, target)
		if !ok {
			break
		}
		list, changed = next, true
	}
	return list, changed
}

// Equal reports whether a and b hold the same callbacks in the same order.
// The empty chain is equal only to itself.
func Equal(a, b *Handle) bool {
	if a.Len() != b.Len() {
		return false
	}
	for ; a != nil; a, b = a.prev, b.prev {
		if a == b {
			// Shared tail of equal length.
			return true
		}
		if !a.cb.Equal(b.cb) {
			return false
		}
	}
	return true
}

// Hash returns a hash of the head callback only. Equal chains have equal
// heads, so the hash is consistent with Equal; chains differing only in
// their tails may collide.
func (h *Handle) Hash() uint64 {
	if h == nil {
		return 0
	}
	return h.cb.Hash()
}

// Enumerate returns the callbacks in invocation order, oldest first.
// Each call returns a fresh slice.
func (h *Handle) Enumerate() []BoundCallback {
	out := make([]BoundCallback, h.Len())
	i := len(out) - 1
	for n := h; n != nil; n = n.prev {
		out[i] = n.cb
		i--
	}
	return out
}

// All yields the callbacks in invocation order with their positions.
func (h *Handle) All() iter.Seq2[int, BoundCallback] {
	return func(yield func(int, BoundCallback) bool) {
		for i, cb := range h.Enumerate() {
			if !yield(i, cb) {
				return
			}
		}
	}
}

// Backward yields the callbacks head first, newest to oldest, without
// allocating.
func (h *Handle) Backward() iter.Seq[BoundCallback] {
	return func(yield func(BoundCallback) bool) {
		for n := h; n != nil; n = n.prev {
			if !yield(n.cb) {
				return
			}
		}
	}
}

// Split returns one length-1 chain per callback, in invocation order.
func (h *Handle) Split() []*Handle {
	cbs := h.Enumerate()
	out := make([]*Handle, len(cbs))
	for i, cb := range cbs {
		out[i] = &Handle{cb: cb, n: 1}
	}
	return out
}

// Invoke calls every callback in invocation order and returns the result of
// the last one.
//
// The first error stops the traversal and is returned as is. Callbacks that
// already ran are not undone. Invoking the empty chain returns (nil, nil).
func (h *Handle) Invoke(ctx context.Context, args ...any) (any, error) {
	var result any
	for _, cb := range h.Enumerate() {
		r, err := cb.Call(ctx, args...)
		if err != nil {
			return nil, err
		}
		result = r
	}
	return result, nil
}

// String renders the chain in invocation order.
func (h *Handle) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, cb := range h.Enumerate() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(cb.String())
	}
	b.WriteByte(']')
	return b.String()
}

// matchAt reports whether the segment starting at n equals target,
// comparing both chains in lockstep through prev.
func matchAt(n, target *Handle) bool {
	if n.Len() < target.n {
		return false
	}
	for t := target; t != nil; t, n = t.prev, n.prev {
		if t == n {
			return true
		}
		if !n.cb.Equal(t.cb) {
			return false
		}
	}
	return true
}

// skip returns the node count links below n.
func skip(n *Handle, count int) *Handle {
	for ; count > 0; count-- {
		n = n.prev
	}
	return n
}

// graft copies the top count nodes of h onto tail. The copies are built
// oldest first so every node is complete before anything points at it.
func graft(h *Handle, count int, tail *Handle) *Handle {
	if count == 0 {
		return tail
	}

	nodes := make([]*Handle, count)
	n := h
	for i := range nodes {
		nodes[i] = n
		n = n.prev
	}

	out := tail
	size := tail.Len()
	for i := count - 1; i >= 0; i-- {
		size++
		out = &Handle{cb: nodes[i].cb, prev: out, n: size}
	}
	return out
}
