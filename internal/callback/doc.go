// Package callback implements multicast callback chains: a single Handle
// represents an ordered list of bound callbacks (receiver plus method) that
// run one after another when the handle is invoked.
//
// # Structure
//
// A chain is a persistent singly-linked list stored newest first. The head
// node is the last callback to run and each node's prev link points at the
// callback invoked before it. Enumerate reverses the walk to produce the
// invocation order.
//
// Nodes are never mutated after a Handle is returned. Combine, Remove and
// RemoveAll build new nodes for the part of the chain that changes and
// share the rest, so one tail may belong to many handles at once.
//
// # Ordering
//
//   - Combine(a, b) runs a's callbacks, then b's
//   - Remove removes the earliest occurrence in invocation order
//   - RemoveAll repeats Remove until no occurrence is left
//
// # Equality
//
// Callbacks are equal when their receivers are the same object and their
// MethodIDs are equal. Chains are equal when they have the same length and
// pairwise-equal callbacks. Hash only looks at the head.
//
// # Errors
//
// Construction and persistence failures are *Error values carrying an
// ErrorCode; use HasCode to test for a category. Structural operations
// never fail. Invoke returns handler errors unwrapped.
package callback
