// Package harness runs YAML conformance scenarios against callback chains.
//
// A scenario declares widget receivers and named callbacks, then applies
// chain operations step by step, checking each outcome. Every step is
// recorded in a trace that can be compared with a golden file.
//
// # Scenario Format
//
//	name: click_remove
//	description: "Remove drops the earliest occurrence"
//	receivers: [x, y]
//	callbacks:
//	  A: { receiver: x, method: OnClick }
//	  B: { receiver: y, method: OnClick }
//	  R: { method: Reset }             # static, no receiver
//	steps:
//	  - let: ABA
//	    combine: [A, B, A]
//	    expect: { order: [x.OnClick, y.OnClick, x.OnClick] }
//	  - let: BA
//	    remove: { from: ABA, target: A }
//	    expect: { order: [y.OnClick, x.OnClick], changed: true }
//	  - let: back
//	    roundtrip: ABA
//	    expect: { equals: ABA }
//	  - invoke: ABA
//	    expect: { order: [x.OnClick, y.OnClick, x.OnClick], result: x.OnClick }
//
// The name "empty" always refers to the empty chain.
//
// # Operations
//
//   - combine: folds Combine over the listed chains
//   - remove, remove_all: Remove and RemoveAll, recording the change flag
//   - roundtrip: serializes the chain, encodes it as canonical JSON,
//     decodes and validates the document, and deserializes it
//   - invoke: runs the chain and records the calls made
//
// # Expectations
//
//   - order: labels of the resulting chain, or of the calls for invoke
//   - empty, changed: boolean checks on the result
//   - equals: the result must Equal a named chain
//   - error: error code or message substring the step must fail with
//   - result: value returned by invoke
//
// # Deterministic Testing
//
// Every run uses a fresh catalog and a deterministic logical clock
// (testutil.DeterministicClock) for trace sequence numbers. Widgets are
// persisted by name through a catalog.ObjectTable, so roundtrips restore
// the same receivers and traces are identical across runs.
package harness
