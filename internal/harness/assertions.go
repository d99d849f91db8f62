package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/multicast/internal/callback"
)

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Step     int          // Index of the failing step
	Check    string       // Expectation that failed (order, empty, ...)
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Trace up to and including the failing step
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: step %d %s\n", e.Step, e.Check)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nTrace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", ev.Step, ev.Op)
		if ev.Let != "" {
			fmt.Fprintf(&buf, " -> %s", ev.Let)
		}
		fmt.Fprintf(&buf, " [%s]", strings.Join(ev.Chain, ", "))
		if ev.Error != "" {
			fmt.Fprintf(&buf, " error=%s", ev.Error)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// checkExpect evaluates the step's expectations against its outcome.
// An unexpected operation error is always a failure.
func (h *Harness) checkExpect(i int, step Step, ev TraceEvent, out *callback.Handle, opErr error, trace []TraceEvent) []error {
	var errs []error
	fail := func(check, expected, actual string) {
		errs = append(errs, &AssertionError{
			Step:     i,
			Check:    check,
			Expected: expected,
			Actual:   actual,
			Trace:    trace,
		})
	}

	exp := step.Expect
	if exp == nil {
		exp = &Expect{}
	}

	switch {
	case exp.Error != "" && opErr == nil:
		fail("error", exp.Error, "no error")
	case exp.Error != "" && !matchError(opErr, exp.Error):
		fail("error", exp.Error, opErr.Error())
	case exp.Error == "" && opErr != nil:
		fail("error", "no error", opErr.Error())
	}
	if opErr != nil && ev.Op != OpInvoke {
		// A failed structural step has no chain to check. Invoke still
		// reports the calls made before the failure.
		return errs
	}

	if exp.Order != nil && !slices.Equal(ev.Chain, exp.Order) {
		fail("order", formatOrder(exp.Order), formatOrder(ev.Chain))
	}

	if exp.Empty != nil && ev.Op != OpInvoke {
		if got := out.Len() == 0; got != *exp.Empty {
			fail("empty", fmt.Sprintf("empty=%t", *exp.Empty), fmt.Sprintf("length %d", out.Len()))
		}
	}

	if exp.Changed != nil {
		switch {
		case ev.Changed == nil:
			fail("changed", fmt.Sprintf("changed=%t", *exp.Changed), ev.Op+" reports no change flag")
		case *ev.Changed != *exp.Changed:
			fail("changed", fmt.Sprintf("changed=%t", *exp.Changed), fmt.Sprintf("changed=%t", *ev.Changed))
		}
	}

	if exp.Equals != "" {
		want := h.chains[exp.Equals]
		if !callback.Equal(out, want) {
			fail("equals", fmt.Sprintf("%s %s", exp.Equals, formatOrder(chainLabels(want))), formatOrder(ev.Chain))
		}
	}

	if exp.Result != "" && ev.Result != exp.Result {
		fail("result", exp.Result, ev.Result)
	}
	return errs
}

// matchError matches an error code exactly or a message by substring.
func matchError(err error, want string) bool {
	if callback.CodeOf(err) == callback.ErrorCode(want) {
		return true
	}
	return strings.Contains(err.Error(), want)
}

func formatOrder(labels []string) string {
	return "[" + strings.Join(labels, ", ") + "]"
}
