package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Golden files live in testdata/golden. Regenerate with:
//
//	go test ./internal/harness -update
func TestRunWithGolden_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			require.NoError(t, RunWithGolden(t, s))
		})
	}
}

func TestCanonicalTrace_Shape(t *testing.T) {
	changed := false
	result := NewResult()
	result.addEvent(TraceEvent{Seq: 1, Step: 0, Op: OpRemove, Let: "r", Chain: []string{"x.OnClick"}, Changed: &changed})
	result.addEvent(TraceEvent{Seq: 2, Step: 1, Op: OpInvoke, Chain: []string{}, Error: "boom"})

	data, err := CanonicalTrace("shape", result)
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"shape","trace":[`+
			`{"chain":["x.OnClick"],"changed":false,"let":"r","op":"remove","seq":1,"step":0},`+
			`{"chain":[],"error":"boom","op":"invoke","seq":2,"step":1}]}`,
		string(data))
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Step:     2,
		Check:    "order",
		Expected: "[a, b]",
		Actual:   "[b, a]",
		Trace: []TraceEvent{
			{Step: 0, Op: OpCombine, Let: "ab", Chain: []string{"b", "a"}},
			{Step: 1, Op: OpRoundtrip, Chain: []string{}, Error: "CHAIN_MISMATCH"},
		},
	}

	msg := err.Error()
	assert.Contains(t, msg, "Expectation failed: step 2 order")
	assert.Contains(t, msg, "Expected: [a, b]")
	assert.Contains(t, msg, "Actual: [b, a]")
	assert.Contains(t, msg, "[0] combine -> ab [b, a]")
	assert.Contains(t, msg, "[1] roundtrip [] error=CHAIN_MISMATCH")
}

func TestMatchError(t *testing.T) {
	s := mustParse(t, `
name: codes
description: "error matching"
receivers: [x]
callbacks:
  A: { receiver: x, method: OnClick }
  K: { receiver: x, method: OnKey, kind: KeyHandler }
steps:
  - let: AK
    combine: [A, K]
  - roundtrip: AK
    expect: { error: "differs from head callback type" }
`)
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}
